package usage

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestSweepPurgesBeyondRetention(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	old := time.Now().UTC().Add(-48 * time.Hour)
	store.now = func() time.Time { return old }
	require.NoError(t, store.Record(ctx, "@alice:example.org", "openai"))

	store.now = time.Now
	require.NoError(t, store.Record(ctx, "@alice:example.org", "openai"))

	log := logrus.New()
	log.SetOutput(nopWriter{})

	sw := NewSweeper(store, func() time.Duration { return 24 * time.Hour }, time.Hour, log)
	sw.sweep(ctx)

	n, err := store.CountSince(ctx, "", "", time.Time{})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
