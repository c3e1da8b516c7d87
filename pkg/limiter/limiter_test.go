package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/xaenou/origami-chat/pkg/config"
	"github.com/xaenou/origami-chat/pkg/usage"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(nopWriter{})
	return log
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func record(t *testing.T, store usage.Store, userID, provider string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.Record(context.Background(), userID, provider))
	}
}

func TestCheckDisabledPolicyAlwaysAllows(t *testing.T) {
	store := usage.NewMemoryStore()
	record(t, store, "@alice:example.org", "openai", 50)

	l := New(store, testLogger())
	policy := config.RateLimitConfig{Enabled: false, Limit: 1, Window: 24 * time.Hour}
	require.True(t, l.Check(context.Background(), "@alice:example.org", policy, "openai"))
}

func TestCheckUserScopeAtLimit(t *testing.T) {
	ctx := context.Background()
	store := usage.NewMemoryStore()
	l := New(store, testLogger())
	policy := config.RateLimitConfig{Enabled: true, Limit: 3, Window: 24 * time.Hour}

	record(t, store, "@alice:example.org", "openai", 2)
	require.True(t, l.Check(ctx, "@alice:example.org", policy, "openai"))

	record(t, store, "@alice:example.org", "openai", 1)
	require.False(t, l.Check(ctx, "@alice:example.org", policy, "openai"))

	// A different user in the same window is unaffected.
	require.True(t, l.Check(ctx, "@bob:example.org", policy, "openai"))

	// So is the same user on another provider.
	require.True(t, l.Check(ctx, "@alice:example.org", policy, "deepseek"))
}

func TestCheckGlobalScope(t *testing.T) {
	ctx := context.Background()
	store := usage.NewMemoryStore()
	l := New(store, testLogger())
	policy := config.RateLimitConfig{Enabled: true, Limit: 3, Window: 24 * time.Hour}

	record(t, store, "@alice:example.org", "openai", 2)
	record(t, store, "@bob:example.org", "openai", 1)

	require.False(t, l.Check(ctx, "", policy, "openai"))
}

type failingStore struct {
	usage.Store
}

func (failingStore) CountSince(ctx context.Context, userID, provider string, since time.Time) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestCheckStorageFailureDegradesToAllowed(t *testing.T) {
	l := New(failingStore{}, testLogger())
	policy := config.RateLimitConfig{Enabled: true, Limit: 1, Window: 24 * time.Hour}
	require.True(t, l.Check(context.Background(), "@alice:example.org", policy, "openai"))
}
