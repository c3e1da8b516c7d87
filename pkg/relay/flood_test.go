package relay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xaenou/origami-chat/pkg/config"
)

func TestFloodGuardDisabled(t *testing.T) {
	g := NewFloodGuard(config.FloodGuardConfig{Enabled: false}, nil, testLogger())
	for i := 0; i < 100; i++ {
		require.True(t, g.Allow(context.Background(), "@alice:example.org"))
	}
}

func TestFloodGuardLocalBucket(t *testing.T) {
	g := NewFloodGuard(config.FloodGuardConfig{Enabled: true, PerMinute: 2}, nil, testLogger())
	ctx := context.Background()

	require.True(t, g.Allow(ctx, "@alice:example.org"))
	require.True(t, g.Allow(ctx, "@alice:example.org"))
	require.False(t, g.Allow(ctx, "@alice:example.org"))

	// Buckets are per sender.
	require.True(t, g.Allow(ctx, "@bob:example.org"))
}
