package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xaenou/origami-chat/pkg/config"
	"github.com/xaenou/origami-chat/pkg/limiter"
	"github.com/xaenou/origami-chat/pkg/llm"
	"github.com/xaenou/origami-chat/pkg/usage"
)

func dispatcherFixture(t *testing.T, endpoint string, guard *FloodGuard) (*Dispatcher, *fakeMessenger, *usage.MemoryStore) {
	t.Helper()
	providers := map[string]config.ProviderConfig{
		"openai": {
			Endpoint:       endpoint,
			Model:          "gpt-test",
			RequestTimeout: 2 * time.Second,
			Trigger:        config.TriggerConfig{Kind: "command", Value: "gpt"},
		},
		"deepseek": {
			Endpoint:       endpoint,
			Model:          "ds-test",
			RequestTimeout: 2 * time.Second,
			Trigger:        config.TriggerConfig{Kind: "command", Value: "ds"},
		},
	}
	cfgStore := config.NewStaticStore(&config.Config{Providers: providers})
	store := usage.NewMemoryStore()
	msgr := &fakeMessenger{}
	log := testLogger()
	limits := limiter.New(store, log)

	orchs := make(map[string]*Orchestrator, len(providers))
	for name, pcfg := range providers {
		orchs[name] = NewOrchestrator(name, cfgStore, store, limits, llm.NewClient(name, pcfg), msgr, nil, log)
	}
	if guard == nil {
		guard = NewFloodGuard(config.FloodGuardConfig{}, nil, log)
	}
	return NewDispatcher(cfgStore, orchs, guard, log), msgr, store
}

func inbound(body string) Message {
	return Message{
		Sender:    "@alice:example.org",
		RoomID:    "!room:example.org",
		MessageID: "$ev1",
		Body:      body,
	}
}

func TestDispatchRoutesToMatchingProvider(t *testing.T) {
	server := successServer(t, "routed")
	d, msgr, store := dispatcherFixture(t, server.URL, nil)

	d.HandleMessage(context.Background(), inbound("!ds explain goroutines"))

	require.Equal(t, "routed", msgr.lastBody(t))
	n, err := store.CountSince(context.Background(), "", "deepseek", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestDispatchIgnoresUnmatchedMessages(t *testing.T) {
	d, msgr, _ := dispatcherFixture(t, "http://unused.invalid", nil)

	d.HandleMessage(context.Background(), inbound("good morning everyone"))

	require.Empty(t, msgr.sent)
}

func TestDispatchFloodGuardDropsSilently(t *testing.T) {
	server := successServer(t, "ok")
	guard := NewFloodGuard(config.FloodGuardConfig{Enabled: true, PerMinute: 1}, nil, testLogger())
	d, msgr, store := dispatcherFixture(t, server.URL, guard)
	ctx := context.Background()

	d.HandleMessage(ctx, inbound("!gpt first"))
	d.HandleMessage(ctx, inbound("!gpt second"))

	// The second message is dropped without any user-facing reply.
	msgr.mu.Lock()
	sent := len(msgr.sent)
	msgr.mu.Unlock()
	require.Equal(t, 1, sent)

	n, err := store.CountSince(ctx, "", "", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}
