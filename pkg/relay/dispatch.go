package relay

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/xaenou/origami-chat/pkg/config"
	"github.com/xaenou/origami-chat/pkg/transport"
)

// Message is one inbound room message as the host transport delivers it.
type Message struct {
	Sender        string
	RoomID        string
	MessageID     string
	Body          string
	QuotedContext string
}

// Dispatcher routes inbound messages to the provider whose trigger
// matches. The host may call HandleMessage from many goroutines at
// once; the dispatcher holds no per-message state.
type Dispatcher struct {
	cfgStore      *config.Store
	orchestrators map[string]*Orchestrator
	guard         *FloodGuard
	log           *logrus.Logger
}

func NewDispatcher(cfgStore *config.Store, orchestrators map[string]*Orchestrator, guard *FloodGuard, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		cfgStore:      cfgStore,
		orchestrators: orchestrators,
		guard:         guard,
		log:           log,
	}
}

// HandleMessage matches the message against provider triggers in stable
// name order; the first match wins. Non-matching messages are ignored.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg Message) {
	cfg := d.cfgStore.Get()
	if cfg == nil {
		return
	}

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		orch, ok := d.orchestrators[name]
		if !ok {
			continue
		}
		promptText, matched := NewTrigger(cfg.Providers[name].Trigger).Match(msg.Body)
		if !matched {
			continue
		}

		if !d.guard.Allow(ctx, msg.Sender) {
			floodDropped.Inc()
			d.log.WithFields(logrus.Fields{
				"sender":   msg.Sender,
				"provider": name,
			}).Warn("dropping message, sender is flooding")
			return
		}

		orch.Handle(ctx, Request{
			Sender: msg.Sender,
			Target: transport.Target{
				RoomID:    msg.RoomID,
				MessageID: msg.MessageID,
			},
			RawText:       promptText,
			QuotedContext: msg.QuotedContext,
		})
		return
	}
}
