package relay

import (
	"strings"

	"github.com/xaenou/origami-chat/pkg/config"
)

// Trigger decides whether an inbound message is addressed to a provider
// and, if so, which part of it is the prompt.
type Trigger struct {
	kind  string
	value string
}

func NewTrigger(cfg config.TriggerConfig) Trigger {
	return Trigger{kind: cfg.Kind, value: cfg.Value}
}

// Match returns the prompt text and whether the message matched. A bare
// command with no argument matches with an empty prompt; the validator
// turns that into the empty-input rejection.
func (t Trigger) Match(body string) (string, bool) {
	switch t.kind {
	case "command":
		command := "!" + t.value
		if body == command {
			return "", true
		}
		if rest, ok := strings.CutPrefix(body, command+" "); ok {
			return rest, true
		}
		return "", false
	case "prefix":
		if rest, ok := strings.CutPrefix(body, t.value); ok {
			return rest, true
		}
		return "", false
	default:
		return "", false
	}
}
