// Package relay binds validation, rate limiting, the completion client
// and the chat transport into the per-message control flow.
package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xaenou/origami-chat/pkg/config"
	"github.com/xaenou/origami-chat/pkg/limiter"
	"github.com/xaenou/origami-chat/pkg/llm"
	"github.com/xaenou/origami-chat/pkg/prompt"
	"github.com/xaenou/origami-chat/pkg/transport"
	"github.com/xaenou/origami-chat/pkg/usage"
)

// How long the typing hint may stay up before the transport drops it.
const composingTimeout = 5 * time.Minute

const (
	msgEmptyInput      = "No input received. Please provide a question or topic."
	msgTooLong         = "Character limit exceeded. Please keep your prompt under %d characters."
	msgUserLimit       = "You have reached your daily usage limit of %d prompts."
	msgGlobalLimit     = "Daily usage limit of %d prompts reached."
	msgUpstreamFailure = "I cannot complete your request right now. Try again later."
)

// Request is one inbound prompt. It lives for the duration of a single
// Handle call and is never persisted.
type Request struct {
	Sender        string
	Target        transport.Target
	RawText       string
	QuotedContext string
}

// Orchestrator relays prompts for one provider. It holds no per-request
// state; concurrent Handle calls share nothing but the usage store.
type Orchestrator struct {
	provider string
	cfgStore *config.Store
	store    usage.Store
	limits   *limiter.Limiter
	client   *llm.Client
	msgr     transport.Messenger
	replies  *ReplyCache // nil when disabled
	log      *logrus.Logger
}

func NewOrchestrator(
	provider string,
	cfgStore *config.Store,
	store usage.Store,
	limits *limiter.Limiter,
	client *llm.Client,
	msgr transport.Messenger,
	replies *ReplyCache,
	log *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		cfgStore: cfgStore,
		store:    store,
		limits:   limits,
		client:   client,
		msgr:     msgr,
		replies:  replies,
		log:      log,
	}
}

// Handle runs one prompt through validate, rate-check, complete and
// reply. It never returns an error: every failure mode ends in either a
// user-facing message or a log line.
func (o *Orchestrator) Handle(ctx context.Context, req Request) {
	cfg := o.cfgStore.Get()
	if cfg == nil {
		return
	}
	pcfg, ok := cfg.Providers[o.provider]
	if !ok {
		return
	}

	if !o.personaMatches(ctx, pcfg) {
		return
	}

	out := prompt.Validate(req.RawText, req.QuotedContext, pcfg.InputCharacterLimit, pcfg.EnableInputCharacterLimit)
	if !out.Accepted {
		relayRequests.WithLabelValues(o.provider, "rejected_input").Inc()
		switch out.Reason {
		case prompt.TooLong:
			o.reply(ctx, req, pcfg, fmt.Sprintf(msgTooLong, out.Limit))
		default:
			o.reply(ctx, req, pcfg, msgEmptyInput)
		}
		return
	}

	if err := o.msgr.MarkRead(ctx, req.Target); err != nil {
		o.log.WithError(err).Debug("read receipt failed")
	}

	// User scope first: a user-scope denial must not cost a global read
	// and gets its own message.
	if pcfg.UserRateLimit.Enabled && !o.limits.Check(ctx, req.Sender, pcfg.UserRateLimit, o.provider) {
		relayRequests.WithLabelValues(o.provider, "rate_limited_user").Inc()
		o.reply(ctx, req, pcfg, fmt.Sprintf(msgUserLimit, pcfg.UserRateLimit.Limit))
		return
	}
	if pcfg.GlobalRateLimit.Enabled && !o.limits.Check(ctx, "", pcfg.GlobalRateLimit, o.provider) {
		relayRequests.WithLabelValues(o.provider, "rate_limited_global").Inc()
		o.reply(ctx, req, pcfg, fmt.Sprintf(msgGlobalLimit, pcfg.GlobalRateLimit.Limit))
		return
	}

	// A cached reply is not an inference: no upstream call, no typing
	// hint, no quota consumed.
	if o.replies != nil {
		if text, hit := o.replies.Get(ctx, o.provider, out.Prompt); hit {
			relayRequests.WithLabelValues(o.provider, "cache_hit").Inc()
			o.reply(ctx, req, pcfg, text)
			return
		}
	}

	start := time.Now()
	res := o.dispatch(ctx, req, out.Prompt)
	elapsed := time.Since(start)

	switch r := res.(type) {
	case llm.Success:
		relayRequests.WithLabelValues(o.provider, "success").Inc()
		o.log.WithFields(logrus.Fields{
			"provider": o.provider,
			"user":     req.Sender,
			"elapsed":  fmt.Sprintf("%.2fs", elapsed.Seconds()),
		}).Info("completion request finished")

		if err := o.store.Record(ctx, req.Sender, o.provider); err != nil {
			// Quota bookkeeping is best-effort; the reply still goes out.
			o.log.WithError(err).Error("failed to record usage event")
		}
		go o.observeTokens(pcfg.Model, out.Prompt, r.Text)
		if o.replies != nil {
			o.replies.Put(o.provider, out.Prompt, r.Text)
		}
		o.reply(ctx, req, pcfg, r.Text)

	case llm.Empty:
		relayRequests.WithLabelValues(o.provider, "empty").Inc()
		o.log.WithField("provider", o.provider).Warn("upstream returned empty completion")
		o.reply(ctx, req, pcfg, "")

	case llm.UpstreamError:
		relayRequests.WithLabelValues(o.provider, "upstream_error").Inc()
		o.log.WithFields(logrus.Fields{
			"provider": o.provider,
			"status":   r.Status,
			"body":     r.Body,
			"elapsed":  fmt.Sprintf("%.2fs", elapsed.Seconds()),
		}).Warn("upstream request failed")
		o.reply(ctx, req, pcfg, msgUpstreamFailure)

	case llm.TransportFailure:
		relayRequests.WithLabelValues(o.provider, "transport_failure").Inc()
		o.log.WithError(r.Err).WithField("provider", o.provider).Error("completion call failed")
		o.reply(ctx, req, pcfg, msgUpstreamFailure)
	}
}

// dispatch raises the typing hint, runs the completion and clears the
// hint on every exit path, including panics in the client.
func (o *Orchestrator) dispatch(ctx context.Context, req Request, userPrompt string) llm.Result {
	if err := o.msgr.SignalComposing(ctx, req.Target, composingTimeout); err != nil {
		o.log.WithError(err).Debug("composing signal failed")
	}
	defer func() {
		if err := o.msgr.ClearComposing(ctx, req.Target); err != nil {
			o.log.WithError(err).Debug("clearing composing signal failed")
		}
	}()

	return o.client.Complete(ctx, userPrompt)
}

// personaMatches applies the named-identity gate: when a persona name
// is configured, the request is silently ignored unless the account's
// current display name matches it.
func (o *Orchestrator) personaMatches(ctx context.Context, pcfg config.ProviderConfig) bool {
	if pcfg.BotPersonaName == "" {
		return true
	}
	name, err := o.msgr.DisplayName(ctx)
	if err != nil {
		o.log.WithError(err).Warn("could not resolve bot display name")
		return false
	}
	return name == pcfg.BotPersonaName
}

func (o *Orchestrator) reply(ctx context.Context, req Request, pcfg config.ProviderConfig, body string) {
	if err := o.msgr.SendText(ctx, req.Target, body, pcfg.ReplyAsThread); err != nil {
		o.log.WithError(err).WithField("room", req.Target.RoomID).Error("failed to send reply")
	}
}

func (o *Orchestrator) observeTokens(model, userPrompt, replyText string) {
	n := llm.CountTokens(model, userPrompt+replyText)
	promptTokens.WithLabelValues(o.provider).Observe(float64(n))
}
