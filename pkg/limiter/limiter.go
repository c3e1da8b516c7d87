// Package limiter answers whether a user or the room as a whole may run
// another inference, counting completed inferences in a sliding window.
package limiter

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xaenou/origami-chat/pkg/config"
	"github.com/xaenou/origami-chat/pkg/usage"
)

// Limiter is a stateless policy layer over the usage store. It holds no
// counters itself; every check re-reads the persisted log, so the
// window slides with real time instead of calendar buckets.
type Limiter struct {
	store usage.Store
	log   *logrus.Logger
}

func New(store usage.Store, log *logrus.Logger) *Limiter {
	return &Limiter{store: store, log: log}
}

// Check reports whether another inference is allowed under policy.
// userID == "" checks the global scope. A storage failure degrades to
// allowed: the relay serves rather than hard-fails on a store fault.
//
// Checking and recording are two separate store operations, so
// concurrent bursts can briefly overshoot the limit. That is a known
// bound of this limiter, not a hard cap.
func (l *Limiter) Check(ctx context.Context, userID string, policy config.RateLimitConfig, provider string) bool {
	if !policy.Enabled {
		return true
	}

	since := time.Now().UTC().Add(-policy.Window)
	count, err := l.store.CountSince(ctx, userID, provider, since)
	if err != nil {
		l.log.WithError(err).WithFields(logrus.Fields{
			"user":     userID,
			"provider": provider,
		}).Warn("rate-limit check failed, allowing request")
		return true
	}
	return count < int64(policy.Limit)
}
