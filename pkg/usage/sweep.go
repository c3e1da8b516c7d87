package usage

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper periodically purges usage events older than the retention
// window. A failed sweep is logged and retried on the next tick; the
// relay keeps running with a larger-than-intended log in the meantime.
type Sweeper struct {
	store     Store
	retention func() time.Duration
	interval  time.Duration
	log       *logrus.Logger
}

// NewSweeper builds a sweeper. retention is a function so a config hot
// reload that changes window lengths takes effect on the next sweep.
func NewSweeper(store Store, retention func() time.Duration, interval time.Duration, log *logrus.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		store:     store,
		retention: retention,
		interval:  interval,
		log:       log,
	}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.retention())
	deleted, err := s.store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		s.log.WithError(err).Warn("usage sweep failed")
		return
	}
	s.log.WithFields(logrus.Fields{
		"deleted": deleted,
		"cutoff":  cutoff,
	}).Info("purged stale usage events")
}
