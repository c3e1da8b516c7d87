package relay

import (
	"context"
	"sync"

	"github.com/go-redis/redis_rate/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/xaenou/origami-chat/pkg/cache"
	"github.com/xaenou/origami-chat/pkg/config"
)

// FloodGuard throttles raw inbound messages per sender, ahead of
// validation and quota checks. It protects the relay loop itself, not
// the upstream quota, so denials are dropped silently after logging.
//
// With Redis available the window is shared across instances via
// redis_rate; otherwise each sender gets a local token bucket.
type FloodGuard struct {
	enabled   bool
	perMinute int
	dist      *redis_rate.Limiter
	log       *logrus.Logger

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

func NewFloodGuard(cfg config.FloodGuardConfig, rdb *cache.Client, log *logrus.Logger) *FloodGuard {
	g := &FloodGuard{
		enabled:   cfg.Enabled && cfg.PerMinute > 0,
		perMinute: cfg.PerMinute,
		log:       log,
		local:     make(map[string]*rate.Limiter),
	}
	if rdb != nil {
		g.dist = redis_rate.NewLimiter(rdb.Redis())
	}
	return g
}

// Allow reports whether sender may proceed. A Redis failure degrades to
// the local bucket rather than dropping the message.
func (g *FloodGuard) Allow(ctx context.Context, sender string) bool {
	if !g.enabled {
		return true
	}

	if g.dist != nil {
		res, err := g.dist.Allow(ctx, "flood:"+sender, redis_rate.PerMinute(g.perMinute))
		if err == nil {
			return res.Allowed > 0
		}
		g.log.WithError(err).Warn("distributed flood check failed, using local bucket")
	}

	return g.localLimiter(sender).Allow()
}

func (g *FloodGuard) localLimiter(sender string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.local[sender]
	if !ok {
		l = rate.NewLimiter(rate.Limit(g.perMinute)/60, g.perMinute)
		g.local[sender] = l
	}
	return l
}
