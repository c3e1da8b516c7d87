package relay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xaenou/origami-chat/pkg/cache"
)

// ReplyCache deduplicates identical prompts: a hit returns the stored
// reply without an upstream call and without consuming quota.
type ReplyCache struct {
	rdb *cache.Client
	ttl time.Duration
	log *logrus.Logger
}

func NewReplyCache(rdb *cache.Client, ttl time.Duration, log *logrus.Logger) *ReplyCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ReplyCache{rdb: rdb, ttl: ttl, log: log}
}

func replyKey(provider, promptText string) string {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(promptText))
	return "reply:" + hex.EncodeToString(h.Sum(nil))
}

func (c *ReplyCache) Get(ctx context.Context, provider, promptText string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	val, err := c.rdb.Get(ctx, replyKey(provider, promptText))
	if err != nil {
		return "", false
	}
	return string(val), true
}

// Put stores the reply asynchronously; a failed write only costs a
// future cache miss.
func (c *ReplyCache) Put(provider, promptText, replyText string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := c.rdb.Set(ctx, replyKey(provider, promptText), []byte(replyText), c.ttl); err != nil {
			c.log.WithError(err).Debug("reply cache write failed")
		}
	}()
}
