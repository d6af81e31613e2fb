package store

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// changeChannel is the pub/sub channel every instance shares. The payload is
// just the new message id — receivers re-query the log rather than trusting
// a serialized record, so the log stays the single ordering authority.
const changeChannel = "chatcore:log:changed"

// RedisNotifier broadcasts log changes across server instances through
// redis pub/sub.
type RedisNotifier struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisNotifier(rdb *redis.Client, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, logger: logger}
}

func (n *RedisNotifier) Notify(ctx context.Context, messageID int64) {
	if err := n.rdb.Publish(ctx, changeChannel, strconv.FormatInt(messageID, 10)).Err(); err != nil {
		// Local subscribers were already refreshed; only remote fanout is
		// delayed until the next successful publish.
		n.logger.Warn("publish log change", zap.Error(err))
	}
}

// Listen blocks consuming change notifications and invoking onChange for
// each, until ctx is cancelled. Run it in its own goroutine.
func (n *RedisNotifier) Listen(ctx context.Context, onChange func(ctx context.Context)) {
	pubsub := n.rdb.Subscribe(ctx, changeChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			// The payload (message id) is advisory; receivers re-query the
			// full snapshot regardless.
			onChange(ctx)
		}
	}
}
