package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

// Subscribe delivers feed entries from channel to fn until ctx ends.
// Malformed payloads are logged and skipped.
func Subscribe(ctx context.Context, rdb *redis.Client, channel string, fn func(arenadto.FeedEntry)) error {
	sub := rdb.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var entry arenadto.FeedEntry
			if err := json.Unmarshal([]byte(msg.Payload), &entry); err != nil {
				obslog.L().Warn("feed_decode_error", zap.String("channel", channel), zap.Error(err))
				continue
			}
			fn(entry)
		}
	}
}
