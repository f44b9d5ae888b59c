package feed

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

const (
	defaultQueueSize = 256
	publishTimeout   = 2 * time.Second
)

// Publisher mirrors room broadcasts onto a Redis pub/sub channel. Observe is
// called on the room goroutine and only enqueues; Run does the network work.
type Publisher struct {
	rdb     *redis.Client
	channel string
	queue   chan arenadto.FeedEntry
	dropped atomic.Int64
	now     func() time.Time
}

func NewPublisher(rdb *redis.Client, channel string, queueSize int) *Publisher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Publisher{
		rdb:     rdb,
		channel: channel,
		queue:   make(chan arenadto.FeedEntry, queueSize),
		now:     time.Now,
	}
}

// Observe enqueues broadcast events. Unicasts stay private to their
// connection and are skipped. A full queue drops the event.
func (p *Publisher) Observe(ev arena.Event) {
	if !ev.Broadcast() {
		return
	}
	frame, err := ev.Frame()
	if err != nil {
		obslog.L().Warn("feed_encode_error", zap.String("event", ev.Name), zap.Error(err))
		return
	}
	entry := arenadto.FeedEntry{Event: frame.Event, Data: frame.Data, At: p.now().UTC()}
	select {
	case p.queue <- entry:
	default:
		n := p.dropped.Add(1)
		obslog.L().Warn("feed_dropped", zap.String("event", ev.Name), zap.Int64("dropped_total", n))
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

// Run publishes queued entries until ctx ends.
func (p *Publisher) Run(ctx context.Context) error {
	obslog.L().Info("feed_start", zap.String("channel", p.channel))
	for {
		select {
		case <-ctx.Done():
			return nil
		case entry := <-p.queue:
			p.publish(ctx, entry)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, entry arenadto.FeedEntry) {
	raw, err := json.Marshal(entry)
	if err != nil {
		obslog.L().Warn("feed_encode_error", zap.String("event", entry.Event), zap.Error(err))
		return
	}
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.rdb.Publish(pctx, p.channel, raw).Err(); err != nil {
		obslog.L().Warn("feed_publish_error", zap.String("event", entry.Event), zap.String("channel", p.channel), zap.Error(err))
	}
}
