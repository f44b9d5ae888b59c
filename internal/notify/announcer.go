package notify

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
)

const (
	defaultQueueSize = 32
	sendTimeout      = 15 * time.Second
)

// Sender posts to a chat room. *Client implements it.
type Sender interface {
	SendMessage(ctx context.Context, room, message string) error
	SendImage(ctx context.Context, room, imageBase64 string) error
}

// BoardImage renders a FEN as PNG.
type BoardImage func(fen string) ([]byte, error)

type announcement struct {
	key  string
	data map[string]any
	fen  string
}

// Announcer turns game lifecycle events into chat messages. Observe runs on
// the room goroutine and only enqueues; Run sends.
type Announcer struct {
	sender  Sender
	catalog *msgcat.Catalog
	room    string
	title   string
	image   BoardImage

	queue   chan announcement
	lastFEN string
}

type AnnouncerOption func(*Announcer)

// WithBoardImage attaches the final position as an image to game-over posts.
func WithBoardImage(fn BoardImage) AnnouncerOption {
	return func(a *Announcer) { a.image = fn }
}

func WithQueueSize(n int) AnnouncerOption {
	return func(a *Announcer) {
		if n > 0 {
			a.queue = make(chan announcement, n)
		}
	}
}

func NewAnnouncer(sender Sender, catalog *msgcat.Catalog, room, title string, opts ...AnnouncerOption) *Announcer {
	a := &Announcer{
		sender:  sender,
		catalog: catalog,
		room:    room,
		title:   title,
		queue:   make(chan announcement, defaultQueueSize),
		lastFEN: arena.StartFEN,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Announcer) Observe(ev arena.Event) {
	if !ev.Broadcast() {
		return
	}
	switch ev.Name {
	case arena.EventBoardState:
		if fen, ok := ev.Data.(string); ok {
			a.lastFEN = fen
		}
	case arena.EventGameStart:
		a.enqueue(announcement{key: "game.start", data: a.base()})
	case arena.EventRematchStarted:
		a.enqueue(announcement{key: "game.rematch", data: a.base()})
	case arena.EventGameOver:
		over, _ := ev.Data.(arena.GameOver)
		data := a.base()
		key := "game.over.draw"
		if over.Reason == arena.ReasonCheckmate {
			key = "game.over.checkmate"
			data["Winner"] = winnerOf(a.lastFEN)
		}
		a.enqueue(announcement{key: key, data: data, fen: a.lastFEN})
	}
}

func (a *Announcer) base() map[string]any {
	return map[string]any{"Title": a.title}
}

func (a *Announcer) enqueue(m announcement) {
	select {
	case a.queue <- m:
	default:
		obslog.L().Warn("announce_dropped", zap.String("key", m.key))
	}
}

// Run delivers queued announcements until ctx ends.
func (a *Announcer) Run(ctx context.Context) error {
	obslog.L().Info("announce_start", zap.String("room", a.room))
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-a.queue:
			a.deliver(ctx, m)
		}
	}
}

func (a *Announcer) deliver(ctx context.Context, m announcement) {
	text, err := a.catalog.Render(m.key, m.data)
	if err != nil {
		obslog.L().Warn("announce_render_error", zap.String("key", m.key), zap.Error(err))
		return
	}
	sctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := a.sender.SendMessage(sctx, a.room, text); err != nil {
		obslog.L().Warn("announce_send_error", zap.String("key", m.key), zap.String("room", a.room), zap.Error(err))
		return
	}
	obslog.L().Info("announce_sent", zap.String("key", m.key), zap.String("room", a.room))

	if m.fen == "" || a.image == nil {
		return
	}
	png, err := a.image(m.fen)
	if err != nil {
		obslog.L().Warn("announce_image_error", zap.String("fen", m.fen), zap.Error(err))
		return
	}
	if err := a.sender.SendImage(sctx, a.room, base64.StdEncoding.EncodeToString(png)); err != nil {
		obslog.L().Warn("announce_send_error", zap.String("key", m.key), zap.String("kind", "image"), zap.Error(err))
	}
}

// winnerOf names the side that delivered mate: the side not to move in fen.
func winnerOf(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 1 && fields[1] == "w" {
		return "Black"
	}
	return "White"
}
