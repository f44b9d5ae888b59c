package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/config"
	"github.com/park285/cheese-arena/internal/feed"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

var errFeedDisabled = errors.New("watch requires REDIS_URL")

func runWatch(parent context.Context, w io.Writer, cfg *config.AppConfig) error {
	defer obslog.Sync()
	if !cfg.FeedEnabled() {
		return errFeedDisabled
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return fmt.Errorf("messages: %w", err)
	}
	rdb, err := feed.Open(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	obslog.L().Info("arena_watch", zap.String("channel", cfg.FeedChannel))
	return feed.Subscribe(ctx, rdb, cfg.FeedChannel, func(e arenadto.FeedEntry) {
		line, err := formatEntry(cat, e)
		if err != nil {
			obslog.L().Warn("watch_format_error", zap.String("event", e.Event), zap.Error(err))
			return
		}
		fmt.Fprintln(w, line)
	})
}

func formatEntry(cat *msgcat.Catalog, e arenadto.FeedEntry) (string, error) {
	return cat.Render("watch.line", map[string]any{
		"At":    e.At.Local().Format(time.TimeOnly),
		"Event": e.Event,
		"Data":  string(e.Data),
	})
}
