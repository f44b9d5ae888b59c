package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/config"
	"github.com/park285/cheese-arena/internal/feed"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/notify"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/render"
	"github.com/park285/cheese-arena/internal/web"
)

const shutdownTimeout = 5 * time.Second

func runServe(parent context.Context, cfg *config.AppConfig) error {
	defer obslog.Sync()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	var opts []arena.Option

	if cfg.FeedEnabled() {
		rdb, err := feed.Open(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		pub := feed.NewPublisher(rdb, cfg.FeedChannel, 0)
		opts = append(opts, arena.WithObserver(pub))
		g.Go(func() error { return pub.Run(gctx) })
	}

	if cfg.AnnounceEnabled() {
		cat, err := msgcat.New(cfg.MessagesDir)
		if err != nil {
			return fmt.Errorf("messages: %w", err)
		}
		client := notify.NewClient(cfg.IrisBaseURL,
			notify.WithHeaderProvider(notify.StaticHeaders(cfg.XUserID, cfg.XUserEmail, cfg.XSessionID)),
		)
		ann := notify.NewAnnouncer(client, cat, cfg.AnnounceRoom, cfg.Title,
			notify.WithBoardImage(func(fen string) ([]byte, error) {
				return render.PNG(gctx, fen, render.Options{Title: cfg.Title})
			}),
		)
		opts = append(opts, arena.WithObserver(ann))
		g.Go(func() error { return ann.Run(gctx) })
	}

	room := arena.NewRoom(gctx, opts...)
	srv, err := web.NewServer(room, web.Config{
		Title:          cfg.Title,
		OutboxSize:     cfg.OutboxSize,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	if err != nil {
		room.Close()
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       10 * time.Minute,
	}

	g.Go(func() error {
		obslog.L().Info("arena_listen", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		obslog.L().Info("arena_shutdown")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(sctx)
		// Hijacked websockets are not tracked by Shutdown; closing the room
		// closes every outbox, which ends their handlers.
		room.Close()
		return err
	})

	return g.Wait()
}
