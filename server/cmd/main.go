package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"engulf/server"
	"engulf/server/application"
	"engulf/server/config"
	"engulf/server/domain"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// .env は任意。存在しなければ環境変数のみを使う
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "err", err)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return err
	}
	level, _ := cfg.LogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pubsub := domain.NewSimplePubSub(cfg.Session.PubSubBuffer)
	game, err := application.NewGame(cfg.Application())
	if err != nil {
		return err
	}
	roomID := domain.RoomID(cfg.Server.Room)
	room, err := domain.NewRoom(roomID, pubsub, game, cfg.Game.TickInterval)
	if err != nil {
		return err
	}

	s := server.NewServer(ctx, cfg.ListenAddr(), server.Route(pubsub, roomID, cfg.Endpoint()))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return room.Run(egCtx)
	})
	eg.Go(func() error {
		slog.InfoContext(ctx, "server listening", "addr", s.Addr())
		if err := s.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		slog.InfoContext(ctx, "shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(ctx, "graceful shutdown failed", "err", err)
			if err := s.Close(); err != nil {
				slog.ErrorContext(ctx, "forced close failed", "err", err)
			}
		}
		return nil
	})

	err = eg.Wait()
	slog.InfoContext(ctx, "server shutdown complete")
	return err
}
