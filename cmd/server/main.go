// Command server runs the development chat server: WebSocket rooms, the
// REST room API and Prometheus metrics on one listener.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vladimirruppel/roomchat/internal/config"
	"github.com/vladimirruppel/roomchat/internal/logging"
	"github.com/vladimirruppel/roomchat/internal/server"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		bootLog := logging.New(true, "info", os.Stderr)
		bootLog.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.IsDevelopment(), cfg.LogLevel, os.Stdout)

	srv, err := server.New(*cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init server")
	}
	if room, err := srv.Rooms().Create("General", 0); err == nil {
		logger.Info().Int64("room_id", room.RoomID).Msg("seeded default room")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go srv.Run(ctx)

	httpSrv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     srv.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.Addr).
			Str("env", cfg.Env).
			Str("history_dir", cfg.HistoryDir).
			Msg("starting chat server")

		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown; stopping
	// the hub closes them.
	stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
