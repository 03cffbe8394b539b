package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"peerhub/internal/config"
	"peerhub/internal/gateway"
	"peerhub/internal/janitor"
	"peerhub/internal/routers"
	"peerhub/internal/session"
	"peerhub/internal/utils"
)

func main() {
	logger := utils.NewLogger()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	hub := session.NewHub(logger)
	handlers := gateway.NewHandlers(cfg, hub, logger)

	jan := janitor.New(hub, cfg.RoomIdleEviction, logger)
	if err := jan.Start(); err != nil {
		logger.Fatal("failed to start janitor", zap.Error(err))
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: routers.New(handlers),
	}

	go func() {
		logger.Info("peerhub listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	jan.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}
