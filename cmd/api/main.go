package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"streamchat/internal/app"
	"streamchat/internal/config"
	apihttp "streamchat/internal/http"
	"streamchat/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	zl := logger.New(cfg)
	defer zl.Sync()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	chatHandler := apihttp.NewChatHandler(zl, a.Actions)
	router := apihttp.NewRouter(zl, a.JWT, chatHandler, func(ctx context.Context) error {
		return a.Redis.Ping(ctx).Err()
	})

	// Sin WriteTimeout: los streams SSE duran lo que dura el turno.
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zl.Info("starting server",
			zap.String("port", cfg.HTTPPort),
			zap.String("default_model", string(a.Models.Default())),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.TurnTimeout+5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Warn("http shutdown", zap.Error(err))
	}
	if err := a.Drain(shutdownCtx); err != nil {
		zl.Warn("turns still running at shutdown", zap.Error(err))
	}
}
