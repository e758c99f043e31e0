package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"agentic-rag/internal/adapter/rag_http"
	"agentic-rag/internal/di"
	"agentic-rag/internal/infra/config"
	"agentic-rag/internal/infra/logger"
	"agentic-rag/internal/infra/telemetry"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	log := logger.NewWithOTel(cfg.OTelEnabled)
	slog.SetDefault(log)

	ctx := context.Background()

	if cfg.OTelEnabled {
		shutdown, err := telemetry.Setup(ctx, cfg.OTelEndpoint)
		if err != nil {
			log.Error("telemetry setup failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
			}
		}()
	}

	components, err := di.New(ctx, cfg, log)
	if err != nil {
		log.Error("wiring failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer components.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency))
			return nil
		},
	}))
	e.Use(middleware.Recover())

	handler := rag_http.NewHandler(components.Pipeline, components.Ingestor, components.ReadyCheck, log)
	handler.RegisterRoutes(e)

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.Info("starting server", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		e.Logger.Fatal(err)
	}
}
