package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"
	"time"

	"veggiemarket/internal/app"
	"veggiemarket/internal/config"
	"veggiemarket/internal/logger"
	"veggiemarket/internal/services"

	"go.uber.org/zap"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		// The logger is not configured yet.
		l, _ := logger.New("development")
		l.Fatal("Failed to load configuration", zap.Error(err))
	}
	if err := logger.Init(cfg.App.Env); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Application ---
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("Error while closing resources", zap.Error(err))
		}
	}()

	// --- Start RabbitMQ Consumer ---
	// Order events are only logged here; fulfilment lives in other services.
	if a.MQ != nil {
		log.Info("Starting RabbitMQ consumer for orders...")
		err := a.MQ.ConsumeOrderEvents(func(body []byte) error {
			var event services.OrderCreatedEvent
			if err := json.Unmarshal(body, &event); err != nil {
				return err
			}
			log.Info("Received order event",
				zap.String("order_id", event.OrderID),
				zap.String("user_id", event.UserID),
				zap.String("total", event.Total.StringFixed(2)),
				zap.Int("items", event.Items))
			return nil
		})
		if err != nil {
			log.Error("Failed to start RabbitMQ consumer", zap.Error(err))
		}
	}

	// Idle rate-limit buckets and device sessions are dropped once a minute.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.Limiter.Cleanup()
				a.Sessions.Cleanup(cfg.Auth.SessionIdle)
			}
		}
	}()

	// --- Start HTTP Server ---
	go func() {
		log.Info("Starting server", zap.String("port", cfg.App.Port), zap.String("env", cfg.App.Env))
		if err := a.Fiber.Listen(cfg.App.Port); err != nil {
			log.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-ctx.Done()
	log.Info("Shutting down server...")
	if err := a.Fiber.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warn("Error during Fiber shutdown", zap.Error(err))
	}
	log.Info("Server gracefully stopped")
}
