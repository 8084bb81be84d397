package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mentorlounge/feed"
	"mentorlounge/shared/auth"
	"mentorlounge/shared/config"
	"mentorlounge/shared/kafka"
	"mentorlounge/shared/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.New("error", "json").Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.WithComponent(logger.New(cfg.Log.Level, cfg.Log.Format), "notification")
	port := cfg.Server.PortOr("8085")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kafkaConsumer, err := kafka.NewConsumer(cfg.Server.Brokers(), "notification", log)
	if err != nil {
		log.Error("failed to create kafka consumer", "error", err)
		os.Exit(1)
	}
	defer kafkaConsumer.Close()

	notificationService := NewNotificationService(log)

	go func() {
		if err := feed.NewKafkaSource(kafkaConsumer).Listen(ctx, notificationService.HandleEvent); err != nil {
			log.Error("event consumer stopped", "error", err)
			stop()
		}
	}()

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           notificationService.Router(auth.NewSigner(cfg.Server.JWTSecret)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Info("notification service is running", "port", port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("notification service stopped")
}
