package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

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
	log := logger.WithComponent(logger.New(cfg.Log.Level, cfg.Log.Format), "status-api")
	port := cfg.Server.PortOr("8086")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Server.RedisAddr,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis not reachable yet", "addr", cfg.Server.RedisAddr, "error", err)
	}

	producer, err := kafka.NewProducer(cfg.Server.Brokers(), log)
	if err != nil {
		log.Error("failed to create kafka producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	kafkaConsumer, err := kafka.NewConsumer(cfg.Server.Brokers(), "status-api", log)
	if err != nil {
		log.Error("failed to create kafka consumer", "error", err)
		os.Exit(1)
	}
	defer kafkaConsumer.Close()

	api := NewStatusAPI(NewRedisStore(redisClient, cfg.Server.StatusTTL), producer, log)

	go func() {
		err := feed.NewKafkaSource(kafkaConsumer).Listen(ctx, func(payload []byte) {
			if err := api.ProcessEvent(ctx, payload); err != nil {
				log.Warn("error processing event", "error", err)
			}
		})
		if err != nil {
			log.Error("event consumer stopped", "error", err)
			stop()
		}
	}()

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           api.Router(auth.NewSigner(cfg.Server.JWTSecret)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Info("status api is running", "port", port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("status api stopped")
}
