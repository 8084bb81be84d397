package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

type MessageHandler func(topic string, key []byte, value []byte) error

type Consumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func NewConsumer(bootstrapServers, groupID string, logger *slog.Logger) (*Consumer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  bootstrapServers,
		"group.id":           groupID,
		"auto.offset.reset":  "latest",
		"enable.auto.commit": "true",
	})
	if err != nil {
		return nil, err
	}

	return &Consumer{consumer: c, logger: logger}, nil
}

// Subscribe retries while topics are still being created by the brokers.
func (c *Consumer) Subscribe(topics []string) error {
	maxRetries := 15
	retryDelay := time.Second * 2

	var err error
	for i := 0; i < maxRetries; i++ {
		err = c.consumer.SubscribeTopics(topics, nil)
		if err == nil {
			c.logger.Info("subscribed to topics", "topics", topics)
			return nil
		}

		if i < maxRetries-1 {
			c.logger.Warn("failed to subscribe to topics, retrying",
				"error", err, "retry_in", retryDelay, "attempt", i+1, "max_attempts", maxRetries)
			time.Sleep(retryDelay)
			retryDelay = time.Duration(float64(retryDelay) * 1.5)
		}
	}

	return err
}

// ConsumeMessages polls until the context ends or every broker is down.
func (c *Consumer) ConsumeMessages(ctx context.Context, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ev := c.consumer.Poll(100)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			topic := ""
			if e.TopicPartition.Topic != nil {
				topic = *e.TopicPartition.Topic
			}
			if err := handler(topic, e.Key, e.Value); err != nil {
				c.logger.Warn("error processing message", "topic", topic, "error", err)
			}
		case kafka.Error:
			if e.Code() == kafka.ErrAllBrokersDown {
				c.logger.Error("fatal kafka error", "error", e)
				return e
			}
			// topic and timeout errors resolve on their own
			c.logger.Warn("kafka error", "error", e, "code", e.Code().String())
		}
	}
}

func (c *Consumer) Close() {
	c.consumer.Close()
}
