package kafka

import (
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"mentorlounge/shared/message"
)

// Producer wraps the Kafka producer
type Producer struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

func NewProducer(bootstrapServers string, logger *slog.Logger) (*Producer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": bootstrapServers,
	})
	if err != nil {
		return nil, err
	}

	// delivery reports
	go func() {
		for e := range p.Events() {
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					logger.Warn("failed to deliver message", "error", ev.TopicPartition.Error)
				}
			}
		}
	}()

	return &Producer{producer: p, logger: logger}, nil
}

// SendMessage publishes value, tagged with its event type, keyed by session.
func (p *Producer) SendMessage(topic string, key string, value interface{}) error {
	data, err := message.Marshal(value)
	if err != nil {
		return err
	}

	return p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          data,
	}, nil)
}

// Close flushes outstanding messages and closes the producer.
func (p *Producer) Close() {
	if remaining := p.producer.Flush(5000); remaining > 0 {
		p.logger.Warn("closing producer with undelivered messages", "remaining", remaining)
	}
	p.producer.Close()
}
