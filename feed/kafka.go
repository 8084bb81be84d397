package feed

import (
	"context"
	"errors"

	"mentorlounge/shared/kafka"
	"mentorlounge/shared/message"
)

// PlanTopics are the topics a broker-side listener consumes.
var PlanTopics = []string{message.TopicPlanStatus, message.TopicPlanProgress, message.TopicPlanCompletions}

// KafkaSource reads plan events straight off the brokers.
type KafkaSource struct {
	consumer *kafka.Consumer
	topics   []string
}

func NewKafkaSource(consumer *kafka.Consumer, topics ...string) *KafkaSource {
	if len(topics) == 0 {
		topics = PlanTopics
	}
	return &KafkaSource{consumer: consumer, topics: topics}
}

func (s *KafkaSource) Listen(ctx context.Context, handle Handler) error {
	if err := s.consumer.Subscribe(s.topics); err != nil {
		return err
	}
	err := s.consumer.ConsumeMessages(ctx, func(_ string, _ []byte, value []byte) error {
		handle(value)
		return nil
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
