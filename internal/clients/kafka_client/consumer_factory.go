package kafka_client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

var consumerRegistry = make(map[string]func(context.Context, *kafka.Consumer))

func RegisterConsumer(topic string, consumerFunc func(context.Context, *kafka.Consumer)) {
	consumerRegistry[topic] = consumerFunc
}

// StartConsumers runs one consumer goroutine per registered topic and blocks
// until all of them return. When cfg.Topic is set only that topic's consumer
// runs, which lets a deployment dedicate a process to one stage.
func StartConsumers(ctx context.Context, cfg KafkaConfig) error {
	topics := make([]string, 0, len(consumerRegistry))
	if cfg.Topic != "" {
		if _, exists := consumerRegistry[cfg.Topic]; !exists {
			return fmt.Errorf("[ConsumerFactory] No consumer found for topic: %s", cfg.Topic)
		}
		topics = append(topics, cfg.Topic)
	} else {
		for topic := range consumerRegistry {
			topics = append(topics, topic)
		}
	}

	if len(topics) == 0 {
		return fmt.Errorf("[ConsumerFactory] No consumers registered")
	}

	var wg sync.WaitGroup
	for _, topic := range topics {
		consumer, err := NewConsumer(cfg, topic)
		if err != nil {
			return fmt.Errorf("[ConsumerFactory] Failed to initialize Kafka consumer: %w", err)
		}

		wg.Add(1)
		go func(topic string, consumer *kafka.Consumer) {
			defer wg.Done()
			defer consumer.Close()

			slog.Info("[ConsumerFactory] Starting consumer for topic...",
				slog.String("topic", topic))
			consumerRegistry[topic](ctx, consumer)
		}(topic, consumer)
	}

	wg.Wait()
	return nil
}
