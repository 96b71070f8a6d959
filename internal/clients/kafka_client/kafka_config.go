package kafka_client

import "os"

type KafkaConfig struct {
	Broker          string
	GroupID         string
	Topic           string
	TransactionalID string
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// GetKafkaConfig reads broker settings from the environment. Topic is only
// set when a deployment should run a single consumer instead of every
// registered one.
func GetKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Broker:          getEnv("KAFKA_BROKER", "localhost:29092"),
		GroupID:         getEnv("KAFKA_CONSUMER_GROUP_ID", "fanpulse-consumer-group"),
		Topic:           getEnv("KAFKA_CONSUMER_TOPIC", ""),
		TransactionalID: getEnv("KAFKA_TRANSACTIONAL_ID", "fanpulse-producer-1"),
	}
}
