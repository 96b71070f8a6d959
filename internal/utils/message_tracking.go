package utils

import (
	"sync"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// Tracks the Kafka message that carried each feedback item so offsets can be
// committed after the batch containing the item is flushed.
var messageMap sync.Map

func TrackMessage(sourceID string, msg *kafka.Message) {
	messageMap.Store(sourceID, msg)
}

func GetMessageForFeedback(sourceID string) (*kafka.Message, bool) {
	msg, ok := messageMap.Load(sourceID)
	if !ok {
		return nil, false
	}
	messageMap.Delete(sourceID)
	return msg.(*kafka.Message), true
}
