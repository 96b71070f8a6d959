package kafka_client

import "time"

const (
	KAFKA_TOPIC_RAW_FEEDBACK      = "raw-feedback"      // comment pages straight from the collector
	KAFKA_TOPIC_ENRICHED_FEEDBACK = "enriched-feedback" // analyzed feedback for rollup workers
)

const (
	BATCH_SIZE    = 50
	BATCH_TIMEOUT = 5 * time.Second
	MAX_RETRIES   = 5
	RETRY_DELAY   = 2 * time.Second
)
