package core

import "time"

// Queue keys and timing defaults for the product task pipeline.
const (
	// TaskQueueKey is the shared queue both publishers and the consumer use.
	TaskQueueKey = "product_tasks"
	// ProcessingQueueKey holds reserved envelopes until they are acked.
	ProcessingQueueKey = "product_tasks:processing"
	// DeadQueueKey receives envelopes that can never be processed.
	DeadQueueKey = "product_tasks:dead"
	// RetryCountKey tracks per-envelope storage-failure attempts.
	RetryCountKey = "product_tasks:retries"

	// DefaultVisibilityTimeout is how long a reserved envelope stays
	// invisible before the reclaimer hands it back to the pending queue.
	DefaultVisibilityTimeout = 30 * time.Second
)
