package core

import (
	"context"
	"fmt"
)

// TaskPublisher serializes task envelopes and hands them to the broker.
// It holds the process-wide pooled client rather than dialing per publish,
// so concurrent HTTP handlers never serialize on a shared connection.
type TaskPublisher struct {
	broker Broker
}

func NewTaskPublisher(broker Broker) *TaskPublisher {
	return &TaskPublisher{broker: broker}
}

// Publish places {task, token} on the shared queue. It is fire-and-forget:
// broker acceptance is the only success signal, and there is no
// application-level acknowledgment that the consumer eventually received it.
func (p *TaskPublisher) Publish(ctx context.Context, task map[string]any, token string) error {
	payload, err := EncodeEnvelope(task, token)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := p.broker.Enqueue(ctx, TaskQueueKey, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", TaskQueueKey, err)
	}
	return nil
}
