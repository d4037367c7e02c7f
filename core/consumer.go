package core

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// TaskConsumer is the single blocking receive loop bound to the product task
// queue. Each envelope is handled fully (decode -> verify -> persist) before
// the next is requested, so delivery order from the queue is preserved end to
// end within one consumer instance.
type TaskConsumer struct {
	broker     Broker
	codec      *TokenCodec
	products   ProductRepository
	state      *HeartbeatState
	visibility time.Duration
	maxRetries int

	emptyWait    time.Duration
	storeTimeout time.Duration
}

func NewTaskConsumer(broker Broker, codec *TokenCodec, products ProductRepository, state *HeartbeatState, cfg Config) *TaskConsumer {
	visibility := cfg.VisibilityTimeout
	if visibility <= 0 {
		visibility = DefaultVisibilityTimeout
	}
	maxRetries := cfg.ConsumerMaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &TaskConsumer{
		broker:       broker,
		codec:        codec,
		products:     products,
		state:        state,
		visibility:   visibility,
		maxRetries:   maxRetries,
		emptyWait:    100 * time.Millisecond,
		storeTimeout: 10 * time.Second,
	}
}

// Run consumes envelopes until the context is cancelled. Errors never stop
// the loop: validation failures are dead-lettered and storage failures are
// retried up to the configured budget before being dead-lettered too.
func (c *TaskConsumer) Run(ctx context.Context) {
	for {
		raw, err := c.broker.Reserve(ctx, TaskQueueKey, ProcessingQueueKey, c.visibility)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				select {
				case <-ctx.Done():
					return
				case <-time.After(c.emptyWait):
					continue
				}
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("[consumer] dequeue error: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
				continue
			}
		}

		if c.state != nil {
			c.state.JobStarted(raw)
		}
		handleErr := c.handle(ctx, raw)
		if c.state != nil {
			c.state.JobFinished(raw, handleErr)
		}
	}
}

// handle processes one reserved envelope. The returned error is reported to
// the heartbeat only; the queue outcome (ack, requeue, dead-letter) is
// already decided by the time it returns.
func (c *TaskConsumer) handle(ctx context.Context, raw string) error {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		log.Printf("[consumer] malformed envelope, dead-lettering: %v", err)
		c.discard(ctx, raw)
		return err
	}

	if env.Token == "" {
		log.Printf("[consumer] no token provided, task cannot be processed")
		c.discard(ctx, raw)
		return errors.New("envelope missing token")
	}

	claims, err := c.codec.Verify(env.Token)
	if err != nil {
		log.Printf("[consumer] token validation failed: %v", err)
		c.discard(ctx, raw)
		return err
	}

	item := productFromTask(env.Task)
	storeCtx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	id, err := c.products.Insert(storeCtx, item)
	cancel()
	if err != nil {
		return c.retryOrDeadLetter(ctx, raw, err)
	}

	log.Printf("[consumer] product %q added (id=%d, user=%s)", item.Name, id, claims.Subject)
	if err := c.broker.Ack(ctx, ProcessingQueueKey, raw); err != nil {
		log.Printf("[consumer] ack failed: %v", err)
	}
	_ = c.broker.ClearRetry(ctx, raw)
	return nil
}

// discard moves a non-retryable envelope to the dead queue and acks it.
// The task is not persisted; the dead queue keeps it inspectable.
func (c *TaskConsumer) discard(ctx context.Context, raw string) {
	if err := c.broker.DeadLetter(ctx, DeadQueueKey, raw); err != nil {
		log.Printf("[consumer] dead-letter failed: %v", err)
	}
	if err := c.broker.Ack(ctx, ProcessingQueueKey, raw); err != nil {
		log.Printf("[consumer] ack failed: %v", err)
	}
	_ = c.broker.ClearRetry(ctx, raw)
}

// retryOrDeadLetter handles a storage failure: requeue while the attempt
// budget lasts, then dead-letter. The process never dies on a storage error.
func (c *TaskConsumer) retryOrDeadLetter(ctx context.Context, raw string, cause error) error {
	attempts, err := c.broker.IncrementRetry(ctx, raw)
	if err != nil {
		log.Printf("[consumer] increment retry failed: %v", err)
	}

	if err == nil && attempts <= int64(c.maxRetries) {
		if enqErr := c.broker.Enqueue(ctx, TaskQueueKey, raw); enqErr != nil {
			log.Printf("[consumer] re-enqueue failed: %v", enqErr)
		} else {
			log.Printf("[consumer] storage error, envelope requeued (attempt %d/%d): %v", attempts, c.maxRetries, cause)
		}
	} else {
		log.Printf("[consumer] storage error, envelope dead-lettered after %d attempts: %v", attempts, cause)
		if dlErr := c.broker.DeadLetter(ctx, DeadQueueKey, raw); dlErr != nil {
			log.Printf("[consumer] dead-letter failed: %v", dlErr)
		}
		_ = c.broker.ClearRetry(ctx, raw)
	}

	if ackErr := c.broker.Ack(ctx, ProcessingQueueKey, raw); ackErr != nil {
		log.Printf("[consumer] ack failed: %v", ackErr)
	}
	return cause
}

// productFromTask maps the free-form task payload onto a product row.
// Unknown keys are ignored; missing keys fall back to zero values.
func productFromTask(task map[string]any) ProductRecord {
	var p ProductRecord
	if v, ok := task["name"].(string); ok {
		p.Name = v
	}
	if v, ok := task["description"].(string); ok {
		p.Description = v
	}
	switch v := task["price"].(type) {
	case float64:
		p.Price = v
	case int:
		p.Price = float64(v)
	}
	return p
}

// RunReclaimer periodically hands expired in-flight envelopes back to the
// pending queue so a crashed consumer cannot strand them.
func RunReclaimer(ctx context.Context, broker Broker, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if jobs, err := broker.RequeueExpired(ctx, ProcessingQueueKey, TaskQueueKey, time.Now()); err != nil {
				log.Printf("[reclaimer] requeue expired error: %v", err)
			} else if len(jobs) > 0 {
				log.Printf("[reclaimer] requeued %d expired envelopes", len(jobs))
			}
		}
	}
}
