package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Broker is the queue interface shared by the publisher and the consumer.
// Reservation uses a visibility timeout with explicit ack so an envelope is
// only removed from the broker after it has been handled.
type Broker interface {
	Enqueue(ctx context.Context, pendingKey string, value string) error
	Reserve(ctx context.Context, pendingKey, processingKey string, visibility time.Duration) (string, error)
	Ack(ctx context.Context, processingKey string, value string) error
	RequeueExpired(ctx context.Context, processingKey, pendingKey string, now time.Time) ([]string, error)
	DeadLetter(ctx context.Context, deadKey string, value string) error
	IncrementRetry(ctx context.Context, value string) (int64, error)
	ClearRetry(ctx context.Context, value string) error
}

// RedisClientRaw exposes the minimal subset used for metrics and heartbeat.
type RedisClientRaw interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	ZCard(ctx context.Context, key string) *redis.IntCmd
	ZCount(ctx context.Context, key, min, max string) *redis.IntCmd
}

// TaskQueue implements Broker using go-redis.
type TaskQueue struct {
	client *redis.Client
}

// NewRedisClient returns a configured go-redis client from URL (e.g., redis://localhost:6379/0).
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

// NewRedisClientRetry keeps attempting to connect until it succeeds or the
// attempt budget runs out. maxAttempts <= 0 retries indefinitely. The delay
// doubles after each failure and is capped; broker availability is a hard
// startup dependency for both the coordinator and the worker, so callers
// normally block here.
func NewRedisClientRetry(ctx context.Context, redisURL string, maxAttempts int, delay time.Duration) (*redis.Client, error) {
	if delay <= 0 {
		delay = 5 * time.Second
	}
	var client *redis.Client
	err := retryConnect(ctx, maxAttempts, delay, func() error {
		c, err := NewRedisClient(redisURL)
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

const maxRetryDelay = 30 * time.Second

// retryConnect runs fn until it succeeds, the context is cancelled, or
// maxAttempts (when positive) is exhausted.
func retryConnect(ctx context.Context, maxAttempts int, delay time.Duration, fn func() error) error {
	attempt := 0
	for {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if maxAttempts > 0 && attempt >= maxAttempts {
			return fmt.Errorf("broker connection failed after %d attempts: %w", attempt, err)
		}
		log.Printf("broker connection failed (attempt %d): %v; retrying in %s", attempt, err, delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

// NewTaskQueue wraps a redis.Client with queue helpers.
func NewTaskQueue(client *redis.Client) *TaskQueue {
	return &TaskQueue{client: client}
}

// Enqueue pushes a value to the head of the pending list (LPUSH). The key is
// created on first push, so either side of the pipeline may start first.
func (q *TaskQueue) Enqueue(ctx context.Context, pendingKey string, value string) error {
	return q.client.LPush(ctx, pendingKey, value).Err()
}

// Reserve moves an item atomically from pending -> processing with a visibility deadline score.
// It uses RPOP + ZADD so the envelope is not lost if a worker dies before ack.
func (q *TaskQueue) Reserve(ctx context.Context, pendingKey, processingKey string, visibility time.Duration) (string, error) {
	script := redis.NewScript(`
local v = redis.call('RPOP', KEYS[1])
if v then
  redis.call('ZADD', KEYS[2], ARGV[1], v)
end
return v
`)
	expireScore := float64(time.Now().Add(visibility).UnixMilli())
	res, err := script.Run(ctx, q.client, []string{pendingKey, processingKey}, expireScore).Result()
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", redis.Nil
	}
	if s, ok := res.(string); ok {
		return s, nil
	}
	return "", errors.New("unexpected reserve response type")
}

// Ack removes a processing item after successful handling.
func (q *TaskQueue) Ack(ctx context.Context, processingKey string, value string) error {
	return q.client.ZRem(ctx, processingKey, value).Err()
}

// RequeueExpired moves expired processing items back to pending and returns the moved envelopes.
func (q *TaskQueue) RequeueExpired(ctx context.Context, processingKey, pendingKey string, now time.Time) ([]string, error) {
	script := redis.NewScript(`
local vals = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local count = table.getn(vals)
if count > 0 then
  redis.call('ZREM', KEYS[1], unpack(vals))
  redis.call('LPUSH', KEYS[2], unpack(vals))
end
return vals
`)
	score := float64(now.UnixMilli())
	res, err := script.Run(ctx, q.client, []string{processingKey, pendingKey}, score).Result()
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	rawVals, ok := res.([]interface{})
	if !ok {
		return nil, errors.New("unexpected requeue response type")
	}
	out := make([]string, 0, len(rawVals))
	for _, v := range rawVals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// DeadLetter records an envelope that can never be processed so it stays
// inspectable instead of silently vanishing.
func (q *TaskQueue) DeadLetter(ctx context.Context, deadKey string, value string) error {
	return q.client.LPush(ctx, deadKey, value).Err()
}

// IncrementRetry bumps the storage-failure counter for an envelope and
// returns the new count. Envelopes carry no durable row of their own, so the
// counter lives in a hash next to the queue.
func (q *TaskQueue) IncrementRetry(ctx context.Context, value string) (int64, error) {
	return q.client.HIncrBy(ctx, RetryCountKey, value, 1).Result()
}

// ClearRetry drops the counter once an envelope is finally handled.
func (q *TaskQueue) ClearRetry(ctx context.Context, value string) error {
	return q.client.HDel(ctx, RetryCountKey, value).Err()
}
