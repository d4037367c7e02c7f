package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// QueueMetrics is a snapshot of the product task queue.
type QueueMetrics struct {
	Pending          int64 `json:"pending"`
	Processing       int64 `json:"processing"`
	Dead             int64 `json:"dead"`
	ExpiredCandidate int64 `json:"expired_candidate"`
}

// MetricsService reads queue depths and consumer heartbeats from Redis.
type MetricsService struct {
	redis RedisClientRaw
}

func NewMetricsService(redis RedisClientRaw) *MetricsService {
	return &MetricsService{redis: redis}
}

// Overview returns the queue snapshot plus all live consumers.
func (s *MetricsService) Overview(ctx context.Context) (QueueMetrics, []ConsumerHeartbeat, error) {
	queue, err := s.Queue(ctx)
	if err != nil {
		return QueueMetrics{}, nil, err
	}
	consumers, err := s.Consumers(ctx)
	if err != nil {
		return queue, nil, err
	}
	return queue, consumers, nil
}

// Queue returns pending / processing / dead depths and expired candidates.
func (s *MetricsService) Queue(ctx context.Context) (QueueMetrics, error) {
	now := time.Now().UnixMilli()
	pending, err := s.redis.LLen(ctx, TaskQueueKey).Result()
	if err != nil {
		return QueueMetrics{}, err
	}
	processing, err := s.redis.ZCard(ctx, ProcessingQueueKey).Result()
	if err != nil {
		return QueueMetrics{}, err
	}
	dead, err := s.redis.LLen(ctx, DeadQueueKey).Result()
	if err != nil {
		return QueueMetrics{}, err
	}
	expired, err := s.redis.ZCount(ctx, ProcessingQueueKey, "-inf", fmt.Sprintf("%d", now)).Result()
	if err != nil {
		return QueueMetrics{}, err
	}
	return QueueMetrics{Pending: pending, Processing: processing, Dead: dead, ExpiredCandidate: expired}, nil
}

// Consumers returns every heartbeat still present in Redis.
func (s *MetricsService) Consumers(ctx context.Context) ([]ConsumerHeartbeat, error) {
	iter := s.redis.Scan(ctx, 0, ConsumerHeartbeatPrefix+"*", 100).Iterator()
	var res []ConsumerHeartbeat
	for iter.Next(ctx) {
		key := iter.Val()
		val, err := s.redis.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		var hb ConsumerHeartbeat
		if err := json.Unmarshal([]byte(val), &hb); err != nil {
			continue
		}
		res = append(res, hb)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
