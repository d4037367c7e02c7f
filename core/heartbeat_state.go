package core

import (
	"context"
	"os"
	"sync"
	"time"
)

// HeartbeatState aggregates liveness counters for a single consumer process.
// The consumer is single-threaded, but heartbeat flushes run on their own
// goroutine, so access is still guarded.
type HeartbeatState struct {
	mu     sync.Mutex
	hb     ConsumerHeartbeat
	ticker *time.Ticker
}

func NewHeartbeatState(consumerID, hostname string) *HeartbeatState {
	return &HeartbeatState{
		hb: ConsumerHeartbeat{
			ConsumerID: consumerID,
			Hostname:   hostname,
			PID:        os.Getpid(),
			Status:     "starting",
			StartedAt:  time.Now(),
			UpdatedAt:  time.Now(),
		},
		ticker: time.NewTicker(5 * time.Second),
	}
}

// Start flushes the heartbeat to Redis on a fixed interval until ctx ends.
func (s *HeartbeatState) Start(ctx context.Context, client RedisClientRaw) {
	s.flush(ctx, client)
	defer s.ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ticker.C:
			s.flush(ctx, client)
		}
	}
}

// JobStarted marks the envelope currently being handled.
func (s *HeartbeatState) JobStarted(job string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hb.Status = "busy"
	s.hb.CurrentJob = truncateJob(job)
}

// JobFinished updates counters when an envelope has been handled.
func (s *HeartbeatState) JobFinished(job string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hb.ProcessedTotal++
	if err != nil {
		s.hb.FailedTotal++
		s.hb.LastError = err.Error()
	}
	s.hb.Status = "idle"
	s.hb.CurrentJob = ""
}

func (s *HeartbeatState) flush(ctx context.Context, client RedisClientRaw) {
	s.mu.Lock()
	s.hb.UptimeSeconds = int64(time.Since(s.hb.StartedAt).Seconds())
	s.hb.UpdateRuntimeStats()
	hbCopy := s.hb
	s.mu.Unlock()
	_ = SaveHeartbeat(ctx, client, hbCopy)
}

// truncateJob keeps heartbeat payloads small; envelopes can be large.
func truncateJob(job string) string {
	const limit = 120
	if len(job) > limit {
		return job[:limit] + "..."
	}
	return job
}
