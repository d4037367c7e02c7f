package core

import (
	"context"
	"encoding/json"
	"runtime"
	"time"
)

const (
	ConsumerHeartbeatPrefix = "consumer:heartbeat:"
	ConsumerHeartbeatTTL    = 45 * time.Second
)

// ConsumerHeartbeatKey returns the Redis key for a given consumer ID.
func ConsumerHeartbeatKey(id string) string {
	return ConsumerHeartbeatPrefix + id
}

// SaveHeartbeat stores heartbeat JSON with TTL.
func SaveHeartbeat(ctx context.Context, client RedisClientRaw, hb ConsumerHeartbeat) error {
	hb.UpdatedAt = time.Now()
	data, err := json.Marshal(hb)
	if err != nil {
		return err
	}
	return client.Set(ctx, ConsumerHeartbeatKey(hb.ConsumerID), data, ConsumerHeartbeatTTL).Err()
}

// ConsumerHeartbeat is the liveness record a consumer process periodically
// writes to Redis. The coordinator status endpoint reads it back.
type ConsumerHeartbeat struct {
	ConsumerID     string    `json:"consumer_id"`
	Hostname       string    `json:"hostname"`
	PID            int       `json:"pid"`
	UptimeSeconds  int64     `json:"uptime_seconds"`
	Status         string    `json:"status"` // idle|busy|starting
	CurrentJob     string    `json:"current_job,omitempty"`
	ProcessedTotal int64     `json:"processed_total"`
	FailedTotal    int64     `json:"failed_total"`
	LastError      string    `json:"last_error,omitempty"`
	MemorySysBytes uint64    `json:"memory_sys_bytes"`
	NumGoroutine   int       `json:"num_goroutine"`
	StartedAt      time.Time `json:"started_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UpdateRuntimeStats overwrites memory/goroutine figures with current values.
func (h *ConsumerHeartbeat) UpdateRuntimeStats() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	h.MemorySysBytes = ms.Sys
	h.NumGoroutine = runtime.NumGoroutine()
}
