package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const runtimeMetricsFileName = "engine_metrics.json"

var latencyBucketUpperBoundsMs = []int64{
	10, 25, 50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000,
}

// VoiceOutcome names how a voice command ended.
type VoiceOutcome string

const (
	VoiceExecuted  VoiceOutcome = "executed"
	VoiceConfirmed VoiceOutcome = "confirmed"
	VoiceCancelled VoiceOutcome = "cancelled"
	VoiceExpired   VoiceOutcome = "expired"
	VoiceRejected  VoiceOutcome = "rejected"
)

// RuntimeSnapshot contains aggregated metrics for collaborator calls and voice commands.
type RuntimeSnapshot struct {
	UpdatedAt time.Time            `json:"updated_at"`
	Engine    CallStats            `json:"engine"`
	ByEngine  map[string]CallStats `json:"by_engine,omitempty"`
	Voice     VoiceStats           `json:"voice"`
}

// CallStats tracks collaborator call metrics.
type CallStats struct {
	Total             int64 `json:"total"`
	Errors            int64 `json:"errors"`
	Timeouts          int64 `json:"timeouts"`
	TotalLatencyMs    int64 `json:"total_latency_ms"`
	MaxLatencyMs      int64 `json:"max_latency_ms"`
	LastLatencyMs     int64 `json:"last_latency_ms"`
	P95ProxyLatencyMs int64 `json:"p95_proxy_latency_ms"`
}

// ErrorRatio returns errors/total in [0,1].
func (t CallStats) ErrorRatio() float64 {
	if t.Total <= 0 {
		return 0
	}
	return float64(t.Errors) / float64(t.Total)
}

// TimeoutRatio returns timeouts/total in [0,1].
func (t CallStats) TimeoutRatio() float64 {
	if t.Total <= 0 {
		return 0
	}
	return float64(t.Timeouts) / float64(t.Total)
}

// AvgLatencyMs returns average latency in milliseconds.
func (t CallStats) AvgLatencyMs() float64 {
	if t.Total <= 0 {
		return 0
	}
	return float64(t.TotalLatencyMs) / float64(t.Total)
}

// VoiceStats tracks voice command results.
type VoiceStats struct {
	Commands  int64 `json:"commands"`
	Executed  int64 `json:"executed"`
	Confirmed int64 `json:"confirmed"`
	Cancelled int64 `json:"cancelled"`
	Expired   int64 `json:"expired"`
	Rejected  int64 `json:"rejected"`
}

// HasData reports whether any metrics were recorded.
func (s RuntimeSnapshot) HasData() bool {
	return s.Engine.Total > 0 || s.Voice.Commands > 0
}

// RuntimeMetrics records and persists runtime metrics.
type RuntimeMetrics struct {
	path string
	now  func() time.Time

	mu      sync.Mutex
	snap    RuntimeSnapshot
	buckets []int64
}

// NewRuntimeMetrics creates a metrics recorder rooted at <workspace>/state/engine_metrics.json.
func NewRuntimeMetrics(workspacePath string) *RuntimeMetrics {
	return &RuntimeMetrics{
		path:    runtimeMetricsPath(workspacePath),
		now:     time.Now,
		buckets: make([]int64, len(latencyBucketUpperBoundsMs)+1),
	}
}

// Snapshot returns the latest in-memory snapshot.
func (m *RuntimeMetrics) Snapshot() RuntimeSnapshot {
	if m == nil {
		return RuntimeSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return copySnapshot(m.snap)
}

// RecordEngineCall updates collaborator metrics and persists the snapshot.
func (m *RuntimeMetrics) RecordEngineCall(engine string, duration time.Duration, callErr error) (RuntimeSnapshot, error) {
	if m == nil {
		return RuntimeSnapshot{}, nil
	}

	latencyMs := duration.Milliseconds()
	if latencyMs < 0 {
		latencyMs = 0
	}
	failed := callErr != nil
	timedOut := failed && isTimeoutError(callErr)

	m.mu.Lock()
	m.snap.UpdatedAt = m.now().UTC()
	addCall(&m.snap.Engine, latencyMs, failed, timedOut)
	if m.snap.ByEngine == nil {
		m.snap.ByEngine = make(map[string]CallStats)
	}
	per := m.snap.ByEngine[engine]
	addCall(&per, latencyMs, failed, timedOut)
	m.snap.ByEngine[engine] = per

	m.buckets[latencyBucketIndex(latencyMs)]++
	m.snap.Engine.P95ProxyLatencyMs = p95ProxyFromBuckets(m.buckets, m.snap.Engine.Total)

	snapshot := copySnapshot(m.snap)
	m.mu.Unlock()

	return snapshot, persistRuntimeSnapshot(m.path, snapshot)
}

// RecordVoice counts one finished voice command and persists the snapshot.
func (m *RuntimeMetrics) RecordVoice(outcome VoiceOutcome) (RuntimeSnapshot, error) {
	if m == nil {
		return RuntimeSnapshot{}, nil
	}

	m.mu.Lock()
	m.snap.UpdatedAt = m.now().UTC()
	m.snap.Voice.Commands++
	switch outcome {
	case VoiceExecuted:
		m.snap.Voice.Executed++
	case VoiceConfirmed:
		m.snap.Voice.Confirmed++
	case VoiceCancelled:
		m.snap.Voice.Cancelled++
	case VoiceExpired:
		m.snap.Voice.Expired++
	case VoiceRejected:
		m.snap.Voice.Rejected++
	}
	snapshot := copySnapshot(m.snap)
	m.mu.Unlock()

	return snapshot, persistRuntimeSnapshot(m.path, snapshot)
}

func addCall(s *CallStats, latencyMs int64, failed, timedOut bool) {
	s.Total++
	s.TotalLatencyMs += latencyMs
	s.LastLatencyMs = latencyMs
	if latencyMs > s.MaxLatencyMs {
		s.MaxLatencyMs = latencyMs
	}
	if failed {
		s.Errors++
	}
	if timedOut {
		s.Timeouts++
	}
}

func copySnapshot(s RuntimeSnapshot) RuntimeSnapshot {
	if s.ByEngine == nil {
		return s
	}
	by := make(map[string]CallStats, len(s.ByEngine))
	for k, v := range s.ByEngine {
		by[k] = v
	}
	s.ByEngine = by
	return s
}

// ReadRuntimeSnapshot reads the persisted snapshot from workspace state.
// If no file exists yet, it returns a zero-value snapshot and nil error.
func ReadRuntimeSnapshot(workspacePath string) (RuntimeSnapshot, error) {
	path := runtimeMetricsPath(workspacePath)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RuntimeSnapshot{}, nil
		}
		return RuntimeSnapshot{}, fmt.Errorf("read runtime metrics: %w", err)
	}

	var snap RuntimeSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return RuntimeSnapshot{}, fmt.Errorf("decode runtime metrics: %w", err)
	}
	return snap, nil
}

func runtimeMetricsPath(workspacePath string) string {
	return filepath.Join(workspacePath, "state", runtimeMetricsFileName)
}

func persistRuntimeSnapshot(path string, snapshot RuntimeSnapshot) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create runtime metrics dir: %w", err)
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode runtime metrics: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), "engine-metrics-*.tmp")
	if err != nil {
		return fmt.Errorf("create runtime metrics temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	if _, err := tempFile.Write(payload); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write runtime metrics temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close runtime metrics temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename runtime metrics file: %w", err)
	}
	return nil
}

func latencyBucketIndex(latencyMs int64) int {
	for i, upper := range latencyBucketUpperBoundsMs {
		if latencyMs <= upper {
			return i
		}
	}
	return len(latencyBucketUpperBoundsMs)
}

func p95ProxyFromBuckets(buckets []int64, total int64) int64 {
	if total <= 0 {
		return 0
	}
	target := int64(float64(total) * 0.95)
	if target <= 0 {
		target = 1
	}

	var cumulative int64
	for i, count := range buckets {
		cumulative += count
		if cumulative < target {
			continue
		}
		if i >= len(latencyBucketUpperBoundsMs) {
			return latencyBucketUpperBoundsMs[len(latencyBucketUpperBoundsMs)-1]
		}
		return latencyBucketUpperBoundsMs[i]
	}
	return latencyBucketUpperBoundsMs[len(latencyBucketUpperBoundsMs)-1]
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	lowered := strings.ToLower(err.Error())
	return strings.Contains(lowered, "deadline exceeded") ||
		strings.Contains(lowered, "timeout") ||
		strings.Contains(lowered, "timed out")
}
