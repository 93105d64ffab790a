package utils

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// slowOperation is the duration above which a timed operation is logged at warn level
const slowOperation = 30 * time.Second

// Timer is a simple performance timer for measuring operation duration
type Timer struct {
	start time.Time
	name  string
	log   zerolog.Logger
}

// NewTimer creates a new timer with the given name
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
		log:   log,
	}
}

// Stop logs and returns the elapsed duration
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.start)

	t.log.Debug().
		Str("operation", t.name).
		Dur("duration_ms", duration).
		Msg("Performance measurement")

	if duration > slowOperation {
		t.log.Warn().
			Str("operation", t.name).
			Dur("duration", duration).
			Msg("Slow operation detected")
	}

	return duration
}

// MeasureDBQuery measures database query performance
func MeasureDBQuery(queryName string, log zerolog.Logger) func(rowsAffected int64) {
	start := time.Now()

	return func(rowsAffected int64) {
		duration := time.Since(start)

		log.Debug().
			Str("query", queryName).
			Dur("duration_ms", duration).
			Int64("rows_affected", rowsAffected).
			Msg("Database query completed")

		// Warn on slow queries
		if duration > 5*time.Second {
			log.Warn().
				Str("query", queryName).
				Dur("duration", duration).
				Int64("rows_affected", rowsAffected).
				Msg("Slow database query detected")
		}
	}
}

// PerformanceMetrics is a snapshot of aggregated operation timings
type PerformanceMetrics struct {
	OperationName string        `json:"operation"`
	CallCount     int64         `json:"call_count"`
	FailureCount  int64         `json:"failure_count"`
	TotalDuration time.Duration `json:"total_duration_ns"`
	MinDuration   time.Duration `json:"min_duration_ns"`
	MaxDuration   time.Duration `json:"max_duration_ns"`
	AvgDuration   time.Duration `json:"avg_duration_ns"`
	LastRun       time.Time     `json:"last_run,omitempty"`
}

// MetricsRecorder aggregates timings of one operation. Safe for concurrent use.
type MetricsRecorder struct {
	mu      sync.Mutex
	metrics PerformanceMetrics
}

// NewMetricsRecorder creates a recorder for the named operation
func NewMetricsRecorder(operation string) *MetricsRecorder {
	return &MetricsRecorder{metrics: PerformanceMetrics{OperationName: operation}}
}

// Record adds one call. Failed calls count toward FailureCount only.
func (m *MetricsRecorder) Record(duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics.LastRun = time.Now().UTC()
	if err != nil {
		m.metrics.FailureCount++
		return
	}

	pm := &m.metrics
	pm.CallCount++
	pm.TotalDuration += duration
	if pm.CallCount == 1 || duration < pm.MinDuration {
		pm.MinDuration = duration
	}
	if duration > pm.MaxDuration {
		pm.MaxDuration = duration
	}
	pm.AvgDuration = pm.TotalDuration / time.Duration(pm.CallCount)
}

// Snapshot returns a copy of the current metrics
func (m *MetricsRecorder) Snapshot() PerformanceMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics
}

// LogMetrics logs the aggregated performance metrics
func (pm PerformanceMetrics) LogMetrics(log zerolog.Logger) {
	if pm.CallCount == 0 && pm.FailureCount == 0 {
		return
	}

	log.Info().
		Str("operation", pm.OperationName).
		Int64("call_count", pm.CallCount).
		Int64("failure_count", pm.FailureCount).
		Dur("total_duration", pm.TotalDuration).
		Dur("avg_duration", pm.AvgDuration).
		Dur("min_duration", pm.MinDuration).
		Dur("max_duration", pm.MaxDuration).
		Msg("Performance metrics summary")
}
