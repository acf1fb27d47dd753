package monitoring

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	bookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Total booking lifecycle operations",
		},
		[]string{"kind", "operation", "result"},
	)

	inventoryUnits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_units_total",
			Help: "Units processed by inventory release",
		},
		[]string{"kind", "outcome"},
	)

	attendanceUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_updates_total",
			Help: "Per-unit attendance writes",
		},
		[]string{"kind", "status"},
	)

	partialFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partial_failures_total",
			Help: "Best-effort sub-steps that did not complete",
		},
		[]string{"operation"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booking_operation_duration_seconds",
			Help:    "Duration of booking engine operations",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"operation"},
	)

	activeLocks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booking_locks_active",
			Help: "Booking locks currently held in Redis",
		},
	)
)

// Monitor records engine metrics. A nil *Monitor is valid and records nothing.
type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	return &Monitor{redis: redisClient}
}

// Run samples Redis-backed gauges until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if m == nil || m.redis == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collectLockMetrics(ctx)
		}
	}
}

func (m *Monitor) collectLockMetrics(ctx context.Context) {
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := m.redis.Scan(ctx, cursor, "booking:lock:*", 100).Result()
		if err != nil {
			slog.Error("Failed to scan booking locks", "error", err)
			return
		}
		count += len(keys)
		if next == 0 {
			break
		}
		cursor = next
	}
	activeLocks.Set(float64(count))
}

func (m *Monitor) TrackTransition(kind, operation, result string) {
	if m == nil {
		return
	}
	bookingTransitions.WithLabelValues(kind, operation, result).Inc()
}

func (m *Monitor) TrackInventory(kind, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	inventoryUnits.WithLabelValues(kind, outcome).Add(float64(n))
}

func (m *Monitor) TrackAttendance(kind, status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	attendanceUpdates.WithLabelValues(kind, status).Add(float64(n))
}

func (m *Monitor) TrackPartialFailure(operation string) {
	if m == nil {
		return
	}
	partialFailures.WithLabelValues(operation).Inc()
}

func (m *Monitor) TrackDuration(operation string, started time.Time) {
	if m == nil {
		return
	}
	operationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
