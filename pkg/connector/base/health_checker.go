package base

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/opgate/pkg/errors"
	"github.com/ajitpratap0/opgate/pkg/logger"
)

// probeTimeout bounds a single probe when the caller's context has no deadline.
const probeTimeout = 10 * time.Second

// HealthChecker runs a liveness probe and remembers recent successes so that
// connectors returned to a pool in quick succession are not probed every time.
type HealthChecker struct {
	name        string
	probe       func(ctx context.Context) error
	minInterval time.Duration
	logger      *zap.Logger

	mu               sync.Mutex
	lastSuccess      time.Time
	consecutiveFails int

	checkCount   atomic.Int64
	failureCount atomic.Int64
}

// NewHealthChecker creates a checker around probe.
func NewHealthChecker(name string, probe func(ctx context.Context) error) *HealthChecker {
	return &HealthChecker{
		name:        name,
		probe:       probe,
		minInterval: time.Second,
		logger:      logger.Get().With(zap.String("component", "health_checker"), zap.String("connector", name)),
	}
}

// WithMinInterval sets how long a successful probe is trusted.
func (hc *HealthChecker) WithMinInterval(d time.Duration) *HealthChecker {
	hc.minInterval = d
	return hc
}

// Check probes the external system unless a probe succeeded within the
// minimum interval. Failures are returned as health errors.
func (hc *HealthChecker) Check(ctx context.Context) error {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	if hc.probe == nil {
		return nil
	}
	if !hc.lastSuccess.IsZero() && time.Since(hc.lastSuccess) < hc.minInterval {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, probeTimeout)
		defer cancel()
	}

	hc.checkCount.Add(1)
	if err := hc.probe(ctx); err != nil {
		hc.failureCount.Add(1)
		hc.consecutiveFails++
		hc.lastSuccess = time.Time{}
		hc.logger.Warn("health check failed",
			zap.Error(err),
			zap.Int("consecutive_failures", hc.consecutiveFails))
		return errors.Wrap(err, errors.ErrorTypeHealth, "connector failed liveness check").
			WithDetail("consecutive_failures", hc.consecutiveFails)
	}

	hc.consecutiveFails = 0
	hc.lastSuccess = time.Now()
	return nil
}

// Reset forgets the last successful probe.
func (hc *HealthChecker) Reset() {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.lastSuccess = time.Time{}
	hc.consecutiveFails = 0
}

// CheckCount returns the total number of probes run
func (hc *HealthChecker) CheckCount() int64 {
	return hc.checkCount.Load()
}

// FailureCount returns the total number of failed probes
func (hc *HealthChecker) FailureCount() int64 {
	return hc.failureCount.Load()
}
