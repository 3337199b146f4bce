package monitoring

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	HEALTHCHECK_TIMER = 15 * time.Second
	probeTimeout      = 5 * time.Second
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// MonitorModelHealth probes the model server now and then every interval,
// storing the outcome in healthy until ctx is done.
func MonitorModelHealth(ctx context.Context, model Pinger, healthy *atomic.Bool, interval time.Duration) {
	if interval <= 0 {
		interval = HEALTHCHECK_TIMER
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	CheckModelHealth(ctx, model, healthy)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			CheckModelHealth(ctx, model, healthy)
		}
	}
}

// CheckModelHealth runs one probe. Only changes of state are logged.
func CheckModelHealth(ctx context.Context, model Pinger, healthy *atomic.Bool) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	err := model.Ping(ctx)
	isHealthy := err == nil
	if was := healthy.Swap(isHealthy); was != isHealthy {
		if isHealthy {
			slog.Info("[HealthCheck] Model server is healthy")
		} else {
			slog.Warn("[HealthCheck] Model server is unhealthy", slog.Any("error", err))
		}
	}
	return isHealthy
}
