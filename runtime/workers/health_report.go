package workers

import (
	"context"
	"log/slog"
	"time"

	"youth-hub/observability"
)

// HealthReportWorker logs a metrics snapshot at a fixed interval so the
// relay's behaviour can be followed from the logs alone.
type HealthReportWorker struct {
	log      *slog.Logger
	metrics  *observability.Metrics
	interval time.Duration
}

func NewHealthReportWorker(log *slog.Logger, metrics *observability.Metrics, interval time.Duration) *HealthReportWorker {
	return &HealthReportWorker{log: log, metrics: metrics, interval: interval}
}

func (w *HealthReportWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats := w.metrics.Snapshot()
			w.log.Info("Health report",
				"active_connections", stats.ActiveConnections,
				"messages_persisted", stats.MessagesPersisted,
				"messages_broadcast", stats.MessagesBroadcast,
				"sends_rejected", stats.SendsRejected,
				"joins_denied", stats.JoinsDenied,
				"auth_failures", stats.AuthFailures,
				"dropped_deliveries", stats.DroppedDeliveries,
				"alloc_mem_mb", stats.AllocMemMb,
				"cpu_percent", stats.CPUPercent,
			)
		}
	}
}
