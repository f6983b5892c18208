package services

import (
	"context"
	"log/slog"
	"time"
)

// AlertRefresher recomputes the alert snapshot on a fixed interval so reads
// through AlertService.Current hit a warm cache.
type AlertRefresher struct {
	alerts   *AlertService
	interval time.Duration
	now      func() time.Time
}

func NewAlertRefresher(alerts *AlertService, interval time.Duration) *AlertRefresher {
	return &AlertRefresher{
		alerts:   alerts,
		interval: interval,
		now:      time.Now,
	}
}

// Run refreshes once immediately, then on every tick until ctx is cancelled.
func (r *AlertRefresher) Run(ctx context.Context) {
	slog.InfoContext(ctx, "Alert refresher started", "interval", r.interval)
	r.RefreshOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Alert refresher stopped")
			return
		case <-ticker.C:
			r.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce recomputes the snapshot. A failure leaves the cached one in place.
func (r *AlertRefresher) RefreshOnce(ctx context.Context) {
	alerts, err := r.alerts.Refresh(ctx, r.now())
	if err != nil {
		slog.ErrorContext(ctx, "Alert refresh failed", "error", err)
		return
	}

	slog.InfoContext(ctx, "Alerts refreshed",
		"urgent", alerts.Urgent,
		"upcoming", alerts.Upcoming,
		"overdue", alerts.Overdue,
		"suggestions", len(alerts.Suggestions))
}
