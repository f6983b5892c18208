package worker

import (
	"context"
	"log/slog"
	"time"

	"crm/internal/core"
)

// OverdueMarker flags sent invoices whose due date has passed.
type OverdueMarker interface {
	MarkOverdueInvoices(ctx context.Context, today core.Date) (int64, error)
}

// AutoBiller runs automatic billing over every unbilled project.
type AutoBiller interface {
	RunAutomaticBilling(ctx context.Context) (core.RunResult, error)
}

// Invalidator drops derived read models after the sweep changed data.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	MarkedOverdue int64
	Billing       *core.RunResult
}

// Sweeper periodically marks overdue invoices and, when a biller is set,
// runs automatic billing.
type Sweeper struct {
	store       OverdueMarker
	biller      AutoBiller
	invalidator Invalidator
	interval    time.Duration
	now         func() time.Time
}

// NewSweeper creates a sweeper. biller and invalidator may be nil.
func NewSweeper(store OverdueMarker, biller AutoBiller, invalidator Invalidator, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:       store,
		biller:      biller,
		invalidator: invalidator,
		interval:    interval,
		now:         time.Now,
	}
}

// SweepOnce runs a single sweep. A billing failure is logged and reported in
// the error, but overdue marking has already happened by then.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	today := core.DateOf(s.now())

	n, err := s.store.MarkOverdueInvoices(ctx, today)
	if err != nil {
		return res, err
	}
	res.MarkedOverdue = n

	if s.biller != nil {
		run, err := s.biller.RunAutomaticBilling(ctx)
		if err != nil {
			return res, err
		}
		res.Billing = &run
	}

	if s.invalidator != nil && (res.MarkedOverdue > 0 || (res.Billing != nil && res.Billing.InvoicesGenerated > 0)) {
		s.invalidator.Invalidate(ctx)
	}
	return res, nil
}

// Run sweeps once on startup, then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	slog.InfoContext(ctx, "Sweeper started",
		"interval", s.interval,
		"auto_billing", s.biller != nil)

	s.sweepAndLog(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Sweeper stopped")
			return
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

func (s *Sweeper) sweepAndLog(ctx context.Context) {
	res, err := s.SweepOnce(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Sweep failed", "error", err)
		return
	}
	attrs := []any{"marked_overdue", res.MarkedOverdue}
	if res.Billing != nil {
		attrs = append(attrs,
			"invoices_generated", res.Billing.InvoicesGenerated,
			"total_cents", res.Billing.TotalAmount.Cents,
			"failures", len(res.Billing.Failures))
	}
	slog.InfoContext(ctx, "Sweep complete", attrs...)
}
