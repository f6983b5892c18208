package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"crm/internal/amqp"
	"crm/internal/core"
	"crm/internal/log"
)

// BillingStore is the part of the persistence store the billing engine needs.
type BillingStore interface {
	ListUnbilledEntries(ctx context.Context) ([]core.UnbilledEntry, error)
	GetProject(ctx context.Context, id int64) (core.Project, error)
	GetTimeEntriesByIDs(ctx context.Context, ids []int64) ([]core.TimeEntry, error)
	CreateInvoiceForEntries(ctx context.Context, inv core.Invoice, entryIDs []int64) (core.Invoice, error)
	SumInvoicesIssuedBetween(ctx context.Context, from, to core.Date) (core.Money, error)
}

// InvoicePublisher announces generated invoices to other processes.
type InvoicePublisher interface {
	PublishInvoiceEvent(ctx context.Context, msg *amqp.InvoiceEventMessage) error
}

// Invalidator drops derived read models after a write.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// BillingEngine turns billable, unbilled time entries into draft invoices.
type BillingEngine struct {
	store       BillingStore
	rates       RateTable
	dueDays     int
	claims      ClaimRegistry
	publisher   InvoicePublisher
	invalidator Invalidator
	now         func() time.Time
}

// NewBillingEngine creates the engine. dueDays is added to the issue date to
// obtain the due date. claims may be nil, in which case a process-local
// registry is used; publisher may be nil when AMQP is not configured.
func NewBillingEngine(store BillingStore, rates RateTable, dueDays int, claims ClaimRegistry, publisher InvoicePublisher) *BillingEngine {
	if claims == nil {
		claims = NewMemoryClaims()
	}
	return &BillingEngine{
		store:     store,
		rates:     rates,
		dueDays:   dueDays,
		claims:    claims,
		publisher: publisher,
		now:       time.Now,
	}
}

// SetInvalidator registers a read model to invalidate after each invoice.
func (e *BillingEngine) SetInvalidator(inv Invalidator) {
	e.invalidator = inv
}

// ListUnbilledEntries returns billable entries not yet attached to an
// invoice, ordered by entry date then id, each priced at its project's rate.
// Entries of a project without a rate are flagged Unpriced rather than
// failing the listing.
func (e *BillingEngine) ListUnbilledEntries(ctx context.Context) ([]core.UnbilledEntry, error) {
	entries, err := e.store.ListUnbilledEntries(ctx)
	if err != nil {
		return nil, err
	}
	unpriced := map[int64]struct{}{}
	for i := range entries {
		rate, err := e.rates.RateFor(entries[i].ProjectID)
		if err != nil {
			entries[i].Unpriced = true
			unpriced[entries[i].ProjectID] = struct{}{}
			continue
		}
		entries[i].HourlyRate = rate
		entries[i].TotalCost = entries[i].Hours.Cost(rate)
	}
	for projectID := range unpriced {
		slog.WarnContext(ctx, "No hourly rate configured, entries left unpriced",
			log.FieldComponent, log.ComponentBilling,
			log.FieldProjectID, projectID)
	}
	if entries == nil {
		entries = []core.UnbilledEntry{}
	}
	return entries, nil
}

// ComputeBillingStats aggregates the unbilled backlog and the invoices issued
// in now's calendar month. Unpriced entries are counted apart from the
// totals. It never fails on empty input.
func (e *BillingEngine) ComputeBillingStats(ctx context.Context, now time.Time) (core.BillingStats, error) {
	var stats core.BillingStats

	entries, err := e.ListUnbilledEntries(ctx)
	if err != nil {
		return stats, err
	}
	for _, u := range entries {
		if u.Unpriced {
			stats.UnpricedEntries++
			continue
		}
		stats.TotalUnbilledHours = stats.TotalUnbilledHours.Add(u.Hours)
		stats.TotalUnbilledAmount = stats.TotalUnbilledAmount.Add(u.TotalCost)
	}
	stats.AverageHourlyRate = core.RatePerHour(stats.TotalUnbilledAmount, stats.TotalUnbilledHours)

	today := core.DateOf(now)
	first := core.NewDate(today.Year(), int(today.Month()), 1)
	last := first.AddDate(0, 1, -1)
	billed, err := e.store.SumInvoicesIssuedBetween(ctx, first, core.DateOf(last))
	if err != nil {
		return stats, err
	}
	stats.TotalBilledThisMonth = billed

	return stats, nil
}

// GenerateInvoice creates one draft invoice for the given entries of a
// project and marks them billed in the same transaction.
func (e *BillingEngine) GenerateInvoice(ctx context.Context, projectID int64, entryIDs []int64) (core.Invoice, error) {
	ids := uniqueIDs(entryIDs)
	if len(ids) == 0 {
		return core.Invoice{}, core.Invalid("time_entry_ids", core.ErrEmptySelection)
	}

	project, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return core.Invoice{}, err
	}
	rate, err := e.rates.RateFor(projectID)
	if err != nil {
		return core.Invoice{}, core.Invalid("hourly_rate", err)
	}

	entries, err := e.store.GetTimeEntriesByIDs(ctx, ids)
	if err != nil {
		return core.Invoice{}, err
	}
	amount, err := priceEntries(projectID, ids, entries, rate)
	if err != nil {
		return core.Invoice{}, err
	}

	release, err := e.claims.Claim(ctx, ids)
	if err != nil {
		return core.Invoice{}, err
	}
	defer release()

	today := core.DateOf(e.now())
	inv := core.Invoice{
		ClientID:    project.ClientID,
		ProjectID:   &projectID,
		Amount:      amount,
		TotalAmount: amount,
		Status:      core.InvoiceDraft,
		IssueDate:   today,
		DueDate:     today.AddDays(e.dueDays),
		Notes:       fmt.Sprintf("%s: %d time entries", project.Name, len(ids)),
	}
	if err := inv.Validate(); err != nil {
		return core.Invoice{}, err
	}

	inv, err = e.store.CreateInvoiceForEntries(ctx, inv, ids)
	if err != nil {
		return core.Invoice{}, err
	}
	log.NewStructuredLogger(log.FromContext(ctx)).
		LogInvoiceGenerated(ctx, inv.ID, inv.Number, projectID, len(ids), inv.TotalAmount.Cents)

	e.publish(ctx, inv)
	if e.invalidator != nil {
		e.invalidator.Invalidate(ctx)
	}
	return inv, nil
}

// RunAutomaticBilling invoices every project that has unbilled entries,
// in ascending project id order. A failing project is recorded in
// RunResult.Failures and the run continues with the next one. Only a failure
// to list the entries aborts the run.
func (e *BillingEngine) RunAutomaticBilling(ctx context.Context) (core.RunResult, error) {
	result := core.RunResult{Invoices: []core.Invoice{}, Failures: []core.GroupFailure{}}

	entries, err := e.store.ListUnbilledEntries(ctx)
	if err != nil {
		return result, err
	}

	groups := make(map[int64][]int64)
	for _, u := range entries {
		groups[u.ProjectID] = append(groups[u.ProjectID], u.ID)
	}
	projectIDs := make([]int64, 0, len(groups))
	for id := range groups {
		projectIDs = append(projectIDs, id)
	}
	sort.Slice(projectIDs, func(i, j int) bool { return projectIDs[i] < projectIDs[j] })

	for _, projectID := range projectIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		ids := groups[projectID]
		inv, err := e.GenerateInvoice(ctx, projectID, ids)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to invoice project group",
				"project_id", projectID,
				"entries", len(ids),
				"error", err)
			result.Failures = append(result.Failures, core.GroupFailure{
				ProjectID: projectID,
				EntryIDs:  ids,
				Err:       err,
				Message:   err.Error(),
				Kind:      core.ErrorKind(err),
			})
			continue
		}
		result.InvoicesGenerated++
		result.TotalAmount = result.TotalAmount.Add(inv.TotalAmount)
		result.Invoices = append(result.Invoices, inv)
	}

	slog.InfoContext(ctx, "Automatic billing run complete",
		"groups", len(projectIDs),
		"invoices", result.InvoicesGenerated,
		"total_cents", result.TotalAmount.Cents,
		"failures", len(result.Failures))

	return result, nil
}

func (e *BillingEngine) publish(ctx context.Context, inv core.Invoice) {
	if e.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping invoice event")
		return
	}
	if err := e.publisher.PublishInvoiceEvent(ctx, amqp.NewInvoiceGeneratedMessage(inv)); err != nil {
		// The invoice is committed; the event is best effort.
		slog.ErrorContext(ctx, "Failed to publish invoice event",
			"invoice_id", inv.ID,
			"number", inv.Number,
			"error", err)
	}
}

// priceEntries checks every requested id against the loaded entries and sums
// their cost. The first offending id, in request order, is reported.
func priceEntries(projectID int64, ids []int64, entries []core.TimeEntry, rate core.Money) (core.Money, error) {
	byID := make(map[int64]core.TimeEntry, len(entries))
	for _, te := range entries {
		byID[te.ID] = te
	}

	var total core.Money
	for _, id := range ids {
		te, ok := byID[id]
		switch {
		case !ok:
			return core.Money{}, core.InvalidEntry(id, core.ErrUnknownEntry)
		case te.ProjectID != projectID:
			return core.Money{}, core.InvalidEntry(id, core.ErrWrongProject)
		case !te.Billable:
			return core.Money{}, core.InvalidEntry(id, core.ErrNotBillable)
		case te.Billed():
			return core.Money{}, core.InvalidEntry(id, core.ErrAlreadyBilled)
		}
		total = total.Add(te.Hours.Cost(rate))
	}
	return total, nil
}

// uniqueIDs drops duplicates, keeping first-seen order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
