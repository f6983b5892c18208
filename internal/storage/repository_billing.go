package storage

import (
	"context"
	"fmt"
	"log/slog"

	"crm/internal/core"
)

func (r *Repository) ListUnbilledEntries(ctx context.Context) ([]core.UnbilledEntry, error) {
	items, err := r.queries.ListUnbilledEntries(ctx)
	return items, core.Storage("list unbilled entries", err)
}

func (r *Repository) GetTimeEntriesByIDs(ctx context.Context, ids []int64) ([]core.TimeEntry, error) {
	items, err := r.queries.GetTimeEntriesByIDs(ctx, ids)
	return items, core.Storage("get time entries", err)
}

func (r *Repository) LastActivityByProject(ctx context.Context) (map[int64]core.Date, error) {
	m, err := r.queries.LastActivityByProject(ctx)
	return m, core.Storage("last activity by project", err)
}

// CreateInvoiceForEntries inserts inv and attaches entryIDs to it in a single
// transaction. The invoice number is allocated from the per-month sequence in
// the same transaction. If any entry was billed, deleted or changed by a
// concurrent writer the whole operation is rolled back with a ConflictError.
func (r *Repository) CreateInvoiceForEntries(ctx context.Context, inv core.Invoice, entryIDs []int64) (core.Invoice, error) {
	if inv.ProjectID == nil {
		return inv, core.Invalid("project_id", core.ErrInvalidReference)
	}
	if len(entryIDs) == 0 {
		return inv, core.Invalid("time_entry_ids", core.ErrEmptySelection)
	}
	projectID := *inv.ProjectID

	err := r.inTx(ctx, func(q *Queries) error {
		if err := r.insertNumberedInvoice(ctx, q, &inv); err != nil {
			return err
		}
		claimed, err := q.ClaimTimeEntries(ctx, inv.ID, projectID, entryIDs)
		if err != nil {
			return core.Storage("claim time entries", err)
		}
		if claimed != int64(len(entryIDs)) {
			return &core.ConflictError{
				EntryIDs: entryIDs,
				Reason:   fmt.Sprintf("claimed %d of %d entries", claimed, len(entryIDs)),
			}
		}
		return nil
	})
	if err != nil {
		return core.Invoice{}, err
	}
	return inv, nil
}

// CreateInvoice stores a manually issued invoice. A number is allocated from
// the sequence when the caller leaves it empty.
func (r *Repository) CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	err := r.inTx(ctx, func(q *Queries) error {
		if err := r.requireExists(ctx, q, "clients", "client", inv.ClientID); err != nil {
			return err
		}
		if err := r.requireOptional(ctx, q, "projects", "project", inv.ProjectID); err != nil {
			return err
		}
		return r.insertNumberedInvoice(ctx, q, &inv)
	})
	if err != nil {
		return core.Invoice{}, err
	}
	slog.InfoContext(ctx, "Invoice created", "id", inv.ID, "number", inv.Number, "client_id", inv.ClientID)
	return inv, nil
}

func (r *Repository) insertNumberedInvoice(ctx context.Context, q *Queries, inv *core.Invoice) error {
	if inv.Number == "" {
		period := core.InvoicePeriod(inv.IssueDate)
		seq, err := q.NextInvoiceSequence(ctx, r.Dialect(), period)
		if err != nil {
			return core.Storage("allocate invoice number", err)
		}
		inv.Number = core.FormatInvoiceNumber(period, seq)
	}
	id, err := q.CreateInvoice(ctx, *inv)
	if err != nil {
		return core.Storage("insert invoice", err)
	}
	inv.ID = id
	return nil
}

func (r *Repository) GetInvoice(ctx context.Context, id int64) (core.Invoice, error) {
	inv, err := r.queries.GetInvoice(ctx, id)
	if err != nil {
		return inv, rowErr("get invoice", "invoice", id, err)
	}
	return inv, nil
}

func (r *Repository) ListInvoices(ctx context.Context, clientID int64) ([]core.Invoice, error) {
	items, err := r.queries.ListInvoices(ctx, clientID)
	return items, core.Storage("list invoices", err)
}

// TransitionInvoice moves an invoice to status next. Moving to paid records
// paidOn as the paid date.
func (r *Repository) TransitionInvoice(ctx context.Context, id int64, next core.InvoiceStatus, paidOn core.Date) (core.Invoice, error) {
	inv, err := r.GetInvoice(ctx, id)
	if err != nil {
		return inv, err
	}
	if !next.Valid() || !inv.Status.CanTransitionTo(next) {
		return inv, core.Invalid("status", fmt.Errorf("%w: %s -> %s", core.ErrInvalidStatus, inv.Status, next))
	}
	var paid *core.Date
	if next == core.InvoicePaid {
		paid = &paidOn
	}
	n, err := r.queries.UpdateInvoiceStatus(ctx, id, inv.Status, next, paid)
	if err != nil {
		return inv, core.Storage("update invoice status", err)
	}
	if n == 0 {
		return inv, &core.ConflictError{Reason: fmt.Sprintf("invoice %d changed status concurrently", id)}
	}
	inv.Status = next
	inv.PaidDate = paid
	slog.InfoContext(ctx, "Invoice status changed", "id", id, "status", string(next))
	return inv, nil
}

// MarkOverdueInvoices flags sent invoices whose due date is before today.
func (r *Repository) MarkOverdueInvoices(ctx context.Context, today core.Date) (int64, error) {
	n, err := r.queries.MarkOverdueInvoices(ctx, today)
	if err != nil {
		return 0, core.Storage("mark overdue invoices", err)
	}
	return n, nil
}

// SumInvoicesIssuedBetween totals invoices whose issue date lies in [from, to].
func (r *Repository) SumInvoicesIssuedBetween(ctx context.Context, from, to core.Date) (core.Money, error) {
	total, err := r.queries.SumInvoicesIssuedBetween(ctx, from, to)
	if err != nil {
		return core.Money{}, core.Storage("sum invoices", err)
	}
	return core.Money{Cents: total}, nil
}
