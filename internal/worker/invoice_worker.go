package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"crm/internal/amqp"
	"crm/internal/core"
	"crm/internal/sheets"
)

// InvoiceStore is the part of the store the invoice worker needs.
type InvoiceStore interface {
	CreateNotification(ctx context.Context, n core.Notification) (core.Notification, error)
	ListInvoices(ctx context.Context, clientID int64) ([]core.Invoice, error)
}

// InvoiceWorker turns invoice events into notifications and ledger rows.
type InvoiceWorker struct {
	store  InvoiceStore
	ledger sheets.InvoiceLedger
	dedupe Deduper
}

// NewInvoiceWorker creates the worker. ledger may be nil when no ledger is
// configured; dedupe defaults to a process-local set.
func NewInvoiceWorker(store InvoiceStore, ledger sheets.InvoiceLedger, dedupe Deduper) *InvoiceWorker {
	if dedupe == nil {
		dedupe = NewMemoryDeduper()
	}
	return &InvoiceWorker{store: store, ledger: ledger, dedupe: dedupe}
}

// HandleInvoiceEvent processes a single invoice event from AMQP. Returning an
// error requeues the message, so every step tolerates redelivery.
func (w *InvoiceWorker) HandleInvoiceEvent(ctx context.Context, msg *amqp.InvoiceEventMessage) error {
	if msg.Event != amqp.EventInvoiceGenerated {
		slog.WarnContext(ctx, "Ignoring unknown invoice event", "id", msg.ID, "event", msg.Event)
		return nil
	}

	slog.InfoContext(ctx, "Processing invoice event",
		"id", msg.ID,
		"invoice_id", msg.InvoiceID,
		"number", msg.Number)

	if w.ledger != nil {
		row, err := ledgerRowFromMessage(msg)
		if err != nil {
			// Malformed dates will not improve on retry.
			slog.ErrorContext(ctx, "Invalid invoice event, skipping ledger", "id", msg.ID, "error", err)
		} else {
			ref, err := w.ledger.AppendInvoice(ctx, row)
			if err != nil {
				return fmt.Errorf("append invoice to ledger: %w", err)
			}
			slog.InfoContext(ctx, "Invoice recorded in ledger", "number", msg.Number, "ref", ref)
		}
	}

	fresh, err := w.dedupe.Add(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("dedupe invoice event: %w", err)
	}
	if !fresh {
		slog.InfoContext(ctx, "Invoice event already notified", "id", msg.ID)
		return nil
	}

	n := core.Notification{
		Title:     "Invoice " + msg.Number + " generated",
		Message:   fmt.Sprintf("Draft invoice %s for client %d, total %s, due %s", msg.Number, msg.ClientID, core.Money{Cents: msg.TotalCents}, msg.DueDate),
		Type:      "invoice",
		CreatedAt: time.Now(),
	}
	if _, err := w.store.CreateNotification(ctx, n); err != nil {
		if rmErr := w.dedupe.Remove(ctx, msg.ID); rmErr != nil {
			slog.ErrorContext(ctx, "Failed to forget event after error", "id", msg.ID, "error", rmErr)
		}
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ReconcileLedger appends invoices issued in year that the ledger is missing.
// It recovers from lost events and worker downtime.
func (w *InvoiceWorker) ReconcileLedger(ctx context.Context, reader sheets.LedgerReader, year int) (int, error) {
	if w.ledger == nil || reader == nil {
		return 0, nil
	}
	recorded, err := reader.ListInvoices(ctx, year)
	if err != nil {
		return 0, fmt.Errorf("list ledger rows: %w", err)
	}
	seen := make(map[string]struct{}, len(recorded))
	for _, r := range recorded {
		seen[r.Number] = struct{}{}
	}

	invoices, err := w.store.ListInvoices(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("list invoices: %w", err)
	}

	added, failed := 0, 0
	for _, inv := range invoices {
		if inv.IssueDate.Year() != year {
			continue
		}
		if _, ok := seen[inv.Number]; ok {
			continue
		}
		if _, err := w.ledger.AppendInvoice(ctx, ledgerRowFromInvoice(inv)); err != nil {
			slog.ErrorContext(ctx, "Failed to reconcile invoice", "number", inv.Number, "error", err)
			failed++
			continue
		}
		added++
	}

	slog.InfoContext(ctx, "Ledger reconciliation completed",
		"year", year,
		"recorded", len(recorded),
		"added", added,
		"errors", failed)
	return added, nil
}

func ledgerRowFromMessage(msg *amqp.InvoiceEventMessage) (sheets.LedgerRow, error) {
	issue, err := core.ParseDate(msg.IssueDate)
	if err != nil {
		return sheets.LedgerRow{}, fmt.Errorf("issue date: %w", err)
	}
	due, err := core.ParseDate(msg.DueDate)
	if err != nil {
		return sheets.LedgerRow{}, fmt.Errorf("due date: %w", err)
	}
	return sheets.LedgerRow{
		InvoiceID: msg.InvoiceID,
		Number:    msg.Number,
		ClientID:  msg.ClientID,
		ProjectID: msg.ProjectID,
		IssueDate: issue,
		DueDate:   due,
		Total:     core.Money{Cents: msg.TotalCents},
	}, nil
}

func ledgerRowFromInvoice(inv core.Invoice) sheets.LedgerRow {
	return sheets.LedgerRow{
		InvoiceID: inv.ID,
		Number:    inv.Number,
		ClientID:  inv.ClientID,
		ProjectID: inv.ProjectID,
		IssueDate: inv.IssueDate,
		DueDate:   inv.DueDate,
		Total:     inv.TotalAmount,
	}
}
