package sheets

import (
	"context"

	"crm/internal/core"
)

// LedgerRow is one generated invoice as recorded in the external ledger.
type LedgerRow struct {
	InvoiceID int64
	Number    string
	ClientID  int64
	ProjectID *int64
	IssueDate core.Date
	DueDate   core.Date
	Total     core.Money
}

// Ports for outbound adapters.
type (
	// InvoiceLedger records generated invoices outside the store. Appending a
	// number that is already recorded returns the existing row reference.
	InvoiceLedger interface {
		AppendInvoice(ctx context.Context, row LedgerRow) (rowRef string, err error)
	}

	// LedgerReader lists the recorded invoices issued in a given year.
	LedgerReader interface {
		ListInvoices(ctx context.Context, year int) ([]LedgerRow, error)
	}
)
