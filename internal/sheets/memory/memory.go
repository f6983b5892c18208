package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ports "crm/internal/sheets"
)

// Ledger keeps invoice rows in memory. It is used when no spreadsheet is
// configured and in tests.
type Ledger struct {
	mu    sync.Mutex
	rows  []ports.LedgerRow
	index map[string]int
}

var (
	_ ports.InvoiceLedger = (*Ledger)(nil)
	_ ports.LedgerReader  = (*Ledger)(nil)
)

func New() *Ledger {
	return &Ledger{index: make(map[string]int)}
}

// AppendInvoice stores the row and returns a synthetic row reference.
// A number seen before returns the reference of the first append.
func (l *Ledger) AppendInvoice(_ context.Context, row ports.LedgerRow) (string, error) {
	if row.Number == "" {
		return "", errors.New("ledger row has no invoice number")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if i, ok := l.index[row.Number]; ok {
		return ref(i), nil
	}
	l.rows = append(l.rows, row)
	l.index[row.Number] = len(l.rows)
	return ref(len(l.rows)), nil
}

// ListInvoices returns the rows whose issue date falls in year, in append order.
func (l *Ledger) ListInvoices(_ context.Context, year int) ([]ports.LedgerRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []ports.LedgerRow
	for _, r := range l.rows {
		if r.IssueDate.Year() == year {
			out = append(out, r)
		}
	}
	return out, nil
}

// Len reports how many distinct invoices were recorded.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

func ref(i int) string {
	return fmt.Sprintf("mem:%d", i)
}
