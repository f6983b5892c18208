package storage

import (
	"context"
	"database/sql"

	"crm/internal/core"
)

const invoiceColumns = `id, client_id, project_id, invoice_number, amount_cents, tax_cents, total_cents, status,
    issue_date, due_date, paid_date, notes`

func scanInvoice(row rowScanner) (core.Invoice, error) {
	var (
		inv       core.Invoice
		projectID sql.NullInt64
		status    string
		issue     string
		due       string
		paid      sql.NullString
		err       error
	)
	if err = row.Scan(&inv.ID, &inv.ClientID, &projectID, &inv.Number, &inv.Amount.Cents, &inv.TaxAmount.Cents,
		&inv.TotalAmount.Cents, &status, &issue, &due, &paid, &inv.Notes); err != nil {
		return inv, err
	}
	inv.ProjectID = fromNullID(projectID)
	inv.Status = core.InvoiceStatus(status)
	if inv.IssueDate, err = core.ParseDate(issue); err != nil {
		return inv, err
	}
	if inv.DueDate, err = core.ParseDate(due); err != nil {
		return inv, err
	}
	inv.PaidDate, err = fromNullDate(paid)
	return inv, err
}

func collectInvoices(rows *sql.Rows) ([]core.Invoice, error) {
	defer rows.Close()
	var items []core.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, inv)
	}
	return items, rows.Err()
}

const createInvoice = `-- name: CreateInvoice :execlastid
INSERT INTO invoices (client_id, project_id, invoice_number, amount_cents, tax_cents, total_cents, status,
    issue_date, due_date, paid_date, notes, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateInvoice(ctx context.Context, inv core.Invoice) (int64, error) {
	res, err := q.db.ExecContext(ctx, createInvoice,
		inv.ClientID, nullID(inv.ProjectID), inv.Number, inv.Amount.Cents, inv.TaxAmount.Cents, inv.TotalAmount.Cents,
		string(inv.Status), inv.IssueDate.String(), inv.DueDate.String(), nullDate(inv.PaidDate), inv.Notes, nowStamp())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getInvoice = `-- name: GetInvoice :one
SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`

func (q *Queries) GetInvoice(ctx context.Context, id int64) (core.Invoice, error) {
	return scanInvoice(q.db.QueryRowContext(ctx, getInvoice, id))
}

const listInvoices = `-- name: ListInvoices :many
SELECT ` + invoiceColumns + ` FROM invoices
WHERE (? = 0 OR client_id = ?)
ORDER BY issue_date, id`

func (q *Queries) ListInvoices(ctx context.Context, clientID int64) ([]core.Invoice, error) {
	rows, err := q.db.QueryContext(ctx, listInvoices, clientID, clientID)
	if err != nil {
		return nil, err
	}
	return collectInvoices(rows)
}

const updateInvoiceStatus = `-- name: UpdateInvoiceStatus :execrows
UPDATE invoices SET status = ?, paid_date = ? WHERE id = ? AND status = ?`

// UpdateInvoiceStatus moves an invoice from one status to another. The
// expected current status guards against concurrent transitions.
func (q *Queries) UpdateInvoiceStatus(ctx context.Context, id int64, from, to core.InvoiceStatus, paid *core.Date) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateInvoiceStatus, string(to), nullDate(paid), id, string(from))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markOverdueInvoices = `-- name: MarkOverdueInvoices :execrows
UPDATE invoices SET status = 'overdue' WHERE status = 'sent' AND due_date < ?`

func (q *Queries) MarkOverdueInvoices(ctx context.Context, today core.Date) (int64, error) {
	res, err := q.db.ExecContext(ctx, markOverdueInvoices, today.String())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const sumInvoicesIssuedBetween = `-- name: SumInvoicesIssuedBetween :one
SELECT COALESCE(SUM(total_cents), 0) FROM invoices WHERE issue_date >= ? AND issue_date <= ?`

func (q *Queries) SumInvoicesIssuedBetween(ctx context.Context, from, to core.Date) (int64, error) {
	var total int64
	err := q.db.QueryRowContext(ctx, sumInvoicesIssuedBetween, from.String(), to.String()).Scan(&total)
	return total, err
}

const upsertInvoiceSequenceSQLite = `-- name: UpsertInvoiceSequence :exec
INSERT INTO invoice_sequences (period, last_seq) VALUES (?, 1)
ON CONFLICT(period) DO UPDATE SET last_seq = last_seq + 1`

const upsertInvoiceSequenceMySQL = `-- name: UpsertInvoiceSequence :exec
INSERT INTO invoice_sequences (period, last_seq) VALUES (?, 1)
ON DUPLICATE KEY UPDATE last_seq = last_seq + 1`

const getInvoiceSequence = `-- name: GetInvoiceSequence :one
SELECT last_seq FROM invoice_sequences WHERE period = ?`

// NextInvoiceSequence allocates the next number for period. It must run inside
// the transaction that inserts the invoice so a rollback releases the number.
// The upsert creates or bumps the row in one statement, so concurrent first
// invoices of a month serialize on the row lock instead of racing an INSERT.
func (q *Queries) NextInvoiceSequence(ctx context.Context, d Dialect, period string) (int64, error) {
	upsert := upsertInvoiceSequenceSQLite
	if d == DialectMySQL {
		upsert = upsertInvoiceSequenceMySQL
	}
	if _, err := q.db.ExecContext(ctx, upsert, period); err != nil {
		return 0, err
	}
	var seq int64
	err := q.db.QueryRowContext(ctx, getInvoiceSequence, period).Scan(&seq)
	return seq, err
}
