package storage

import (
	"context"
	"database/sql"

	"crm/internal/core"
)

const timeEntryColumns = `id, project_id, task_id, description, hours_centi, billable, entry_date, invoice_id`

func scanTimeEntry(row rowScanner, extra ...interface{}) (core.TimeEntry, error) {
	var (
		e      core.TimeEntry
		taskID sql.NullInt64
		invID  sql.NullInt64
		date   string
		err    error
	)
	dest := append([]interface{}{&e.ID, &e.ProjectID, &taskID, &e.Description, &e.Hours.Hundredths, &e.Billable, &date, &invID}, extra...)
	if err = row.Scan(dest...); err != nil {
		return e, err
	}
	e.TaskID = fromNullID(taskID)
	e.InvoiceID = fromNullID(invID)
	e.Date, err = core.ParseDate(date)
	return e, err
}

func collectTimeEntries(rows *sql.Rows) ([]core.TimeEntry, error) {
	defer rows.Close()
	var items []core.TimeEntry
	for rows.Next() {
		e, err := scanTimeEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const createTimeEntry = `-- name: CreateTimeEntry :execlastid
INSERT INTO time_entries (project_id, task_id, description, hours_centi, billable, entry_date, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTimeEntry(ctx context.Context, e core.TimeEntry) (int64, error) {
	res, err := q.db.ExecContext(ctx, createTimeEntry,
		e.ProjectID, nullID(e.TaskID), e.Description, e.Hours.Hundredths, e.Billable, e.Date.String(), nowStamp())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getTimeEntry = `-- name: GetTimeEntry :one
SELECT ` + timeEntryColumns + ` FROM time_entries WHERE id = ?`

func (q *Queries) GetTimeEntry(ctx context.Context, id int64) (core.TimeEntry, error) {
	return scanTimeEntry(q.db.QueryRowContext(ctx, getTimeEntry, id))
}

const listTimeEntries = `-- name: ListTimeEntries :many
SELECT ` + timeEntryColumns + ` FROM time_entries
WHERE (? = 0 OR project_id = ?)
ORDER BY entry_date, id`

func (q *Queries) ListTimeEntries(ctx context.Context, projectID int64) ([]core.TimeEntry, error) {
	rows, err := q.db.QueryContext(ctx, listTimeEntries, projectID, projectID)
	if err != nil {
		return nil, err
	}
	return collectTimeEntries(rows)
}

// GetTimeEntriesByIDs loads the given entries; missing ids are simply absent.
func (q *Queries) GetTimeEntriesByIDs(ctx context.Context, ids []int64) ([]core.TimeEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY id`
	rows, err := q.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, err
	}
	return collectTimeEntries(rows)
}

const deleteUnbilledTimeEntry = `-- name: DeleteUnbilledTimeEntry :execrows
DELETE FROM time_entries WHERE id = ? AND invoice_id IS NULL`

func (q *Queries) DeleteUnbilledTimeEntry(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteUnbilledTimeEntry, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listUnbilledEntries = `-- name: ListUnbilledEntries :many
SELECT te.id, te.project_id, te.task_id, te.description, te.hours_centi, te.billable, te.entry_date, te.invoice_id,
       p.name, c.id, c.name
FROM time_entries te
JOIN projects p ON p.id = te.project_id
JOIN clients c ON c.id = p.client_id
WHERE te.billable = 1 AND te.invoice_id IS NULL
ORDER BY te.entry_date, te.id`

// ListUnbilledEntries returns billable, unbilled entries joined with their
// project and client. Rate and cost are left for the caller to fill.
func (q *Queries) ListUnbilledEntries(ctx context.Context) ([]core.UnbilledEntry, error) {
	rows, err := q.db.QueryContext(ctx, listUnbilledEntries)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.UnbilledEntry
	for rows.Next() {
		var u core.UnbilledEntry
		e, err := scanTimeEntry(rows, &u.ProjectName, &u.ClientID, &u.ClientName)
		if err != nil {
			return nil, err
		}
		u.TimeEntry = e
		items = append(items, u)
	}
	return items, rows.Err()
}

const lastActivityByProject = `-- name: LastActivityByProject :many
SELECT project_id, MAX(entry_date) FROM time_entries GROUP BY project_id`

// LastActivityByProject maps project id to the date of its latest time entry.
func (q *Queries) LastActivityByProject(ctx context.Context) (map[int64]core.Date, error) {
	rows, err := q.db.QueryContext(ctx, lastActivityByProject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]core.Date)
	for rows.Next() {
		var (
			id   int64
			last string
		)
		if err := rows.Scan(&id, &last); err != nil {
			return nil, err
		}
		d, err := core.ParseDate(last)
		if err != nil {
			return nil, err
		}
		out[id] = d
	}
	return out, rows.Err()
}

// ClaimTimeEntries attaches the entries to invoiceID, but only those still
// unbilled, billable and belonging to projectID. The number of rows claimed
// is returned so callers can detect a lost race.
func (q *Queries) ClaimTimeEntries(ctx context.Context, invoiceID, projectID int64, ids []int64) (int64, error) {
	query := `UPDATE time_entries SET invoice_id = ?
WHERE id IN (` + placeholders(len(ids)) + `) AND invoice_id IS NULL AND billable = 1 AND project_id = ?`
	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, invoiceID)
	args = append(args, int64Args(ids)...)
	args = append(args, projectID)
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
