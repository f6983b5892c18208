package storage

import (
	"context"
	"database/sql"

	"crm/internal/core"
)

const projectColumns = `id, client_id, name, description, status, start_date, deadline, progress, budget_cents`

func scanProject(row rowScanner) (core.Project, error) {
	var (
		p        core.Project
		start    sql.NullString
		deadline sql.NullString
		budget   sql.NullInt64
		status   string
		err      error
	)
	if err = row.Scan(&p.ID, &p.ClientID, &p.Name, &p.Description, &status, &start, &deadline, &p.Progress, &budget); err != nil {
		return p, err
	}
	p.Status = core.ProjectStatus(status)
	if p.StartDate, err = fromNullDate(start); err != nil {
		return p, err
	}
	if p.Deadline, err = fromNullDate(deadline); err != nil {
		return p, err
	}
	p.Budget = fromNullMoney(budget)
	return p, nil
}

const createProject = `-- name: CreateProject :execlastid
INSERT INTO projects (client_id, name, description, status, start_date, deadline, progress, budget_cents, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateProject(ctx context.Context, p core.Project) (int64, error) {
	res, err := q.db.ExecContext(ctx, createProject,
		p.ClientID, p.Name, p.Description, string(p.Status),
		nullDate(p.StartDate), nullDate(p.Deadline), p.Progress, nullMoney(p.Budget), nowStamp())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getProject = `-- name: GetProject :one
SELECT ` + projectColumns + ` FROM projects WHERE id = ?`

func (q *Queries) GetProject(ctx context.Context, id int64) (core.Project, error) {
	return scanProject(q.db.QueryRowContext(ctx, getProject, id))
}

const listProjects = `-- name: ListProjects :many
SELECT ` + projectColumns + ` FROM projects ORDER BY id`

const listProjectsByClient = `-- name: ListProjectsByClient :many
SELECT ` + projectColumns + ` FROM projects WHERE client_id = ? ORDER BY id`

// ListProjects returns every project, or only the client's when clientID > 0.
func (q *Queries) ListProjects(ctx context.Context, clientID int64) ([]core.Project, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if clientID > 0 {
		rows, err = q.db.QueryContext(ctx, listProjectsByClient, clientID)
	} else {
		rows, err = q.db.QueryContext(ctx, listProjects)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const updateProject = `-- name: UpdateProject :execrows
UPDATE projects SET client_id = ?, name = ?, description = ?, status = ?, start_date = ?, deadline = ?,
    progress = ?, budget_cents = ?
WHERE id = ?`

func (q *Queries) UpdateProject(ctx context.Context, p core.Project) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateProject,
		p.ClientID, p.Name, p.Description, string(p.Status),
		nullDate(p.StartDate), nullDate(p.Deadline), p.Progress, nullMoney(p.Budget), p.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteProject = `-- name: DeleteProject :execrows
DELETE FROM projects WHERE id = ?`

func (q *Queries) DeleteProject(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteProject, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listProjectInvoiceNumbers = `-- name: ListProjectInvoiceNumbers :many
SELECT number FROM invoices WHERE project_id = ?
UNION
SELECT i.number FROM time_entries te JOIN invoices i ON i.id = te.invoice_id WHERE te.project_id = ?
ORDER BY number`

// ListProjectInvoiceNumbers returns the numbers of invoices issued for the
// project or holding any of its time entries.
func (q *Queries) ListProjectInvoiceNumbers(ctx context.Context, projectID int64) ([]string, error) {
	return q.listStrings(ctx, listProjectInvoiceNumbers, projectID, projectID)
}

const createExpense = `-- name: CreateExpense :execlastid
INSERT INTO expenses (project_id, description, amount_cents, expense_date) VALUES (?, ?, ?, ?)`

func (q *Queries) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	res, err := q.db.ExecContext(ctx, createExpense, e.ProjectID, e.Description, e.Amount.Cents, e.Date.String())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const listExpenses = `-- name: ListExpenses :many
SELECT id, project_id, description, amount_cents, expense_date FROM expenses
WHERE (? = 0 OR project_id = ?)
ORDER BY expense_date, id`

func (q *Queries) ListExpenses(ctx context.Context, projectID int64) ([]core.Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses, projectID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Expense
	for rows.Next() {
		var (
			e    core.Expense
			date string
		)
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Description, &e.Amount.Cents, &date); err != nil {
			return nil, err
		}
		if e.Date, err = core.ParseDate(date); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
