package storage

import (
	"context"
	"database/sql"

	"crm/internal/core"
)

const taskColumns = `id, project_id, title, description, status, priority, due_date, completed`

func scanTask(row rowScanner) (core.Task, error) {
	var (
		t        core.Task
		status   string
		priority string
		due      sql.NullString
		err      error
	)
	if err = row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &status, &priority, &due, &t.Completed); err != nil {
		return t, err
	}
	t.Status = core.TaskStatus(status)
	t.Priority = core.Priority(priority)
	t.DueDate, err = fromNullDate(due)
	return t, err
}

const createTask = `-- name: CreateTask :execlastid
INSERT INTO tasks (project_id, title, description, status, priority, due_date, completed)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTask(ctx context.Context, t core.Task) (int64, error) {
	res, err := q.db.ExecContext(ctx, createTask,
		t.ProjectID, t.Title, t.Description, string(t.Status), string(t.Priority), nullDate(t.DueDate), t.Completed)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getTask = `-- name: GetTask :one
SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

func (q *Queries) GetTask(ctx context.Context, id int64) (core.Task, error) {
	return scanTask(q.db.QueryRowContext(ctx, getTask, id))
}

const listTasks = `-- name: ListTasks :many
SELECT ` + taskColumns + ` FROM tasks
WHERE (? = 0 OR project_id = ?)
ORDER BY id`

func (q *Queries) ListTasks(ctx context.Context, projectID int64) ([]core.Task, error) {
	rows, err := q.db.QueryContext(ctx, listTasks, projectID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const updateTask = `-- name: UpdateTask :execrows
UPDATE tasks SET project_id = ?, title = ?, description = ?, status = ?, priority = ?, due_date = ?, completed = ?
WHERE id = ?`

func (q *Queries) UpdateTask(ctx context.Context, t core.Task) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTask,
		t.ProjectID, t.Title, t.Description, string(t.Status), string(t.Priority), nullDate(t.DueDate), t.Completed, t.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTask = `-- name: DeleteTask :execrows
DELETE FROM tasks WHERE id = ?`

func (q *Queries) DeleteTask(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTask, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
