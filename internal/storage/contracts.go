package storage

import (
	"context"
	"database/sql"

	"crm/internal/core"
)

const contractColumns = `id, client_id, project_id, title, status, contract_value, start_date, end_date`

func scanContract(row rowScanner) (core.Contract, error) {
	var (
		c         core.Contract
		projectID sql.NullInt64
		status    string
		value     sql.NullInt64
		start     sql.NullString
		end       sql.NullString
		err       error
	)
	if err = row.Scan(&c.ID, &c.ClientID, &projectID, &c.Title, &status, &value, &start, &end); err != nil {
		return c, err
	}
	c.ProjectID = fromNullID(projectID)
	c.Status = core.ContractStatus(status)
	c.Value = fromNullMoney(value)
	if c.StartDate, err = fromNullDate(start); err != nil {
		return c, err
	}
	c.EndDate, err = fromNullDate(end)
	return c, err
}

const createContract = `-- name: CreateContract :execlastid
INSERT INTO contracts (client_id, project_id, title, status, contract_value, start_date, end_date)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateContract(ctx context.Context, c core.Contract) (int64, error) {
	res, err := q.db.ExecContext(ctx, createContract,
		c.ClientID, nullID(c.ProjectID), c.Title, string(c.Status), nullMoney(c.Value), nullDate(c.StartDate), nullDate(c.EndDate))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getContract = `-- name: GetContract :one
SELECT ` + contractColumns + ` FROM contracts WHERE id = ?`

func (q *Queries) GetContract(ctx context.Context, id int64) (core.Contract, error) {
	return scanContract(q.db.QueryRowContext(ctx, getContract, id))
}

const listContracts = `-- name: ListContracts :many
SELECT ` + contractColumns + ` FROM contracts
WHERE (? = 0 OR client_id = ?)
ORDER BY id`

func (q *Queries) ListContracts(ctx context.Context, clientID int64) ([]core.Contract, error) {
	rows, err := q.db.QueryContext(ctx, listContracts, clientID, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const updateContract = `-- name: UpdateContract :execrows
UPDATE contracts SET client_id = ?, project_id = ?, title = ?, status = ?, contract_value = ?, start_date = ?, end_date = ?
WHERE id = ?`

func (q *Queries) UpdateContract(ctx context.Context, c core.Contract) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateContract,
		c.ClientID, nullID(c.ProjectID), c.Title, string(c.Status), nullMoney(c.Value), nullDate(c.StartDate), nullDate(c.EndDate), c.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteContract = `-- name: DeleteContract :execrows
DELETE FROM contracts WHERE id = ?`

func (q *Queries) DeleteContract(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteContract, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
