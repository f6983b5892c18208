package storage

import (
	"context"
	"fmt"

	"crm/internal/core"
)

const clientColumns = `id, name, email, phone, company, address, notes, tags`

func scanClient(row rowScanner) (core.Client, error) {
	var c core.Client
	var tags string
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Address, &c.Notes, &tags); err != nil {
		return c, err
	}
	decoded, err := decodeTags(tags)
	if err != nil {
		return c, fmt.Errorf("decode tags of client %d: %w", c.ID, err)
	}
	c.Tags = decoded
	return c, nil
}

const createClient = `-- name: CreateClient :execlastid
INSERT INTO clients (name, email, phone, company, address, notes, tags, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateClient(ctx context.Context, c core.Client) (int64, error) {
	tags, err := encodeTags(c.Tags)
	if err != nil {
		return 0, err
	}
	res, err := q.db.ExecContext(ctx, createClient, c.Name, c.Email, c.Phone, c.Company, c.Address, c.Notes, tags, nowStamp())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getClient = `-- name: GetClient :one
SELECT ` + clientColumns + ` FROM clients WHERE id = ?`

func (q *Queries) GetClient(ctx context.Context, id int64) (core.Client, error) {
	return scanClient(q.db.QueryRowContext(ctx, getClient, id))
}

const listClients = `-- name: ListClients :many
SELECT ` + clientColumns + ` FROM clients ORDER BY name, id`

func (q *Queries) ListClients(ctx context.Context) ([]core.Client, error) {
	rows, err := q.db.QueryContext(ctx, listClients)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const updateClient = `-- name: UpdateClient :execrows
UPDATE clients SET name = ?, email = ?, phone = ?, company = ?, address = ?, notes = ?, tags = ?
WHERE id = ?`

func (q *Queries) UpdateClient(ctx context.Context, c core.Client) (int64, error) {
	tags, err := encodeTags(c.Tags)
	if err != nil {
		return 0, err
	}
	res, err := q.db.ExecContext(ctx, updateClient, c.Name, c.Email, c.Phone, c.Company, c.Address, c.Notes, tags, c.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteClient = `-- name: DeleteClient :execrows
DELETE FROM clients WHERE id = ?`

func (q *Queries) DeleteClient(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteClient, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listClientInvoiceNumbers = `-- name: ListClientInvoiceNumbers :many
SELECT number FROM invoices WHERE client_id = ?
UNION
SELECT i.number FROM time_entries te
JOIN projects p ON p.id = te.project_id
JOIN invoices i ON i.id = te.invoice_id
WHERE p.client_id = ?
ORDER BY number`

// ListClientInvoiceNumbers returns the numbers of invoices addressed to the
// client or holding time entries of its projects.
func (q *Queries) ListClientInvoiceNumbers(ctx context.Context, clientID int64) ([]string, error) {
	return q.listStrings(ctx, listClientInvoiceNumbers, clientID, clientID)
}

const createContact = `-- name: CreateContact :execlastid
INSERT INTO contacts (client_id, name, email, phone, role) VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreateContact(ctx context.Context, c core.Contact) (int64, error) {
	res, err := q.db.ExecContext(ctx, createContact, c.ClientID, c.Name, c.Email, c.Phone, c.Role)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const listContactsByClient = `-- name: ListContactsByClient :many
SELECT id, client_id, name, email, phone, role FROM contacts WHERE client_id = ? ORDER BY name, id`

func (q *Queries) ListContactsByClient(ctx context.Context, clientID int64) ([]core.Contact, error) {
	rows, err := q.db.QueryContext(ctx, listContactsByClient, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Contact
	for rows.Next() {
		var c core.Contact
		if err := rows.Scan(&c.ID, &c.ClientID, &c.Name, &c.Email, &c.Phone, &c.Role); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const deleteContact = `-- name: DeleteContact :execrows
DELETE FROM contacts WHERE id = ?`

func (q *Queries) DeleteContact(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteContact, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
