package storage

import (
	"context"
	"database/sql"
	"time"

	"crm/internal/core"
)

const createNotification = `-- name: CreateNotification :execlastid
INSERT INTO notifications (title, message, notification_type, is_read, user_ref, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateNotification(ctx context.Context, n core.Notification) (int64, error) {
	res, err := q.db.ExecContext(ctx, createNotification,
		n.Title, n.Message, n.Type, n.Read, nullString(n.UserRef), n.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const listNotifications = `-- name: ListNotifications :many
SELECT id, title, message, notification_type, is_read, user_ref, created_at FROM notifications
WHERE (? = 0 OR is_read = 0)
ORDER BY id DESC
LIMIT ?`

func (q *Queries) ListNotifications(ctx context.Context, unreadOnly bool, limit int) ([]core.Notification, error) {
	flag := 0
	if unreadOnly {
		flag = 1
	}
	rows, err := q.db.QueryContext(ctx, listNotifications, flag, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Notification
	for rows.Next() {
		var (
			n       core.Notification
			userRef sql.NullString
			created string
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Message, &n.Type, &n.Read, &userRef, &created); err != nil {
			return nil, err
		}
		n.UserRef = fromNullString(userRef)
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			n.CreatedAt = t
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

const markNotificationRead = `-- name: MarkNotificationRead :execrows
UPDATE notifications SET is_read = 1 WHERE id = ?`

func (q *Queries) MarkNotificationRead(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, markNotificationRead, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createAutomationRule = `-- name: CreateAutomationRule :execlastid
INSERT INTO automation_rules (name, trigger_type, trigger_condition, action_type, action_config, active)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateAutomationRule(ctx context.Context, r core.AutomationRule) (int64, error) {
	res, err := q.db.ExecContext(ctx, createAutomationRule,
		r.Name, r.TriggerType, r.TriggerCondition, r.ActionType, r.ActionConfig, r.Active)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const listAutomationRules = `-- name: ListAutomationRules :many
SELECT id, name, trigger_type, trigger_condition, action_type, action_config, active
FROM automation_rules ORDER BY id`

func (q *Queries) ListAutomationRules(ctx context.Context) ([]core.AutomationRule, error) {
	rows, err := q.db.QueryContext(ctx, listAutomationRules)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.AutomationRule
	for rows.Next() {
		var r core.AutomationRule
		if err := rows.Scan(&r.ID, &r.Name, &r.TriggerType, &r.TriggerCondition, &r.ActionType, &r.ActionConfig, &r.Active); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const deleteAutomationRule = `-- name: DeleteAutomationRule :execrows
DELETE FROM automation_rules WHERE id = ?`

func (q *Queries) DeleteAutomationRule(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteAutomationRule, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
