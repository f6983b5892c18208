package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"crm/internal/core"
)

func (r *Repository) CreateClient(ctx context.Context, c core.Client) (core.Client, error) {
	id, err := r.queries.CreateClient(ctx, c)
	if err != nil {
		return c, core.Storage("create client", err)
	}
	c.ID = id
	slog.InfoContext(ctx, "Client saved", "id", id, "name", c.Name)
	return c, nil
}

func (r *Repository) GetClient(ctx context.Context, id int64) (core.Client, error) {
	c, err := r.queries.GetClient(ctx, id)
	if err != nil {
		return c, rowErr("get client", "client", id, err)
	}
	return c, nil
}

func (r *Repository) ListClients(ctx context.Context) ([]core.Client, error) {
	items, err := r.queries.ListClients(ctx)
	return items, core.Storage("list clients", err)
}

func (r *Repository) UpdateClient(ctx context.Context, c core.Client) (core.Client, error) {
	n, err := r.queries.UpdateClient(ctx, c)
	return c, affected("update client", "client", c.ID, n, err)
}

// DeleteClient removes a client with its contacts, projects and contracts.
// A client with invoices, or with billed time on its projects, is kept.
func (r *Repository) DeleteClient(ctx context.Context, id int64) error {
	return r.inTx(ctx, func(q *Queries) error {
		numbers, err := q.ListClientInvoiceNumbers(ctx, id)
		if err != nil {
			return core.Storage("delete client", err)
		}
		if len(numbers) > 0 {
			return invoicedErr("client", numbers)
		}
		n, err := q.DeleteClient(ctx, id)
		return affected("delete client", "client", id, n, err)
	})
}

// invoicedErr names the invoices that block deleting an entity.
func invoicedErr(entity string, numbers []string) error {
	return core.Invalid("id", fmt.Errorf("%s %w %s", entity, core.ErrHasInvoices, strings.Join(numbers, ", ")))
}

func (r *Repository) CreateContact(ctx context.Context, c core.Contact) (core.Contact, error) {
	if err := r.requireExists(ctx, r.queries, "clients", "client", c.ClientID); err != nil {
		return c, err
	}
	id, err := r.queries.CreateContact(ctx, c)
	if err != nil {
		return c, core.Storage("create contact", err)
	}
	c.ID = id
	return c, nil
}

func (r *Repository) ListContacts(ctx context.Context, clientID int64) ([]core.Contact, error) {
	if err := r.requireExists(ctx, r.queries, "clients", "client", clientID); err != nil {
		return nil, err
	}
	items, err := r.queries.ListContactsByClient(ctx, clientID)
	return items, core.Storage("list contacts", err)
}

func (r *Repository) DeleteContact(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteContact(ctx, id)
	return affected("delete contact", "contact", id, n, err)
}

func (r *Repository) CreateProject(ctx context.Context, p core.Project) (core.Project, error) {
	if err := r.requireExists(ctx, r.queries, "clients", "client", p.ClientID); err != nil {
		return p, err
	}
	id, err := r.queries.CreateProject(ctx, p)
	if err != nil {
		return p, core.Storage("create project", err)
	}
	p.ID = id
	slog.InfoContext(ctx, "Project saved", "id", id, "client_id", p.ClientID, "name", p.Name)
	return p, nil
}

func (r *Repository) GetProject(ctx context.Context, id int64) (core.Project, error) {
	p, err := r.queries.GetProject(ctx, id)
	if err != nil {
		return p, rowErr("get project", "project", id, err)
	}
	return p, nil
}

func (r *Repository) ListProjects(ctx context.Context, clientID int64) ([]core.Project, error) {
	items, err := r.queries.ListProjects(ctx, clientID)
	return items, core.Storage("list projects", err)
}

func (r *Repository) UpdateProject(ctx context.Context, p core.Project) (core.Project, error) {
	if err := r.requireExists(ctx, r.queries, "clients", "client", p.ClientID); err != nil {
		return p, err
	}
	n, err := r.queries.UpdateProject(ctx, p)
	return p, affected("update project", "project", p.ID, n, err)
}

// DeleteProject removes a project with its tasks, unbilled time and
// expenses. Billed time entries are immutable, so a project with invoices is
// kept.
func (r *Repository) DeleteProject(ctx context.Context, id int64) error {
	return r.inTx(ctx, func(q *Queries) error {
		numbers, err := q.ListProjectInvoiceNumbers(ctx, id)
		if err != nil {
			return core.Storage("delete project", err)
		}
		if len(numbers) > 0 {
			return invoicedErr("project", numbers)
		}
		n, err := q.DeleteProject(ctx, id)
		return affected("delete project", "project", id, n, err)
	})
}

func (r *Repository) CreateTask(ctx context.Context, t core.Task) (core.Task, error) {
	if err := r.requireExists(ctx, r.queries, "projects", "project", t.ProjectID); err != nil {
		return t, err
	}
	id, err := r.queries.CreateTask(ctx, t)
	if err != nil {
		return t, core.Storage("create task", err)
	}
	t.ID = id
	return t, nil
}

func (r *Repository) GetTask(ctx context.Context, id int64) (core.Task, error) {
	t, err := r.queries.GetTask(ctx, id)
	if err != nil {
		return t, rowErr("get task", "task", id, err)
	}
	return t, nil
}

func (r *Repository) ListTasks(ctx context.Context, projectID int64) ([]core.Task, error) {
	items, err := r.queries.ListTasks(ctx, projectID)
	return items, core.Storage("list tasks", err)
}

func (r *Repository) UpdateTask(ctx context.Context, t core.Task) (core.Task, error) {
	if err := r.requireExists(ctx, r.queries, "projects", "project", t.ProjectID); err != nil {
		return t, err
	}
	n, err := r.queries.UpdateTask(ctx, t)
	return t, affected("update task", "task", t.ID, n, err)
}

func (r *Repository) DeleteTask(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteTask(ctx, id)
	return affected("delete task", "task", id, n, err)
}

func (r *Repository) CreateTimeEntry(ctx context.Context, e core.TimeEntry) (core.TimeEntry, error) {
	if err := r.requireExists(ctx, r.queries, "projects", "project", e.ProjectID); err != nil {
		return e, err
	}
	if err := r.requireOptional(ctx, r.queries, "tasks", "task", e.TaskID); err != nil {
		return e, err
	}
	e.InvoiceID = nil
	id, err := r.queries.CreateTimeEntry(ctx, e)
	if err != nil {
		return e, core.Storage("create time entry", err)
	}
	e.ID = id
	slog.InfoContext(ctx, "Time entry saved",
		"id", id,
		"project_id", e.ProjectID,
		"hours", e.Hours.String(),
		"billable", e.Billable)
	return e, nil
}

func (r *Repository) GetTimeEntry(ctx context.Context, id int64) (core.TimeEntry, error) {
	e, err := r.queries.GetTimeEntry(ctx, id)
	if err != nil {
		return e, rowErr("get time entry", "time entry", id, err)
	}
	return e, nil
}

func (r *Repository) ListTimeEntries(ctx context.Context, projectID int64) ([]core.TimeEntry, error) {
	items, err := r.queries.ListTimeEntries(ctx, projectID)
	return items, core.Storage("list time entries", err)
}

// DeleteTimeEntry removes an unbilled entry. Billed entries are part of an
// invoice and are rejected with a ValidationError.
func (r *Repository) DeleteTimeEntry(ctx context.Context, id int64) error {
	e, err := r.GetTimeEntry(ctx, id)
	if err != nil {
		return err
	}
	if e.Billed() {
		return core.InvalidEntry(id, core.ErrAlreadyBilled)
	}
	n, err := r.queries.DeleteUnbilledTimeEntry(ctx, id)
	if err != nil {
		return core.Storage("delete time entry", err)
	}
	if n == 0 {
		return core.InvalidEntry(id, core.ErrAlreadyBilled)
	}
	return nil
}

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := r.requireExists(ctx, r.queries, "projects", "project", e.ProjectID); err != nil {
		return e, err
	}
	id, err := r.queries.CreateExpense(ctx, e)
	if err != nil {
		return e, core.Storage("create expense", err)
	}
	e.ID = id
	return e, nil
}

func (r *Repository) ListExpenses(ctx context.Context, projectID int64) ([]core.Expense, error) {
	items, err := r.queries.ListExpenses(ctx, projectID)
	return items, core.Storage("list expenses", err)
}

func (r *Repository) CreateContract(ctx context.Context, c core.Contract) (core.Contract, error) {
	if err := r.requireExists(ctx, r.queries, "clients", "client", c.ClientID); err != nil {
		return c, err
	}
	if err := r.requireOptional(ctx, r.queries, "projects", "project", c.ProjectID); err != nil {
		return c, err
	}
	id, err := r.queries.CreateContract(ctx, c)
	if err != nil {
		return c, core.Storage("create contract", err)
	}
	c.ID = id
	return c, nil
}

func (r *Repository) GetContract(ctx context.Context, id int64) (core.Contract, error) {
	c, err := r.queries.GetContract(ctx, id)
	if err != nil {
		return c, rowErr("get contract", "contract", id, err)
	}
	return c, nil
}

func (r *Repository) ListContracts(ctx context.Context, clientID int64) ([]core.Contract, error) {
	items, err := r.queries.ListContracts(ctx, clientID)
	return items, core.Storage("list contracts", err)
}

func (r *Repository) UpdateContract(ctx context.Context, c core.Contract) (core.Contract, error) {
	if err := r.requireOptional(ctx, r.queries, "projects", "project", c.ProjectID); err != nil {
		return c, err
	}
	n, err := r.queries.UpdateContract(ctx, c)
	return c, affected("update contract", "contract", c.ID, n, err)
}

func (r *Repository) DeleteContract(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteContract(ctx, id)
	return affected("delete contract", "contract", id, n, err)
}

func (r *Repository) CreateAutomationRule(ctx context.Context, rule core.AutomationRule) (core.AutomationRule, error) {
	id, err := r.queries.CreateAutomationRule(ctx, rule)
	if err != nil {
		return rule, core.Storage("create automation rule", err)
	}
	rule.ID = id
	return rule, nil
}

func (r *Repository) ListAutomationRules(ctx context.Context) ([]core.AutomationRule, error) {
	items, err := r.queries.ListAutomationRules(ctx)
	return items, core.Storage("list automation rules", err)
}

func (r *Repository) DeleteAutomationRule(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteAutomationRule(ctx, id)
	return affected("delete automation rule", "automation rule", id, n, err)
}

func (r *Repository) CreateNotification(ctx context.Context, n core.Notification) (core.Notification, error) {
	id, err := r.queries.CreateNotification(ctx, n)
	if err != nil {
		return n, core.Storage("create notification", err)
	}
	n.ID = id
	return n, nil
}

func (r *Repository) ListNotifications(ctx context.Context, unreadOnly bool, limit int) ([]core.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	items, err := r.queries.ListNotifications(ctx, unreadOnly, limit)
	return items, core.Storage("list notifications", err)
}

func (r *Repository) MarkNotificationRead(ctx context.Context, id int64) error {
	n, err := r.queries.MarkNotificationRead(ctx, id)
	return affected("mark notification read", "notification", id, n, err)
}
