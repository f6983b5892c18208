package core

import (
	"strings"
	"time"
)

// Money represents a monetary amount in cents to avoid floating point errors.
type Money struct {
	Cents int64 `json:"cents"`
}

// Hours is a duration of work in hundredths of an hour (150 = 1.5h).
type Hours struct {
	Hundredths int64 `json:"hundredths"`
}

// Date represents a calendar date without time component.
type Date struct {
	time.Time
}

type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "planning"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectOnHold     ProjectStatus = "on_hold"
	ProjectCompleted  ProjectStatus = "completed"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanning, ProjectInProgress, ProjectOnHold, ProjectCompleted:
		return true
	}
	return false
}

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type InvoiceStatus string

const (
	InvoiceDraft   InvoiceStatus = "draft"
	InvoiceSent    InvoiceStatus = "sent"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoicePaid, InvoiceOverdue:
		return true
	}
	return false
}

// invoiceTransitions lists the statuses reachable from each status.
var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceDraft:   {InvoiceSent},
	InvoiceSent:    {InvoicePaid, InvoiceOverdue},
	InvoiceOverdue: {InvoicePaid},
}

// CanTransitionTo reports whether an invoice in status s may move to next.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	for _, allowed := range invoiceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type ContractStatus string

const (
	ContractDraft     ContractStatus = "draft"
	ContractActive    ContractStatus = "active"
	ContractCompleted ContractStatus = "completed"
	ContractExpired   ContractStatus = "expired"
)

func (s ContractStatus) Valid() bool {
	switch s {
	case ContractDraft, ContractActive, ContractCompleted, ContractExpired:
		return true
	}
	return false
}

type Client struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Email   string   `json:"email,omitempty"`
	Phone   string   `json:"phone,omitempty"`
	Company string   `json:"company,omitempty"`
	Address string   `json:"address,omitempty"`
	Notes   string   `json:"notes,omitempty"`
	Tags    []string `json:"tags"`
}

func (c *Client) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return Invalid("name", ErrEmptyName)
	}
	c.Tags = NormalizeTags(c.Tags)
	return nil
}

// NormalizeTags trims, drops empties and removes duplicates, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

type Contact struct {
	ID       int64  `json:"id"`
	ClientID int64  `json:"client_id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role,omitempty"`
}

func (c *Contact) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return Invalid("name", ErrEmptyName)
	}
	if c.ClientID <= 0 {
		return Invalid("client_id", ErrInvalidReference)
	}
	return nil
}

type Project struct {
	ID          int64         `json:"id"`
	ClientID    int64         `json:"client_id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Status      ProjectStatus `json:"status"`
	StartDate   *Date         `json:"start_date"`
	Deadline    *Date         `json:"deadline"`
	Progress    int           `json:"progress"`
	Budget      *Money        `json:"budget,omitempty"`
}

func (p *Project) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Invalid("name", ErrEmptyName)
	}
	if p.ClientID <= 0 {
		return Invalid("client_id", ErrInvalidReference)
	}
	if p.Status == "" {
		p.Status = ProjectPlanning
	}
	if !p.Status.Valid() {
		return Invalid("status", ErrInvalidStatus)
	}
	if p.Progress < 0 || p.Progress > 100 {
		return Invalid("progress", ErrInvalidProgress)
	}
	if p.Budget != nil && p.Budget.Cents < 0 {
		return Invalid("budget", ErrInvalidAmount)
	}
	return nil
}

type Task struct {
	ID          int64      `json:"id"`
	ProjectID   int64      `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *Date      `json:"due_date"`
	Completed   bool       `json:"completed"`
}

func (t *Task) Validate() error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return Invalid("title", ErrEmptyTitle)
	}
	if t.ProjectID <= 0 {
		return Invalid("project_id", ErrInvalidReference)
	}
	if t.Status == "" {
		t.Status = TaskPending
	}
	if !t.Status.Valid() {
		return Invalid("status", ErrInvalidStatus)
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if !t.Priority.Valid() {
		return Invalid("priority", ErrInvalidPriority)
	}
	if t.Status == TaskCompleted {
		t.Completed = true
	}
	return nil
}

// TimeEntry records hours worked on a project. InvoiceID is nil while unbilled.
type TimeEntry struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"project_id"`
	TaskID      *int64 `json:"task_id,omitempty"`
	Description string `json:"description,omitempty"`
	Hours       Hours  `json:"hours"`
	Billable    bool   `json:"billable"`
	Date        Date   `json:"date"`
	InvoiceID   *int64 `json:"invoice_id,omitempty"`
}

func (e *TimeEntry) Validate() error {
	if e.ProjectID <= 0 {
		return Invalid("project_id", ErrInvalidReference)
	}
	if e.Hours.Hundredths <= 0 {
		return Invalid("hours", ErrInvalidHours)
	}
	if err := e.Date.Validate(); err != nil {
		return Invalid("date", err)
	}
	return nil
}

// Billed reports whether the entry is already attached to an invoice.
func (e TimeEntry) Billed() bool { return e.InvoiceID != nil }

type Expense struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"project_id"`
	Description string `json:"description"`
	Amount      Money  `json:"amount"`
	Date        Date   `json:"date"`
}

func (e *Expense) Validate() error {
	e.Description = strings.TrimSpace(e.Description)
	if e.ProjectID <= 0 {
		return Invalid("project_id", ErrInvalidReference)
	}
	if e.Description == "" {
		return Invalid("description", ErrEmptyTitle)
	}
	if err := e.Amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	if err := e.Date.Validate(); err != nil {
		return Invalid("date", err)
	}
	return nil
}

type Invoice struct {
	ID          int64         `json:"id"`
	ClientID    int64         `json:"client_id"`
	ProjectID   *int64        `json:"project_id,omitempty"`
	Number      string        `json:"invoice_number"`
	Amount      Money         `json:"amount"`
	TaxAmount   Money         `json:"tax_amount"`
	TotalAmount Money         `json:"total_amount"`
	Status      InvoiceStatus `json:"status"`
	IssueDate   Date          `json:"issue_date"`
	DueDate     Date          `json:"due_date"`
	PaidDate    *Date         `json:"paid_date"`
	Notes       string        `json:"notes,omitempty"`
}

// Validate checks the invoice at creation time. A zero amount is allowed so
// that groups whose cost rounds to zero are still invoiced.
func (i *Invoice) Validate() error {
	if i.ClientID <= 0 {
		return Invalid("client_id", ErrInvalidReference)
	}
	if i.Amount.Cents < 0 {
		return Invalid("amount", ErrInvalidAmount)
	}
	if i.TaxAmount.Cents < 0 {
		return Invalid("tax_amount", ErrInvalidAmount)
	}
	if i.TotalAmount != i.Amount.Add(i.TaxAmount) {
		return Invalid("total_amount", ErrTotalMismatch)
	}
	if i.Status == "" {
		i.Status = InvoiceDraft
	}
	if !i.Status.Valid() {
		return Invalid("status", ErrInvalidStatus)
	}
	if err := i.IssueDate.Validate(); err != nil {
		return Invalid("issue_date", err)
	}
	if err := i.DueDate.Validate(); err != nil {
		return Invalid("due_date", err)
	}
	if i.DueDate.Before(i.IssueDate) {
		return Invalid("due_date", ErrInvalidReference)
	}
	return nil
}

// Unpaid reports whether the invoice still counts as receivable.
func (i Invoice) Unpaid() bool { return i.Status != InvoicePaid }

type Contract struct {
	ID        int64          `json:"id"`
	ClientID  int64          `json:"client_id"`
	ProjectID *int64         `json:"project_id,omitempty"`
	Title     string         `json:"title"`
	Status    ContractStatus `json:"status"`
	Value     *Money         `json:"value,omitempty"`
	StartDate *Date          `json:"start_date"`
	EndDate   *Date          `json:"end_date"`
}

func (c *Contract) Validate() error {
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return Invalid("title", ErrEmptyTitle)
	}
	if c.ClientID <= 0 {
		return Invalid("client_id", ErrInvalidReference)
	}
	if c.Status == "" {
		c.Status = ContractDraft
	}
	if !c.Status.Valid() {
		return Invalid("status", ErrInvalidStatus)
	}
	if c.Value != nil && c.Value.Cents < 0 {
		return Invalid("value", ErrInvalidAmount)
	}
	if c.StartDate != nil && c.EndDate != nil && c.EndDate.Before(*c.StartDate) {
		return Invalid("end_date", ErrInvalidReference)
	}
	return nil
}

// AutomationRule is stored and listed only; no engine evaluates it.
type AutomationRule struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	TriggerType      string `json:"trigger_type"`
	TriggerCondition string `json:"trigger_condition"`
	ActionType       string `json:"action_type"`
	ActionConfig     string `json:"action_config"`
	Active           bool   `json:"active"`
}

func (r *AutomationRule) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return Invalid("name", ErrEmptyName)
	}
	if strings.TrimSpace(r.TriggerType) == "" {
		return Invalid("trigger_type", ErrEmptyName)
	}
	if strings.TrimSpace(r.ActionType) == "" {
		return Invalid("action_type", ErrEmptyName)
	}
	return nil
}

type Notification struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	UserRef   *string   `json:"user_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (n *Notification) Validate() error {
	n.Title = strings.TrimSpace(n.Title)
	if n.Title == "" {
		return Invalid("title", ErrEmptyTitle)
	}
	if n.Type == "" {
		n.Type = "info"
	}
	return nil
}
