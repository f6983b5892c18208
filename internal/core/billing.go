package core

import "fmt"

// UnbilledEntry is a billable, unbilled time entry enriched for display.
type UnbilledEntry struct {
	TimeEntry
	ProjectName string `json:"project_name"`
	ClientID    int64  `json:"client_id"`
	ClientName  string `json:"client_name"`
	HourlyRate  Money  `json:"hourly_rate"`
	TotalCost   Money  `json:"total_cost"`
	// Unpriced is set when no hourly rate applies to the project; the
	// entry then carries a zero rate and cost.
	Unpriced bool `json:"unpriced,omitempty"`
}

// BillingStats aggregates the unbilled backlog and the current month's invoicing.
type BillingStats struct {
	TotalUnbilledHours   Hours `json:"total_unbilled_hours"`
	TotalUnbilledAmount  Money `json:"total_unbilled_amount"`
	TotalBilledThisMonth Money `json:"total_billed_this_month"`
	AverageHourlyRate    Money `json:"average_hourly_rate"`
	// UnpricedEntries counts entries left out of the totals for lack of a rate.
	UnpricedEntries int `json:"unpriced_entries"`
}

// GroupFailure records a project group that could not be invoiced during a run.
type GroupFailure struct {
	ProjectID int64   `json:"project_id"`
	EntryIDs  []int64 `json:"time_entry_ids"`
	Err       error   `json:"-"`
	Message   string  `json:"error"`
	Kind      string  `json:"type"`
}

// RunResult summarizes one automatic billing run.
type RunResult struct {
	InvoicesGenerated int            `json:"invoices_generated"`
	TotalAmount       Money          `json:"total_amount"`
	Invoices          []Invoice      `json:"invoices"`
	Failures          []GroupFailure `json:"failures"`
}

// Alerts is a point-in-time snapshot of the alert surface.
type Alerts struct {
	Urgent      int      `json:"urgent"`
	Upcoming    int      `json:"upcoming"`
	Overdue     int      `json:"overdue"`
	Suggestions []string `json:"suggestions"`
	ComputedAt  string   `json:"computed_at"`
}

// InvoiceNumberPrefix precedes every generated invoice number.
const InvoiceNumberPrefix = "INV"

// InvoicePeriod returns the sequence scope (YYYYMM) for an issue date.
func InvoicePeriod(d Date) string {
	return d.Format("200601")
}

// FormatInvoiceNumber renders INV-YYYYMM-NNNN.
func FormatInvoiceNumber(period string, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", InvoiceNumberPrefix, period, seq)
}
