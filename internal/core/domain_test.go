package core

import (
	"errors"
	"testing"
)

func TestInvoiceValidateTotals(t *testing.T) {
	base := func() Invoice {
		return Invoice{
			ClientID:    1,
			Amount:      Money{Cents: 10000},
			TaxAmount:   Money{Cents: 2200},
			TotalAmount: Money{Cents: 12200},
			IssueDate:   NewDate(2025, 5, 1),
			DueDate:     NewDate(2025, 5, 31),
		}
	}

	inv := base()
	if err := inv.Validate(); err != nil {
		t.Fatalf("valid invoice rejected: %v", err)
	}
	if inv.Status != InvoiceDraft {
		t.Fatalf("status should default to draft, got %s", inv.Status)
	}

	inv = base()
	inv.TotalAmount = Money{Cents: 10000}
	err := inv.Validate()
	if !errors.Is(err, ErrTotalMismatch) {
		t.Fatalf("expected ErrTotalMismatch, got %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "total_amount" {
		t.Fatalf("expected ValidationError on total_amount, got %#v", err)
	}

	inv = base()
	inv.Amount, inv.TaxAmount, inv.TotalAmount = Money{}, Money{}, Money{}
	if err := inv.Validate(); err != nil {
		t.Fatalf("zero-amount invoice must be allowed: %v", err)
	}

	inv = base()
	inv.DueDate = NewDate(2025, 4, 1)
	if err := inv.Validate(); err == nil {
		t.Fatal("due date before issue date must fail")
	}
}

func TestInvoiceStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to InvoiceStatus
		ok       bool
	}{
		{InvoiceDraft, InvoiceSent, true},
		{InvoiceDraft, InvoicePaid, false},
		{InvoiceSent, InvoicePaid, true},
		{InvoiceSent, InvoiceOverdue, true},
		{InvoiceOverdue, InvoicePaid, true},
		{InvoicePaid, InvoiceDraft, false},
		{InvoicePaid, InvoiceSent, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestProjectValidate(t *testing.T) {
	cases := []struct {
		name string
		p    Project
		ok   bool
	}{
		{"defaults", Project{ClientID: 1, Name: " Site "}, true},
		{"no name", Project{ClientID: 1}, false},
		{"no client", Project{Name: "x"}, false},
		{"bad status", Project{ClientID: 1, Name: "x", Status: "done"}, false},
		{"progress high", Project{ClientID: 1, Name: "x", Progress: 101}, false},
		{"progress low", Project{ClientID: 1, Name: "x", Progress: -1}, false},
		{"progress edge", Project{ClientID: 1, Name: "x", Progress: 100}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			if (err == nil) != tc.ok {
				t.Fatalf("got err=%v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestTaskValidateDefaults(t *testing.T) {
	task := Task{ProjectID: 3, Title: "Write docs", Status: TaskCompleted}
	if err := task.Validate(); err != nil {
		t.Fatal(err)
	}
	if task.Priority != PriorityMedium {
		t.Fatalf("priority default: %s", task.Priority)
	}
	if !task.Completed {
		t.Fatal("completed status must set the flag")
	}
	bad := Task{ProjectID: 3, Title: "x", Priority: "urgent"}
	if !errors.Is(bad.Validate(), ErrInvalidPriority) {
		t.Fatal("expected ErrInvalidPriority")
	}
}

func TestTimeEntryValidate(t *testing.T) {
	e := TimeEntry{ProjectID: 1, Hours: Hours{Hundredths: 150}, Date: NewDate(2025, 1, 2)}
	if err := e.Validate(); err != nil {
		t.Fatal(err)
	}
	e.Hours = Hours{}
	if !errors.Is(e.Validate(), ErrInvalidHours) {
		t.Fatal("zero hours must be rejected")
	}
}

func TestClientValidateTags(t *testing.T) {
	c := Client{Name: "ACME", Tags: []string{" vip", "", "vip", "retail"}}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	if len(c.Tags) != 2 || c.Tags[0] != "vip" || c.Tags[1] != "retail" {
		t.Fatalf("unexpected tags %v", c.Tags)
	}
}

func TestContractValidateRange(t *testing.T) {
	start := NewDate(2025, 2, 1)
	end := NewDate(2025, 1, 1)
	c := Contract{ClientID: 1, Title: "Retainer", StartDate: &start, EndDate: &end}
	if err := c.Validate(); err == nil {
		t.Fatal("end before start must fail")
	}
}
