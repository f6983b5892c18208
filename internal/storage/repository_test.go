package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"

	"crm/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "crm.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

type fixture struct {
	client  core.Client
	project core.Project
	entries []core.TimeEntry
}

func seed(t *testing.T, repo *Repository, hours ...int64) fixture {
	t.Helper()
	ctx := context.Background()
	c, err := repo.CreateClient(ctx, core.Client{Name: "ACME", Tags: []string{"vip"}})
	if err != nil {
		t.Fatal(err)
	}
	p, err := repo.CreateProject(ctx, core.Project{ClientID: c.ID, Name: "Website", Status: core.ProjectInProgress})
	if err != nil {
		t.Fatal(err)
	}
	f := fixture{client: c, project: p}
	for i, h := range hours {
		e, err := repo.CreateTimeEntry(ctx, core.TimeEntry{
			ProjectID: p.ID,
			Hours:     core.Hours{Hundredths: h},
			Billable:  true,
			Date:      core.NewDate(2025, 3, i+1),
		})
		if err != nil {
			t.Fatal(err)
		}
		f.entries = append(f.entries, e)
	}
	return f
}

func ids(entries []core.TimeEntry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func draft(f fixture, amount int64) core.Invoice {
	pid := f.project.ID
	return core.Invoice{
		ClientID:    f.client.ID,
		ProjectID:   &pid,
		Amount:      core.Money{Cents: amount},
		TotalAmount: core.Money{Cents: amount},
		Status:      core.InvoiceDraft,
		IssueDate:   core.NewDate(2025, 3, 20),
		DueDate:     core.NewDate(2025, 4, 19),
	}
}

func TestClientRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	c, err := repo.CreateClient(ctx, core.Client{Name: "Globex", Email: "a@globex.test", Tags: []string{"b2b", "retail"}})
	if err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetClient(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Globex" || len(got.Tags) != 2 || got.Tags[1] != "retail" {
		t.Fatalf("unexpected client %+v", got)
	}

	got.Notes = "renewal in May"
	if _, err := repo.UpdateClient(ctx, got); err != nil {
		t.Fatal(err)
	}
	// Unchanged update must not be reported as missing.
	if _, err := repo.UpdateClient(ctx, got); err != nil {
		t.Fatalf("idempotent update: %v", err)
	}

	if err := repo.DeleteClient(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	_, err = repo.GetClient(ctx, c.ID)
	var nf *core.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestCreateProjectUnknownClient(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.CreateProject(context.Background(), core.Project{ClientID: 99, Name: "Ghost"})
	var nf *core.NotFoundError
	if !errors.As(err, &nf) || nf.Entity != "client" || nf.ID != 99 {
		t.Fatalf("expected client NotFoundError, got %v", err)
	}
}

func TestCreateInvoiceForEntriesClaimsAtomically(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f := seed(t, repo, 200, 300)

	inv, err := repo.CreateInvoiceForEntries(ctx, draft(f, 25000), ids(f.entries))
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if inv.Number != "INV-202503-0001" {
		t.Fatalf("unexpected number %s", inv.Number)
	}

	unbilled, err := repo.ListUnbilledEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(unbilled) != 0 {
		t.Fatalf("billed entries still listed: %+v", unbilled)
	}

	entries, err := repo.GetTimeEntriesByIDs(ctx, ids(f.entries))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.InvoiceID == nil || *e.InvoiceID != inv.ID {
			t.Fatalf("entry %d not attached to invoice %d", e.ID, inv.ID)
		}
	}
}

func TestCreateInvoiceForEntriesRollsBackOnLostRace(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f := seed(t, repo, 100, 100)

	if _, err := repo.CreateInvoiceForEntries(ctx, draft(f, 100), ids(f.entries[:1])); err != nil {
		t.Fatal(err)
	}

	// Second claim overlaps entry 0, which is already billed.
	_, err := repo.CreateInvoiceForEntries(ctx, draft(f, 200), ids(f.entries))
	var ce *core.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	invoices, err := repo.ListInvoices(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(invoices) != 1 {
		t.Fatalf("rolled back invoice was persisted: %d invoices", len(invoices))
	}
	unbilled, _ := repo.ListUnbilledEntries(ctx)
	if len(unbilled) != 1 || unbilled[0].ID != f.entries[1].ID {
		t.Fatalf("entry 1 should still be unbilled: %+v", unbilled)
	}

	// The rolled back transaction must not consume a number.
	next, err := repo.CreateInvoiceForEntries(ctx, draft(f, 100), ids(f.entries[1:]))
	if err != nil {
		t.Fatal(err)
	}
	if next.Number != "INV-202503-0002" {
		t.Fatalf("sequence leaked a number: %s", next.Number)
	}
}

func TestInvoiceSequenceIsPerMonth(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f := seed(t, repo)

	inv := draft(f, 1000)
	inv.ProjectID = nil
	a, err := repo.CreateInvoice(ctx, inv)
	if err != nil {
		t.Fatal(err)
	}
	inv.IssueDate = core.NewDate(2025, 4, 2)
	inv.DueDate = core.NewDate(2025, 5, 2)
	b, err := repo.CreateInvoice(ctx, inv)
	if err != nil {
		t.Fatal(err)
	}
	if a.Number != "INV-202503-0001" || b.Number != "INV-202504-0001" {
		t.Fatalf("unexpected numbers %s %s", a.Number, b.Number)
	}
}

func TestNextInvoiceSequence(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		period string
		want   int64
	}{
		{"202506", 1},
		{"202506", 2},
		{"202507", 1},
		{"202506", 3},
	}
	for _, tt := range tests {
		var got int64
		err := repo.inTx(ctx, func(q *Queries) error {
			var err error
			got, err = q.NextInvoiceSequence(ctx, repo.Dialect(), tt.period)
			return err
		})
		if err != nil {
			t.Fatalf("NextInvoiceSequence(%s): %v", tt.period, err)
		}
		if got != tt.want {
			t.Errorf("NextInvoiceSequence(%s) = %d, want %d", tt.period, got, tt.want)
		}
	}
}

func TestConcurrentFirstInvoicesOfMonth(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f := seed(t, repo)

	const n = 8
	numbers := make([]string, n)
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			inv := draft(f, 1000)
			inv.IssueDate = core.NewDate(2025, 6, 1)
			inv.DueDate = core.NewDate(2025, 7, 1)
			created, err := repo.CreateInvoice(ctx, inv)
			numbers[i] = created.Number
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent CreateInvoice: %v", err)
	}
	seen := make(map[string]bool, n)
	for _, num := range numbers {
		if seen[num] {
			t.Fatalf("number %s allocated twice: %v", num, numbers)
		}
		seen[num] = true
	}
	if !seen["INV-202506-0001"] || !seen["INV-202506-0008"] {
		t.Errorf("expected a gapless run 0001..0008, got %v", numbers)
	}
}

func TestListUnbilledEntriesJoinsAndOrders(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f := seed(t, repo, 150, 250)

	nonBillable := core.TimeEntry{ProjectID: f.project.ID, Hours: core.Hours{Hundredths: 100}, Date: core.NewDate(2025, 3, 1)}
	if _, err := repo.CreateTimeEntry(ctx, nonBillable); err != nil {
		t.Fatal(err)
	}

	unbilled, err := repo.ListUnbilledEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(unbilled) != 2 {
		t.Fatalf("expected 2 billable entries, got %d", len(unbilled))
	}
	if unbilled[0].ID != f.entries[0].ID || unbilled[1].ID != f.entries[1].ID {
		t.Fatal("entries not ordered by date")
	}
	if unbilled[0].ProjectName != "Website" || unbilled[0].ClientName != "ACME" || unbilled[0].ClientID != f.client.ID {
		t.Fatalf("join data missing: %+v", unbilled[0])
	}
}

func TestDeleteBilledTimeEntryRejected(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f := seed(t, repo, 100)
	if _, err := repo.CreateInvoiceForEntries(ctx, draft(f, 100), ids(f.entries)); err != nil {
		t.Fatal(err)
	}
	err := repo.DeleteTimeEntry(ctx, f.entries[0].ID)
	if !errors.Is(err, core.ErrAlreadyBilled) {
		t.Fatalf("expected ErrAlreadyBilled, got %v", err)
	}
}

func TestDeleteInvoicedProjectAndClientRejected(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f := seed(t, repo, 100, 200)
	inv, err := repo.CreateInvoiceForEntries(ctx, draft(f, 300), ids(f.entries[:1]))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		delete func() error
	}{
		{"project", func() error { return repo.DeleteProject(ctx, f.project.ID) }},
		{"client", func() error { return repo.DeleteClient(ctx, f.client.ID) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.delete()
			var ve *core.ValidationError
			if !errors.As(err, &ve) || !errors.Is(err, core.ErrHasInvoices) {
				t.Fatalf("expected ValidationError naming invoices, got %v", err)
			}
			if !strings.Contains(err.Error(), inv.Number) {
				t.Errorf("error %q does not name %s", err, inv.Number)
			}
		})
	}

	billed, err := repo.GetTimeEntry(ctx, f.entries[0].ID)
	if err != nil {
		t.Fatalf("billed entry lost: %v", err)
	}
	if billed.InvoiceID == nil || *billed.InvoiceID != inv.ID {
		t.Errorf("billed entry detached from invoice: %+v", billed)
	}
	stored, err := repo.GetInvoice(ctx, inv.ID)
	if err != nil || stored.ProjectID == nil || *stored.ProjectID != f.project.ID {
		t.Errorf("invoice lost its project: %+v (%v)", stored, err)
	}
}

func TestDeleteProjectWithOnlyUnbilledTime(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f := seed(t, repo, 100)

	if err := repo.DeleteProject(ctx, f.project.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	var nf *core.NotFoundError
	if _, err := repo.GetTimeEntry(ctx, f.entries[0].ID); !errors.As(err, &nf) {
		t.Errorf("unbilled entry should go with its project, got %v", err)
	}
	if err := repo.DeleteProject(ctx, f.project.ID); !errors.As(err, &nf) {
		t.Errorf("second delete: expected NotFoundError, got %v", err)
	}
	if err := repo.DeleteClient(ctx, f.client.ID); err != nil {
		t.Errorf("DeleteClient without invoices: %v", err)
	}
}

func TestTransitionInvoice(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f := seed(t, repo, 100)
	inv, err := repo.CreateInvoiceForEntries(ctx, draft(f, 100), ids(f.entries))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := repo.TransitionInvoice(ctx, inv.ID, core.InvoicePaid, core.NewDate(2025, 3, 25)); err == nil {
		t.Fatal("draft -> paid must be rejected")
	}
	if _, err := repo.TransitionInvoice(ctx, inv.ID, core.InvoiceSent, core.Date{}); err != nil {
		t.Fatal(err)
	}

	n, err := repo.MarkOverdueInvoices(ctx, core.NewDate(2025, 4, 20))
	if err != nil || n != 1 {
		t.Fatalf("expected one overdue invoice, got %d (%v)", n, err)
	}

	paid, err := repo.TransitionInvoice(ctx, inv.ID, core.InvoicePaid, core.NewDate(2025, 4, 21))
	if err != nil {
		t.Fatal(err)
	}
	stored, _ := repo.GetInvoice(ctx, inv.ID)
	if stored.Status != core.InvoicePaid || stored.PaidDate == nil || stored.PaidDate.String() != "2025-04-21" {
		t.Fatalf("paid state not stored: %+v", stored)
	}
	if paid.PaidDate == nil {
		t.Fatal("returned invoice lacks paid date")
	}
}

func TestSumInvoicesIssuedBetween(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f := seed(t, repo)

	total, err := repo.SumInvoicesIssuedBetween(ctx, core.NewDate(2025, 3, 1), core.NewDate(2025, 3, 31))
	if err != nil || total.Cents != 0 {
		t.Fatalf("empty sum: %v %v", total, err)
	}

	inv := draft(f, 1500)
	inv.ProjectID = nil
	if _, err := repo.CreateInvoice(ctx, inv); err != nil {
		t.Fatal(err)
	}
	total, err = repo.SumInvoicesIssuedBetween(ctx, core.NewDate(2025, 3, 1), core.NewDate(2025, 3, 31))
	if err != nil || total.Cents != 1500 {
		t.Fatalf("expected 1500, got %v (%v)", total, err)
	}
}

func TestNotifications(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n, err := repo.CreateNotification(ctx, core.Notification{Title: "Invoice INV-1", Type: "invoice"})
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkNotificationRead(ctx, n.ID); err != nil {
		t.Fatal(err)
	}
	unread, err := repo.ListNotifications(ctx, true, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(unread) != 0 {
		t.Fatalf("expected no unread notifications, got %d", len(unread))
	}
	all, _ := repo.ListNotifications(ctx, false, 10)
	if len(all) != 1 || !all[0].Read {
		t.Fatalf("unexpected notifications %+v", all)
	}
}
