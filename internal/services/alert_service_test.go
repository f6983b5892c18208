package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"crm/internal/core"
)

type stubAlertStore struct {
	tasks     []core.Task
	invoices  []core.Invoice
	projects  []core.Project
	contracts []core.Contract
	clients   []core.Client
	unbilled  []core.UnbilledEntry
	activity  map[int64]core.Date
	err       error
	loads     atomic.Int32
}

func (s *stubAlertStore) ListTasks(context.Context, int64) ([]core.Task, error) {
	s.loads.Add(1)
	return s.tasks, s.err
}

func (s *stubAlertStore) ListInvoices(context.Context, int64) ([]core.Invoice, error) {
	return s.invoices, nil
}

func (s *stubAlertStore) ListProjects(context.Context, int64) ([]core.Project, error) {
	return s.projects, nil
}

func (s *stubAlertStore) ListContracts(context.Context, int64) ([]core.Contract, error) {
	return s.contracts, nil
}

func (s *stubAlertStore) ListClients(context.Context) ([]core.Client, error) {
	return s.clients, nil
}

func (s *stubAlertStore) ListUnbilledEntries(context.Context) ([]core.UnbilledEntry, error) {
	return s.unbilled, nil
}

func (s *stubAlertStore) LastActivityByProject(context.Context) (map[int64]core.Date, error) {
	return s.activity, nil
}

func day(d int) *core.Date {
	date := core.NewDate(2025, 3, d)
	return &date
}

// alertFixture is evaluated on 2025-03-20.
func alertFixture() *stubAlertStore {
	return &stubAlertStore{
		tasks: []core.Task{
			{ID: 1, Title: "late", DueDate: day(10)},
			{ID: 2, Title: "late but done", DueDate: day(10), Status: core.TaskCompleted, Completed: true},
			{ID: 3, Title: "today", DueDate: day(20)},
			{ID: 4, Title: "in a week", DueDate: day(27)},
			{ID: 5, Title: "later", DueDate: day(28)},
			{ID: 6, Title: "undated"},
		},
		invoices: []core.Invoice{
			{ID: 1, Status: core.InvoiceSent, DueDate: *day(1)},
			{ID: 2, Status: core.InvoicePaid, DueDate: *day(1)},
			{ID: 3, Status: core.InvoiceDraft, DueDate: *day(25)},
			{ID: 4, Status: core.InvoiceOverdue, DueDate: *day(19)},
		},
		projects: []core.Project{
			{ID: 1, Name: "Quiet", Status: core.ProjectInProgress},
			{ID: 2, Name: "Busy", Status: core.ProjectInProgress},
			{ID: 3, Name: "Stalled", Status: core.ProjectInProgress},
			{ID: 4, Name: "Late", Status: core.ProjectOnHold, Deadline: day(15)},
			{ID: 5, Name: "Shipped", Status: core.ProjectCompleted, Deadline: day(1)},
		},
		contracts: []core.Contract{
			{ID: 1, Title: "Support", Status: core.ContractActive, EndDate: day(31)},
			{ID: 2, Title: "Old", Status: core.ContractExpired, EndDate: day(21)},
		},
		unbilled: []core.UnbilledEntry{
			{TimeEntry: core.TimeEntry{ID: 1, Date: core.NewDate(2025, 1, 5), Hours: core.Hours{Hundredths: 150}}, ClientID: 9, ClientName: "ACME"},
			{TimeEntry: core.TimeEntry{ID: 2, Date: *day(18), Hours: core.Hours{Hundredths: 100}}, ClientID: 9, ClientName: "ACME"},
			{TimeEntry: core.TimeEntry{ID: 3, Date: *day(18), Hours: core.Hours{Hundredths: 100}}, ClientID: 4, ClientName: "Globex"},
		},
		activity: map[int64]core.Date{
			2: *day(19),
			3: *day(1),
		},
	}
}

func TestAlertService_Compute(t *testing.T) {
	svc, err := NewAlertService(alertFixture(), DefaultAlertConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	alerts, err := svc.Compute(context.Background(), testNow)
	if err != nil {
		t.Fatal(err)
	}

	// Urgent: task 1 plus invoices 1 and 4. Upcoming: tasks 3 and 4, invoice 3.
	if alerts.Urgent != 3 || alerts.Upcoming != 3 || alerts.Overdue != 2 {
		t.Fatalf("counts = urgent %d upcoming %d overdue %d", alerts.Urgent, alerts.Upcoming, alerts.Overdue)
	}
	if alerts.ComputedAt != "2025-03-20T10:00:00Z" {
		t.Errorf("computed at = %s", alerts.ComputedAt)
	}

	want := []string{
		`Project "Quiet" is in progress but has no time logged`,
		`Project "Stalled" has had no time logged for 19 days`,
		`Project "Late" is past its deadline of 2025-03-15`,
		`Contract "Support" ends on 2025-03-31, consider a renewal`,
		`Client "ACME" has 2.50h unbilled since 2025-01-05`,
	}
	if len(alerts.Suggestions) != len(want) {
		t.Fatalf("suggestions = %q", alerts.Suggestions)
	}
	for i := range want {
		if alerts.Suggestions[i] != want[i] {
			t.Errorf("suggestion %d = %q, want %q", i, alerts.Suggestions[i], want[i])
		}
	}
}

func TestAlertService_EmptyStore(t *testing.T) {
	svc, err := NewAlertService(&stubAlertStore{}, DefaultAlertConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	alerts, err := svc.Compute(context.Background(), testNow)
	if err != nil {
		t.Fatal(err)
	}
	if alerts.Urgent != 0 || alerts.Upcoming != 0 || alerts.Overdue != 0 {
		t.Fatalf("expected zero counts, got %+v", alerts)
	}
	if alerts.Suggestions == nil || len(alerts.Suggestions) != 0 {
		t.Fatalf("expected empty suggestions, got %#v", alerts.Suggestions)
	}
}

func TestAlertService_RuleSelection(t *testing.T) {
	cfg := DefaultAlertConfig()
	cfg.Rules = []string{RuleExpiringContract}
	svc, err := NewAlertService(alertFixture(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	alerts, err := svc.Compute(context.Background(), testNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts.Suggestions) != 1 || !strings.HasPrefix(alerts.Suggestions[0], `Contract "Support"`) {
		t.Fatalf("suggestions = %q", alerts.Suggestions)
	}

	cfg.Rules = []string{"no_such_rule"}
	if _, err := NewAlertService(alertFixture(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown rule")
	}
}

func TestAlertService_StoreError(t *testing.T) {
	store := alertFixture()
	store.err = core.Storage("list tasks", errors.New("database is locked"))
	svc, _ := NewAlertService(store, DefaultAlertConfig(), nil)

	_, err := svc.Compute(context.Background(), testNow)
	var se *core.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

func TestAlertService_CurrentUsesCache(t *testing.T) {
	caches := map[string]func(t *testing.T) AlertCache{
		"local": func(*testing.T) AlertCache { return NewLocalAlertCache(time.Minute) },
		"redis": func(t *testing.T) AlertCache {
			_, client := newTestRedis(t)
			return NewRedisAlertCache(client, time.Minute)
		},
	}
	for name, newCache := range caches {
		t.Run(name, func(t *testing.T) {
			store := alertFixture()
			svc, err := NewAlertService(store, DefaultAlertConfig(), newCache(t))
			if err != nil {
				t.Fatal(err)
			}
			ctx := context.Background()

			first, err := svc.Current(ctx, testNow)
			if err != nil {
				t.Fatal(err)
			}
			second, err := svc.Current(ctx, testNow.Add(time.Hour))
			if err != nil {
				t.Fatal(err)
			}
			if store.loads.Load() != 1 {
				t.Fatalf("store loaded %d times, want 1", store.loads.Load())
			}
			if second.Urgent != first.Urgent || second.ComputedAt != first.ComputedAt {
				t.Errorf("cached snapshot differs: %+v vs %+v", second, first)
			}

			svc.Invalidate(ctx)
			if _, err := svc.Current(ctx, testNow); err != nil {
				t.Fatal(err)
			}
			if store.loads.Load() != 2 {
				t.Fatalf("store loaded %d times after invalidate, want 2", store.loads.Load())
			}

			// A new day is a different snapshot.
			if _, err := svc.Current(ctx, testNow.AddDate(0, 0, 1)); err != nil {
				t.Fatal(err)
			}
			if store.loads.Load() != 3 {
				t.Fatalf("store loaded %d times on next day, want 3", store.loads.Load())
			}
		})
	}
}

func TestAlertRefresher(t *testing.T) {
	store := alertFixture()
	svc, _ := NewAlertService(store, DefaultAlertConfig(), NewLocalAlertCache(time.Minute))
	r := NewAlertRefresher(svc, 10*time.Millisecond)
	r.now = func() time.Time { return testNow }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for store.loads.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("refresher did not tick")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	loads := store.loads.Load()
	cached, err := svc.Current(context.Background(), testNow)
	if err != nil || cached.Urgent != 3 {
		t.Fatalf("Current = %+v, %v", cached, err)
	}
	if store.loads.Load() != loads {
		t.Error("Current missed the cache warmed by the refresher")
	}

	// A failed refresh keeps the last good snapshot.
	store.err = errors.New("boom")
	r.RefreshOnce(context.Background())
	if again, err := svc.Current(context.Background(), testNow); err != nil || again.Urgent != 3 {
		t.Fatalf("snapshot lost after failure: %+v, %v", again, err)
	}
}
