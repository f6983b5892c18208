package services

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"crm/internal/cache"
	"crm/internal/core"
)

// AlertStore is the read side of the store the alert surface needs.
// A zero parent id lists every row.
type AlertStore interface {
	ListTasks(ctx context.Context, projectID int64) ([]core.Task, error)
	ListInvoices(ctx context.Context, clientID int64) ([]core.Invoice, error)
	ListProjects(ctx context.Context, clientID int64) ([]core.Project, error)
	ListContracts(ctx context.Context, clientID int64) ([]core.Contract, error)
	ListClients(ctx context.Context) ([]core.Client, error)
	ListUnbilledEntries(ctx context.Context) ([]core.UnbilledEntry, error)
	LastActivityByProject(ctx context.Context) (map[int64]core.Date, error)
}

// AlertConfig tunes the alert windows and the active suggestion rules.
type AlertConfig struct {
	UpcomingDays int
	Thresholds   SuggestionThresholds
	Rules        []string
}

// DefaultAlertConfig returns the windows used when nothing is configured.
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		UpcomingDays: 7,
		Thresholds: SuggestionThresholds{
			InactivityDays:     14,
			ContractWindowDays: 30,
			StaleUnbilledDays:  30,
		},
		Rules: DefaultSuggestionRules,
	}
}

// AlertService computes urgent, upcoming and overdue counts plus suggestions.
type AlertService struct {
	store AlertStore
	cfg   AlertConfig
	rules []SuggestionRule
	cache AlertCache
}

// NewAlertService resolves the configured rules. ac may be nil.
func NewAlertService(store AlertStore, cfg AlertConfig, ac AlertCache) (*AlertService, error) {
	names := cfg.Rules
	if names == nil {
		names = DefaultSuggestionRules
	}
	rules := make([]SuggestionRule, 0, len(names))
	for _, name := range names {
		rule, err := GetSuggestionRule(name)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return &AlertService{store: store, cfg: cfg, rules: rules, cache: ac}, nil
}

// Compute loads a fresh snapshot and evaluates it for the day of now.
func (s *AlertService) Compute(ctx context.Context, now time.Time) (core.Alerts, error) {
	snap, err := s.load(ctx, core.DateOf(now))
	if err != nil {
		return core.Alerts{}, err
	}
	alerts := s.evaluate(snap)
	alerts.ComputedAt = now.UTC().Format(time.RFC3339)
	return alerts, nil
}

// Current returns the cached snapshot for today, computing it on a miss.
func (s *AlertService) Current(ctx context.Context, now time.Time) (core.Alerts, error) {
	today := core.DateOf(now)
	if s.cache != nil {
		if alerts, ok := s.cache.Get(ctx, today); ok {
			return alerts, nil
		}
	}
	alerts, err := s.Compute(ctx, now)
	if err != nil {
		return core.Alerts{}, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, today, alerts)
	}
	return alerts, nil
}

// Refresh recomputes and stores the snapshot regardless of the cache state.
func (s *AlertService) Refresh(ctx context.Context, now time.Time) (core.Alerts, error) {
	alerts, err := s.Compute(ctx, now)
	if err != nil {
		return core.Alerts{}, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, core.DateOf(now), alerts)
	}
	return alerts, nil
}

// CacheStats reports the counters of a process-local cache. It returns false
// when there is no cache or it lives in Redis.
func (s *AlertService) CacheStats() (cache.Stats, bool) {
	local, ok := s.cache.(*LocalAlertCache)
	if !ok {
		return cache.Stats{}, false
	}
	return local.Stats(), true
}

// Invalidate drops cached snapshots after a write.
func (s *AlertService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx)
	slog.DebugContext(ctx, "Alert cache invalidated")
}

func (s *AlertService) load(ctx context.Context, today core.Date) (AlertSnapshot, error) {
	snap := AlertSnapshot{Today: today}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		snap.Tasks, err = s.store.ListTasks(gctx, 0)
		return err
	})
	g.Go(func() (err error) {
		snap.Invoices, err = s.store.ListInvoices(gctx, 0)
		return err
	})
	g.Go(func() (err error) {
		snap.Projects, err = s.store.ListProjects(gctx, 0)
		return err
	})
	g.Go(func() (err error) {
		snap.Contracts, err = s.store.ListContracts(gctx, 0)
		return err
	})
	g.Go(func() (err error) {
		snap.Clients, err = s.store.ListClients(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Unbilled, err = s.store.ListUnbilledEntries(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.LastActivity, err = s.store.LastActivityByProject(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return AlertSnapshot{}, err
	}
	return snap, nil
}

func (s *AlertService) evaluate(snap AlertSnapshot) core.Alerts {
	today := snap.Today
	horizon := today.AddDays(s.cfg.UpcomingDays)
	alerts := core.Alerts{Suggestions: []string{}}

	for _, t := range snap.Tasks {
		if t.DueDate == nil || t.Completed || t.Status == core.TaskCompleted {
			continue
		}
		switch {
		case t.DueDate.Before(today):
			alerts.Urgent++
		case t.DueDate.Between(today, horizon):
			alerts.Upcoming++
		}
	}

	for _, inv := range snap.Invoices {
		if !inv.Unpaid() || inv.DueDate.IsZero() {
			continue
		}
		switch {
		case inv.DueDate.Before(today):
			alerts.Urgent++
			alerts.Overdue++
		case inv.DueDate.Between(today, horizon):
			alerts.Upcoming++
		}
	}

	for _, rule := range s.rules {
		alerts.Suggestions = append(alerts.Suggestions, rule.Suggest(snap, s.cfg.Thresholds)...)
	}
	return alerts
}
