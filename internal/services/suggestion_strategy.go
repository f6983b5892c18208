// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for alert suggestions.
// Each rule inspects the same snapshot of the store and contributes
// human-readable suggestions to the alert surface.

package services

import (
	"fmt"
	"sort"

	"crm/internal/core"
)

// Suggestion rule names, usable in configuration.
const (
	RuleInactiveProject  = "inactive_project"
	RuleOverdueProject   = "overdue_project"
	RuleExpiringContract = "expiring_contract"
	RuleStaleUnbilled    = "stale_unbilled"
)

// DefaultSuggestionRules is the evaluation order used when none is configured.
var DefaultSuggestionRules = []string{
	RuleInactiveProject,
	RuleOverdueProject,
	RuleExpiringContract,
	RuleStaleUnbilled,
}

// AlertSnapshot is the data every alert computation reads.
type AlertSnapshot struct {
	Today        core.Date
	Tasks        []core.Task
	Invoices     []core.Invoice
	Projects     []core.Project
	Contracts    []core.Contract
	Clients      []core.Client
	Unbilled     []core.UnbilledEntry
	LastActivity map[int64]core.Date
}

// SuggestionThresholds holds the windows the rules compare against, in days.
type SuggestionThresholds struct {
	InactivityDays     int
	ContractWindowDays int
	StaleUnbilledDays  int
}

// SuggestionRule is the strategy interface for producing suggestions.
type SuggestionRule interface {
	Suggest(s AlertSnapshot, th SuggestionThresholds) []string
}

// InactiveProjectRule flags in-progress projects with no recent time logged.
type InactiveProjectRule struct{}

func (InactiveProjectRule) Suggest(s AlertSnapshot, th SuggestionThresholds) []string {
	cutoff := s.Today.AddDays(-th.InactivityDays)
	var out []string
	for _, p := range s.Projects {
		if p.Status != core.ProjectInProgress {
			continue
		}
		last, ok := s.LastActivity[p.ID]
		switch {
		case !ok:
			out = append(out, fmt.Sprintf("Project %q is in progress but has no time logged", p.Name))
		case last.Before(cutoff):
			out = append(out, fmt.Sprintf("Project %q has had no time logged for %d days", p.Name, last.DaysUntil(s.Today)))
		}
	}
	return out
}

// OverdueProjectRule flags projects past their deadline that are not completed.
type OverdueProjectRule struct{}

func (OverdueProjectRule) Suggest(s AlertSnapshot, _ SuggestionThresholds) []string {
	var out []string
	for _, p := range s.Projects {
		if p.Deadline == nil || p.Status == core.ProjectCompleted {
			continue
		}
		if p.Deadline.Before(s.Today) {
			out = append(out, fmt.Sprintf("Project %q is past its deadline of %s", p.Name, p.Deadline))
		}
	}
	return out
}

// ExpiringContractRule flags active contracts ending inside the window.
type ExpiringContractRule struct{}

func (ExpiringContractRule) Suggest(s AlertSnapshot, th SuggestionThresholds) []string {
	until := s.Today.AddDays(th.ContractWindowDays)
	var out []string
	for _, c := range s.Contracts {
		if c.Status != core.ContractActive || c.EndDate == nil {
			continue
		}
		if c.EndDate.Between(s.Today, until) {
			out = append(out, fmt.Sprintf("Contract %q ends on %s, consider a renewal", c.Title, c.EndDate))
		}
	}
	return out
}

// StaleUnbilledRule flags clients whose oldest unbilled hours exceed the threshold.
type StaleUnbilledRule struct{}

func (StaleUnbilledRule) Suggest(s AlertSnapshot, th SuggestionThresholds) []string {
	cutoff := s.Today.AddDays(-th.StaleUnbilledDays)

	type backlog struct {
		name   string
		oldest core.Date
		hours  core.Hours
	}
	byClient := make(map[int64]*backlog)
	for _, u := range s.Unbilled {
		b, ok := byClient[u.ClientID]
		if !ok {
			b = &backlog{name: u.ClientName, oldest: u.Date}
			byClient[u.ClientID] = b
		}
		if u.Date.Before(b.oldest) {
			b.oldest = u.Date
		}
		b.hours = b.hours.Add(u.Hours)
	}

	clientIDs := make([]int64, 0, len(byClient))
	for id, b := range byClient {
		if b.oldest.Before(cutoff) {
			clientIDs = append(clientIDs, id)
		}
	}
	sort.Slice(clientIDs, func(i, j int) bool { return clientIDs[i] < clientIDs[j] })

	out := make([]string, 0, len(clientIDs))
	for _, id := range clientIDs {
		b := byClient[id]
		out = append(out, fmt.Sprintf("Client %q has %sh unbilled since %s", b.name, b.hours, b.oldest))
	}
	return out
}

// suggestionRules maps rule names to their strategies.
var suggestionRules = map[string]SuggestionRule{
	RuleInactiveProject:  InactiveProjectRule{},
	RuleOverdueProject:   OverdueProjectRule{},
	RuleExpiringContract: ExpiringContractRule{},
	RuleStaleUnbilled:    StaleUnbilledRule{},
}

// GetSuggestionRule returns the rule registered under name.
func GetSuggestionRule(name string) (SuggestionRule, error) {
	rule, ok := suggestionRules[name]
	if !ok {
		return nil, fmt.Errorf("unknown suggestion rule: %s", name)
	}
	return rule, nil
}

