package services

import (
	"errors"
	"fmt"

	"crm/internal/core"
)

var ErrNoRate = errors.New("no hourly rate configured")

// RateTable resolves the hourly rate of a project. A project without its own
// rate falls back to Default.
type RateTable struct {
	Default    core.Money
	PerProject map[int64]core.Money
}

// RateFor returns the hourly rate that applies to projectID.
func (t RateTable) RateFor(projectID int64) (core.Money, error) {
	if r, ok := t.PerProject[projectID]; ok {
		return r, nil
	}
	if t.Default.Cents > 0 {
		return t.Default, nil
	}
	return core.Money{}, fmt.Errorf("%w for project %d", ErrNoRate, projectID)
}
