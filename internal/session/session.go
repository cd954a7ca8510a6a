// Package session keeps the per-visitor comparison state: the raw diff of the
// last executed run and the filters applied to it. A State is a value; every
// transition returns a new State that replaces the previous one in a Store.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"comparativo/internal/core"
)

// ErrNotFound is returned by stores for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// State is the comparison state of one session.
type State struct {
	ID        string           `json:"id"`
	Run       *core.Run        `json:"run,omitempty"`
	Raw       []core.DiffRow   `json:"raw,omitempty"`
	Filters   core.FilterState `json:"filters"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// View is what the report shows for a State: the filtered rows and the
// aggregates derived from them.
type View struct {
	Run      *core.Run         `json:"run,omitempty"`
	Filters  core.FilterState  `json:"filters"`
	Rows     []core.DiffRow    `json:"rows"`
	Summary  []core.SummaryRow `json:"summary"`
	Totals   core.Totals       `json:"totals"`
	RawCount int               `json:"raw_rows"`
}

// Store persists session states.
type Store interface {
	Get(ctx context.Context, id string) (State, error)
	Save(ctx context.Context, st State) error
	Delete(ctx context.Context, id string) error
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// New returns an empty state for id.
func New(id string) State {
	return State{ID: id, Filters: core.DefaultFilterState(nil), UpdatedAt: time.Now().UTC()}
}

// HasRun reports whether a comparison has been executed in this session.
func (s State) HasRun() bool {
	return s.Run != nil
}

// WithRun replaces the comparison result and resets the filters to
// everything selected.
func (s State) WithRun(run core.Run, raw []core.DiffRow) State {
	next := State{
		ID:        s.ID,
		Run:       &run,
		Raw:       raw,
		Filters:   core.DefaultFilterState(raw),
		UpdatedAt: time.Now().UTC(),
	}
	return next
}

// ToggleType flips one portfolio type in the type filter.
func (s State) ToggleType(portfolioType string) (State, error) {
	if !s.HasRun() {
		return s, core.ErrNoComparison
	}
	filters, err := s.Filters.ToggleType(portfolioType)
	if err != nil {
		return s, err
	}
	return s.withFilters(filters), nil
}

// ToggleRange flips one period range in the range filter.
func (s State) ToggleRange(label string) (State, error) {
	if !s.HasRun() {
		return s, core.ErrNoComparison
	}
	filters, err := s.Filters.ToggleRange(label)
	if err != nil {
		return s, err
	}
	return s.withFilters(filters), nil
}

func (s State) withFilters(f core.FilterState) State {
	s.Filters = f
	s.UpdatedAt = time.Now().UTC()
	return s
}

// View derives the filtered rows and aggregates. It is recomputed on every
// call and never cached on the State.
func (s State) View() View {
	rows := s.Filters.Apply(s.Raw)
	return View{
		Run:      s.Run,
		Filters:  s.Filters,
		Rows:     rows,
		Summary:  core.Aggregate(rows),
		Totals:   core.Summarize(rows),
		RawCount: len(s.Raw),
	}
}
