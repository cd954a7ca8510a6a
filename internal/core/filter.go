package core

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Selection is a toggle set over a fixed universe. It is a value: Toggle
// returns a new Selection and never mutates the receiver.
type Selection struct {
	universe []string
	selected map[string]struct{}
}

// NewSelection returns a selection with every member of universe selected.
// Duplicates are dropped, first occurrence wins.
func NewSelection(universe []string) Selection {
	s := Selection{selected: make(map[string]struct{}, len(universe))}
	for _, m := range universe {
		if _, dup := s.selected[m]; dup {
			continue
		}
		s.universe = append(s.universe, m)
		s.selected[m] = struct{}{}
	}
	return s
}

func (s Selection) Universe() []string {
	return append([]string(nil), s.universe...)
}

func (s Selection) Contains(member string) bool {
	_, ok := s.selected[member]
	return ok
}

func (s Selection) Known(member string) bool {
	for _, m := range s.universe {
		if m == member {
			return true
		}
	}
	return false
}

// Selected returns the selected members in universe order.
func (s Selection) Selected() []string {
	out := make([]string, 0, len(s.selected))
	for _, m := range s.universe {
		if s.Contains(m) {
			out = append(out, m)
		}
	}
	return out
}

func (s Selection) Len() int { return len(s.selected) }

// All returns s with every member selected.
func (s Selection) All() Selection {
	return NewSelection(s.universe)
}

// None returns s with nothing selected.
func (s Selection) None() Selection {
	return Selection{universe: s.universe, selected: map[string]struct{}{}}
}

// Toggle flips membership of member. ok is false when member is outside the
// universe, in which case s is returned unchanged.
func (s Selection) Toggle(member string) (next Selection, ok bool) {
	if !s.Known(member) {
		return s, false
	}
	next = Selection{universe: s.universe, selected: make(map[string]struct{}, len(s.selected)+1)}
	for m := range s.selected {
		next.selected[m] = struct{}{}
	}
	if s.Contains(member) {
		delete(next.selected, member)
	} else {
		next.selected[member] = struct{}{}
	}
	return next, true
}

func (s Selection) Equal(o Selection) bool {
	if len(s.universe) != len(o.universe) || len(s.selected) != len(o.selected) {
		return false
	}
	for i := range s.universe {
		if s.universe[i] != o.universe[i] {
			return false
		}
	}
	for m := range s.selected {
		if !o.Contains(m) {
			return false
		}
	}
	return true
}

type selectionJSON struct {
	Universe []string `json:"universe"`
	Selected []string `json:"selected"`
}

func (s Selection) MarshalJSON() ([]byte, error) {
	return json.Marshal(selectionJSON{Universe: s.Universe(), Selected: s.Selected()})
}

func (s *Selection) UnmarshalJSON(data []byte) error {
	var raw selectionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	next := NewSelection(raw.Universe)
	next.selected = make(map[string]struct{}, len(raw.Selected))
	for _, m := range raw.Selected {
		if !next.Known(m) {
			return fmt.Errorf("selection member %q outside universe", m)
		}
		next.selected[m] = struct{}{}
	}
	*s = next
	return nil
}

// FilterState holds the two active filters of a comparison view.
type FilterState struct {
	Types  Selection `json:"types"`
	Ranges Selection `json:"ranges"`
}

// DefaultFilterState selects every portfolio type present in rows and every
// period range.
func DefaultFilterState(rows []DiffRow) FilterState {
	return FilterState{
		Types:  NewSelection(PortfolioTypes(rows)),
		Ranges: NewSelection(rangeLabels()),
	}
}

func (f FilterState) ToggleType(portfolioType string) (FilterState, error) {
	next, ok := f.Types.Toggle(portfolioType)
	if !ok {
		return f, fmt.Errorf("%w: %q", ErrUnknownType, portfolioType)
	}
	f.Types = next
	return f, nil
}

func (f FilterState) ToggleRange(label string) (FilterState, error) {
	next, ok := f.Ranges.Toggle(label)
	if !ok {
		return f, fmt.Errorf("%w: %q", ErrUnknownRange, label)
	}
	f.Ranges = next
	return f, nil
}

// Allows reports whether row passes both filters. Rows without a portfolio
// type never pass.
func (f FilterState) Allows(row DiffRow) bool {
	if row.PortfolioType == "" || !f.Types.Contains(row.PortfolioType) {
		return false
	}
	return f.Ranges.Contains(string(row.Range()))
}

// Apply returns the rows allowed by both filters, keeping input order.
func (f FilterState) Apply(rows []DiffRow) []DiffRow {
	out := make([]DiffRow, 0, len(rows))
	for _, r := range rows {
		if f.Allows(r) {
			out = append(out, r)
		}
	}
	return out
}

// PortfolioTypes returns the distinct non-empty portfolio types of rows,
// sorted.
func PortfolioTypes(rows []DiffRow) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		if r.PortfolioType != "" {
			seen[r.PortfolioType] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
