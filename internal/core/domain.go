package core

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Status labels how an (entity, period) row changed between two snapshots.
// The labels are the ones analysts already know from the report.
type Status string

const (
	StatusNew       Status = "NUEVO"
	StatusRemoved   Status = "ELIMINADO"
	StatusIncreased Status = "AUMENTÓ"
	StatusDecreased Status = "DISMINUYÓ"
	StatusUnchanged Status = "SE MANTIENE"
)

// StatusOrder is the fixed display priority of statuses.
var StatusOrder = []Status{StatusNew, StatusRemoved, StatusIncreased, StatusDecreased, StatusUnchanged}

// Rank returns the position of s in StatusOrder, or len(StatusOrder) for
// labels outside the known set so they sort last.
func (s Status) Rank() int {
	for i, st := range StatusOrder {
		if st == s {
			return i
		}
	}
	return len(StatusOrder)
}

// Valid reports whether s is one of the five known statuses.
func (s Status) Valid() bool {
	return s.Rank() < len(StatusOrder)
}

// Value is an optional portfolio amount.
type Value = decimal.NullDecimal

type (
	// Period is an integer-encoded year and month (year*100+month). It is not a
	// date: comparisons are plain integer comparisons.
	Period struct {
		YYYYMM int
		Valid  bool
	}

	// SnapshotRow is one receivable row of a named snapshot.
	SnapshotRow struct {
		EntityID      string
		Period        Period
		PortfolioType string
		Value         Value
	}

	// DiffRow is the comparison of one (entity, period) pair. Before and After
	// are zero-filled; Status is computed from true presence.
	DiffRow struct {
		EntityID      string          `json:"entity_id"`
		Period        Period          `json:"period"`
		PortfolioType string          `json:"portfolio_type"`
		Before        decimal.Decimal `json:"value_before"`
		After         decimal.Decimal `json:"value_after"`
		Delta         decimal.Decimal `json:"delta"`
		Status        Status          `json:"status"`
	}

	// ComparisonRequest names the base (earlier) and actual (later) snapshots.
	ComparisonRequest struct {
		Base   string `json:"base"`
		Actual string `json:"actual"`
	}
)

var (
	ErrEmptySnapshotID = errors.New("empty snapshot identifier")
	ErrNoComparison    = errors.New("no comparison has been executed")
	ErrUnknownType     = errors.New("unknown portfolio type")
	ErrUnknownRange    = errors.New("unknown period range")
)

// PeriodOf returns a valid period.
func PeriodOf(yyyymm int) Period {
	return Period{YYYYMM: yyyymm, Valid: true}
}

func (p Period) String() string {
	if !p.Valid {
		return ""
	}
	return strconv.Itoa(p.YYYYMM)
}

func (p Period) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(p.YYYYMM)), nil
}

func (p *Period) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = Period{}
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = PeriodOf(n)
	return nil
}

// Range returns the period bucket of the row.
func (r DiffRow) Range() PeriodRange {
	return ClassifyPeriod(r.Period)
}

// Validate checks that both snapshot identifiers are present. Comparing a
// snapshot with itself is allowed.
func (c ComparisonRequest) Validate() error {
	if strings.TrimSpace(c.Base) == "" || strings.TrimSpace(c.Actual) == "" {
		return ErrEmptySnapshotID
	}
	return nil
}
