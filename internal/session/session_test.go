package session

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comparativo/internal/core"
)

func diffRow(entity string, period int, typ string, before, after int64) core.DiffRow {
	b := decimal.NewNullDecimal(decimal.NewFromInt(before))
	a := decimal.NewNullDecimal(decimal.NewFromInt(after))
	st := core.Classify(b, a)
	return core.DiffRow{
		EntityID:      entity,
		Period:        core.PeriodOf(period),
		PortfolioType: typ,
		Before:        b.Decimal,
		After:         a.Decimal,
		Delta:         a.Decimal.Sub(b.Decimal),
		Status:        st,
	}
}

func sampleRun() (core.Run, []core.DiffRow) {
	rows := []core.DiffRow{
		diffRow("E1", 201801, "Consumo", 100, 150),
		diffRow("E2", 202001, "Vivienda", 200, 200),
		diffRow("E3", 202506, "Consumo", 300, 100),
	}
	run := core.Run{ID: "run-1", Base: "2024-06", Actual: "2024-12", Rows: len(rows), ExecutedAt: time.Now().UTC()}
	return run, rows
}

func TestStateWithoutRun(t *testing.T) {
	st := New(NewID())
	assert.False(t, st.HasRun())

	_, err := st.ToggleType("Consumo")
	assert.True(t, errors.Is(err, core.ErrNoComparison))
	_, err = st.ToggleRange(string(core.RangeNoData))
	assert.True(t, errors.Is(err, core.ErrNoComparison))

	v := st.View()
	assert.Empty(t, v.Rows)
	assert.Empty(t, v.Summary)
	assert.True(t, v.Totals.Before.IsZero())
}

func TestStateWithRunResetsFilters(t *testing.T) {
	run, rows := sampleRun()
	st := New("s1").WithRun(run, rows)

	toggled, err := st.ToggleType("Consumo")
	require.NoError(t, err)
	assert.Len(t, toggled.View().Rows, 1)

	// a new run starts from everything selected again
	rerun := toggled.WithRun(run, rows)
	assert.Equal(t, []string{"Consumo", "Vivienda"}, rerun.Filters.Types.Selected())
	assert.Len(t, rerun.View().Rows, 3)
	assert.Equal(t, "s1", rerun.ID)
}

func TestStateToggleIsImmutable(t *testing.T) {
	run, rows := sampleRun()
	st := New("s1").WithRun(run, rows)

	next, err := st.ToggleRange(string(core.RangeUpTo2018))
	require.NoError(t, err)

	assert.True(t, st.Filters.Ranges.Contains(string(core.RangeUpTo2018)), "original state must not change")
	assert.False(t, next.Filters.Ranges.Contains(string(core.RangeUpTo2018)))
	assert.Len(t, next.View().Rows, 2)
}

func TestStateToggleUnknownMember(t *testing.T) {
	run, rows := sampleRun()
	st := New("s1").WithRun(run, rows)

	same, err := st.ToggleType("Libranza")
	assert.True(t, errors.Is(err, core.ErrUnknownType))
	assert.True(t, same.Filters.Types.Equal(st.Filters.Types))

	_, err = st.ToggleRange("2030")
	assert.True(t, errors.Is(err, core.ErrUnknownRange))
}

func TestViewAggregates(t *testing.T) {
	run, rows := sampleRun()
	v := New("s1").WithRun(run, rows).View()

	require.Len(t, v.Summary, 3)
	assert.Equal(t, core.StatusIncreased, v.Summary[0].Status)
	assert.Equal(t, core.StatusDecreased, v.Summary[1].Status)
	assert.Equal(t, core.StatusUnchanged, v.Summary[2].Status)
	assert.Equal(t, "600", v.Totals.Before.String())
	assert.Equal(t, "450", v.Totals.After.String())
	assert.Equal(t, "-150", v.Totals.Delta.String())
	assert.Equal(t, 3, v.RawCount)
}

func TestEmptySelectionGivesEmptyView(t *testing.T) {
	run, rows := sampleRun()
	st := New("s1").WithRun(run, rows)
	var err error
	for _, typ := range st.Filters.Types.Universe() {
		st, err = st.ToggleType(typ)
		require.NoError(t, err)
	}
	v := st.View()
	assert.Empty(t, v.Rows)
	assert.Empty(t, v.Summary)
	assert.Equal(t, 3, v.RawCount)
}
