package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelection_ToggleRoundTrip(t *testing.T) {
	all := NewSelection([]string{"A", "B", "C"})

	off, ok := all.Toggle("B")
	require.True(t, ok)
	assert.Equal(t, []string{"A", "C"}, off.Selected())
	assert.Equal(t, []string{"A", "B", "C"}, all.Selected(), "receiver is not mutated")

	on, ok := off.Toggle("B")
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B", "C"}, on.Selected())
	assert.True(t, on.Equal(all))
}

func TestSelection_UnknownMember(t *testing.T) {
	s := NewSelection([]string{"A"})
	next, ok := s.Toggle("Z")
	assert.False(t, ok)
	assert.True(t, next.Equal(s))
}

func TestSelection_AllNone(t *testing.T) {
	s := NewSelection([]string{"A", "B", "A"})
	assert.Equal(t, []string{"A", "B"}, s.Universe())
	assert.Equal(t, 0, s.None().Len())
	assert.Equal(t, 2, s.None().All().Len())
}

func TestSelection_JSON(t *testing.T) {
	s, _ := NewSelection([]string{"A", "B", "C"}).Toggle("A")
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"universe":["A","B","C"],"selected":["B","C"]}`, string(b))

	var back Selection
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.Equal(s))

	err = json.Unmarshal([]byte(`{"universe":["A"],"selected":["Q"]}`), &back)
	assert.Error(t, err)
}

func TestFilterState_Apply(t *testing.T) {
	rows := []DiffRow{
		{EntityID: "E1", Period: PeriodOf(201801), PortfolioType: "Consumo", Status: StatusNew},
		{EntityID: "E2", Period: PeriodOf(202001), PortfolioType: "Vivienda", Status: StatusNew},
		{EntityID: "E3", Period: Period{}, PortfolioType: "Consumo", Status: StatusRemoved},
		{EntityID: "E4", Period: PeriodOf(202501), PortfolioType: "", Status: StatusRemoved},
	}
	f := DefaultFilterState(rows)
	assert.Equal(t, []string{"Consumo", "Vivienda"}, f.Types.Universe())
	assert.Len(t, f.Apply(rows), 3, "rows without a type never pass")

	f, err := f.ToggleRange(string(RangeNoData))
	require.NoError(t, err)
	assert.Len(t, f.Apply(rows), 2)

	f, err = f.ToggleType("Vivienda")
	require.NoError(t, err)
	got := f.Apply(rows)
	require.Len(t, got, 1)
	assert.Equal(t, "E1", got[0].EntityID)
}

func TestFilterState_EmptySelection(t *testing.T) {
	rows := []DiffRow{{EntityID: "E1", Period: PeriodOf(201801), PortfolioType: "Consumo", Status: StatusNew}}
	f := DefaultFilterState(rows)
	f, err := f.ToggleType("Consumo")
	require.NoError(t, err)

	filtered := f.Apply(rows)
	assert.Empty(t, filtered)
	assert.Empty(t, Aggregate(filtered))
	assert.True(t, Summarize(filtered).Delta.IsZero())
}

func TestFilterState_UnknownToggle(t *testing.T) {
	f := DefaultFilterState(nil)
	_, err := f.ToggleType("Consumo")
	assert.True(t, errors.Is(err, ErrUnknownType))
	_, err = f.ToggleRange("2030")
	assert.True(t, errors.Is(err, ErrUnknownRange))
}
