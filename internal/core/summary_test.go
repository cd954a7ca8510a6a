package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	d := decimal.NewFromInt
	rows := []DiffRow{
		{EntityID: "E1", Before: d(0), After: d(50), Delta: d(50), Status: StatusNew},
		{EntityID: "E1", Before: d(0), After: d(30), Delta: d(30), Status: StatusNew},
		{EntityID: "E2", Before: d(100), After: d(150), Delta: d(50), Status: StatusIncreased},
		{EntityID: "E3", Before: d(10), After: d(10), Delta: d(0), Status: StatusUnchanged},
		{EntityID: "E4", Before: d(40), After: d(0), Delta: d(-40), Status: StatusRemoved},
		{EntityID: "E5", Before: d(1), After: d(1), Delta: d(0), Status: Status("OTRO")},
	}

	got := Aggregate(rows)
	require.Len(t, got, 5)
	order := make([]Status, len(got))
	for i, g := range got {
		order[i] = g.Status
	}
	assert.Equal(t, []Status{StatusNew, StatusRemoved, StatusIncreased, StatusUnchanged, Status("OTRO")}, order)

	assert.True(t, got[0].After.Equal(d(80)))
	assert.Equal(t, 1, got[0].Entities, "entities are counted once per status")
	assert.True(t, got[1].Delta.Equal(d(-40)))
}

func TestSummarize(t *testing.T) {
	rows := Diff(
		[]SnapshotRow{row("E1", 201801, "X", "100"), row("E3", 202001, "X", "1000000000")},
		[]SnapshotRow{row("E1", 201801, "X", "150"), row("E2", 201902, "X", "50")},
	)
	tot := Summarize(rows)
	assert.Equal(t, 3, tot.Rows)
	assert.Equal(t, 3, tot.Entities)
	assert.True(t, tot.Delta.Equal(tot.After.Sub(tot.Before)))
	assert.True(t, tot.Before.Equal(decimal.NewFromInt(1000000100)))
}

func TestScale(t *testing.T) {
	v := decimal.NewFromInt(2_500_000_000)
	assert.True(t, Billions.Apply(v).Equal(decimal.RequireFromString("2.5")))
	assert.True(t, Millions.Apply(v).Equal(decimal.NewFromInt(2500)))
}
