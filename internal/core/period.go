package core

// PeriodRange is the bucket a period falls in for filtering and display.
type PeriodRange string

const (
	RangeUpTo2018   PeriodRange = "≤ 2018"
	Range2019To2024 PeriodRange = "2019 – 2024"
	RangeAfter2024  PeriodRange = "> 2024"
	RangeNoData     PeriodRange = "Sin dato"
)

const (
	lastPeriod2018  = 201812
	firstPeriod2019 = 201901
	lastPeriod2024  = 202412
)

// PeriodRanges is the full range universe in display order.
var PeriodRanges = []PeriodRange{RangeUpTo2018, Range2019To2024, RangeAfter2024, RangeNoData}

// ClassifyPeriod buckets a period. Boundaries are inclusive on both sides of
// the middle range; absent periods are "Sin dato".
func ClassifyPeriod(p Period) PeriodRange {
	switch {
	case !p.Valid:
		return RangeNoData
	case p.YYYYMM <= lastPeriod2018:
		return RangeUpTo2018
	case p.YYYYMM >= firstPeriod2019 && p.YYYYMM <= lastPeriod2024:
		return Range2019To2024
	default:
		return RangeAfter2024
	}
}

// ParseRange maps a label back to a known range.
func ParseRange(label string) (PeriodRange, bool) {
	for _, r := range PeriodRanges {
		if string(r) == label {
			return r, true
		}
	}
	return "", false
}

func rangeLabels() []string {
	out := make([]string, len(PeriodRanges))
	for i, r := range PeriodRanges {
		out[i] = string(r)
	}
	return out
}
