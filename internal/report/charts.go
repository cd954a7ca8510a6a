package report

import (
	"github.com/shopspring/decimal"

	"comparativo/internal/core"
)

// Chart colors.
const (
	ColorBefore = "#1F77B4"
	ColorAfter  = "#2ECC71"
	ColorOther  = "#7F8C8D"
)

// StatusColors is the palette shared by the delta bar and the pie.
var StatusColors = map[core.Status]string{
	core.StatusNew:       "#27AE60",
	core.StatusRemoved:   "#E74C3C",
	core.StatusIncreased: "#3498DB",
	core.StatusDecreased: "#F39C12",
	core.StatusUnchanged: "#95A5A6",
}

// StatusColor returns the palette color of s, or a neutral gray.
func StatusColor(s core.Status) string {
	if c, ok := StatusColors[s]; ok {
		return c
	}
	return ColorOther
}

// Plotly-compatible declarative chart specs, rendered client-side.
type (
	Chart struct {
		Data   []Trace `json:"data"`
		Layout Layout  `json:"layout"`
	}

	Trace struct {
		Type         string    `json:"type"`
		Name         string    `json:"name,omitempty"`
		X            []string  `json:"x,omitempty"`
		Y            []float64 `json:"y,omitempty"`
		Labels       []string  `json:"labels,omitempty"`
		Values       []float64 `json:"values,omitempty"`
		Text         []string  `json:"text,omitempty"`
		TextPosition string    `json:"textposition,omitempty"`
		ClipOnAxis   *bool     `json:"cliponaxis,omitempty"`
		Marker       Marker    `json:"marker"`
	}

	Marker struct {
		Color  any `json:"color,omitempty"`
		Colors any `json:"colors,omitempty"`
	}

	Title struct {
		Text string  `json:"text,omitempty"`
		X    float64 `json:"x,omitempty"`
	}

	Axis struct {
		Title      *Title    `json:"title,omitempty"`
		Range      []float64 `json:"range,omitempty"`
		TickFormat string    `json:"tickformat,omitempty"`
	}

	Legend struct {
		Title Title `json:"title"`
	}

	Layout struct {
		Title      Title   `json:"title"`
		BarMode    string  `json:"barmode,omitempty"`
		ShowLegend *bool   `json:"showlegend,omitempty"`
		Legend     *Legend `json:"legend,omitempty"`
		XAxis      *Axis   `json:"xaxis,omitempty"`
		YAxis      *Axis   `json:"yaxis,omitempty"`
	}

	// Charts are the three report figures.
	Charts struct {
		Values   Chart `json:"values"`
		Delta    Chart `json:"delta"`
		Entities Chart `json:"entities"`
	}
)

func millions(d decimal.Decimal) float64 {
	return core.Millions.Apply(d).InexactFloat64()
}

// BuildCharts derives the chart specs from a summary ordered by status.
func BuildCharts(summary []core.SummaryRow) Charts {
	return Charts{
		Values:   valuesChart(summary),
		Delta:    deltaChart(summary),
		Entities: entitiesChart(summary),
	}
}

// valuesChart groups before and after per status. The y axis spans
// [min*1.1, max*1.4] over both series.
func valuesChart(summary []core.SummaryRow) Chart {
	statuses := make([]string, len(summary))
	before := make([]float64, len(summary))
	after := make([]float64, len(summary))
	beforeText := make([]string, len(summary))
	afterText := make([]string, len(summary))
	for i, s := range summary {
		statuses[i] = string(s.Status)
		before[i] = millions(s.Before)
		after[i] = millions(s.After)
		beforeText[i] = Money(s.Before, core.Millions)
		afterText[i] = Money(s.After, core.Millions)
	}

	y := &Axis{Title: &Title{Text: "Valor ($ Mill)"}, TickFormat: ","}
	if lo, hi, ok := bounds(append(append([]float64(nil), before...), after...)); ok {
		y.Range = []float64{lo * 1.1, hi * 1.4}
	}

	return Chart{
		Data: []Trace{
			{Type: "bar", Name: "valor_anterior_total", X: statuses, Y: before, Text: beforeText, TextPosition: "outside", Marker: Marker{Color: ColorBefore}},
			{Type: "bar", Name: "valor_actual_total", X: statuses, Y: after, Text: afterText, TextPosition: "outside", Marker: Marker{Color: ColorAfter}},
		},
		Layout: Layout{
			Title:   Title{Text: "Comparativo de Valor Total por Estado", X: 0.3},
			BarMode: "group",
			Legend:  &Legend{Title: Title{Text: "Tipo de valor"}},
			XAxis:   &Axis{},
			YAxis:   y,
		},
	}
}

// deltaChart shows the difference per status. The y axis starts at
// min*1.3 when some delta is negative, at zero otherwise, and ends at
// max*1.3.
func deltaChart(summary []core.SummaryRow) Chart {
	statuses := make([]string, len(summary))
	deltas := make([]float64, len(summary))
	labels := make([]string, len(summary))
	colors := make([]string, len(summary))
	for i, s := range summary {
		statuses[i] = string(s.Status)
		m := core.Millions.Apply(s.Delta)
		deltas[i] = m.InexactFloat64()
		labels[i] = DeltaLabel(m)
		colors[i] = StatusColor(s.Status)
	}

	y := &Axis{Title: &Title{Text: "Diferencia ($ Mill)"}}
	if lo, hi, ok := bounds(deltas); ok {
		start := 0.0
		if lo < 0 {
			start = lo * 1.3
		}
		y.Range = []float64{start, hi * 1.3}
	}

	noClip := false
	hideLegend := false
	return Chart{
		Data: []Trace{
			{Type: "bar", X: statuses, Y: deltas, Text: labels, TextPosition: "outside", ClipOnAxis: &noClip, Marker: Marker{Color: colors}},
		},
		Layout: Layout{
			Title:      Title{Text: "Diferencia Total por Estado (en Millones)", X: 0.3},
			ShowLegend: &hideLegend,
			XAxis:      &Axis{},
			YAxis:      y,
		},
	}
}

func entitiesChart(summary []core.SummaryRow) Chart {
	labels := make([]string, len(summary))
	values := make([]float64, len(summary))
	colors := make([]string, len(summary))
	for i, s := range summary {
		labels[i] = string(s.Status)
		values[i] = float64(s.Entities)
		colors[i] = StatusColor(s.Status)
	}
	return Chart{
		Data: []Trace{
			{Type: "pie", Labels: labels, Values: values, Marker: Marker{Colors: colors}},
		},
		Layout: Layout{
			Title: Title{Text: "Distribución de Afiliaciones por Estado"},
		},
	}
}

func bounds(vs []float64) (lo, hi float64, ok bool) {
	if len(vs) == 0 {
		return 0, 0, false
	}
	lo, hi = vs[0], vs[0]
	for _, v := range vs[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, true
}
