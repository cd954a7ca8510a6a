package report

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"comparativo/internal/core"
)

var printer = message.NewPrinter(language.English)

// grouped renders f with thousands separators and exactly places fraction
// digits.
func grouped(f float64, places int) string {
	return printer.Sprint(number.Decimal(f,
		number.MinFractionDigits(places),
		number.MaxFractionDigits(places)))
}

// Money formats an amount in the given scale: "$1,234 Mil M". Negative
// amounts keep the sign after the currency symbol ("$-1,234 Mill").
func Money(d decimal.Decimal, scale core.Scale) string {
	v := scale.Apply(d).Round(0)
	return "$" + grouped(v.InexactFloat64(), 0) + " " + scale.Suffix
}

// DeltaLabel formats a difference already expressed in millions for the delta
// chart: "-$12.3 Mill" for negatives, "$12 Mill" otherwise.
func DeltaLabel(millions decimal.Decimal) string {
	if millions.IsNegative() {
		return "-$" + grouped(millions.Abs().Round(1).InexactFloat64(), 1) + " " + core.Millions.Suffix
	}
	return "$" + grouped(millions.Round(0).InexactFloat64(), 0) + " " + core.Millions.Suffix
}

// Count formats an integer with thousands separators.
func Count(n int) string {
	return printer.Sprintf("%d", n)
}

// Amount formats a raw portfolio value for the detail table: "1,234,567.89".
func Amount(d decimal.Decimal) string {
	return grouped(d.Round(2).InexactFloat64(), 2)
}
