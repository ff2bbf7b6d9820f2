// Package format renders dashboard figures the way Brazilian operators
// read them: dot thousands, comma decimals, R$ prefix.
package format

import (
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.BrazilianPortuguese)

// Money formats v as "R$ 1.234,56".
func Money(v float64) string {
	if v < 0 {
		return "-R$ " + printer.Sprint(number.Decimal(-v, number.Scale(2)))
	}
	return "R$ " + printer.Sprint(number.Decimal(v, number.Scale(2)))
}

// Number formats v with at most maxFraction decimal places.
func Number(v float64, maxFraction int) string {
	return printer.Sprint(number.Decimal(v, number.MaxFractionDigits(maxFraction)))
}

func Integer(v int) string {
	return printer.Sprint(number.Decimal(v))
}

func Liters(v float64) string {
	return Number(v, 2) + " L"
}

// Percent formats v as "12,5%" with one decimal place.
func Percent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "--"
	}
	return printer.Sprint(number.Decimal(v, number.Scale(1))) + "%"
}

// Change is Percent with an explicit sign; zero renders as "--".
func Change(v float64) string {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return "--"
	}
	s := Percent(v)
	if v > 0 {
		return "+" + s
	}
	return s
}

// Trend is the CSS modifier for a change value.
func Trend(v float64) string {
	switch {
	case v > 0:
		return "up"
	case v < 0:
		return "down"
	default:
		return "flat"
	}
}

// Plain renders v with two decimals and a dot separator for CSV cells.
func Plain(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
