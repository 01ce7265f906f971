package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Prices arrive from the backend as decimal strings. The processor works in
// fils (1/1000 of a dinar) with a 10-fils minimum granularity, so card
// amounts go through Round2 first and then MinorUnits.

// Parse reads a backend price string. Malformed input yields zero so a bad
// price can never poison a total; callers log at the boundary.
func Parse(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// LineTotal is price * quantity.
func LineTotal(price string, quantity uint) decimal.Decimal {
	return Parse(price).Mul(decimal.NewFromInt(int64(quantity)))
}

// Line is the minimal shape Total needs from a cart line.
type Line struct {
	Price    string
	Quantity uint
}

// Total sums price * quantity over cart lines.
func Total(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(LineTotal(l.Price, l.Quantity))
	}
	return sum
}

// DiscountFactor is finalTotal / originalTotal, the per-line scale that keeps
// item prices consistent with the aggregate coupon discount. A zero original
// total yields factor 1.
func DiscountFactor(finalTotal, originalTotal decimal.Decimal) decimal.Decimal {
	if originalTotal.IsZero() {
		return decimal.NewFromInt(1)
	}
	return finalTotal.Div(originalTotal)
}

// Round2 rounds to 2 decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MinorUnits converts a 2dp price to fils: multiply by 1000 and round to the
// nearest multiple of 10. The exact chain matters; the processor rejects
// amounts off this grid.
func MinorUnits(d decimal.Decimal) int64 {
	fils := d.Mul(decimal.NewFromInt(1000))
	tens := fils.Div(decimal.NewFromInt(10)).Round(0)
	return tens.Mul(decimal.NewFromInt(10)).IntPart()
}

// Format renders a price for display in the given locale. Arabic shows the
// dinar symbol after the amount, English before.
func Format(d decimal.Decimal, locale string) string {
	amount := d.StringFixed(3)
	if locale == "ar" {
		return amount + " د.ك"
	}
	return "KD " + amount
}

// FormatPrice is Format over a raw backend price string.
func FormatPrice(price, locale string) string {
	return Format(Parse(price), locale)
}

// String renders a decimal as a backend-compatible 3dp price string.
func String(d decimal.Decimal) string {
	return d.StringFixed(3)
}

func init() {
	// Enough precision for factor division on any realistic cart total.
	if decimal.DivisionPrecision < 16 {
		decimal.DivisionPrecision = 16
	}
}
