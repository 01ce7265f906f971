package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRoundingChain(t *testing.T) {
	// 12.345 discounted by factor 0.9 -> 11.1105 -> 11.11 -> 11110 fils.
	price := Parse("12.345")
	factor := decimal.NewFromFloat(0.9)

	discounted := Round2(price.Mul(factor))
	require.Equal(t, "11.11", discounted.StringFixed(2))
	require.Equal(t, int64(11110), MinorUnits(discounted))
}

func TestMinorUnitsGranularity(t *testing.T) {
	cases := []struct {
		price string
		fils  int64
	}{
		{"1.00", 1000},
		{"0.01", 10},
		{"3.505", 3510},   // 3505 rounds up to the 10-fils grid
		{"3.504", 3500},   // rounds down
		{"0.005", 10},     // half rounds away from zero
		{"0.004", 0},
		{"12.345", 12350},
	}
	for _, c := range cases {
		require.Equal(t, c.fils, MinorUnits(Parse(c.price)), "price %s", c.price)
	}
}

func TestDiscountFactor(t *testing.T) {
	f := DiscountFactor(Parse("9.000"), Parse("10.000"))
	require.True(t, f.Equal(decimal.NewFromFloat(0.9)))

	// Zero original total never divides.
	f = DiscountFactor(Parse("5.000"), decimal.Zero)
	require.True(t, f.Equal(decimal.NewFromInt(1)))
}

func TestTotal(t *testing.T) {
	total := Total([]Line{
		{Price: "3.500", Quantity: 2},
		{Price: "12.250", Quantity: 1},
	})
	require.Equal(t, "19.250", String(total))
}

func TestParseMalformed(t *testing.T) {
	require.True(t, Parse("not a price").IsZero())
	require.True(t, Parse("").IsZero())
}

func TestFormat(t *testing.T) {
	d := Parse("3.5")
	require.Equal(t, "KD 3.500", Format(d, "en"))
	require.Equal(t, "3.500 د.ك", Format(d, "ar"))
	require.Equal(t, "KD 3.500", FormatPrice("3.5", "en"))
}
