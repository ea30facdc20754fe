package rules

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDropRate_Basic(t *testing.T) {
	rate, err := DropRate(decimal.RequireFromString("70000"), decimal.RequireFromString("69300"))
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1")))
}

func TestDropRate_RejectsNonPositiveBase(t *testing.T) {
	_, err := DropRate(decimal.Zero, decimal.RequireFromString("100"))
	assert.ErrorIs(t, err, ErrNonPositiveBase)
}

func TestReboundRate_Basic(t *testing.T) {
	rate, err := ReboundRate(decimal.RequireFromString("69200"), decimal.RequireFromString("69200").Add(decimal.RequireFromString("69200").Mul(decimal.RequireFromString("0.002"))))
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.2")))
}

func TestGeWithEps_PassesExactlyAtThresholdAndWithinEpsilon(t *testing.T) {
	threshold := decimal.RequireFromString("1.0")
	assert.True(t, GeWithEps(threshold, threshold))
	justBelow := threshold.Sub(decimal.NewFromFloat(5e-7))
	assert.True(t, GeWithEps(justBelow, threshold))
}

func TestGeWithEps_FailsClearlyBelowThreshold(t *testing.T) {
	threshold := decimal.RequireFromString("1.0")
	below := threshold.Sub(decimal.RequireFromString("0.01"))
	assert.False(t, GeWithEps(below, threshold))
}

func TestLeWithEps_PassesExactlyAtThresholdAndWithinEpsilon(t *testing.T) {
	threshold := decimal.RequireFromString("80")
	assert.True(t, LeWithEps(threshold, threshold))
	justAbove := threshold.Add(decimal.NewFromFloat(5e-7))
	assert.True(t, LeWithEps(justAbove, threshold))
}

func TestShouldEmitSellSignal_RequiresLockedAndPositiveMax(t *testing.T) {
	assert.False(t, ShouldEmitSellSignal(false, decimal.RequireFromString("0.5"), decimal.RequireFromString("1.2")))
	assert.False(t, ShouldEmitSellSignal(true, decimal.RequireFromString("0.5"), decimal.Zero))
}

func TestShouldEmitSellSignal_TriggersWhenPreservationDecaysToThreshold(t *testing.T) {
	assert.True(t, ShouldEmitSellSignal(true, decimal.RequireFromString("0.96"), decimal.RequireFromString("1.2")))
	assert.False(t, ShouldEmitSellSignal(true, decimal.RequireFromString("0.97"), decimal.RequireFromString("1.2")))
}

func TestTickSize_Ladder(t *testing.T) {
	cases := []struct {
		price string
		tick  string
	}{
		{"999", "1"},
		{"4999", "5"},
		{"9999", "10"},
		{"49999", "50"},
		{"99999", "100"},
		{"499999", "500"},
		{"500000", "1000"},
	}
	for _, c := range cases {
		got := TickSize(decimal.RequireFromString(c.price))
		assert.True(t, got.Equal(decimal.RequireFromString(c.tick)), "price %s expected tick %s got %s", c.price, c.tick, got)
	}
}

func TestAlignDown_RoundsToTickMultiple(t *testing.T) {
	aligned, err := AlignDown(decimal.RequireFromString("70370"), decimal.RequireFromString("100"))
	require.NoError(t, err)
	assert.True(t, aligned.Equal(decimal.RequireFromString("70300")))
}

func TestAlignDown_RejectsNonPositiveTick(t *testing.T) {
	_, err := AlignDown(decimal.RequireFromString("100"), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidTick)
}

func TestSellLimitPrice_TwoTicksBelowAligned(t *testing.T) {
	price, err := SellLimitPrice(decimal.RequireFromString("70500"))
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("70300")))
}

func TestSellLimitPrice_RejectsWhenResultNonPositive(t *testing.T) {
	_, err := SellLimitPrice(decimal.RequireFromString("1"))
	assert.ErrorIs(t, err, ErrInvalidSellPrice)
}

func TestBuyLimitPrice_WalksLadderAcrossBoundary(t *testing.T) {
	price, err := BuyLimitPrice(decimal.RequireFromString("9990"), 2)
	require.NoError(t, err)
	// tick at 9990 is 10 -> 10000; tick at 10000 is 50 -> 10050
	assert.True(t, price.Equal(decimal.RequireFromString("10050")))
}

func TestBuyLimitPrice_RejectsNonPositiveCurrent(t *testing.T) {
	_, err := BuyLimitPrice(decimal.Zero, 1)
	assert.ErrorIs(t, err, ErrInvalidBuyPrice)
}

func TestSellTaxAndFee_QuantizedToCents(t *testing.T) {
	amount := decimal.RequireFromString("1000000")
	assert.True(t, SellTax(amount).Equal(decimal.RequireFromString("2000")))
	assert.True(t, SellFee(amount).Equal(decimal.RequireFromString("110")))
}
