// Package rules implements the pure threshold and tick-math helpers shared by
// the order manager and the strategy engine: drop/rebound/profit-preservation
// rates, epsilon-tolerant comparisons, the KOSPI tick ladder, and sell
// tax/fee math. Nothing here touches I/O or mutable state.
package rules

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Thresholds and tolerances, percent-scale unless noted otherwise.
var (
	DropThresholdPct          = decimal.NewFromFloat(1.0)
	ReboundThresholdPct       = decimal.NewFromFloat(0.2)
	MinProfitLockPct          = decimal.NewFromFloat(1.0)
	ProfitPreservationSellPct = decimal.NewFromFloat(80)
	Epsilon                   = decimal.NewFromFloat(1e-6)

	SellTaxRate = decimal.NewFromFloat(0.002)
	SellFeeRate = decimal.NewFromFloat(0.00011)

	pctScale    int32 = 4
	amountScale int32 = 2
)

var (
	// ErrNonPositiveBase is returned when a rate computation's divisor is <= 0.
	ErrNonPositiveBase = errors.New("rules: base value must be > 0")
	// ErrInvalidTick is returned when tick alignment is attempted with a non-positive tick.
	ErrInvalidTick = errors.New("rules: tick size must be positive")
	// ErrInvalidSellPrice is returned when the computed sell limit collapses to <= 0.
	ErrInvalidSellPrice = errors.New("rules: OPM_INVALID_SELL_PRICE")
	// ErrInvalidBuyPrice is returned when buy-limit computation starts from a non-positive price.
	ErrInvalidBuyPrice = errors.New("rules: OPM_INVALID_BUY_PRICE")
)

func q4(v decimal.Decimal) decimal.Decimal {
	return v.Round(pctScale)
}

// QAmount quantises a monetary amount to 0.01, half-up.
func QAmount(v decimal.Decimal) decimal.Decimal {
	return v.Round(amountScale)
}

// DropRate computes (base-cur)/base*100, quantised to 4 decimals.
func DropRate(base, cur decimal.Decimal) (decimal.Decimal, error) {
	if base.Cmp(decimal.Zero) <= 0 {
		return decimal.Zero, ErrNonPositiveBase
	}
	return q4(base.Sub(cur).Div(base).Mul(decimal.NewFromInt(100))), nil
}

// ReboundRate computes (cur-low)/low*100, quantised to 4 decimals.
func ReboundRate(low, cur decimal.Decimal) (decimal.Decimal, error) {
	if low.Cmp(decimal.Zero) <= 0 {
		return decimal.Zero, ErrNonPositiveBase
	}
	return q4(cur.Sub(low).Div(low).Mul(decimal.NewFromInt(100))), nil
}

// ProfitPreservationRate computes current/max*100, quantised to 4 decimals.
func ProfitPreservationRate(current, max decimal.Decimal) (decimal.Decimal, error) {
	if max.Cmp(decimal.Zero) <= 0 {
		return decimal.Zero, ErrNonPositiveBase
	}
	return q4(current.Div(max).Mul(decimal.NewFromInt(100))), nil
}

// GeWithEps reports left >= right-eps.
func GeWithEps(left, right decimal.Decimal) bool {
	return left.Cmp(right.Sub(Epsilon)) >= 0
}

// LeWithEps reports left <= right+eps.
func LeWithEps(left, right decimal.Decimal) bool {
	return left.Cmp(right.Add(Epsilon)) <= 0
}

// ShouldEnterBuyCandidate reports whether a drop rate clears the drop threshold.
func ShouldEnterBuyCandidate(dropRate decimal.Decimal) bool {
	return GeWithEps(dropRate, DropThresholdPct)
}

// ShouldUpdateTrackedLow reports whether current < trackedLow.
func ShouldUpdateTrackedLow(current, trackedLow decimal.Decimal) bool {
	return current.Cmp(trackedLow) < 0
}

// ShouldTriggerReboundBuy reports whether a rebound rate clears the rebound threshold.
func ShouldTriggerReboundBuy(reboundRate decimal.Decimal) bool {
	return GeWithEps(reboundRate, ReboundThresholdPct)
}

// ShouldLockMinProfit reports whether the current profit rate clears the lock threshold.
func ShouldLockMinProfit(currentProfitRate decimal.Decimal) bool {
	return GeWithEps(currentProfitRate, MinProfitLockPct)
}

// ShouldEmitSellSignal reports whether profit preservation has decayed past the sell threshold.
func ShouldEmitSellSignal(minProfitLocked bool, currentProfitRate, maxProfitRate decimal.Decimal) bool {
	if !minProfitLocked {
		return false
	}
	if maxProfitRate.Cmp(decimal.Zero) <= 0 {
		return false
	}
	preservation, err := ProfitPreservationRate(currentProfitRate, maxProfitRate)
	if err != nil {
		return false
	}
	return LeWithEps(preservation, ProfitPreservationSellPct)
}

// tickLadder returns the KOSPI tick size (simplified) for a given price.
func tickLadder(price decimal.Decimal) decimal.Decimal {
	switch {
	case price.LessThan(decimal.NewFromInt(1000)):
		return decimal.NewFromInt(1)
	case price.LessThan(decimal.NewFromInt(5000)):
		return decimal.NewFromInt(5)
	case price.LessThan(decimal.NewFromInt(10000)):
		return decimal.NewFromInt(10)
	case price.LessThan(decimal.NewFromInt(50000)):
		return decimal.NewFromInt(50)
	case price.LessThan(decimal.NewFromInt(100000)):
		return decimal.NewFromInt(100)
	case price.LessThan(decimal.NewFromInt(500000)):
		return decimal.NewFromInt(500)
	default:
		return decimal.NewFromInt(1000)
	}
}

// TickSize exposes the tick ladder lookup.
func TickSize(price decimal.Decimal) decimal.Decimal {
	return tickLadder(price)
}

// AlignDown rounds price down to the nearest multiple of tickSize.
func AlignDown(price, tickSize decimal.Decimal) (decimal.Decimal, error) {
	if tickSize.Cmp(decimal.Zero) <= 0 {
		return decimal.Zero, ErrInvalidTick
	}
	units := price.Div(tickSize).Truncate(0)
	return units.Mul(tickSize), nil
}

// SellLimitPrice computes the limit-sell price two ticks below current, tick-aligned.
func SellLimitPrice(current decimal.Decimal) (decimal.Decimal, error) {
	tick := tickLadder(current)
	raw := current.Sub(tick.Mul(decimal.NewFromInt(2)))
	aligned, err := AlignDown(raw, tick)
	if err != nil {
		return decimal.Zero, err
	}
	if aligned.Cmp(decimal.Zero) <= 0 {
		return decimal.Zero, ErrInvalidSellPrice
	}
	return aligned, nil
}

// BuyLimitPrice walks the tick ladder upward ticksUp times from current,
// re-reading the ladder at every step (the ladder is not linear).
func BuyLimitPrice(current decimal.Decimal, ticksUp int) (decimal.Decimal, error) {
	if current.Cmp(decimal.Zero) <= 0 {
		return decimal.Zero, ErrInvalidBuyPrice
	}
	if ticksUp < 0 {
		return decimal.Zero, errors.New("rules: ticksUp must be non-negative")
	}
	price := current
	for i := 0; i < ticksUp; i++ {
		price = price.Add(tickLadder(price))
	}
	return price, nil
}

// SellTax computes the sell-tax component of a sell notional, quantised to 0.01.
func SellTax(sellAmount decimal.Decimal) decimal.Decimal {
	return QAmount(sellAmount.Mul(SellTaxRate))
}

// SellFee computes the sell-fee component of a sell notional, quantised to 0.01.
func SellFee(sellAmount decimal.Decimal) decimal.Decimal {
	return QAmount(sellAmount.Mul(SellFeeRate))
}
