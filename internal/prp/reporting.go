package prp

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var (
	sellTaxRate  = decimal.RequireFromString("0.002")
	sellFeeRate  = decimal.RequireFromString("0.00011")
	amountQ      int32 = 2
	returnQ      int32 = 4
	hundred            = decimal.NewFromInt(100)
)

func qAmount(v decimal.Decimal) decimal.Decimal {
	return v.Round(amountQ)
}

func qReturn(v decimal.Decimal) decimal.Decimal {
	return v.Round(returnQ)
}

func calcBuyAmount(buyPrice decimal.Decimal, qty int) decimal.Decimal {
	return qAmount(buyPrice.Mul(decimal.NewFromInt(int64(qty))))
}

func calcSellAmount(sellPrice decimal.Decimal, qty int) decimal.Decimal {
	return qAmount(sellPrice.Mul(decimal.NewFromInt(int64(qty))))
}

func calcSellTax(sellAmount decimal.Decimal) decimal.Decimal {
	return qAmount(sellAmount.Mul(sellTaxRate))
}

func calcSellFee(sellAmount decimal.Decimal) decimal.Decimal {
	return qAmount(sellAmount.Mul(sellFeeRate))
}

func calcNetPnl(buyAmount, sellAmount, sellTax, sellFee decimal.Decimal) decimal.Decimal {
	return qAmount(sellAmount.Sub(buyAmount).Sub(sellTax).Sub(sellFee))
}

func calcReturnRate(netPnl, buyAmount decimal.Decimal) decimal.Decimal {
	if buyAmount.IsZero() {
		return decimal.Zero
	}
	return qReturn(netPnl.Div(buyAmount).Mul(hundred))
}

type buyLot struct {
	occurredAt   time.Time
	price        decimal.Decimal
	remainingQty int
}

// buildTradeDetails performs FIFO (oldest-buy-lot-first) matching of SELL
// executions against accumulated BUY lots, per symbol. SELL executions with
// no open BUY lot are skipped — the caller surfaces them as anomalies.
func buildTradeDetails(executions []ExecutionEvent) ([]TradeDetail, []string) {
	sorted := make([]ExecutionEvent, len(executions))
	copy(sorted, executions)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].OccurredAt.Equal(sorted[j].OccurredAt) {
			return sorted[i].OccurredAt.Before(sorted[j].OccurredAt)
		}
		return sorted[i].EventID < sorted[j].EventID
	})

	buyQueues := map[string][]*buyLot{}
	var details []TradeDetail
	var anomalies []string

	for _, event := range sorted {
		switch event.Side {
		case "BUY":
			buyQueues[event.Symbol] = append(buyQueues[event.Symbol], &buyLot{
				occurredAt:   event.OccurredAt,
				price:        event.ExecutionPrice,
				remainingQty: event.ExecutionQty,
			})
		case "SELL":
			remaining := event.ExecutionQty
			queue := buyQueues[event.Symbol]
			part := 0
			for remaining > 0 && len(queue) > 0 {
				lot := queue[0]
				matched := lot.remainingQty
				if remaining < matched {
					matched = remaining
				}
				buyAmount := calcBuyAmount(lot.price, matched)
				sellAmount := calcSellAmount(event.ExecutionPrice, matched)
				sellTax := calcSellTax(sellAmount)
				sellFee := calcSellFee(sellAmount)
				netPnl := calcNetPnl(buyAmount, sellAmount, sellTax, sellFee)
				returnRate := calcReturnRate(netPnl, buyAmount)

				details = append(details, TradeDetail{
					ID:             fmt.Sprintf("%s-%d", event.ExecutionID, part),
					TradingDate:    event.TradingDate,
					Symbol:         event.Symbol,
					BuyExecutedAt:  lot.occurredAt,
					SellExecutedAt: event.OccurredAt,
					Quantity:       matched,
					BuyPrice:       lot.price,
					SellPrice:      event.ExecutionPrice,
					BuyAmount:      buyAmount,
					SellAmount:     sellAmount,
					SellTax:        sellTax,
					SellFee:        sellFee,
					NetPnl:         netPnl,
					ReturnRate:     returnRate,
				})

				lot.remainingQty -= matched
				if lot.remainingQty <= 0 {
					queue = queue[1:]
				}
				remaining -= matched
				part++
			}
			buyQueues[event.Symbol] = queue
			if remaining > 0 {
				anomalies = append(anomalies, fmt.Sprintf(
					"orphan SELL execution %s: %d unmatched unit(s) of %s with no open BUY lot",
					event.ExecutionID, remaining, event.Symbol))
			}
		}
	}
	return details, anomalies
}

func aggregateDailyReport(details []TradeDetail, anomalies []string, tradingDate string) DailyReport {
	totalBuy, totalSell, totalTax, totalFee, totalNet := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, d := range details {
		totalBuy = totalBuy.Add(d.BuyAmount)
		totalSell = totalSell.Add(d.SellAmount)
		totalTax = totalTax.Add(d.SellTax)
		totalFee = totalFee.Add(d.SellFee)
		totalNet = totalNet.Add(d.NetPnl)
	}
	totalBuy, totalSell, totalTax, totalFee, totalNet = qAmount(totalBuy), qAmount(totalSell), qAmount(totalTax), qAmount(totalFee), qAmount(totalNet)

	totalReturn := decimal.Zero
	if !totalBuy.IsZero() {
		totalReturn = qReturn(totalNet.Div(totalBuy).Mul(hundred))
	}

	return DailyReport{
		TradingDate:     tradingDate,
		TotalBuyAmount:  totalBuy,
		TotalSellAmount: totalSell,
		TotalSellTax:    totalTax,
		TotalSellFee:    totalFee,
		TotalNetPnl:     totalNet,
		TotalReturnRate: totalReturn,
		GeneratedAt:     time.Now().UTC(),
		Anomalies:       anomalies,
	}
}

func computeDailyReport(executions []ExecutionEvent, tradingDate string) ([]TradeDetail, DailyReport) {
	var filtered []ExecutionEvent
	for _, e := range executions {
		if e.TradingDate == tradingDate {
			filtered = append(filtered, e)
		}
	}
	details, anomalies := buildTradeDetails(filtered)
	report := aggregateDailyReport(details, anomalies, tradingDate)
	return details, report
}
