package trading

import (
	"github.com/shopspring/decimal"

	"github.com/atlasfin/atlasbank/pkg/models"
)

// FeeSchedule computes commission and execution slippage for market fills.
type FeeSchedule struct {
	Rate        decimal.Decimal // fraction of notional
	Floor       decimal.Decimal // absolute minimum per fill
	SlippageBps decimal.Decimal // basis points applied against the taker
}

// NewFeeSchedule builds the schedule from float configuration values
func NewFeeSchedule(rate, floor float64, slippageBps int64) FeeSchedule {
	return FeeSchedule{
		Rate:        decimal.NewFromFloat(rate),
		Floor:       decimal.NewFromFloat(floor),
		SlippageBps: decimal.NewFromInt(slippageBps),
	}
}

// Commission is max(notional*rate, floor).
func (f FeeSchedule) Commission(notional decimal.Decimal) decimal.Decimal {
	fee := notional.Mul(f.Rate)
	if fee.LessThan(f.Floor) {
		return f.Floor
	}
	return fee
}

// FillPrice applies the fixed slippage model to the quoted price: buys fill
// above the quote, sells below.
func (f FeeSchedule) FillPrice(quoted decimal.Decimal, side string) decimal.Decimal {
	adj := quoted.Mul(f.SlippageBps).Div(decimal.NewFromInt(10000))
	if side == models.OrderSideBuy {
		return quoted.Add(adj)
	}
	return quoted.Sub(adj)
}
