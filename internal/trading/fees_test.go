package trading_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/atlasfin/atlasbank/internal/trading"
	"github.com/atlasfin/atlasbank/pkg/models"
)

func TestCommissionRateAboveFloor(t *testing.T) {
	fees := trading.NewFeeSchedule(0.001, 1.0, 5)

	got := fees.Commission(decimal.NewFromInt(10_000))
	assert.True(t, got.Equal(decimal.NewFromInt(10)), "got %s", got)
}

func TestCommissionFloorApplies(t *testing.T) {
	fees := trading.NewFeeSchedule(0.001, 1.0, 5)

	// 500 * 0.001 = 0.50, below the floor
	got := fees.Commission(decimal.NewFromInt(500))
	assert.True(t, got.Equal(decimal.NewFromInt(1)), "got %s", got)
}

func TestFillPriceSlipsAgainstTaker(t *testing.T) {
	fees := trading.NewFeeSchedule(0.001, 1.0, 5)
	quote := decimal.NewFromInt(100)

	buy := fees.FillPrice(quote, models.OrderSideBuy)
	sell := fees.FillPrice(quote, models.OrderSideSell)

	assert.True(t, buy.Equal(decimal.RequireFromString("100.05")), "got %s", buy)
	assert.True(t, sell.Equal(decimal.RequireFromString("99.95")), "got %s", sell)
}

func TestFillPriceZeroSlippage(t *testing.T) {
	fees := trading.NewFeeSchedule(0.001, 1.0, 0)
	quote := decimal.NewFromInt(250)

	assert.True(t, fees.FillPrice(quote, models.OrderSideBuy).Equal(quote))
	assert.True(t, fees.FillPrice(quote, models.OrderSideSell).Equal(quote))
}
