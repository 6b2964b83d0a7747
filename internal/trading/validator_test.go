package trading_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/atlasfin/atlasbank/internal/bookkeeper"
	"github.com/atlasfin/atlasbank/internal/trading"
	"github.com/atlasfin/atlasbank/pkg/models"
)

func testInstrument() *models.Instrument {
	return &models.Instrument{
		Symbol:      "AAPL",
		Currency:    "USD",
		MinQuantity: decimal.NewFromInt(1),
		MaxQuantity: decimal.NewFromInt(1000),
		LotSize:     decimal.NewFromInt(1),
		MaxLeverage: decimal.NewFromInt(10),
		Status:      "active",
	}
}

func marketBuy(qty int64) *models.OrderRequest {
	return &models.OrderRequest{
		Symbol:      "AAPL",
		Side:        models.OrderSideBuy,
		Type:        models.OrderTypeMarket,
		Quantity:    decimal.NewFromInt(qty),
		TimeInForce: models.TimeInForceGTC,
	}
}

func TestValidateOrderSuspendedInstrument(t *testing.T) {
	v := trading.NewValidator(0.10)
	inst := testInstrument()
	inst.Status = "suspended"

	err := v.ValidateOrder(marketBuy(10), inst, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, trading.ErrInstrumentSuspended)
}

func TestValidateOrderQuantityBounds(t *testing.T) {
	v := trading.NewValidator(0.10)
	inst := testInstrument()
	quote := decimal.NewFromInt(100)

	req := marketBuy(10)
	req.Quantity = decimal.RequireFromString("0.5")
	assert.ErrorIs(t, v.ValidateOrder(req, inst, quote), trading.ErrQuantityBounds)

	req.Quantity = decimal.NewFromInt(5000)
	assert.ErrorIs(t, v.ValidateOrder(req, inst, quote), trading.ErrQuantityBounds)

	req.Quantity = decimal.NewFromInt(500)
	assert.NoError(t, v.ValidateOrder(req, inst, quote))
}

func TestValidateOrderNonPositiveQuantity(t *testing.T) {
	v := trading.NewValidator(0.10)
	// a zero MinQuantity must not let a zero-quantity order through
	inst := testInstrument()
	inst.MinQuantity = decimal.Zero
	quote := decimal.NewFromInt(100)

	req := marketBuy(10)
	req.Quantity = decimal.Zero
	assert.ErrorIs(t, v.ValidateOrder(req, inst, quote), trading.ErrQuantityBounds)

	req.Quantity = decimal.NewFromInt(-5)
	assert.ErrorIs(t, v.ValidateOrder(req, inst, quote), trading.ErrQuantityBounds)
}

func TestValidateOrderLotSize(t *testing.T) {
	v := trading.NewValidator(0.10)
	inst := testInstrument()
	inst.LotSize = decimal.NewFromInt(5)

	req := marketBuy(7)
	assert.ErrorIs(t, v.ValidateOrder(req, inst, decimal.NewFromInt(100)), trading.ErrLotSize)

	req.Quantity = decimal.NewFromInt(15)
	assert.NoError(t, v.ValidateOrder(req, inst, decimal.NewFromInt(100)))
}

func TestValidateOrderLimitPriceRequired(t *testing.T) {
	v := trading.NewValidator(0.10)
	req := marketBuy(10)
	req.Type = models.OrderTypeLimit

	assert.ErrorIs(t, v.ValidateOrder(req, testInstrument(), decimal.NewFromInt(100)), trading.ErrPriceRequired)
}

func TestValidateOrderPriceCollar(t *testing.T) {
	v := trading.NewValidator(0.10)
	inst := testInstrument()
	quote := decimal.NewFromInt(100)

	req := marketBuy(10)
	req.Type = models.OrderTypeLimit
	req.Price = decimal.NewFromInt(115)
	assert.ErrorIs(t, v.ValidateOrder(req, inst, quote), trading.ErrPriceCollar)

	req.Price = decimal.NewFromInt(109)
	assert.NoError(t, v.ValidateOrder(req, inst, quote))

	// the collar cuts both ways
	req.Price = decimal.NewFromInt(85)
	assert.ErrorIs(t, v.ValidateOrder(req, inst, quote), trading.ErrPriceCollar)
}

func TestValidateOrderStopDirection(t *testing.T) {
	v := trading.NewValidator(0.10)
	inst := testInstrument()
	quote := decimal.NewFromInt(100)

	buyStop := marketBuy(10)
	buyStop.Type = models.OrderTypeStop
	below := decimal.NewFromInt(95)
	buyStop.StopPrice = &below
	assert.ErrorIs(t, v.ValidateOrder(buyStop, inst, quote), trading.ErrStopPriceDirection)

	above := decimal.NewFromInt(105)
	buyStop.StopPrice = &above
	assert.NoError(t, v.ValidateOrder(buyStop, inst, quote))

	sellStop := marketBuy(10)
	sellStop.Side = models.OrderSideSell
	sellStop.Type = models.OrderTypeStop
	sellStop.StopPrice = &above
	assert.ErrorIs(t, v.ValidateOrder(sellStop, inst, quote), trading.ErrStopPriceDirection)

	sellStop.StopPrice = &below
	assert.NoError(t, v.ValidateOrder(sellStop, inst, quote))
}

func TestValidateOrderStopPriceRequired(t *testing.T) {
	v := trading.NewValidator(0.10)
	req := marketBuy(10)
	req.Type = models.OrderTypeStop

	assert.ErrorIs(t, v.ValidateOrder(req, testInstrument(), decimal.NewFromInt(100)), trading.ErrStopPriceRequired)
}

func TestValidateOrderStopLimitNeedsBoth(t *testing.T) {
	v := trading.NewValidator(0.10)
	inst := testInstrument()
	quote := decimal.NewFromInt(100)

	req := marketBuy(10)
	req.Type = models.OrderTypeStopLimit
	assert.ErrorIs(t, v.ValidateOrder(req, inst, quote), trading.ErrPriceRequired)

	req.Price = decimal.NewFromInt(106)
	assert.ErrorIs(t, v.ValidateOrder(req, inst, quote), trading.ErrStopPriceRequired)

	stop := decimal.NewFromInt(105)
	req.StopPrice = &stop
	assert.NoError(t, v.ValidateOrder(req, inst, quote))
}

func TestValidateOrderLeverage(t *testing.T) {
	v := trading.NewValidator(0.10)
	req := marketBuy(10)
	req.Leverage = decimal.NewFromInt(20)

	assert.ErrorIs(t, v.ValidateOrder(req, testInstrument(), decimal.NewFromInt(100)), trading.ErrLeverageExceeded)
}

func TestCheckFundsBuyMargin(t *testing.T) {
	v := trading.NewValidator(0.10)
	fees := trading.NewFeeSchedule(0.001, 1.0, 5)
	quote := decimal.NewFromInt(100)

	// 10 * 100 = 1000 notional + 1 commission
	req := marketBuy(10)
	err := v.CheckFunds(req, quote, decimal.NewFromInt(1000), decimal.Zero, fees)
	assert.ErrorIs(t, err, bookkeeper.ErrInsufficientFunds)

	assert.NoError(t, v.CheckFunds(req, quote, decimal.NewFromInt(1001), decimal.Zero, fees))
}

func TestCheckFundsLeverageReducesMargin(t *testing.T) {
	v := trading.NewValidator(0.10)
	fees := trading.NewFeeSchedule(0.001, 1.0, 5)
	quote := decimal.NewFromInt(100)

	req := marketBuy(10)
	req.Leverage = decimal.NewFromInt(5)

	// 1000/5 + 1 = 201
	assert.NoError(t, v.CheckFunds(req, quote, decimal.NewFromInt(201), decimal.Zero, fees))
	assert.ErrorIs(t, v.CheckFunds(req, quote, decimal.NewFromInt(200), decimal.Zero, fees),
		bookkeeper.ErrInsufficientFunds)
}

func TestCheckFundsSellNeedsPosition(t *testing.T) {
	v := trading.NewValidator(0.10)
	fees := trading.NewFeeSchedule(0.001, 1.0, 5)
	quote := decimal.NewFromInt(100)

	req := marketBuy(10)
	req.Side = models.OrderSideSell

	assert.ErrorIs(t, v.CheckFunds(req, quote, decimal.Zero, decimal.NewFromInt(5), fees), trading.ErrOversell)
	assert.NoError(t, v.CheckFunds(req, quote, decimal.Zero, decimal.NewFromInt(10), fees))
}
