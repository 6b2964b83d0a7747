package trading

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atlasfin/atlasbank/internal/bookkeeper"
	"github.com/atlasfin/atlasbank/pkg/models"
)

// Validator performs pre-trade checks of an order request against the
// instrument's constraints and the current market quote.
type Validator struct {
	collarPct decimal.Decimal // allowed limit-price band around the quote, e.g. 0.10
}

// NewValidator builds a Validator with the configured price collar
func NewValidator(priceCollarPct float64) *Validator {
	return &Validator{collarPct: decimal.NewFromFloat(priceCollarPct)}
}

// ValidateOrder checks quantity bounds, lot size, price presence and sanity,
// stop-price direction and leverage against the instrument and quote.
func (v *Validator) ValidateOrder(req *models.OrderRequest, inst *models.Instrument, quotePrice decimal.Decimal) error {
	if inst.Status != "active" {
		return ErrInstrumentSuspended
	}

	if !req.Quantity.IsPositive() {
		return fmt.Errorf("%w: %s", ErrQuantityBounds, req.Quantity)
	}
	if req.Quantity.LessThan(inst.MinQuantity) || req.Quantity.GreaterThan(inst.MaxQuantity) {
		return fmt.Errorf("%w: %s not in [%s, %s]", ErrQuantityBounds, req.Quantity, inst.MinQuantity, inst.MaxQuantity)
	}
	if inst.LotSize.IsPositive() && !req.Quantity.Mod(inst.LotSize).IsZero() {
		return fmt.Errorf("%w: %s with lot %s", ErrLotSize, req.Quantity, inst.LotSize)
	}

	leverage := effectiveLeverage(req.Leverage)
	if inst.MaxLeverage.IsPositive() && leverage.GreaterThan(inst.MaxLeverage) {
		return fmt.Errorf("%w: %s > %s", ErrLeverageExceeded, leverage, inst.MaxLeverage)
	}

	switch req.Type {
	case models.OrderTypeMarket:
		// no price fields to check

	case models.OrderTypeLimit:
		if !req.Price.IsPositive() {
			return ErrPriceRequired
		}
		if err := v.checkCollar(req.Price, quotePrice); err != nil {
			return err
		}

	case models.OrderTypeStop:
		if req.StopPrice == nil || !req.StopPrice.IsPositive() {
			return ErrStopPriceRequired
		}
		if err := checkStopDirection(req.Side, *req.StopPrice, quotePrice); err != nil {
			return err
		}

	case models.OrderTypeStopLimit:
		if !req.Price.IsPositive() {
			return ErrPriceRequired
		}
		if req.StopPrice == nil || !req.StopPrice.IsPositive() {
			return ErrStopPriceRequired
		}
		if err := checkStopDirection(req.Side, *req.StopPrice, quotePrice); err != nil {
			return err
		}
		if err := v.checkCollar(req.Price, quotePrice); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unsupported order type %q", req.Type)
	}

	return nil
}

// CheckFunds verifies the account can carry the order: buys need available
// cash for notional/leverage plus the commission estimate, plain sells need
// a sufficient held position.
func (v *Validator) CheckFunds(req *models.OrderRequest, quotePrice, available, heldQty decimal.Decimal, fees FeeSchedule) error {
	if req.Side == models.OrderSideSell {
		if req.Quantity.GreaterThan(heldQty) {
			return fmt.Errorf("%w: selling %s, holding %s", ErrOversell, req.Quantity, heldQty)
		}
		return nil
	}

	notional := req.Quantity.Mul(ReferencePrice(req, quotePrice))
	required := notional.Div(effectiveLeverage(req.Leverage)).Add(fees.Commission(notional))
	if available.LessThan(required) {
		return fmt.Errorf("%w: need %s, available %s", bookkeeper.ErrInsufficientFunds, required, available)
	}
	return nil
}

// ReferencePrice picks the price an order is costed and risk-scored at:
// the quote for market orders, the limit price otherwise, the stop price
// for plain stops.
func ReferencePrice(req *models.OrderRequest, quotePrice decimal.Decimal) decimal.Decimal {
	switch req.Type {
	case models.OrderTypeMarket:
		return quotePrice
	case models.OrderTypeStop:
		if req.StopPrice != nil {
			return *req.StopPrice
		}
		return quotePrice
	default:
		return req.Price
	}
}

func (v *Validator) checkCollar(price, quotePrice decimal.Decimal) error {
	if !quotePrice.IsPositive() {
		return ErrNoQuote
	}
	band := quotePrice.Mul(v.collarPct)
	if price.Sub(quotePrice).Abs().GreaterThan(band) {
		return fmt.Errorf("%w: price %s, market %s, band %s", ErrPriceCollar, price, quotePrice, band)
	}
	return nil
}

// checkStopDirection enforces buy stops above the market and sell stops
// below it; the inverted relationship is a rejection.
func checkStopDirection(side string, stopPrice, quotePrice decimal.Decimal) error {
	if side == models.OrderSideBuy && stopPrice.LessThanOrEqual(quotePrice) {
		return fmt.Errorf("%w: buy stop %s must be above market %s", ErrStopPriceDirection, stopPrice, quotePrice)
	}
	if side == models.OrderSideSell && stopPrice.GreaterThanOrEqual(quotePrice) {
		return fmt.Errorf("%w: sell stop %s must be below market %s", ErrStopPriceDirection, stopPrice, quotePrice)
	}
	return nil
}

func effectiveLeverage(leverage decimal.Decimal) decimal.Decimal {
	if leverage.IsPositive() {
		return leverage
	}
	return decimal.NewFromInt(1)
}
