package trading

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlasfin/atlasbank/pkg/models"
)

// applyFill folds one fill into a position and returns the realized PnL of
// the fill (zero for buys).
//
// Buys recompute the weighted-average cost:
//
//	newAvg = (oldQty*oldAvg + fillQty*fillPrice) / (oldQty + fillQty)
//
// Sells reduce quantity at the held average and realize
// (fillPrice - avg) * fillQty. Oversells are rejected upstream, so quantity
// never goes negative here.
func applyFill(pos *models.Position, side string, quantity, price decimal.Decimal) decimal.Decimal {
	now := time.Now()
	pos.UpdatedAt = now

	if side == models.OrderSideBuy {
		newQty := pos.Quantity.Add(quantity)
		cost := pos.Quantity.Mul(pos.AvgPrice).Add(quantity.Mul(price))
		pos.AvgPrice = cost.Div(newQty)
		pos.Quantity = newQty
		return decimal.Zero
	}

	realized := price.Sub(pos.AvgPrice).Mul(quantity)
	pos.Quantity = pos.Quantity.Sub(quantity)
	pos.RealizedPnL = pos.RealizedPnL.Add(realized)
	if pos.Quantity.IsZero() {
		pos.AvgPrice = decimal.Zero
	}
	return realized
}
