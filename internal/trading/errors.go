package trading

import "errors"

// Rejection errors surfaced by the order pipeline. The API layer maps these
// to HTTP status codes; the messages are what clients see.
var (
	ErrInstrumentNotFound  = errors.New("instrument not found")
	ErrInstrumentSuspended = errors.New("instrument suspended")
	ErrQuantityBounds      = errors.New("quantity outside instrument bounds")
	ErrLotSize             = errors.New("quantity not a multiple of lot size")
	ErrPriceRequired       = errors.New("price required for this order type")
	ErrPriceCollar         = errors.New("price outside allowed band around market")
	ErrStopPriceDirection  = errors.New("stop price on wrong side of market")
	ErrStopPriceRequired   = errors.New("stop price required for this order type")
	ErrNoQuote             = errors.New("no current quote for instrument")
	ErrLeverageExceeded    = errors.New("leverage above instrument maximum")
	ErrRiskLimitExceeded   = errors.New("order risk score above threshold")
	ErrOversell            = errors.New("sell quantity exceeds held position")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotCancellable = errors.New("order is not cancellable")
)
