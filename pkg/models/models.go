package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order sides, types, statuses and time-in-force options accepted by the
// trading service.
const (
	OrderSideBuy  = "buy"
	OrderSideSell = "sell"

	OrderTypeMarket    = "market"
	OrderTypeLimit     = "limit"
	OrderTypeStop      = "stop"
	OrderTypeStopLimit = "stop-limit"

	OrderStatusSubmitted = "submitted"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
	OrderStatusRejected  = "rejected"

	TimeInForceGTC = "GTC" // Good Till Cancelled
	TimeInForceIOC = "IOC" // Immediate Or Cancel
	TimeInForceFOK = "FOK" // Fill Or Kill
	TimeInForceDay = "DAY"
)

// User represents a platform user
type User struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	Email        string    `json:"email" gorm:"uniqueIndex" validate:"required,email,max=254"`
	Username     string    `json:"username" gorm:"uniqueIndex" validate:"required,min=3,max=30,alphanum"`
	PasswordHash string    `json:"-" gorm:"column:password_hash" validate:"required,min=60"`
	FirstName    string    `json:"first_name" validate:"required,min=1,max=50"`
	LastName     string    `json:"last_name" validate:"required,min=1,max=50"`
	Role         string    `json:"role" gorm:"default:user" validate:"required,oneof=user admin"`
	MFAEnabled   bool      `json:"mfa_enabled"`
	TOTPSecret   string    `json:"-" gorm:"column:totp_secret" validate:"omitempty,base32"`
	LastLogin    time.Time `json:"last_login"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Account represents a user's cash account for a specific currency
type Account struct {
	ID        uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	UserID    uuid.UUID       `json:"user_id" gorm:"type:uuid;index:idx_account_user_ccy,unique" validate:"required,uuid"`
	Currency  string          `json:"currency" gorm:"index:idx_account_user_ccy,unique" validate:"required,uppercase,len=3"`
	Balance   decimal.Decimal `json:"balance" gorm:"type:decimal(32,12)"`
	Available decimal.Decimal `json:"available" gorm:"type:decimal(32,12)"`
	Locked    decimal.Decimal `json:"locked" gorm:"type:decimal(32,12)"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Transaction represents a ledger entry against a user's cash account
type Transaction struct {
	ID          uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	UserID      uuid.UUID       `json:"user_id" gorm:"type:uuid;index" validate:"required,uuid"`
	Type        string          `json:"type" validate:"required,oneof=deposit withdrawal trade commission"`
	Direction   string          `json:"direction" validate:"required,oneof=credit debit"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(32,12)"`
	Currency    string          `json:"currency" validate:"required,uppercase,len=3"`
	Status      string          `json:"status" validate:"required,oneof=pending completed failed"`
	Reference   string          `json:"reference" validate:"omitempty,max=255"`
	Description string          `json:"description" validate:"omitempty,max=500"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at"`
}

// Instrument represents a tradable instrument and its order constraints
type Instrument struct {
	ID            uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	Symbol        string          `json:"symbol" gorm:"uniqueIndex" validate:"required,min=3,max=20"`
	Name          string          `json:"name" validate:"required,max=100"`
	Currency      string          `json:"currency" validate:"required,uppercase,len=3"`
	MinQuantity   decimal.Decimal `json:"min_quantity" gorm:"type:decimal(32,12)"`
	MaxQuantity   decimal.Decimal `json:"max_quantity" gorm:"type:decimal(32,12)"`
	LotSize       decimal.Decimal `json:"lot_size" gorm:"type:decimal(32,12)"`
	MaxLeverage   decimal.Decimal `json:"max_leverage" gorm:"type:decimal(8,2)"`
	DailyVol      decimal.Decimal `json:"daily_vol" gorm:"type:decimal(12,8)"` // daily return volatility, e.g. 0.02
	Status        string          `json:"status" gorm:"default:active" validate:"required,oneof=active suspended"`
	PriceDecimals int32           `json:"price_decimals" validate:"min=0,max=12"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Order represents an order in the system
type Order struct {
	ID           uuid.UUID        `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	UserID       uuid.UUID        `json:"user_id" gorm:"type:uuid;index" validate:"required,uuid"`
	Symbol       string           `json:"symbol" gorm:"index" validate:"required"`
	Side         string           `json:"side" validate:"required,oneof=buy sell"`
	Type         string           `json:"type" validate:"required,oneof=market limit stop stop-limit"`
	Price        decimal.Decimal  `json:"price" gorm:"type:decimal(32,12)"`
	StopPrice    *decimal.Decimal `json:"stop_price,omitempty" gorm:"type:decimal(32,12)"`
	Quantity     decimal.Decimal  `json:"quantity" gorm:"type:decimal(32,12)"`
	Leverage     decimal.Decimal  `json:"leverage" gorm:"type:decimal(8,2)"`
	TimeInForce  string           `json:"time_in_force" validate:"required,oneof=GTC IOC FOK DAY"`
	Status       string           `json:"status" validate:"required,oneof=submitted filled cancelled rejected"`
	RejectReason string           `json:"reject_reason,omitempty"`
	AvgFillPrice decimal.Decimal  `json:"avg_fill_price" gorm:"type:decimal(32,12)"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	FilledAt     *time.Time       `json:"filled_at"`
}

// Trade represents an executed fill
type Trade struct {
	ID         uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	OrderID    uuid.UUID       `json:"order_id" gorm:"type:uuid;index" validate:"required,uuid"`
	UserID     uuid.UUID       `json:"user_id" gorm:"type:uuid;index" validate:"required,uuid"`
	Symbol     string          `json:"symbol" gorm:"index" validate:"required"`
	Side       string          `json:"side" validate:"required,oneof=buy sell"`
	Price      decimal.Decimal `json:"price" gorm:"type:decimal(32,12)"`
	Quantity   decimal.Decimal `json:"quantity" gorm:"type:decimal(32,12)"`
	Notional   decimal.Decimal `json:"notional" gorm:"type:decimal(32,12)"`
	Commission decimal.Decimal `json:"commission" gorm:"type:decimal(32,12)"`
	Currency   string          `json:"currency" validate:"required,uppercase,len=3"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Position represents a user's holding in an instrument
type Position struct {
	ID          uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	UserID      uuid.UUID       `json:"user_id" gorm:"type:uuid;index:idx_position_user_symbol,unique" validate:"required,uuid"`
	Symbol      string          `json:"symbol" gorm:"index:idx_position_user_symbol,unique" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity" gorm:"type:decimal(32,12)"`
	AvgPrice    decimal.Decimal `json:"avg_price" gorm:"type:decimal(32,12)"`
	RealizedPnL decimal.Decimal `json:"realized_pnl" gorm:"type:decimal(32,12)"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Quote represents the latest market quote for a symbol
type Quote struct {
	Symbol    string          `json:"symbol" gorm:"primaryKey" validate:"required"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(32,12)"`
	Change24h decimal.Decimal `json:"change_24h" gorm:"type:decimal(12,6)"`
	Volume24h decimal.Decimal `json:"volume_24h" gorm:"type:decimal(32,12)"`
	High24h   decimal.Decimal `json:"high_24h" gorm:"type:decimal(32,12)"`
	Low24h    decimal.Decimal `json:"low_24h" gorm:"type:decimal(32,12)"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Candle represents one OHLCV bar for a symbol and interval
type Candle struct {
	ID        uint            `json:"-" gorm:"primaryKey"`
	Symbol    string          `json:"symbol" gorm:"index:idx_candle_symbol_interval" validate:"required"`
	Interval  string          `json:"interval" gorm:"index:idx_candle_symbol_interval" validate:"required,oneof=1m 5m 15m 1h 4h 1d"`
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open" gorm:"type:decimal(32,12)"`
	High      decimal.Decimal `json:"high" gorm:"type:decimal(32,12)"`
	Low       decimal.Decimal `json:"low" gorm:"type:decimal(32,12)"`
	Close     decimal.Decimal `json:"close" gorm:"type:decimal(32,12)"`
	Volume    decimal.Decimal `json:"volume" gorm:"type:decimal(32,12)"`
}

// PortfolioValuation is a daily snapshot of a user's total portfolio value,
// used to build the return series behind VaR/Sharpe/drawdown.
type PortfolioValuation struct {
	ID        uint            `json:"-" gorm:"primaryKey"`
	UserID    uuid.UUID       `json:"user_id" gorm:"type:uuid;index:idx_valuation_user_day,unique" validate:"required,uuid"`
	Day       time.Time       `json:"day" gorm:"index:idx_valuation_user_day,unique"`
	Value     decimal.Decimal `json:"value" gorm:"type:decimal(32,12)"`
	CreatedAt time.Time       `json:"created_at"`
}
