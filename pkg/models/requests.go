package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email" validate:"required,email,max=254"`
	Username  string `json:"username" binding:"required,min=3,max=30" validate:"required,min=3,max=30,alphanum"`
	Password  string `json:"password" binding:"required,min=8" validate:"required,min=8,max=128"`
	FirstName string `json:"first_name" binding:"required" validate:"required,min=1,max=50"`
	LastName  string `json:"last_name" binding:"required" validate:"required,min=1,max=50"`
}

// LoginRequest represents a user login request
type LoginRequest struct {
	Login    string `json:"login" binding:"required" validate:"required,max=254"` // email or username
	Password string `json:"password" binding:"required" validate:"required,min=8,max=128"`
}

// LoginResponse represents a user login response
type LoginResponse struct {
	User        *User     `json:"user,omitempty"`
	Token       string    `json:"token,omitempty"`
	Requires2FA bool      `json:"requires_2fa"`
	UserID      uuid.UUID `json:"user_id,omitempty"`
}

// TwoFAVerifyRequest represents a TOTP verification request
type TwoFAVerifyRequest struct {
	UserID string `json:"user_id" binding:"required,uuid" validate:"required,uuid"`
	Token  string `json:"token" binding:"required,len=6,numeric" validate:"required,len=6,numeric"`
}

// TwoFAConfirmRequest confirms a pending TOTP enrollment
type TwoFAConfirmRequest struct {
	Token string `json:"token" binding:"required,len=6,numeric" validate:"required,len=6,numeric"`
}

// OrderRequest represents an order placement request
type OrderRequest struct {
	Symbol      string           `json:"symbol" binding:"required" validate:"required,min=3,max=20"`
	Side        string           `json:"side" binding:"required,oneof=buy sell" validate:"required,oneof=buy sell"`
	Type        string           `json:"type" binding:"required,oneof=market limit stop stop-limit" validate:"required,oneof=market limit stop stop-limit"`
	Price       decimal.Decimal  `json:"price"`
	StopPrice   *decimal.Decimal `json:"stop_price,omitempty"`
	Quantity    decimal.Decimal  `json:"quantity" binding:"required"`
	Leverage    decimal.Decimal  `json:"leverage"`
	TimeInForce string           `json:"time_in_force" binding:"required,oneof=GTC IOC FOK DAY" validate:"required,oneof=GTC IOC FOK DAY"`
}

// OrderFilter represents filters for listing orders
type OrderFilter struct {
	Status string `form:"status" json:"status" validate:"omitempty,oneof=submitted filled cancelled rejected"`
	Type   string `form:"type" json:"type" validate:"omitempty,oneof=market limit stop stop-limit"`
	Symbol string `form:"symbol" json:"symbol" validate:"omitempty"`
}

// RiskReport carries the portfolio analytics computed for one user
type RiskReport struct {
	UserID         uuid.UUID       `json:"user_id"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	HistoricalVaR  decimal.Decimal `json:"historical_var"` // loss at the configured confidence, positive number
	ParametricVaR  decimal.Decimal `json:"parametric_var"`
	Confidence     float64         `json:"confidence"`
	SharpeRatio    decimal.Decimal `json:"sharpe_ratio"`
	Volatility     decimal.Decimal `json:"volatility"` // annualized
	MaxDrawdown    decimal.Decimal `json:"max_drawdown"`
	Observations   int             `json:"observations"`
}
