package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atlasfin/atlasbank/internal/bookkeeper"
	"github.com/atlasfin/atlasbank/internal/config"
	"github.com/atlasfin/atlasbank/internal/marketdata"
	"github.com/atlasfin/atlasbank/internal/messaging"
	"github.com/atlasfin/atlasbank/internal/trading/risk"
	"github.com/atlasfin/atlasbank/pkg/metrics"
	"github.com/atlasfin/atlasbank/pkg/models"
)

var validate = validator.New()

// TradingService defines the interface for order placement, execution and
// portfolio analytics.
type TradingService interface {
	Start() error
	Stop() error
	PlaceOrder(ctx context.Context, userID string, req *models.OrderRequest) (*models.Order, error)
	CancelOrder(ctx context.Context, userID, orderID string) (*models.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context, userID string, filter *models.OrderFilter) ([]*models.Order, error)
	ListTrades(ctx context.Context, userID string, limit int) ([]*models.Trade, error)
	ListPositions(ctx context.Context, userID string) ([]*models.Position, error)
	RiskReport(ctx context.Context, userID string) (*models.RiskReport, error)
}

// Service implements TradingService
type Service struct {
	logger     *zap.Logger
	db         *gorm.DB
	bookkeeper bookkeeper.BookkeeperService
	marketdata marketdata.MarketDataService
	publisher  messaging.Publisher

	validator  *Validator
	fees       FeeSchedule
	scorer     *risk.Scorer
	calculator *risk.Calculator
	limits     *risk.LimitConfig
	tracker    *risk.PositionTracker

	cfg config.TradingConfig
}

// NewService creates a new trading service
func NewService(
	logger *zap.Logger,
	db *gorm.DB,
	bk bookkeeper.BookkeeperService,
	md marketdata.MarketDataService,
	pub messaging.Publisher,
	cfg config.TradingConfig,
) (TradingService, error) {
	if pub == nil {
		pub = messaging.NoopPublisher{}
	}

	limits := risk.NewLimitConfig()

	return &Service{
		logger:     logger,
		db:         db,
		bookkeeper: bk,
		marketdata: md,
		publisher:  pub,
		validator:  NewValidator(cfg.PriceCollarPct),
		fees:       NewFeeSchedule(cfg.CommissionRate, cfg.CommissionFloor, cfg.SlippageBps),
		scorer: risk.NewScorer(risk.ScorerConfig{
			SizeWeight:       cfg.Risk.SizeWeight,
			VolatilityWeight: cfg.Risk.VolatilityWeight,
			LeverageWeight:   cfg.Risk.LeverageWeight,
			MaxOrderNotional: cfg.Risk.MaxOrderNotional,
			VolatilityCap:    cfg.Risk.VolatilityCap,
			MaxLeverage:      cfg.Risk.MaxLeverage,
			Threshold:        cfg.Risk.Threshold,
		}),
		calculator: risk.NewCalculator(risk.MetricsConfig{
			Confidence:     cfg.Risk.Confidence,
			RiskFreeRate:   cfg.Risk.RiskFreeRate,
			TradingDays:    cfg.Risk.TradingDays,
			MinObservation: cfg.Risk.MinObservation,
		}),
		limits:  limits,
		tracker: risk.NewPositionTracker(limits),
		cfg:     cfg,
	}, nil
}

// Start loads configured position limits and warms the in-memory position
// tracker from persisted positions.
func (s *Service) Start() error {
	for symbol, max := range s.cfg.Risk.SymbolPositionLimits {
		s.limits.SetSymbolLimit(symbol, decimal.NewFromFloat(max))
	}
	for _, userID := range s.cfg.Risk.ExemptAccounts {
		s.limits.AddExemptAccount(userID)
	}

	var positions []*models.Position
	if err := s.db.Find(&positions).Error; err != nil {
		return fmt.Errorf("failed to load positions: %w", err)
	}
	for _, pos := range positions {
		s.tracker.Update(pos.UserID.String(), pos.Symbol, pos.Quantity)
	}

	s.logger.Info("trading service started",
		zap.Int("tracked_positions", len(positions)),
		zap.Int("symbol_limits", len(s.cfg.Risk.SymbolPositionLimits)))
	return nil
}

// Stop stops the trading service
func (s *Service) Stop() error {
	return nil
}

// PlaceOrder runs the full order pipeline: validation, margin check, risk
// scoring and, for market orders, immediate execution. Rejected orders are
// persisted with their reason and the typed rejection error is returned
// alongside the stored order.
func (s *Service) PlaceOrder(ctx context.Context, userID string, req *models.OrderRequest) (*models.Order, error) {
	start := time.Now()
	defer func() { metrics.OrderLatency.Observe(time.Since(start).Seconds()) }()

	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid order request: %w", err)
	}

	order := &models.Order{
		ID:          uuid.New(),
		UserID:      uid,
		Symbol:      req.Symbol,
		Side:        req.Side,
		Type:        req.Type,
		Price:       req.Price,
		StopPrice:   req.StopPrice,
		Quantity:    req.Quantity,
		Leverage:    effectiveLeverage(req.Leverage),
		TimeInForce: req.TimeInForce,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	var inst models.Instrument
	if err := s.db.WithContext(ctx).Where("symbol = ?", req.Symbol).First(&inst).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.reject(ctx, order, ErrInstrumentNotFound)
		}
		return nil, fmt.Errorf("failed to load instrument: %w", err)
	}

	quote, err := s.marketdata.GetQuote(ctx, req.Symbol)
	if err != nil {
		if errors.Is(err, marketdata.ErrQuoteNotFound) {
			return s.reject(ctx, order, ErrNoQuote)
		}
		return nil, fmt.Errorf("failed to load quote: %w", err)
	}
	if s.cfg.QuoteStaleAfter > 0 && time.Since(quote.UpdatedAt) > s.cfg.QuoteStaleAfter {
		return s.reject(ctx, order, fmt.Errorf("%w: last update %s", ErrNoQuote, quote.UpdatedAt.Format(time.RFC3339)))
	}

	if err := s.validator.ValidateOrder(req, &inst, quote.Price); err != nil {
		return s.reject(ctx, order, err)
	}

	delta := req.Quantity
	if req.Side == models.OrderSideSell {
		delta = delta.Neg()
	}
	if err := s.tracker.CheckLimit(userID, req.Symbol, delta); err != nil {
		return s.reject(ctx, order, err)
	}

	available, heldQty, err := s.accountState(ctx, userID, inst.Currency, req.Symbol)
	if err != nil {
		return nil, err
	}
	if err := s.validator.CheckFunds(req, quote.Price, available, heldQty, s.fees); err != nil {
		return s.reject(ctx, order, err)
	}

	notional := req.Quantity.Mul(ReferencePrice(req, quote.Price))
	assessment := s.scorer.ScoreOrder(notional, inst.DailyVol, order.Leverage)
	if assessment.Exceeded {
		return s.reject(ctx, order, fmt.Errorf("%w: score %.2f above %.2f, dominant factor %s",
			ErrRiskLimitExceeded, assessment.Score, s.scorer.Threshold(), assessment.Dominant))
	}

	if req.Type == models.OrderTypeMarket {
		if err := s.executeMarket(ctx, order, &inst, quote, delta); err != nil {
			if errors.Is(err, bookkeeper.ErrInsufficientFunds) {
				return s.reject(ctx, order, err)
			}
			return nil, err
		}
	} else {
		order.Status = models.OrderStatusSubmitted
		if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
			return nil, fmt.Errorf("failed to persist order: %w", err)
		}
	}

	metrics.OrdersPlaced.WithLabelValues(order.Side, order.Type).Inc()
	s.logger.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID),
		zap.String("symbol", order.Symbol),
		zap.String("side", order.Side),
		zap.String("type", order.Type),
		zap.String("status", order.Status),
		zap.String("quantity", order.Quantity.String()),
		zap.Float64("risk_score", assessment.Score))
	return order, nil
}

// executeMarket fills a market order at the slipped quote price and commits
// the cash settlement, position update, trade and order records in one
// transaction.
func (s *Service) executeMarket(ctx context.Context, order *models.Order, inst *models.Instrument, quote *models.Quote, delta decimal.Decimal) error {
	fillPrice := s.fees.FillPrice(quote.Price, order.Side)
	if inst.PriceDecimals > 0 {
		fillPrice = fillPrice.Round(inst.PriceDecimals)
	}
	notional := order.Quantity.Mul(fillPrice)
	commission := s.fees.Commission(notional)

	cashDelta := notional.Neg()
	if order.Side == models.OrderSideSell {
		cashDelta = notional
	}

	now := time.Now()
	trade := &models.Trade{
		ID:         uuid.New(),
		OrderID:    order.ID,
		UserID:     order.UserID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Price:      fillPrice,
		Quantity:   order.Quantity,
		Notional:   notional,
		Commission: commission,
		Currency:   inst.Currency,
		CreatedAt:  now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := bookkeeper.SettleTradeTx(tx, order.UserID.String(), inst.Currency, cashDelta, commission, order.ID.String()); err != nil {
			return err
		}

		var pos models.Position
		err := tx.Where("user_id = ? AND symbol = ?", order.UserID, order.Symbol).First(&pos).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			pos = models.Position{
				ID:        uuid.New(),
				UserID:    order.UserID,
				Symbol:    order.Symbol,
				CreatedAt: now,
			}
		} else if err != nil {
			return fmt.Errorf("failed to load position: %w", err)
		}

		applyFill(&pos, order.Side, order.Quantity, fillPrice)
		pos.UpdatedAt = now
		if err := tx.Save(&pos).Error; err != nil {
			return fmt.Errorf("failed to save position: %w", err)
		}

		if err := tx.Create(trade).Error; err != nil {
			return fmt.Errorf("failed to create trade: %w", err)
		}

		order.Status = models.OrderStatusFilled
		order.AvgFillPrice = fillPrice
		order.FilledAt = &now
		order.UpdatedAt = now
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to persist order: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.tracker.Update(order.UserID.String(), order.Symbol, delta)
	metrics.TradesExecuted.WithLabelValues(order.Symbol).Inc()

	if err := s.publisher.PublishTrade(ctx, trade); err != nil {
		s.logger.Warn("failed to publish trade event",
			zap.String("trade_id", trade.ID.String()), zap.Error(err))
	}
	return nil
}

// reject persists the order with its rejection reason, publishes the
// rejection event and returns the order together with the typed error.
func (s *Service) reject(ctx context.Context, order *models.Order, cause error) (*models.Order, error) {
	order.Status = models.OrderStatusRejected
	order.RejectReason = cause.Error()
	order.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		s.logger.Error("failed to persist rejected order",
			zap.String("order_id", order.ID.String()), zap.Error(err))
	}

	metrics.OrdersRejected.WithLabelValues(rejectionLabel(cause)).Inc()

	if err := s.publisher.PublishRejection(ctx, order, order.RejectReason); err != nil {
		s.logger.Warn("failed to publish rejection event",
			zap.String("order_id", order.ID.String()), zap.Error(err))
	}

	s.logger.Info("order rejected",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", order.UserID.String()),
		zap.String("symbol", order.Symbol),
		zap.String("reason", order.RejectReason))
	return order, cause
}

// rejectionLabel buckets rejection causes into a bounded set of metric labels
func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, ErrInstrumentNotFound), errors.Is(err, ErrInstrumentSuspended):
		return "instrument"
	case errors.Is(err, ErrNoQuote):
		return "no_quote"
	case errors.Is(err, bookkeeper.ErrInsufficientFunds), errors.Is(err, ErrOversell):
		return "funds"
	case errors.Is(err, risk.ErrPositionLimit):
		return "position_limit"
	case errors.Is(err, ErrRiskLimitExceeded):
		return "risk_score"
	default:
		return "validation"
	}
}

// CancelOrder cancels a submitted order. Filled, cancelled and rejected
// orders are final.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusSubmitted {
		return nil, fmt.Errorf("%w: status %s", ErrOrderNotCancellable, order.Status)
	}

	// status-guarded update so a concurrent cancel or fill cannot race past
	// the check above
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND user_id = ? AND status = ?", orderID, userID, models.OrderStatusSubmitted).
		Updates(map[string]interface{}{"status": models.OrderStatusCancelled, "updated_at": now})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: order already finalized", ErrOrderNotCancellable)
	}
	order.Status = models.OrderStatusCancelled
	order.UpdatedAt = now

	s.logger.Info("order cancelled",
		zap.String("order_id", order.ID.String()), zap.String("user_id", userID))
	return order, nil
}

// GetOrder returns one of the user's orders by id
func (s *Service) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}

// ListOrders returns the user's orders, optionally filtered by status, type
// and symbol, newest first.
func (s *Service) ListOrders(ctx context.Context, userID string, filter *models.OrderFilter) ([]*models.Order, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter != nil {
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Type != "" {
			q = q.Where("type = ?", filter.Type)
		}
		if filter.Symbol != "" {
			q = q.Where("symbol = ?", filter.Symbol)
		}
	}

	var orders []*models.Order
	if err := q.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListTrades returns the user's fills, newest first
func (s *Service) ListTrades(ctx context.Context, userID string, limit int) ([]*models.Trade, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var trades []*models.Trade
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).
		Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}

// ListPositions returns the user's open positions
func (s *Service) ListPositions(ctx context.Context, userID string) ([]*models.Position, error) {
	var positions []*models.Position
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND quantity != 0", userID).
		Order("symbol ASC").
		Find(&positions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	return positions, nil
}

// RiskReport marks today's portfolio valuation and computes VaR, Sharpe
// ratio, annualized volatility and maximum drawdown over the configured
// lookback window.
func (s *Service) RiskReport(ctx context.Context, userID string) (*models.RiskReport, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}

	value, err := s.portfolioValue(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	snapshot := &models.PortfolioValuation{
		UserID:    uid,
		Day:       today,
		Value:     value,
		CreatedAt: time.Now(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "day"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(snapshot).Error
	if err != nil {
		return nil, fmt.Errorf("failed to record valuation: %w", err)
	}

	since := today.AddDate(0, 0, -s.cfg.Risk.LookbackDays)
	var valuations []*models.PortfolioValuation
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND day >= ?", uid, since).
		Order("day ASC").
		Find(&valuations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load valuations: %w", err)
	}

	series := make([]float64, len(valuations))
	for i, v := range valuations {
		series[i] = v.Value.InexactFloat64()
	}

	m := s.calculator.Compute(series)
	metrics.RiskReportsComputed.Inc()

	return &models.RiskReport{
		UserID:         uid,
		PortfolioValue: value,
		HistoricalVaR:  decimal.NewFromFloat(m.HistoricalVaR),
		ParametricVaR:  decimal.NewFromFloat(m.ParametricVaR),
		Confidence:     s.cfg.Risk.Confidence,
		SharpeRatio:    decimal.NewFromFloat(m.SharpeRatio),
		Volatility:     decimal.NewFromFloat(m.Volatility),
		MaxDrawdown:    decimal.NewFromFloat(m.MaxDrawdown),
		Observations:   m.Observations,
	}, nil
}

// portfolioValue sums cash balances and open positions marked at the latest
// quote. Positions without a quote are carried at average cost.
func (s *Service) portfolioValue(ctx context.Context, userID string) (decimal.Decimal, error) {
	value := decimal.Zero

	accounts, err := s.bookkeeper.GetAccounts(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load accounts: %w", err)
	}
	for _, acct := range accounts {
		value = value.Add(acct.Balance)
	}

	positions, err := s.ListPositions(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	for _, pos := range positions {
		price := pos.AvgPrice
		if quote, err := s.marketdata.GetQuote(ctx, pos.Symbol); err == nil {
			price = quote.Price
		}
		value = value.Add(pos.Quantity.Mul(price))
	}
	return value, nil
}

// accountState returns the available cash in the instrument currency and
// the held quantity in the symbol. A missing account reads as zero cash.
func (s *Service) accountState(ctx context.Context, userID, currency, symbol string) (decimal.Decimal, decimal.Decimal, error) {
	available := decimal.Zero
	account, err := s.bookkeeper.GetAccount(ctx, userID, currency)
	if err != nil && !errors.Is(err, bookkeeper.ErrAccountNotFound) {
		return decimal.Zero, decimal.Zero, err
	}
	if account != nil {
		available = account.Available
	}

	heldQty := decimal.Zero
	var pos models.Position
	err = s.db.WithContext(ctx).Where("user_id = ? AND symbol = ?", userID, symbol).First(&pos).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to load position: %w", err)
	}
	if err == nil {
		heldQty = pos.Quantity
	}
	return available, heldQty, nil
}
