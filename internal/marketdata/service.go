package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/atlasfin/atlasbank/pkg/models"
)

// ErrQuoteNotFound is returned when no quote exists for a symbol.
var ErrQuoteNotFound = errors.New("quote not found")

const quoteCacheTTL = 30 * time.Second

// MarketDataService defines quote and candle operations
type MarketDataService interface {
	Start() error
	Stop() error
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	ListQuotes(ctx context.Context) ([]*models.Quote, error)
	UpsertQuote(ctx context.Context, quote *models.Quote) error
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error)
}

// Service implements MarketDataService. The redis client is optional; when
// nil all reads go straight to the database.
type Service struct {
	logger *zap.Logger
	db     *gorm.DB
	cache  *redis.Client
}

// NewService creates a new MarketDataService
func NewService(logger *zap.Logger, db *gorm.DB, cache *redis.Client) (MarketDataService, error) {
	return &Service{logger: logger, db: db, cache: cache}, nil
}

// Start starts the market data service
func (s *Service) Start() error {
	s.logger.Info("Market data service started")
	return nil
}

// Stop stops the market data service
func (s *Service) Stop() error {
	s.logger.Info("Market data service stopped")
	return nil
}

// GetQuote returns the latest quote for a symbol, cache first
func (s *Service) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if quote := s.cachedQuote(ctx, symbol); quote != nil {
		return quote, nil
	}

	var quote models.Quote
	if err := s.db.WithContext(ctx).Where("symbol = ?", symbol).First(&quote).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuoteNotFound
		}
		return nil, fmt.Errorf("failed to find quote: %w", err)
	}

	s.fillCache(ctx, &quote)
	return &quote, nil
}

// ListQuotes returns the latest quote for every symbol
func (s *Service) ListQuotes(ctx context.Context) ([]*models.Quote, error) {
	var quotes []*models.Quote
	if err := s.db.WithContext(ctx).Order("symbol ASC").Find(&quotes).Error; err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	return quotes, nil
}

// UpsertQuote stores a quote and refreshes the cache entry
func (s *Service) UpsertQuote(ctx context.Context, quote *models.Quote) error {
	if quote.Symbol == "" {
		return fmt.Errorf("quote symbol is required")
	}
	if quote.UpdatedAt.IsZero() {
		quote.UpdatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Save(quote).Error; err != nil {
		return fmt.Errorf("failed to save quote: %w", err)
	}
	s.fillCache(ctx, quote)
	return nil
}

// GetCandles returns up to limit most recent candles for a symbol/interval
func (s *Service) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var candles []*models.Candle
	if err := s.db.WithContext(ctx).
		Where("symbol = ? AND interval = ?", symbol, interval).
		Order("timestamp DESC").Limit(limit).
		Find(&candles).Error; err != nil {
		return nil, fmt.Errorf("failed to find candles: %w", err)
	}
	return candles, nil
}

func (s *Service) cachedQuote(ctx context.Context, symbol string) *models.Quote {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, quoteKey(symbol)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("Quote cache read failed", zap.String("symbol", symbol), zap.Error(err))
		}
		return nil
	}
	var quote models.Quote
	if err := json.Unmarshal(raw, &quote); err != nil {
		s.logger.Warn("Quote cache entry corrupt", zap.String("symbol", symbol), zap.Error(err))
		return nil
	}
	return &quote
}

func (s *Service) fillCache(ctx context.Context, quote *models.Quote) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(quote)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, quoteKey(quote.Symbol), raw, quoteCacheTTL).Err(); err != nil {
		s.logger.Warn("Quote cache write failed", zap.String("symbol", quote.Symbol), zap.Error(err))
	}
}

func quoteKey(symbol string) string {
	return "quote:" + symbol
}
