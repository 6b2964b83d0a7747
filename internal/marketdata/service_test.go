package marketdata_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/atlasfin/atlasbank/internal/marketdata"
	"github.com/atlasfin/atlasbank/pkg/models"
)

func setupMarketData(t *testing.T) (marketdata.MarketDataService, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Quote{}, &models.Candle{}))

	svc, err := marketdata.NewService(zap.NewNop(), db, nil)
	require.NoError(t, err)
	return svc, db
}

func TestUpsertAndGetQuote(t *testing.T) {
	svc, _ := setupMarketData(t)
	ctx := context.Background()

	require.NoError(t, svc.UpsertQuote(ctx, &models.Quote{
		Symbol: "AAPL",
		Price:  decimal.RequireFromString("187.32"),
	}))

	quote, err := svc.GetQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, quote.Price.Equal(decimal.RequireFromString("187.32")))
	assert.False(t, quote.UpdatedAt.IsZero(), "upsert stamps the update time")

	// a second upsert replaces the row, not duplicates it
	require.NoError(t, svc.UpsertQuote(ctx, &models.Quote{
		Symbol: "AAPL",
		Price:  decimal.RequireFromString("190.00"),
	}))
	quote, err = svc.GetQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, quote.Price.Equal(decimal.NewFromInt(190)))

	quotes, err := svc.ListQuotes(ctx)
	require.NoError(t, err)
	assert.Len(t, quotes, 1)
}

func TestGetQuoteNotFound(t *testing.T) {
	svc, _ := setupMarketData(t)

	_, err := svc.GetQuote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, marketdata.ErrQuoteNotFound)
}

func TestUpsertQuoteRequiresSymbol(t *testing.T) {
	svc, _ := setupMarketData(t)

	err := svc.UpsertQuote(context.Background(), &models.Quote{Price: decimal.NewFromInt(10)})
	assert.Error(t, err)
}

func TestGetCandles(t *testing.T) {
	svc, db := setupMarketData(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, db.Create(&models.Candle{
			Symbol:    "AAPL",
			Interval:  "1h",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      decimal.NewFromInt(100 + int64(i)),
			High:      decimal.NewFromInt(101 + int64(i)),
			Low:       decimal.NewFromInt(99 + int64(i)),
			Close:     decimal.NewFromInt(100 + int64(i)),
			Volume:    decimal.NewFromInt(1000),
		}).Error)
	}

	candles, err := svc.GetCandles(ctx, "AAPL", "1h", 3)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	// newest first
	assert.True(t, candles[0].Timestamp.After(candles[1].Timestamp))

	other, err := svc.GetCandles(ctx, "AAPL", "1d", 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}
