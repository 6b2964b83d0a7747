package risk_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/atlasfin/atlasbank/internal/trading/risk"
)

func TestPositionTrackerUpdateAndGet(t *testing.T) {
	tracker := risk.NewPositionTracker(risk.NewLimitConfig())

	assert.True(t, tracker.Get("u1", "AAPL").IsZero())

	tracker.Update("u1", "AAPL", decimal.NewFromInt(10))
	tracker.Update("u1", "AAPL", decimal.NewFromInt(-4))
	tracker.Update("u1", "MSFT", decimal.NewFromInt(3))

	assert.True(t, tracker.Get("u1", "AAPL").Equal(decimal.NewFromInt(6)))
	assert.True(t, tracker.Get("u1", "MSFT").Equal(decimal.NewFromInt(3)))
	assert.True(t, tracker.Get("u2", "AAPL").IsZero())
}

func TestCheckLimitRejectsBreach(t *testing.T) {
	cfg := risk.NewLimitConfig()
	cfg.SetSymbolLimit("AAPL", decimal.NewFromInt(100))
	tracker := risk.NewPositionTracker(cfg)
	tracker.Update("u1", "AAPL", decimal.NewFromInt(80))

	assert.NoError(t, tracker.CheckLimit("u1", "AAPL", decimal.NewFromInt(20)))

	err := tracker.CheckLimit("u1", "AAPL", decimal.NewFromInt(30))
	assert.ErrorIs(t, err, risk.ErrPositionLimit)
}

func TestCheckLimitShortSide(t *testing.T) {
	cfg := risk.NewLimitConfig()
	cfg.SetSymbolLimit("AAPL", decimal.NewFromInt(100))
	tracker := risk.NewPositionTracker(cfg)
	tracker.Update("u1", "AAPL", decimal.NewFromInt(-80))

	err := tracker.CheckLimit("u1", "AAPL", decimal.NewFromInt(-30))
	assert.ErrorIs(t, err, risk.ErrPositionLimit)
}

func TestCheckLimitExemptAccount(t *testing.T) {
	cfg := risk.NewLimitConfig()
	cfg.SetSymbolLimit("AAPL", decimal.NewFromInt(10))
	cfg.AddExemptAccount("mm-desk")
	tracker := risk.NewPositionTracker(cfg)

	assert.NoError(t, tracker.CheckLimit("mm-desk", "AAPL", decimal.NewFromInt(10_000)))
}

func TestCheckLimitUnconfiguredSymbolUnlimited(t *testing.T) {
	tracker := risk.NewPositionTracker(risk.NewLimitConfig())
	assert.NoError(t, tracker.CheckLimit("u1", "TSLA", decimal.NewFromInt(1_000_000)))
}
