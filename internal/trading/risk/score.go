// Package risk implements pre-trade order scoring, position limits and
// portfolio analytics for the trading service.
package risk

import (
	"github.com/shopspring/decimal"
)

// RiskLevel represents different risk levels
type RiskLevel int

const (
	RiskLevelLow RiskLevel = iota
	RiskLevelMedium
	RiskLevelHigh
	RiskLevelCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLevelLow:
		return "low"
	case RiskLevelMedium:
		return "medium"
	case RiskLevelHigh:
		return "high"
	case RiskLevelCritical:
		return "critical"
	}
	return "unknown"
}

// Factor is one weighted component of an order risk score
type Factor struct {
	Name     string  `json:"name"`
	Raw      float64 `json:"raw"`      // normalized into [0,1] before weighting
	Weighted float64 `json:"weighted"` // raw * weight
}

// Assessment is the result of scoring one order
type Assessment struct {
	Score    float64   `json:"score"`
	Level    RiskLevel `json:"level"`
	Factors  []Factor  `json:"factors"`
	Dominant string    `json:"dominant"`
	Exceeded bool      `json:"exceeded"`
}

// ScorerConfig holds weights, per-factor caps and the rejection threshold.
// Weights are normalized at construction so the score stays in [0,1].
type ScorerConfig struct {
	SizeWeight       float64
	VolatilityWeight float64
	LeverageWeight   float64
	MaxOrderNotional float64
	VolatilityCap    float64
	MaxLeverage      float64
	Threshold        float64
}

// Scorer computes weighted order risk scores
type Scorer struct {
	cfg ScorerConfig
}

// NewScorer creates a Scorer, normalizing the configured weights
func NewScorer(cfg ScorerConfig) *Scorer {
	sum := cfg.SizeWeight + cfg.VolatilityWeight + cfg.LeverageWeight
	if sum > 0 {
		cfg.SizeWeight /= sum
		cfg.VolatilityWeight /= sum
		cfg.LeverageWeight /= sum
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = 0.75
	}
	return &Scorer{cfg: cfg}
}

// Threshold returns the configured rejection threshold
func (s *Scorer) Threshold() float64 {
	return s.cfg.Threshold
}

// ScoreOrder scores an order from its notional value, the instrument's daily
// volatility and the requested leverage. Each factor is capped at 1.0 so a
// single extreme input cannot dominate beyond its weight.
func (s *Scorer) ScoreOrder(notional, dailyVol, leverage decimal.Decimal) Assessment {
	size := capRatio(notional.InexactFloat64(), s.cfg.MaxOrderNotional)
	vol := capRatio(dailyVol.InexactFloat64(), s.cfg.VolatilityCap)
	lev := capRatio(leverage.InexactFloat64(), s.cfg.MaxLeverage)

	factors := []Factor{
		{Name: "size", Raw: size, Weighted: size * s.cfg.SizeWeight},
		{Name: "volatility", Raw: vol, Weighted: vol * s.cfg.VolatilityWeight},
		{Name: "leverage", Raw: lev, Weighted: lev * s.cfg.LeverageWeight},
	}

	var score float64
	dominant := factors[0]
	for _, f := range factors {
		score += f.Weighted
		if f.Weighted > dominant.Weighted {
			dominant = f
		}
	}

	return Assessment{
		Score:    score,
		Level:    levelFor(score, s.cfg.Threshold),
		Factors:  factors,
		Dominant: dominant.Name,
		Exceeded: score >= s.cfg.Threshold,
	}
}

func capRatio(value, cap float64) float64 {
	if cap <= 0 {
		return 0
	}
	ratio := value / cap
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

func levelFor(score, threshold float64) RiskLevel {
	switch {
	case score >= threshold:
		return RiskLevelCritical
	case score >= threshold*2/3:
		return RiskLevelHigh
	case score >= threshold/3:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}
