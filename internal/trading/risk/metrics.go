package risk

import (
	"math"
	"sort"
)

// MetricsConfig controls the VaR/Sharpe/drawdown pipeline
type MetricsConfig struct {
	Confidence     float64 // e.g. 0.95
	RiskFreeRate   float64 // annualized
	TradingDays    int     // annualization factor, typically 252
	MinObservation int     // below this many valuations all metrics are zero
}

// PortfolioMetrics is the computed analytics for one valuation series
type PortfolioMetrics struct {
	HistoricalVaR float64 // loss amount at the confidence level, >= 0
	ParametricVaR float64
	SharpeRatio   float64
	Volatility    float64 // annualized
	MaxDrawdown   float64 // fraction of peak, in [0,1]
	Observations  int
}

// Calculator computes portfolio analytics from daily valuation series
type Calculator struct {
	cfg MetricsConfig
}

// NewCalculator creates a Calculator with sane fallbacks for zero fields
func NewCalculator(cfg MetricsConfig) *Calculator {
	if cfg.Confidence <= 0.5 || cfg.Confidence >= 1 {
		cfg.Confidence = 0.95
	}
	if cfg.TradingDays <= 0 {
		cfg.TradingDays = 252
	}
	if cfg.MinObservation < 2 {
		cfg.MinObservation = 2
	}
	return &Calculator{cfg: cfg}
}

// Compute runs the full pipeline over a chronological valuation series.
// Series shorter than MinObservation produce zero-valued metrics, not errors.
func (c *Calculator) Compute(valuations []float64) PortfolioMetrics {
	m := PortfolioMetrics{Observations: len(valuations)}
	if len(valuations) < c.cfg.MinObservation {
		return m
	}

	returns := Returns(valuations)
	current := valuations[len(valuations)-1]

	m.HistoricalVaR = c.HistoricalVaR(returns, current)
	m.ParametricVaR = c.ParametricVaR(returns, current)
	m.SharpeRatio = c.SharpeRatio(returns)
	m.Volatility = c.AnnualizedVolatility(returns)
	m.MaxDrawdown = MaxDrawdown(valuations)
	return m
}

// Returns converts a valuation series into simple daily returns. Days with a
// zero starting value contribute a zero return.
func Returns(valuations []float64) []float64 {
	if len(valuations) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(valuations)-1)
	for i := 1; i < len(valuations); i++ {
		prev := valuations[i-1]
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (valuations[i]-prev)/prev)
	}
	return returns
}

// HistoricalVaR estimates the one-day loss at the configured confidence by
// taking the (1-confidence) percentile of the empirical return distribution
// and scaling it to the current portfolio value. Result is non-negative.
func (c *Calculator) HistoricalVaR(returns []float64, portfolioValue float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	rank := (1 - c.cfg.Confidence) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	q := sorted[lo]
	if hi != lo {
		// linear interpolation between adjacent order statistics
		q = sorted[lo] + (rank-float64(lo))*(sorted[hi]-sorted[lo])
	}

	loss := -q * portfolioValue
	if loss < 0 {
		return 0
	}
	return loss
}

// ParametricVaR estimates the one-day loss assuming normally distributed
// returns: (z*sigma - mean) scaled to the portfolio value.
func (c *Calculator) ParametricVaR(returns []float64, portfolioValue float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean, sigma := meanStddev(returns)
	z := normalQuantile(c.cfg.Confidence)
	loss := (z*sigma - mean) * portfolioValue
	if loss < 0 {
		return 0
	}
	return loss
}

// SharpeRatio returns the annualized Sharpe ratio over daily returns.
// Zero volatility yields zero, not infinity.
func (c *Calculator) SharpeRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean, sigma := meanStddev(returns)
	if sigma == 0 {
		return 0
	}
	days := float64(c.cfg.TradingDays)
	dailyRf := c.cfg.RiskFreeRate / days
	return (mean - dailyRf) / sigma * math.Sqrt(days)
}

// AnnualizedVolatility returns the annualized standard deviation of returns
func (c *Calculator) AnnualizedVolatility(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	_, sigma := meanStddev(returns)
	return sigma * math.Sqrt(float64(c.cfg.TradingDays))
}

// MaxDrawdown returns the largest peak-to-trough decline of the valuation
// curve as a fraction of the peak.
func MaxDrawdown(valuations []float64) float64 {
	if len(valuations) == 0 {
		return 0
	}
	peak := valuations[0]
	maxDD := 0.0
	for _, v := range valuations {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func meanStddev(xs []float64) (float64, float64) {
	n := float64(len(xs))
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / n
	if len(xs) < 2 {
		return mean, 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	// sample standard deviation
	return mean, math.Sqrt(ss / (n - 1))
}

// normalQuantile returns the standard normal quantile at probability p.
func normalQuantile(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}
