package rates

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/V0rtexyz/FinDash/internal/domain"
)

// reversionStrength is the per-step pull toward the anchor during the
// backward walk. Keeps long ranges from drifting to the clamp boundary.
const reversionStrength = 0.05

// Generator produces plausible historical walks for symbols with no real
// data. Output is deterministic for a seeded *rand.Rand.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator. A nil rng is seeded from the clock.
func NewGenerator(rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{rng: rng}
}

// Generate builds a daily series over dates (ascending UTC midnights)
// ending exactly at anchorPrice on the last date.
//
// The walk runs backward from the anchor: each earlier value subtracts the
// class trend, adds uniform noise proportional to volatility, pulls toward
// the anchor, and is clamped to the class band around the anchor. Values
// are rounded to a precision scaled to magnitude; the anchor itself is
// kept exact.
//
// Guarantees: len(result) == len(dates); last price == anchorPrice;
// every price > 0.
func (g *Generator) Generate(class domain.AssetClass, dates []int64, anchorPrice float64) domain.PriceSeries {
	if len(dates) == 0 {
		return nil
	}
	if anchorPrice <= 0 || math.IsNaN(anchorPrice) || math.IsInf(anchorPrice, 0) {
		anchorPrice = 1
	}

	profile := domain.ProfileFor(class)
	n := len(dates)

	prices := make([]float64, n)
	prices[n-1] = anchorPrice

	lo := anchorPrice * profile.ClampLow
	hi := anchorPrice * profile.ClampHigh

	g.mu.Lock()
	for i := n - 2; i >= 0; i-- {
		next := prices[i+1]

		trend := profile.TrendDirection * profile.TrendMagnitude * next
		noise := (g.rng.Float64()*2 - 1) * profile.DailyVolatility * next

		value := next - trend + noise
		value += reversionStrength * (anchorPrice - value)

		if value < lo {
			value = lo
		}
		if value > hi {
			value = hi
		}
		prices[i] = value
	}
	g.mu.Unlock()

	series := make(domain.PriceSeries, n)
	for i, ts := range dates {
		price := prices[i]
		if i < n-1 {
			price = roundPrice(price)
		}
		series[i] = domain.PricePoint{TimestampMs: ts, Price: price}
	}
	return series
}

// roundPrice rounds to a precision scaled to magnitude: 4 decimals below 1,
// 2 decimals below 100, whole units otherwise. Falls back to the raw value
// when rounding would collapse it to zero.
func roundPrice(p float64) float64 {
	var rounded float64
	switch {
	case p < 1:
		rounded = math.Round(p*10000) / 10000
	case p < 100:
		rounded = math.Round(p*100) / 100
	default:
		rounded = math.Round(p)
	}

	if rounded <= 0 {
		return p
	}
	return rounded
}
