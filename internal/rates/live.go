package rates

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/V0rtexyz/FinDash/internal/domain"
	"github.com/V0rtexyz/FinDash/internal/observability"
)

// LiveSource fetches current prices from the upstream provider.
type LiveSource interface {
	LiveRates(ctx context.Context, symbols []string) (map[string]float64, int64, error)
}

// referencePrices is the static fallback used when the provider is
// unreachable. Ballpark figures; Degraded marks results built from them.
var referencePrices = map[string]float64{
	"BTC":   95000,
	"ETH":   3300,
	"SOL":   180,
	"ADA":   0.95,
	"DOT":   7.5,
	"DOGE":  0.32,
	"XRP":   2.2,
	"LTC":   105,
	"BNB":   650,
	"MATIC": 0.45,
	"LINK":  22,

	"USDT": 1.0,
	"USDC": 1.0,
	"DAI":  1.0,
	"BUSD": 1.0,

	"USD": 1.0,
	"EUR": 1.08,
	"GBP": 1.27,
	"JPY": 0.0066,
	"CHF": 1.13,
	"CAD": 0.72,
	"AUD": 0.65,

	"AAPL":  230,
	"MSFT":  420,
	"GOOGL": 175,
	"AMZN":  200,
	"TSLA":  250,
	"NVDA":  135,
	"SPY":   560,
}

// LiveResult is a batch of current rates. Degraded is set when the values
// came from the reference table instead of the provider.
type LiveResult struct {
	Rates    map[string]domain.LiveRate
	Degraded bool
}

// LiveRateProvider fetches current prices best-effort: provider errors fall
// back to the reference table, never to the caller.
type LiveRateProvider struct {
	source LiveSource
	logger zerolog.Logger
}

// NewLiveRateProvider creates a live rate provider.
func NewLiveRateProvider(source LiveSource, logger zerolog.Logger) *LiveRateProvider {
	return &LiveRateProvider{
		source: source,
		logger: logger.With().Str("component", "live_rates").Logger(),
	}
}

// Fetch returns current rates for the given symbols. Symbols unknown to
// both the provider and the reference table are absent from the result.
// Never returns an error; an empty symbol set yields an empty map.
func (p *LiveRateProvider) Fetch(ctx context.Context, symbols []string) LiveResult {
	result := LiveResult{Rates: make(map[string]domain.LiveRate, len(symbols))}
	if len(symbols) == 0 {
		return result
	}

	normalized := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			normalized = append(normalized, s)
		}
	}
	if len(normalized) == 0 {
		return result
	}

	prices, asOf, err := p.source.LiveRates(ctx, normalized)
	if err != nil {
		p.logger.Warn().Err(err).Strs("symbols", normalized).
			Msg("live fetch failed, using reference prices")
		observability.RecordLiveFallback()
		return p.referenceResult(normalized)
	}

	if asOf <= 0 {
		asOf = time.Now().UnixMilli()
	}

	for _, symbol := range normalized {
		price, ok := prices[symbol]
		if !ok || !validPrice(price) {
			continue
		}
		result.Rates[symbol] = domain.LiveRate{Symbol: symbol, Price: price, AsOfMs: asOf}
	}
	return result
}

// referenceResult builds a degraded result from the static table.
func (p *LiveRateProvider) referenceResult(symbols []string) LiveResult {
	now := time.Now().UnixMilli()
	result := LiveResult{
		Rates:    make(map[string]domain.LiveRate, len(symbols)),
		Degraded: true,
	}
	for _, symbol := range symbols {
		if price, ok := referencePrices[symbol]; ok {
			result.Rates[symbol] = domain.LiveRate{Symbol: symbol, Price: price, AsOfMs: now}
		}
	}
	return result
}

// validPrice rejects non-positive and non-finite values.
func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}
