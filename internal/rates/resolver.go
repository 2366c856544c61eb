package rates

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/V0rtexyz/FinDash/internal/domain"
	"github.com/V0rtexyz/FinDash/internal/observability"
	"github.com/V0rtexyz/FinDash/internal/storage"
)

const (
	// defaultDayWorkers bounds per-day fetch concurrency.
	defaultDayWorkers = 4

	// defaultAnchor is the synthetic anchor for symbols with no live or
	// reference price at all.
	defaultAnchor = 100.0

	// flatEpsilon is the relative spread under which a series counts as a
	// flat-line artifact of sparse upstream data.
	flatEpsilon = 1e-7
)

// HistorySource fetches historical prices from the upstream provider.
type HistorySource interface {
	RangeRates(ctx context.Context, symbols []string, start, end string) (map[string]map[string]float64, error)
	HistoricalRates(ctx context.Context, date string, symbols []string) (map[string]float64, error)
}

// ResolverOptions contains configuration for creating a Resolver.
type ResolverOptions struct {
	Source     HistorySource
	Live       *LiveRateProvider
	Classifier *Classifier
	Generator  *Generator
	History    storage.RateHistoryStore // optional write-behind recording
	Logger     zerolog.Logger
	DayWorkers int // default 4
}

// Resolver produces complete daily price series through tiered fallback:
// batch range fetch, per-day fetch, gap-fill, synthetic generation. A
// provider outage degrades the data source, never the caller.
type Resolver struct {
	source     HistorySource
	live       *LiveRateProvider
	classifier *Classifier
	generator  *Generator
	history    storage.RateHistoryStore
	logger     zerolog.Logger
	dayWorkers int
}

// NewResolver creates a resolver.
func NewResolver(opts ResolverOptions) *Resolver {
	dayWorkers := opts.DayWorkers
	if dayWorkers <= 0 {
		dayWorkers = defaultDayWorkers
	}

	return &Resolver{
		source:     opts.Source,
		live:       opts.Live,
		classifier: opts.Classifier,
		generator:  opts.Generator,
		history:    opts.History,
		logger:     opts.Logger.With().Str("component", "resolver").Logger(),
		dayWorkers: dayWorkers,
	}
}

// Resolve returns one point per calendar day in [start, end], strictly
// ascending, every price positive. Provider failures never surface; the
// only error return is caller cancellation. An inverted range yields an
// empty series.
func (r *Resolver) Resolve(ctx context.Context, symbol string, start, end time.Time) (domain.PriceSeries, error) {
	began := time.Now()
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	days := DaysBetween(start, end)
	if len(days) == 0 {
		return domain.PriceSeries{}, nil
	}

	// Tier 1: one batch call covering the whole range.
	if series, ok := r.fetchRange(ctx, symbol, days); ok {
		r.finish(ctx, symbol, series, began, uniformSources(len(series), domain.RateSourceProvider))
		return series, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The live rate doubles as the gap-fill seed and the synthetic anchor.
	var anchor float64
	if rate, ok := r.live.Fetch(ctx, []string{symbol}).Rates[symbol]; ok {
		anchor = rate.Price
	}

	// Tier 2: per-day fetches with bounded concurrency.
	byDay := r.fetchPerDay(ctx, symbol, days)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Tier 3: fill holes from neighboring values.
	values, missing := gapFill(days, byDay, anchor)

	// Tier 4: regenerate when days are still missing or the result
	// flat-lined.
	if missing > 0 || isFlat(values) {
		class := r.classifier.ClassFor(symbol)
		if !validPrice(anchor) {
			anchor = defaultAnchor
		}

		series := r.generator.Generate(class, days, anchor)
		r.logger.Info().Str("symbol", symbol).Str("class", class.String()).
			Int("days", len(days)).Msg("generated synthetic series")
		observability.RecordTierOutcome("synthetic", "win")
		observability.RecordSyntheticSeries()

		r.finish(ctx, symbol, series, began, uniformSources(len(series), domain.RateSourceSynthetic))
		return series, nil
	}

	series := make(domain.PriceSeries, len(days))
	sources := make([]domain.RateSource, len(days))
	filled := false
	for i, day := range days {
		series[i] = domain.PricePoint{TimestampMs: day, Price: values[i]}
		if _, ok := byDay[day]; ok {
			sources[i] = domain.RateSourceProvider
		} else {
			sources[i] = domain.RateSourceGapfill
			filled = true
		}
	}

	if filled {
		observability.RecordTierOutcome("gap_fill", "win")
	} else {
		observability.RecordTierOutcome("per_day", "win")
	}

	r.finish(ctx, symbol, series, began, sources)
	return series, nil
}

// fetchRange attempts tier 1. Succeeds only when every requested day comes
// back with a valid price.
func (r *Resolver) fetchRange(ctx context.Context, symbol string, days []int64) (domain.PriceSeries, bool) {
	start, end := FormatDate(days[0]), FormatDate(days[len(days)-1])

	rates, err := r.source.RangeRates(ctx, []string{symbol}, start, end)
	if err != nil {
		r.logger.Warn().Err(err).Str("symbol", symbol).Msg("range fetch failed")
		observability.RecordTierOutcome("range", "error")
		return nil, false
	}

	series := make(domain.PriceSeries, 0, len(days))
	for _, day := range days {
		price, ok := rates[FormatDate(day)][symbol]
		if !ok || !validPrice(price) {
			observability.RecordTierOutcome("range", "incomplete")
			return nil, false
		}
		series = append(series, domain.PricePoint{TimestampMs: day, Price: price})
	}

	observability.RecordTierOutcome("range", "win")
	return series, true
}

// fetchPerDay attempts tier 2: one call per day on a bounded worker pool.
// Failed or invalid days are holes.
func (r *Resolver) fetchPerDay(ctx context.Context, symbol string, days []int64) map[int64]float64 {
	results := make(map[int64]float64, len(days))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, r.dayWorkers)

	for _, day := range days {
		wg.Add(1)
		go func(day int64) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			rates, err := r.source.HistoricalRates(ctx, FormatDate(day), []string{symbol})
			if err != nil {
				return
			}
			if price, ok := rates[symbol]; ok && validPrice(price) {
				mu.Lock()
				results[day] = price
				mu.Unlock()
			}
		}(day)
	}
	wg.Wait()

	outcome := "empty"
	switch {
	case len(results) == len(days):
		outcome = "complete"
	case len(results) > 0:
		outcome = "partial"
	}
	observability.RecordTierOutcome("per_day", outcome)

	return results
}

// gapFill aligns per-day values to the full day list: forward-fill each
// hole from the latest preceding value (seeded by the live rate when
// nothing precedes), then backward-fill leading holes from the earliest
// known value. Filling a complete series is a no-op. Returns aligned
// values and the count of days still missing.
func gapFill(days []int64, byDay map[int64]float64, seed float64) ([]float64, int) {
	values := make([]float64, len(days))

	last := 0.0
	if validPrice(seed) {
		last = seed
	}
	for i, day := range days {
		if v, ok := byDay[day]; ok {
			values[i] = v
			last = v
		} else if last > 0 {
			values[i] = last
		}
	}

	next := 0.0
	missing := 0
	for i := len(values) - 1; i >= 0; i-- {
		switch {
		case values[i] > 0:
			next = values[i]
		case next > 0:
			values[i] = next
		default:
			missing++
		}
	}

	return values, missing
}

// isFlat reports whether more than two points collapsed to a single value
// within a small relative epsilon.
func isFlat(values []float64) bool {
	if len(values) <= 2 {
		return false
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi-lo <= flatEpsilon*math.Max(1, math.Abs(hi))
}

// uniformSources tags every point with the same provenance.
func uniformSources(n int, source domain.RateSource) []domain.RateSource {
	sources := make([]domain.RateSource, n)
	for i := range sources {
		sources[i] = source
	}
	return sources
}

// finish records metrics and writes the resolved series to the history
// store. Recording is best-effort and never affects the returned series.
func (r *Resolver) finish(ctx context.Context, symbol string, series domain.PriceSeries, began time.Time, sources []domain.RateSource) {
	observability.RecordResolve(time.Since(began).Seconds(), time.Now().Unix())

	if r.history == nil || len(series) == 0 {
		return
	}

	points := make([]*domain.RatePoint, len(series))
	for i, p := range series {
		points[i] = &domain.RatePoint{
			Symbol:      symbol,
			TimestampMs: p.TimestampMs,
			Price:       p.Price,
			Source:      sources[i],
		}
	}
	if err := r.history.InsertBatch(ctx, points); err != nil {
		r.logger.Warn().Err(err).Str("symbol", symbol).Msg("failed to record resolved series")
	}
}
