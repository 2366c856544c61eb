// Package alerting runs the periodic sweep that evaluates active price
// alerts against live rates.
package alerting

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/V0rtexyz/FinDash/internal/domain"
	"github.com/V0rtexyz/FinDash/internal/observability"
	"github.com/V0rtexyz/FinDash/internal/rates"
	"github.com/V0rtexyz/FinDash/internal/storage"
)

const defaultSweepInterval = 30 * time.Second

// LiveRates is the price source for sweeps.
type LiveRates interface {
	Fetch(ctx context.Context, symbols []string) rates.LiveResult
}

// TriggerPublisher pushes trigger events to connected subscribers.
type TriggerPublisher interface {
	PublishTrigger(ctx context.Context, event domain.TriggerEvent) error
}

// Evaluator sweeps active alerts against live prices on a fixed interval.
// A matched alert produces a notification, deactivates exactly once, and
// emits a trigger event. Sweeps never overlap; a tick that lands while a
// sweep is still running is skipped.
type Evaluator struct {
	alerts        storage.AlertStore
	notifications storage.NotificationStore
	live          LiveRates
	publisher     TriggerPublisher
	interval      time.Duration
	logger        zerolog.Logger

	mu          sync.Mutex
	sweeping    bool
	lastSweep   SweepResult
	lastSweepAt time.Time
}

// EvaluatorOptions contains configuration for creating an Evaluator.
type EvaluatorOptions struct {
	Alerts        storage.AlertStore
	Notifications storage.NotificationStore
	Live          LiveRates
	Publisher     TriggerPublisher // optional
	Interval      time.Duration    // default 30s
	Logger        zerolog.Logger
}

// NewEvaluator creates an evaluator.
func NewEvaluator(opts EvaluatorOptions) *Evaluator {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	return &Evaluator{
		alerts:        opts.Alerts,
		notifications: opts.Notifications,
		live:          opts.Live,
		publisher:     opts.Publisher,
		interval:      interval,
		logger:        opts.Logger.With().Str("component", "evaluator").Logger(),
	}
}

// SweepResult summarizes one evaluation pass.
type SweepResult struct {
	Evaluated int  // alerts whose symbol had a price this pass
	Triggered int  // alerts flipped and notified
	Deferred  int  // alerts left active because no price arrived
	Skipped   bool // another sweep was already in flight
}

// Run sweeps on the configured interval until the context is cancelled.
func (e *Evaluator) Run(ctx context.Context) error {
	e.logger.Info().Dur("interval", e.interval).Msg("evaluator started")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("evaluator stopping")
			return ctx.Err()
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}

// Sweep runs one evaluation pass over every active alert. Store failures
// on individual alerts are logged and skipped; the pass continues.
func (e *Evaluator) Sweep(ctx context.Context) SweepResult {
	e.mu.Lock()
	if e.sweeping {
		e.mu.Unlock()
		observability.RecordSweep("skipped", 0, 0)
		return SweepResult{Skipped: true}
	}
	e.sweeping = true
	e.mu.Unlock()

	var result SweepResult
	defer func() {
		e.mu.Lock()
		e.sweeping = false
		e.lastSweep = result
		e.lastSweepAt = time.Now()
		e.mu.Unlock()
	}()

	began := time.Now()

	symbols, err := e.alerts.ActiveSymbols(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to list active symbols")
		observability.RecordSweep("error", 0, 0)
		return result
	}
	if len(symbols) == 0 {
		observability.RecordSweep("completed", time.Since(began).Seconds(), time.Now().Unix())
		return result
	}

	prices := e.live.Fetch(ctx, symbols)
	if prices.Degraded {
		e.logger.Warn().Strs("symbols", symbols).Msg("sweep using reference prices")
	}

	alerts, err := e.alerts.ActiveBySymbols(ctx, symbols)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to load active alerts")
		observability.RecordSweep("error", 0, 0)
		return result
	}

	for _, alert := range alerts {
		rate, ok := prices.Rates[alert.Symbol]
		if !ok {
			// No price this pass; the alert stays active for the next one.
			result.Deferred++
			continue
		}
		result.Evaluated++

		if !alert.Matches(rate.Price) {
			continue
		}
		if e.trigger(ctx, alert, rate.Price) {
			result.Triggered++
		}
	}

	observability.RecordSweep("completed", time.Since(began).Seconds(), time.Now().Unix())

	evt := e.logger.Debug()
	if result.Triggered > 0 {
		evt = e.logger.Info()
	}
	evt.Int("evaluated", result.Evaluated).
		Int("triggered", result.Triggered).
		Int("deferred", result.Deferred).
		Msg("sweep completed")

	return result
}

// LastSweep reports the outcome of the most recent pass and when it
// finished. The zero time means no pass has run yet.
func (e *Evaluator) LastSweep() (SweepResult, time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSweep, e.lastSweepAt
}

// trigger persists the notification, consumes the alert, and publishes the
// event. Returns false when persistence fails or another pass already
// consumed the alert.
func (e *Evaluator) trigger(ctx context.Context, alert *domain.Alert, price float64) bool {
	message := triggerMessage(alert, price)

	notification := &domain.Notification{
		UserID:  alert.UserID,
		AlertID: &alert.ID,
		Message: message,
	}
	if err := e.notifications.Insert(ctx, notification); err != nil {
		e.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to persist notification")
		observability.RecordAlertError()
		return false
	}

	flipped, err := e.alerts.SetInactive(ctx, alert.ID)
	if err != nil {
		e.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to deactivate alert")
		observability.RecordAlertError()
		return false
	}
	if !flipped {
		// Another pass already consumed this alert.
		return false
	}

	observability.RecordAlertTriggered()
	e.logger.Info().
		Str("alert_id", alert.ID).
		Str("symbol", alert.Symbol).
		Str("condition", alert.Condition.String()).
		Float64("target", alert.TargetValue).
		Float64("price", price).
		Msg("alert triggered")

	if e.publisher != nil {
		event := domain.TriggerEvent{
			UserID:    alert.UserID,
			Symbol:    alert.Symbol,
			Condition: alert.Condition,
			Target:    alert.TargetValue,
			Current:   price,
			Message:   message,
		}
		if err := e.publisher.PublishTrigger(ctx, event); err != nil {
			e.logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("failed to publish trigger event")
			observability.RecordTriggerPublished("error")
		} else {
			observability.RecordTriggerPublished("ok")
		}
	}

	return true
}

// triggerMessage renders the notification text for a matched alert.
func triggerMessage(a *domain.Alert, price float64) string {
	direction := "risen above"
	if a.Condition == domain.ConditionBelow {
		direction = "dropped below"
	}
	return fmt.Sprintf("%s has %s your target of %s (current price: %s)",
		a.Symbol, direction, formatPrice(a.TargetValue), formatPrice(price))
}

// formatPrice keeps small values readable without padding large ones.
func formatPrice(p float64) string {
	if p < 1 {
		return strconv.FormatFloat(p, 'f', 4, 64)
	}
	return strconv.FormatFloat(p, 'f', 2, 64)
}
