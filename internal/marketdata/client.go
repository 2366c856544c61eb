// Package marketdata implements the HTTP client for the upstream rate
// provider. Every failure mode (transport error, timeout, non-2xx status,
// success=false envelope, malformed body, open breaker) surfaces as a plain
// error; callers decide what a failed call means for them.
package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/V0rtexyz/FinDash/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout          = 5 * time.Second
	DefaultBreakerThreshold = 3
	DefaultBreakerCooldown  = 30 * time.Second
)

// Client talks to the rate provider REST API.
type Client struct {
	baseURL          string
	apiKey           string
	client           *http.Client
	breakerThreshold uint32
	breakerCooldown  time.Duration
	breaker          *gobreaker.CircuitBreaker
	logger           zerolog.Logger
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithAPIKey sets the provider API key sent on every request.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithBreakerThreshold sets the consecutive-failure count that opens the
// circuit breaker.
func WithBreakerThreshold(n uint32) ClientOption {
	return func(c *Client) {
		c.breakerThreshold = n
	}
}

// WithBreakerCooldown sets how long the breaker stays open before a probe.
func WithBreakerCooldown(d time.Duration) ClientOption {
	return func(c *Client) {
		c.breakerCooldown = d
	}
}

// WithLogger sets the logger used for breaker state changes.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new provider client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		client:           &http.Client{Timeout: DefaultTimeout},
		breakerThreshold: DefaultBreakerThreshold,
		breakerCooldown:  DefaultBreakerCooldown,
		logger:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "marketdata",
		Timeout: c.breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.breakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().
				Str("component", "marketdata").
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("provider circuit breaker state changed")
			observability.RecordBreakerTransition(from.String(), to.String(), breakerStateValue(to))
		},
	})

	return c
}

// BreakerState reports the current circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// breakerStateValue maps breaker states onto the gauge scale.
func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// get performs one GET through the circuit breaker and decodes the envelope.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values, result envelope) error {
	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, endpoint, query, result)
	})

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.RecordProviderRequest(endpoint, outcome, time.Since(start).Seconds())

	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	return nil
}

// do executes the HTTP request and normalizes every failure mode to an error.
func (c *Client) do(ctx context.Context, endpoint string, query url.Values, result envelope) error {
	u := c.baseURL + "/api/" + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if !result.ok() {
		return fmt.Errorf("provider reported failure")
	}

	return nil
}

// RangeRates fetches daily prices for multiple symbols over [start, end].
// Dates are "2006-01-02" strings. The result maps date -> symbol -> price.
func (c *Client) RangeRates(ctx context.Context, symbols []string, start, end string) (map[string]map[string]float64, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("range: at least one symbol required")
	}

	query := url.Values{}
	query.Set("symbols", strings.Join(symbols, ","))
	query.Set("start", start)
	query.Set("end", end)

	var resp rangeResponse
	if err := c.get(ctx, "range", query, &resp); err != nil {
		return nil, err
	}
	return resp.Rates, nil
}

// HistoricalRates fetches prices for multiple symbols on a single date.
func (c *Client) HistoricalRates(ctx context.Context, date string, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("historical: at least one symbol required")
	}

	query := url.Values{}
	query.Set("date", date)
	query.Set("symbols", strings.Join(symbols, ","))

	var resp historicalResponse
	if err := c.get(ctx, "historical", query, &resp); err != nil {
		return nil, err
	}
	return resp.Rates, nil
}

// LiveRates fetches current prices. The second return is the provider's
// as-of timestamp in ms (zero when the provider omits it).
func (c *Client) LiveRates(ctx context.Context, symbols []string) (map[string]float64, int64, error) {
	if len(symbols) == 0 {
		return nil, 0, fmt.Errorf("live: at least one symbol required")
	}

	query := url.Values{}
	query.Set("symbols", strings.Join(symbols, ","))

	var resp liveResponse
	if err := c.get(ctx, "live", query, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Rates, resp.Timestamp, nil
}

// Catalog fetches the provider's asset catalog.
func (c *Client) Catalog(ctx context.Context) (map[string]CatalogEntry, error) {
	var resp catalogResponse
	if err := c.get(ctx, "catalog", url.Values{}, &resp); err != nil {
		return nil, err
	}
	return resp.Symbols, nil
}
