package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestClient_RangeRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/range" {
			t.Errorf("expected path /api/range, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbols"); got != "BTC,ETH" {
			t.Errorf("expected symbols BTC,ETH, got %s", got)
		}
		if got := r.URL.Query().Get("start"); got != "2024-01-01" {
			t.Errorf("expected start 2024-01-01, got %s", got)
		}
		if got := r.URL.Query().Get("end"); got != "2024-01-03" {
			t.Errorf("expected end 2024-01-03, got %s", got)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"success": true,
			"start": "2024-01-01",
			"end": "2024-01-03",
			"rates": {
				"2024-01-01": {"BTC": 42000.5, "ETH": 2200.1},
				"2024-01-02": {"BTC": 42500.0, "ETH": 2250.4},
				"2024-01-03": {"BTC": 43100.2, "ETH": 2300.0}
			}
		}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	ctx := context.Background()

	rates, err := client.RangeRates(ctx, []string{"BTC", "ETH"}, "2024-01-01", "2024-01-03")
	if err != nil {
		t.Fatalf("RangeRates: %v", err)
	}

	if len(rates) != 3 {
		t.Fatalf("expected 3 dates, got %d", len(rates))
	}
	if rates["2024-01-01"]["BTC"] != 42000.5 {
		t.Errorf("expected 42000.5, got %f", rates["2024-01-01"]["BTC"])
	}
	if rates["2024-01-03"]["ETH"] != 2300.0 {
		t.Errorf("expected 2300.0, got %f", rates["2024-01-03"]["ETH"])
	}
}

func TestClient_RangeRatesNoSymbols(t *testing.T) {
	client := NewClient("http://unused.invalid")

	_, err := client.RangeRates(context.Background(), nil, "2024-01-01", "2024-01-03")
	if err == nil {
		t.Fatal("expected error for empty symbols")
	}
}

func TestClient_HistoricalRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/historical" {
			t.Errorf("expected path /api/historical, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("date"); got != "2024-01-02" {
			t.Errorf("expected date 2024-01-02, got %s", got)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success": true, "date": "2024-01-02", "rates": {"BTC": 42500.0}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	rates, err := client.HistoricalRates(context.Background(), "2024-01-02", []string{"BTC"})
	if err != nil {
		t.Fatalf("HistoricalRates: %v", err)
	}

	if rates["BTC"] != 42500.0 {
		t.Errorf("expected 42500.0, got %f", rates["BTC"])
	}
}

func TestClient_LiveRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/live" {
			t.Errorf("expected path /api/live, got %s", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success": true, "timestamp": 1724533200000, "rates": {"BTC": 95000.1, "ETH": 4200.0}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	rates, asOf, err := client.LiveRates(context.Background(), []string{"BTC", "ETH"})
	if err != nil {
		t.Fatalf("LiveRates: %v", err)
	}

	if asOf != 1724533200000 {
		t.Errorf("expected asOf 1724533200000, got %d", asOf)
	}
	if rates["BTC"] != 95000.1 {
		t.Errorf("expected 95000.1, got %f", rates["BTC"])
	}
	if len(rates) != 2 {
		t.Errorf("expected 2 rates, got %d", len(rates))
	}
}

func TestClient_Catalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/catalog" {
			t.Errorf("expected path /api/catalog, got %s", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"success": true,
			"symbols": {
				"BTC":  {"name": "Bitcoin", "class": "major-crypto"},
				"USDT": {"name": "Tether", "class": "stablecoin"}
			}
		}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	catalog, err := client.Catalog(context.Background())
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}

	if len(catalog) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(catalog))
	}
	if catalog["BTC"].Name != "Bitcoin" {
		t.Errorf("expected Bitcoin, got %s", catalog["BTC"].Name)
	}
	if catalog["USDT"].Class != "stablecoin" {
		t.Errorf("expected stablecoin, got %s", catalog["USDT"].Class)
	}
}

func TestClient_ProviderReportedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success": false, "error": "rate limit exceeded"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	_, err := client.HistoricalRates(context.Background(), "2024-01-02", []string{"BTC"})
	if err == nil {
		t.Fatal("expected error for success=false body")
	}
}

func TestClient_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	_, err := client.Catalog(context.Background())
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestClient_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json at all`)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	_, err := client.LiveRates(context.Background(), []string{"BTC"})
	if err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestClient_APIKeyHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-Key"); got != "secret-key" {
			t.Errorf("expected X-API-Key secret-key, got %q", got)
		}
		fmt.Fprint(w, `{"success": true, "symbols": {}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithAPIKey("secret-key"))

	if _, err := client.Catalog(context.Background()); err != nil {
		t.Fatalf("Catalog: %v", err)
	}
}

func TestClient_BreakerOpensAndRecovers(t *testing.T) {
	var attempts atomic.Int32
	var failing atomic.Bool
	failing.Store(true)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		if failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"success": true, "symbols": {}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL,
		WithBreakerThreshold(2),
		WithBreakerCooldown(50*time.Millisecond),
	)
	ctx := context.Background()

	// Two consecutive failures open the breaker.
	if _, err := client.Catalog(ctx); err == nil {
		t.Fatal("expected first failure")
	}
	if _, err := client.Catalog(ctx); err == nil {
		t.Fatal("expected second failure")
	}
	if state := client.BreakerState(); state != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", state)
	}

	// While open, calls fail without touching the network.
	before := attempts.Load()
	if _, err := client.Catalog(ctx); err == nil {
		t.Fatal("expected failure while breaker open")
	}
	if attempts.Load() != before {
		t.Errorf("expected no request while open, got %d extra", attempts.Load()-before)
	}

	// After the cooldown a successful probe closes it again.
	failing.Store(false)
	time.Sleep(70 * time.Millisecond)

	if _, err := client.Catalog(ctx); err != nil {
		t.Fatalf("expected probe to succeed: %v", err)
	}
	if state := client.BreakerState(); state != gobreaker.StateClosed {
		t.Fatalf("expected closed breaker, got %s", state)
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		fmt.Fprint(w, `{"success": true, "symbols": {}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Catalog(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
