package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/V0rtexyz/FinDash/internal/domain"
	"github.com/V0rtexyz/FinDash/internal/storage"
)

func TestRateHistoryStore_InsertBatchAndGetRange(t *testing.T) {
	store := NewRateHistoryStore()
	ctx := context.Background()

	points := []*domain.RatePoint{
		{Symbol: "BTC", TimestampMs: 3000, Price: 95200, Source: domain.RateSourceProvider},
		{Symbol: "BTC", TimestampMs: 1000, Price: 94800, Source: domain.RateSourceProvider},
		{Symbol: "BTC", TimestampMs: 2000, Price: 95000, Source: domain.RateSourceGapfill},
		{Symbol: "ETH", TimestampMs: 2000, Price: 2700, Source: domain.RateSourceProvider},
	}

	if err := store.InsertBatch(ctx, points); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	result, err := store.GetRange(ctx, "BTC", 1000, 3000)
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}

	if len(result) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(result))
	}
	for i := 1; i < len(result); i++ {
		if result[i].TimestampMs <= result[i-1].TimestampMs {
			t.Errorf("Results not ascending at index %d", i)
		}
	}
	if result[1].Source != domain.RateSourceGapfill {
		t.Errorf("Source mismatch: got %s, want %s", result[1].Source, domain.RateSourceGapfill)
	}
}

func TestRateHistoryStore_LatestWriteWins(t *testing.T) {
	store := NewRateHistoryStore()
	ctx := context.Background()

	first := []*domain.RatePoint{
		{Symbol: "BTC", TimestampMs: 1000, Price: 94800, Source: domain.RateSourceSynthetic},
	}
	if err := store.InsertBatch(ctx, first); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	second := []*domain.RatePoint{
		{Symbol: "BTC", TimestampMs: 1000, Price: 95000, Source: domain.RateSourceProvider},
	}
	if err := store.InsertBatch(ctx, second); err != nil {
		t.Fatalf("Second InsertBatch failed: %v", err)
	}

	result, err := store.GetRange(ctx, "BTC", 0, 2000)
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(result))
	}
	if result[0].Price != 95000 || result[0].Source != domain.RateSourceProvider {
		t.Errorf("Latest write should win: got price=%v source=%s", result[0].Price, result[0].Source)
	}
}

func TestRateHistoryStore_LatestBySymbol(t *testing.T) {
	store := NewRateHistoryStore()
	ctx := context.Background()

	points := []*domain.RatePoint{
		{Symbol: "BTC", TimestampMs: 1000, Price: 94800, Source: domain.RateSourceProvider},
		{Symbol: "BTC", TimestampMs: 3000, Price: 95200, Source: domain.RateSourceProvider},
		{Symbol: "BTC", TimestampMs: 2000, Price: 95000, Source: domain.RateSourceProvider},
	}
	if err := store.InsertBatch(ctx, points); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	latest, err := store.LatestBySymbol(ctx, "BTC")
	if err != nil {
		t.Fatalf("LatestBySymbol failed: %v", err)
	}
	if latest.TimestampMs != 3000 || latest.Price != 95200 {
		t.Errorf("Expected latest point (3000, 95200), got (%d, %v)", latest.TimestampMs, latest.Price)
	}

	_, err = store.LatestBySymbol(ctx, "ETH")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRateHistoryStore_InvalidInput(t *testing.T) {
	store := NewRateHistoryStore()
	ctx := context.Background()

	err := store.InsertBatch(ctx, []*domain.RatePoint{
		{Symbol: "BTC", TimestampMs: 1000, Price: 0, Source: domain.RateSourceProvider},
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for zero price, got %v", err)
	}

	err = store.InsertBatch(ctx, []*domain.RatePoint{
		{Symbol: "", TimestampMs: 1000, Price: 1, Source: domain.RateSourceProvider},
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty symbol, got %v", err)
	}
}
