package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/V0rtexyz/FinDash/internal/domain"
	"github.com/V0rtexyz/FinDash/internal/storage"
)

// RateHistoryStore is an in-memory implementation of storage.RateHistoryStore.
type RateHistoryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RatePoint // keyed by "symbol|timestamp_ms"
}

// NewRateHistoryStore creates a new in-memory rate history store.
func NewRateHistoryStore() *RateHistoryStore {
	return &RateHistoryStore{
		data: make(map[string]*domain.RatePoint),
	}
}

func historyKey(symbol string, timestampMs int64) string {
	return fmt.Sprintf("%s|%d", symbol, timestampMs)
}

// InsertBatch adds multiple points. The latest write wins on duplicate keys.
func (s *RateHistoryStore) InsertBatch(_ context.Context, points []*domain.RatePoint) error {
	for _, p := range points {
		if p == nil || p.Symbol == "" || p.Price <= 0 {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		pointCopy := *p
		s.data[historyKey(p.Symbol, p.TimestampMs)] = &pointCopy
	}

	return nil
}

// GetRange retrieves points for a symbol within [start, end], ordered ASC.
func (s *RateHistoryStore) GetRange(_ context.Context, symbol string, start, end int64) ([]*domain.RatePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RatePoint
	for _, p := range s.data {
		if p.Symbol == symbol && p.TimestampMs >= start && p.TimestampMs <= end {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

// LatestBySymbol retrieves the most recent point for a symbol.
func (s *RateHistoryStore) LatestBySymbol(_ context.Context, symbol string) (*domain.RatePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.RatePoint
	for _, p := range s.data {
		if p.Symbol != symbol {
			continue
		}
		if latest == nil || p.TimestampMs > latest.TimestampMs {
			latest = p
		}
	}

	if latest == nil {
		return nil, storage.ErrNotFound
	}

	pointCopy := *latest
	return &pointCopy, nil
}

// Verify interface compliance at compile time.
var _ storage.RateHistoryStore = (*RateHistoryStore)(nil)
