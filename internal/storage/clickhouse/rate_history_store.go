package clickhouse

import (
	"context"
	"fmt"

	"github.com/V0rtexyz/FinDash/internal/domain"
	"github.com/V0rtexyz/FinDash/internal/storage"
)

// RateHistoryStore implements storage.RateHistoryStore using ClickHouse.
type RateHistoryStore struct {
	conn *Conn
}

// NewRateHistoryStore creates a new RateHistoryStore.
func NewRateHistoryStore(conn *Conn) *RateHistoryStore {
	return &RateHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.RateHistoryStore = (*RateHistoryStore)(nil)

// InsertBatch adds multiple points. ReplacingMergeTree collapses duplicate
// (symbol, timestamp_ms) rows to the most recently recorded one, so
// re-recording a range is safe.
func (s *RateHistoryStore) InsertBatch(ctx context.Context, points []*domain.RatePoint) error {
	if len(points) == 0 {
		return nil
	}

	for _, p := range points {
		if p == nil || p.Symbol == "" || p.Price <= 0 {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO rate_history (symbol, timestamp_ms, price, source)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(p.Symbol, uint64(p.TimestampMs), p.Price, string(p.Source))
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetRange retrieves points for a symbol within [start, end] (inclusive),
// ordered by timestamp ASC.
func (s *RateHistoryStore) GetRange(ctx context.Context, symbol string, start, end int64) ([]*domain.RatePoint, error) {
	query := `
		SELECT symbol, timestamp_ms, price, source
		FROM rate_history FINAL
		WHERE symbol = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query rate history range: %w", err)
	}
	defer rows.Close()

	return scanRatePoints(rows)
}

// LatestBySymbol retrieves the most recent point for a symbol.
func (s *RateHistoryStore) LatestBySymbol(ctx context.Context, symbol string) (*domain.RatePoint, error) {
	query := `
		SELECT symbol, timestamp_ms, price, source
		FROM rate_history FINAL
		WHERE symbol = ?
		ORDER BY timestamp_ms DESC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query latest rate point: %w", err)
	}
	defer rows.Close()

	points, err := scanRatePoints(rows)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, storage.ErrNotFound
	}
	return points[0], nil
}

// chRows is the subset of driver rows used by scan helpers.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanRatePoints scans multiple rows.
func scanRatePoints(rows chRows) ([]*domain.RatePoint, error) {
	var points []*domain.RatePoint

	for rows.Next() {
		var p domain.RatePoint
		var timestampMs uint64
		var sourceStr string

		if err := rows.Scan(&p.Symbol, &timestampMs, &p.Price, &sourceStr); err != nil {
			return nil, fmt.Errorf("scan rate history row: %w", err)
		}

		p.TimestampMs = int64(timestampMs)
		p.Source = domain.RateSource(sourceStr)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rate history rows: %w", err)
	}

	return points, nil
}
