package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/V0rtexyz/FinDash/internal/domain"
	"github.com/V0rtexyz/FinDash/internal/storage"
)

// AlertStore implements storage.AlertStore using PostgreSQL.
type AlertStore struct {
	pool *Pool
}

// NewAlertStore creates a new AlertStore.
func NewAlertStore(pool *Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

// Insert adds a new alert. An empty ID is assigned by the database.
func (s *AlertStore) Insert(ctx context.Context, a *domain.Alert) error {
	if a == nil || a.UserID == "" || a.Symbol == "" {
		return storage.ErrInvalidInput
	}
	if !a.Condition.IsValid() || a.TargetValue <= 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO alerts (alert_id, user_id, symbol, condition, target_value, active, created_at)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7)
		RETURNING alert_id::text
	`

	err := s.pool.QueryRow(ctx, query,
		a.ID,
		a.UserID,
		a.Symbol,
		string(a.Condition),
		a.TargetValue,
		a.Active,
		a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isCheckViolationError(err) {
			return storage.ErrInvalidInput
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// GetByID retrieves an alert by its ID. Returns ErrNotFound if not exists.
func (s *AlertStore) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	query := `
		SELECT alert_id::text, user_id, symbol, condition, target_value, active, created_at
		FROM alerts
		WHERE alert_id = $1::uuid
	`

	row := s.pool.QueryRow(ctx, query, id)
	a, err := scanAlert(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get alert by id: %w", err)
	}
	return a, nil
}

// GetByUser retrieves all alerts for a user, ordered by created_at ASC.
func (s *AlertStore) GetByUser(ctx context.Context, userID string) ([]*domain.Alert, error) {
	query := `
		SELECT alert_id::text, user_id, symbol, condition, target_value, active, created_at
		FROM alerts
		WHERE user_id = $1
		ORDER BY created_at ASC, alert_id ASC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get alerts by user: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// ActiveSymbols retrieves the distinct symbols referenced by active alerts.
func (s *AlertStore) ActiveSymbols(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT symbol
		FROM alerts
		WHERE active
		ORDER BY symbol ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get active symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("scan symbol row: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbol rows: %w", err)
	}

	return symbols, nil
}

// ActiveBySymbols retrieves active alerts whose symbol is in the given set.
func (s *AlertStore) ActiveBySymbols(ctx context.Context, symbols []string) ([]*domain.Alert, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	query := `
		SELECT alert_id::text, user_id, symbol, condition, target_value, active, created_at
		FROM alerts
		WHERE active AND symbol = ANY($1)
		ORDER BY created_at ASC, alert_id ASC
	`

	rows, err := s.pool.Query(ctx, query, symbols)
	if err != nil {
		return nil, fmt.Errorf("get active alerts by symbols: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// SetInactive flips an alert to inactive only if it is still active.
// The conditional UPDATE makes the flip safe against concurrent sweeps:
// exactly one caller observes true.
func (s *AlertStore) SetInactive(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE alerts
		SET active = FALSE
		WHERE alert_id = $1::uuid AND active
	`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("set alert inactive: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// No row flipped: either already inactive or missing.
	var exists bool
	err = s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM alerts WHERE alert_id = $1::uuid)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check alert exists: %w", err)
	}
	if !exists {
		return false, storage.ErrNotFound
	}
	return false, nil
}

// Delete removes an alert. Returns ErrNotFound if not exists.
func (s *AlertStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alerts WHERE alert_id = $1::uuid`, id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanAlert scans a single row into an Alert.
func scanAlert(row pgx.Row) (*domain.Alert, error) {
	var a domain.Alert
	var conditionStr string

	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Symbol,
		&conditionStr,
		&a.TargetValue,
		&a.Active,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Condition = domain.AlertCondition(conditionStr)
	return &a, nil
}

// scanAlerts scans multiple rows into a slice of Alert.
func scanAlerts(rows pgx.Rows) ([]*domain.Alert, error) {
	var alerts []*domain.Alert

	for rows.Next() {
		var a domain.Alert
		var conditionStr string

		err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.Symbol,
			&conditionStr,
			&a.TargetValue,
			&a.Active,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}

		a.Condition = domain.AlertCondition(conditionStr)
		alerts = append(alerts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}

	return alerts, nil
}
