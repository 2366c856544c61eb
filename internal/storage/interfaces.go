package storage

import (
	"context"

	"github.com/V0rtexyz/FinDash/internal/domain"
)

// AlertStore provides access to alerts storage.
type AlertStore interface {
	// Insert adds a new alert. Returns ErrDuplicateKey if the id exists.
	// An empty ID is assigned by the store.
	Insert(ctx context.Context, a *domain.Alert) error

	// GetByID retrieves an alert by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Alert, error)

	// GetByUser retrieves all alerts for a user, ordered by created_at ASC.
	GetByUser(ctx context.Context, userID string) ([]*domain.Alert, error)

	// ActiveSymbols retrieves the distinct symbols referenced by active
	// alerts, sorted ascending.
	ActiveSymbols(ctx context.Context) ([]string, error)

	// ActiveBySymbols retrieves active alerts whose symbol is in the given
	// set, ordered by created_at ASC.
	ActiveBySymbols(ctx context.Context, symbols []string) ([]*domain.Alert, error)

	// SetInactive flips an alert to inactive only if it is still active.
	// Reports whether this call performed the flip; false means another
	// caller already consumed the alert. Returns ErrNotFound if not exists.
	SetInactive(ctx context.Context, id string) (bool, error)

	// Delete removes an alert. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, id string) error
}

// NotificationStore provides access to notifications storage.
type NotificationStore interface {
	// Insert adds a new notification. An empty ID is assigned by the store.
	Insert(ctx context.Context, n *domain.Notification) error

	// GetByUser retrieves all notifications for a user, newest first.
	GetByUser(ctx context.Context, userID string) ([]*domain.Notification, error)

	// MarkRead sets the read timestamp. Returns ErrNotFound if not exists.
	// Marking an already-read notification keeps the original timestamp.
	MarkRead(ctx context.Context, id string) error

	// UnreadCount returns the number of unread notifications for a user.
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// RateHistoryStore provides access to rate_history storage.
type RateHistoryStore interface {
	// InsertBatch adds multiple points. Re-recording an existing
	// (symbol, timestamp_ms) pair is not an error; the latest write wins.
	InsertBatch(ctx context.Context, points []*domain.RatePoint) error

	// GetRange retrieves points for a symbol within [start, end] (inclusive),
	// ordered by timestamp ASC.
	GetRange(ctx context.Context, symbol string, start, end int64) ([]*domain.RatePoint, error)

	// LatestBySymbol retrieves the most recent point for a symbol.
	// Returns ErrNotFound if the symbol has no history.
	LatestBySymbol(ctx context.Context, symbol string) (*domain.RatePoint, error)
}
