package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/V0rtexyz/FinDash/internal/domain"
	"github.com/V0rtexyz/FinDash/internal/storage"
)

// NotificationStore implements storage.NotificationStore using PostgreSQL.
type NotificationStore struct {
	pool *Pool
}

// NewNotificationStore creates a new NotificationStore.
func NewNotificationStore(pool *Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.NotificationStore = (*NotificationStore)(nil)

// Insert adds a new notification. An empty ID is assigned by the database.
func (s *NotificationStore) Insert(ctx context.Context, n *domain.Notification) error {
	if n == nil || n.UserID == "" || n.Message == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO notifications (notification_id, user_id, alert_id, message, read_at, created_at)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3::uuid, $4, $5, $6)
		RETURNING notification_id::text
	`

	err := s.pool.QueryRow(ctx, query,
		n.ID,
		n.UserID,
		n.AlertID,
		n.Message,
		n.ReadAt,
		n.CreatedAt,
	).Scan(&n.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// GetByUser retrieves all notifications for a user, newest first.
func (s *NotificationStore) GetByUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	query := `
		SELECT notification_id::text, user_id, alert_id::text, message, read_at, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, notification_id ASC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get notifications by user: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// MarkRead sets the read timestamp once. Returns ErrNotFound if not exists.
func (s *NotificationStore) MarkRead(ctx context.Context, id string) error {
	query := `
		UPDATE notifications
		SET read_at = $2
		WHERE notification_id = $1::uuid AND read_at IS NULL
	`

	tag, err := s.pool.Exec(ctx, query, id, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// No row updated: already read keeps its timestamp, missing is an error.
	var exists bool
	err = s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM notifications WHERE notification_id = $1::uuid)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check notification exists: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return nil
}

// UnreadCount returns the number of unread notifications for a user.
func (s *NotificationStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// scanNotifications scans multiple rows into a slice of Notification.
func scanNotifications(rows pgx.Rows) ([]*domain.Notification, error) {
	var notifications []*domain.Notification

	for rows.Next() {
		var n domain.Notification

		err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.AlertID,
			&n.Message,
			&n.ReadAt,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification row: %w", err)
		}

		notifications = append(notifications, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification rows: %w", err)
	}

	return notifications, nil
}
