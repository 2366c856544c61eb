package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/V0rtexyz/FinDash/internal/domain"
	"github.com/V0rtexyz/FinDash/internal/storage"
)

// NotificationStore is an in-memory implementation of storage.NotificationStore.
type NotificationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Notification // keyed by notification id
}

// NewNotificationStore creates a new in-memory notification store.
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{
		data: make(map[string]*domain.Notification),
	}
}

// Insert adds a new notification. Returns ErrDuplicateKey if the id exists.
func (s *NotificationStore) Insert(_ context.Context, n *domain.Notification) error {
	if n == nil || n.UserID == "" || n.Message == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if _, exists := s.data[n.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[n.ID] = cloneNotification(n)
	return nil
}

// GetByUser retrieves all notifications for a user, newest first.
func (s *NotificationStore) GetByUser(_ context.Context, userID string) ([]*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Notification
	for _, n := range s.data {
		if n.UserID == userID {
			result = append(result, cloneNotification(n))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt > result[j].CreatedAt
	})

	return result, nil
}

// MarkRead sets the read timestamp. Returns ErrNotFound if not exists.
func (s *NotificationStore) MarkRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	if n.ReadAt != nil {
		return nil
	}

	now := time.Now().UnixMilli()
	n.ReadAt = &now
	return nil
}

// UnreadCount returns the number of unread notifications for a user.
func (s *NotificationStore) UnreadCount(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.data {
		if n.UserID == userID && n.ReadAt == nil {
			count++
		}
	}

	return count, nil
}

// cloneNotification deep-copies a notification, including nullable fields.
func cloneNotification(n *domain.Notification) *domain.Notification {
	notificationCopy := *n
	if n.AlertID != nil {
		alertID := *n.AlertID
		notificationCopy.AlertID = &alertID
	}
	if n.ReadAt != nil {
		readAt := *n.ReadAt
		notificationCopy.ReadAt = &readAt
	}
	return &notificationCopy
}

// Verify interface compliance at compile time.
var _ storage.NotificationStore = (*NotificationStore)(nil)
