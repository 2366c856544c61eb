package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V0rtexyz/FinDash/internal/domain"
	"github.com/V0rtexyz/FinDash/internal/storage"
)

func TestNotificationStore_InsertAndGetByUser(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	alertStore := NewAlertStore(pool)
	store := NewNotificationStore(pool)

	alert := insertAlert(t, ctx, alertStore, "user-1", "BTC", domain.ConditionAbove, 50000, true, 1000)

	notification := &domain.Notification{
		UserID:    "user-1",
		AlertID:   ptr(alert.ID),
		Message:   "BTC rose above 50000.00 (current: 50210.55)",
		CreatedAt: 1700000000000,
	}

	err := store.Insert(ctx, notification)
	require.NoError(t, err)
	require.NotEmpty(t, notification.ID, "insert should assign an ID")

	got, err := store.GetByUser(ctx, "user-1")
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, notification.ID, got[0].ID)
	assert.Equal(t, "user-1", got[0].UserID)
	require.NotNil(t, got[0].AlertID)
	assert.Equal(t, alert.ID, *got[0].AlertID)
	assert.Equal(t, notification.Message, got[0].Message)
	assert.Nil(t, got[0].ReadAt)
	assert.Equal(t, int64(1700000000000), got[0].CreatedAt)
}

func TestNotificationStore_InsertWithoutAlert(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewNotificationStore(pool)

	// System notifications carry no alert reference.
	notification := &domain.Notification{
		UserID:  "user-1",
		Message: "welcome aboard",
	}

	err := store.Insert(ctx, notification)
	require.NoError(t, err)

	got, err := store.GetByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].AlertID)
}

func TestNotificationStore_InsertInvalid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewNotificationStore(pool)

	cases := []struct {
		name         string
		notification *domain.Notification
	}{
		{"nil notification", nil},
		{"empty user", &domain.Notification{Message: "msg"}},
		{"empty message", &domain.Notification{UserID: "u"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := store.Insert(ctx, tc.notification)
			assert.ErrorIs(t, err, storage.ErrInvalidInput)
		})
	}
}

func TestNotificationStore_GetByUserOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewNotificationStore(pool)

	for _, n := range []*domain.Notification{
		{UserID: "user-1", Message: "first", CreatedAt: 1000},
		{UserID: "user-1", Message: "third", CreatedAt: 3000},
		{UserID: "user-1", Message: "second", CreatedAt: 2000},
		{UserID: "user-2", Message: "other user", CreatedAt: 4000},
	} {
		require.NoError(t, store.Insert(ctx, n))
	}

	got, err := store.GetByUser(ctx, "user-1")
	require.NoError(t, err)

	// Newest first.
	require.Len(t, got, 3)
	assert.Equal(t, "third", got[0].Message)
	assert.Equal(t, "second", got[1].Message)
	assert.Equal(t, "first", got[2].Message)
}

func TestNotificationStore_MarkRead(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewNotificationStore(pool)

	notification := &domain.Notification{UserID: "user-1", Message: "msg", CreatedAt: 1000}
	require.NoError(t, store.Insert(ctx, notification))

	err := store.MarkRead(ctx, notification.ID)
	require.NoError(t, err)

	got, err := store.GetByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].ReadAt)
	firstReadAt := *got[0].ReadAt

	// Marking again keeps the original timestamp.
	err = store.MarkRead(ctx, notification.ID)
	require.NoError(t, err)

	got, err = store.GetByUser(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, got[0].ReadAt)
	assert.Equal(t, firstReadAt, *got[0].ReadAt)

	// Missing notification is an error.
	err = store.MarkRead(ctx, uuid.NewString())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNotificationStore_UnreadCount(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewNotificationStore(pool)

	for _, n := range []*domain.Notification{
		{UserID: "user-1", Message: "a", CreatedAt: 1000},
		{UserID: "user-1", Message: "b", CreatedAt: 2000},
		{UserID: "user-1", Message: "c", ReadAt: ptr(int64(2500)), CreatedAt: 3000},
		{UserID: "user-2", Message: "d", CreatedAt: 4000},
	} {
		require.NoError(t, store.Insert(ctx, n))
	}

	count, err := store.UnreadCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.UnreadCount(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestNotificationStore_AlertDeleteDetaches(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	alertStore := NewAlertStore(pool)
	store := NewNotificationStore(pool)

	alert := insertAlert(t, ctx, alertStore, "user-1", "BTC", domain.ConditionAbove, 50000, true, 1000)

	notification := &domain.Notification{
		UserID:    "user-1",
		AlertID:   ptr(alert.ID),
		Message:   "triggered",
		CreatedAt: 2000,
	}
	require.NoError(t, store.Insert(ctx, notification))

	// Deleting the alert detaches the notification instead of cascading.
	require.NoError(t, alertStore.Delete(ctx, alert.ID))

	got, err := store.GetByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].AlertID)
	assert.Equal(t, "triggered", got[0].Message)
}
