package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/V0rtexyz/FinDash/internal/domain"
	"github.com/V0rtexyz/FinDash/internal/storage"
)

func TestNotificationStore_InsertAndGetByUser(t *testing.T) {
	store := NewNotificationStore()
	ctx := context.Background()

	alertID := "alert-1"
	notifications := []*domain.Notification{
		{ID: "n1", UserID: "u1", AlertID: &alertID, Message: "BTC crossed 90000", CreatedAt: 1000},
		{ID: "n2", UserID: "u1", Message: "ETH crossed 3000", CreatedAt: 2000},
		{ID: "n3", UserID: "u2", Message: "DOGE crossed 1", CreatedAt: 3000},
	}

	for _, n := range notifications {
		if err := store.Insert(ctx, n); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.GetByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(result))
	}

	// Newest first
	if result[0].ID != "n2" {
		t.Errorf("First result should be n2, got %s", result[0].ID)
	}
	if result[1].ID != "n1" {
		t.Errorf("Second result should be n1, got %s", result[1].ID)
	}
	if result[1].AlertID == nil || *result[1].AlertID != alertID {
		t.Error("AlertID should survive the round trip")
	}
}

func TestNotificationStore_AssignsID(t *testing.T) {
	store := NewNotificationStore()
	ctx := context.Background()

	n := &domain.Notification{UserID: "u1", Message: "BTC crossed 90000", CreatedAt: 1000}
	if err := store.Insert(ctx, n); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if n.ID == "" {
		t.Error("Insert should assign an id")
	}
}

func TestNotificationStore_MarkRead(t *testing.T) {
	store := NewNotificationStore()
	ctx := context.Background()

	n := &domain.Notification{ID: "n1", UserID: "u1", Message: "BTC crossed 90000", CreatedAt: 1000}
	if err := store.Insert(ctx, n); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.MarkRead(ctx, "n1"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	result, err := store.GetByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if result[0].ReadAt == nil {
		t.Fatal("ReadAt should be set")
	}
	firstRead := *result[0].ReadAt

	// Second mark keeps the original timestamp
	if err := store.MarkRead(ctx, "n1"); err != nil {
		t.Fatalf("Second MarkRead failed: %v", err)
	}
	result, err = store.GetByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if *result[0].ReadAt != firstRead {
		t.Error("MarkRead should keep the original read timestamp")
	}

	err = store.MarkRead(ctx, "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestNotificationStore_UnreadCount(t *testing.T) {
	store := NewNotificationStore()
	ctx := context.Background()

	notifications := []*domain.Notification{
		{ID: "n1", UserID: "u1", Message: "m1", CreatedAt: 1000},
		{ID: "n2", UserID: "u1", Message: "m2", CreatedAt: 2000},
		{ID: "n3", UserID: "u1", Message: "m3", CreatedAt: 3000},
		{ID: "n4", UserID: "u2", Message: "m4", CreatedAt: 4000},
	}
	for _, n := range notifications {
		if err := store.Insert(ctx, n); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	if err := store.MarkRead(ctx, "n2"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	count, err := store.UnreadCount(ctx, "u1")
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 unread, got %d", count)
	}
}

func TestNotificationStore_InvalidInput(t *testing.T) {
	store := NewNotificationStore()
	ctx := context.Background()

	err := store.Insert(ctx, nil)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}

	err = store.Insert(ctx, &domain.Notification{UserID: "u1"})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty message, got %v", err)
	}
}
