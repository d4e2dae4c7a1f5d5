package notify

import (
	"context"
	"errors"
	"testing"
)

func TestService_ReadFlow(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := repo.Create(ctx, Notification{UserID: 1, Type: TypeSystem, Title: "t", Message: "m"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	other, _ := repo.Create(ctx, Notification{UserID: 2, Type: TypeSystem, Title: "t", Message: "m"})

	count, err := svc.UnreadCount(ctx, 1)
	if err != nil || count != 3 {
		t.Fatalf("expected 3 unread, got %d (%v)", count, err)
	}

	items, _ := svc.List(ctx, 1)
	if _, err := svc.MarkRead(ctx, items[0].ID, 1); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	unread, _ := svc.Unread(ctx, 1)
	if len(unread) != 2 {
		t.Fatalf("expected 2 unread, got %d", len(unread))
	}

	if _, err := svc.MarkRead(ctx, other.ID, 1); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected other users' notifications to be hidden, got %v", err)
	}

	updated, err := svc.MarkAllRead(ctx, 1)
	if err != nil || updated != 2 {
		t.Fatalf("expected 2 updated, got %d (%v)", updated, err)
	}
	if count, _ := svc.UnreadCount(ctx, 2); count != 1 {
		t.Fatalf("other user's notifications must stay unread, got %d", count)
	}

	if err := svc.Delete(ctx, items[0].ID, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if all, _ := svc.List(ctx, 1); len(all) != 2 {
		t.Fatalf("expected 2 left, got %d", len(all))
	}
}
