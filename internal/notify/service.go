package notify

import (
	"context"
	"errors"
	"fmt"
)

// Service is the read side used by the notifications API. Every call is
// scoped to the calling user.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, userID int64) ([]Notification, error) {
	items, err := s.repo.ListByUser(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

func (s *Service) Unread(ctx context.Context, userID int64) ([]Notification, error) {
	items, err := s.repo.ListByUser(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("list unread notifications: %w", err)
	}
	return items, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID int64) (int, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (s *Service) MarkRead(ctx context.Context, id, userID int64) (*Notification, error) {
	n, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return n, nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id, userID int64) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			return err
		}
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}
