package notify

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, n Notification) (*Notification, error)
	ListByUser(ctx context.Context, userID int64, unreadOnly bool) ([]Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, id, userID int64) (*Notification, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, id, userID int64) error
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const notificationColumns = `id, user_id, notification_type, title, message, appointment_id, is_read, read_at, created_at`

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification

	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Type,
		&n.Title,
		&n.Message,
		&n.AppointmentID,
		&n.IsRead,
		&n.ReadAt,
		&n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}

	return &n, nil
}

func (r *PgRepository) Create(ctx context.Context, n Notification) (*Notification, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (user_id, notification_type, title, message, appointment_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+notificationColumns,
		n.UserID, n.Type, n.Title, n.Message, n.AppointmentID)
	return scanNotification(row)
}

func (r *PgRepository) ListByUser(ctx context.Context, userID int64, unreadOnly bool) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1
		  AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC, id DESC
	`, userID, unreadOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}

	return result, rows.Err()
}

func (r *PgRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read
	`, userID).Scan(&count)
	return count, err
}

func (r *PgRepository) MarkRead(ctx context.Context, id, userID int64) (*Notification, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE notifications
		SET is_read = TRUE,
		    read_at = COALESCE(read_at, now())
		WHERE id = $1 AND user_id = $2
		RETURNING `+notificationColumns, id, userID)
	return scanNotification(row)
}

func (r *PgRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE,
		    read_at = now()
		WHERE user_id = $1 AND NOT is_read
	`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) Delete(ctx context.Context, id, userID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MemoryRepository is an in-process Repository for tests and local runs.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]Notification
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[int64]Notification)}
}

func (m *MemoryRepository) Create(_ context.Context, n Notification) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	n.ID = m.nextID
	n.CreatedAt = time.Now()
	m.items[n.ID] = n
	return &n, nil
}

func (m *MemoryRepository) ListByUser(_ context.Context, userID int64, unreadOnly bool) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []Notification{}
	for _, n := range m.items {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *MemoryRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	unread, err := m.ListByUser(ctx, userID, true)
	return len(unread), err
}

func (m *MemoryRepository) MarkRead(_ context.Context, id, userID int64) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok || n.UserID != userID {
		return nil, ErrNotificationNotFound
	}
	if !n.IsRead {
		now := time.Now()
		n.IsRead = true
		n.ReadAt = &now
		m.items[id] = n
	}
	return &n, nil
}

func (m *MemoryRepository) MarkAllRead(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var updated int64
	now := time.Now()
	for id, n := range m.items {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &now
			m.items[id] = n
			updated++
		}
	}
	return updated, nil
}

func (m *MemoryRepository) Delete(_ context.Context, id, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok || n.UserID != userID {
		return ErrNotificationNotFound
	}
	delete(m.items, id)
	return nil
}

var (
	_ Repository = (*PgRepository)(nil)
	_ Repository = (*MemoryRepository)(nil)
)
