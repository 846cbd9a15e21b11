package session

import (
	"context"
	"fmt"
	"time"
)

// OfflineItem is one durably queued payload awaiting delivery.
type OfflineItem struct {
	ID         int64
	SessionID  string
	AttemptID  string
	Payload    []byte
	EnqueuedAt time.Time
}

// EnqueueOffline appends a payload to the durable offline queue. Delivery is
// at-least-once; the attempt ID doubles as the idempotency key.
func (s *Store) EnqueueOffline(ctx context.Context, sessionID, attemptID string, payload []byte) (int64, error) {
	res, err := s.execWithRetry(
		ensureContext(ctx),
		`INSERT INTO offline_queue (session_id, attempt_id, payload, enqueued_at) VALUES (?, ?, ?, ?)`,
		sessionID,
		attemptID,
		payload,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("enqueue offline: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// OfflineSessions returns the distinct session IDs with undelivered queue
// entries, ordered by their oldest entry.
func (s *Store) OfflineSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT session_id FROM offline_queue WHERE delivered = 0 GROUP BY session_id ORDER BY MIN(id)`,
	)
	if err != nil {
		return nil, fmt.Errorf("offline sessions: %w", err)
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		sessions = append(sessions, id)
	}
	return sessions, rows.Err()
}

// PendingOffline returns a session's undelivered queue entries in enqueue
// order. Per-session order is a delivery guarantee; entry N+1 must never be
// delivered before entry N.
func (s *Store) PendingOffline(ctx context.Context, sessionID string) ([]OfflineItem, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, session_id, attempt_id, payload, enqueued_at
         FROM offline_queue WHERE delivered = 0 AND session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("pending offline: %w", err)
	}
	defer rows.Close()

	var items []OfflineItem
	for rows.Next() {
		var (
			item       OfflineItem
			enqueuedAt string
		)
		if err := rows.Scan(&item.ID, &item.SessionID, &item.AttemptID, &item.Payload, &enqueuedAt); err != nil {
			return nil, err
		}
		if t, err := parseTimeString(enqueuedAt); err == nil {
			item.EnqueuedAt = t
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// HasPendingOffline reports whether an attempt has an undelivered queue
// entry.
func (s *Store) HasPendingOffline(ctx context.Context, attemptID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT COUNT(1) FROM offline_queue WHERE delivered = 0 AND attempt_id = ?`,
		attemptID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("pending offline lookup: %w", err)
	}
	return count > 0, nil
}

// OfflineDepth returns the number of undelivered queue entries.
func (s *Store) OfflineDepth(ctx context.Context) (int, error) {
	var depth int
	err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT COUNT(1) FROM offline_queue WHERE delivered = 0`,
	).Scan(&depth)
	if err != nil {
		return 0, fmt.Errorf("offline depth: %w", err)
	}
	return depth, nil
}

// MarkDelivered flags an offline queue entry as delivered.
func (s *Store) MarkDelivered(ctx context.Context, id int64) error {
	if _, err := s.execWithRetry(
		ensureContext(ctx),
		`UPDATE offline_queue SET delivered = 1 WHERE id = ?`,
		id,
	); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

// PruneDelivered removes delivered queue entries.
func (s *Store) PruneDelivered(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ensureContext(ctx),
		`DELETE FROM offline_queue WHERE delivered = 1`,
	)
	if err != nil {
		return 0, fmt.Errorf("prune delivered: %w", err)
	}
	return res.RowsAffected()
}
