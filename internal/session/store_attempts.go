package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateAttempt inserts a new submission attempt with its immutable payload
// snapshot.
func (s *Store) CreateAttempt(ctx context.Context, attempt *Attempt) error {
	if attempt == nil {
		return errors.New("attempt is nil")
	}
	now := time.Now().UTC()
	attempt.CreatedAt = now
	attempt.UpdatedAt = now
	timestamp := now.Format(time.RFC3339Nano)

	_, err := s.execWithRetry(
		ensureContext(ctx),
		`INSERT INTO submission_attempts (attempt_id, session_id, payload, status, retry_count, last_error, portal_record_id, created_at, updated_at, last_retry_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID,
		attempt.SessionID,
		attempt.Payload,
		attempt.Status,
		attempt.RetryCount,
		nullableString(attempt.LastError),
		nullableString(attempt.PortalRecordID),
		timestamp,
		timestamp,
		nullableTime(attempt.LastRetryAt),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// UpdateAttempt persists attempt status changes. The payload column is never
// rewritten; the snapshot taken at creation is what retries deliver.
func (s *Store) UpdateAttempt(ctx context.Context, attempt *Attempt) error {
	if attempt == nil {
		return errors.New("attempt is nil")
	}
	attempt.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ensureContext(ctx),
		`UPDATE submission_attempts
         SET status = ?, retry_count = ?, last_error = ?, portal_record_id = ?, updated_at = ?, last_retry_at = ?
         WHERE attempt_id = ?`,
		attempt.Status,
		attempt.RetryCount,
		nullableString(attempt.LastError),
		nullableString(attempt.PortalRecordID),
		attempt.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(attempt.LastRetryAt),
		attempt.ID,
	)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	return nil
}

// GetAttempt fetches one attempt by identifier.
func (s *Store) GetAttempt(ctx context.Context, attemptID string) (*Attempt, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+attemptColumns+` FROM submission_attempts WHERE attempt_id = ?`,
		attemptID,
	)
	attempt, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return attempt, nil
}

// AttemptsForSession returns a session's attempts ordered by creation time.
func (s *Store) AttemptsForSession(ctx context.Context, sessionID string) ([]*Attempt, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+attemptColumns+` FROM submission_attempts WHERE session_id = ? ORDER BY created_at`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

// ActiveAttempt returns the pending or retrying attempt for a session, if
// any. At most one exists; the state machine enforces the exclusion.
func (s *Store) ActiveAttempt(ctx context.Context, sessionID string) (*Attempt, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+attemptColumns+` FROM submission_attempts
         WHERE session_id = ? AND status IN (?, ?) ORDER BY created_at LIMIT 1`,
		sessionID,
		AttemptPending,
		AttemptRetrying,
	)
	attempt, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active attempt: %w", err)
	}
	return attempt, nil
}

// ActiveAttempts returns every pending or retrying attempt across all
// sessions, oldest first. Used at startup to find work orphaned by a
// previous process exit.
func (s *Store) ActiveAttempts(ctx context.Context) ([]*Attempt, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+attemptColumns+` FROM submission_attempts
         WHERE status IN (?, ?) ORDER BY created_at`,
		AttemptPending,
		AttemptRetrying,
	)
	if err != nil {
		return nil, fmt.Errorf("active attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

const attemptColumns = "attempt_id, session_id, payload, status, retry_count, last_error, portal_record_id, created_at, updated_at, last_retry_at"

func scanAttempt(scanner interface{ Scan(dest ...any) error }) (*Attempt, error) {
	var (
		attempt     Attempt
		statusStr   string
		lastError   sql.NullString
		portalID    sql.NullString
		createdRaw  string
		updatedRaw  string
		lastRetry   sql.NullString
	)
	if err := scanner.Scan(
		&attempt.ID,
		&attempt.SessionID,
		&attempt.Payload,
		&statusStr,
		&attempt.RetryCount,
		&lastError,
		&portalID,
		&createdRaw,
		&updatedRaw,
		&lastRetry,
	); err != nil {
		return nil, err
	}

	attempt.Status, _ = ParseAttemptStatus(statusStr)
	attempt.LastError = lastError.String
	attempt.PortalRecordID = portalID.String
	if created, err := parseTimeString(createdRaw); err == nil {
		attempt.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		attempt.UpdatedAt = updated
	}
	if lastRetry.Valid {
		if t, err := parseTimeString(lastRetry.String); err == nil {
			attempt.LastRetryAt = &t
		}
	}
	return &attempt, nil
}
