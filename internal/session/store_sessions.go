package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"quill/internal/transcript"
)

// CreateSession inserts a session together with its immutable transcript
// segments in one transaction.
func (s *Store) CreateSession(ctx context.Context, sess *Session, segments []transcript.Segment) error {
	if sess == nil {
		return errors.New("session is nil")
	}
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.UpdatedAt = now
	timestamp := now.Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create session tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO sessions (id, clinician_id, mode, validated_by, validated_at, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.ClinicianID,
		sess.Mode,
		nullableString(sess.ValidatedBy),
		nullableTime(sess.ValidatedAt),
		timestamp,
		timestamp,
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for position, seg := range segments {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO transcript_segments (session_id, segment_id, speaker, text, start_time, end_time, confidence, position)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID,
			seg.ID,
			string(seg.Speaker),
			seg.Text,
			seg.Start,
			seg.End,
			seg.Confidence,
			position,
		); err != nil {
			return fmt.Errorf("insert segment %s: %w", seg.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create session: %w", err)
	}
	return nil
}

// GetSession fetches a session by identifier.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT id, clinician_id, mode, validated_by, validated_at, created_at, updated_at
         FROM sessions WHERE id = ?`,
		id,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ListSessions returns sessions filtered by mode set (or all sessions when no
// mode is provided), ordered by creation time.
func (s *Store) ListSessions(ctx context.Context, modes ...Mode) ([]*Session, error) {
	ctx = ensureContext(ctx)
	baseQuery := `SELECT id, clinician_id, mode, validated_by, validated_at, created_at, updated_at FROM sessions`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(modes) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(modes))
		args := make([]any, len(modes))
		for i, mode := range modes {
			args[i] = mode
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE mode IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// UpdateSession persists mode and validation metadata changes.
func (s *Store) UpdateSession(ctx context.Context, sess *Session) error {
	if sess == nil {
		return errors.New("session is nil")
	}
	sess.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(
		ensureContext(ctx),
		`UPDATE sessions
         SET mode = ?, validated_by = ?, validated_at = ?, updated_at = ?
         WHERE id = ?`,
		sess.Mode,
		nullableString(sess.ValidatedBy),
		nullableTime(sess.ValidatedAt),
		sess.UpdatedAt.Format(time.RFC3339Nano),
		sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ModeCounts returns a count of sessions grouped by mode.
func (s *Store) ModeCounts(ctx context.Context) (map[Mode]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT mode, COUNT(1) FROM sessions GROUP BY mode`)
	if err != nil {
		return nil, fmt.Errorf("session stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Mode]int)
	for rows.Next() {
		var mode Mode
		var count int
		if err := rows.Scan(&mode, &count); err != nil {
			return nil, err
		}
		stats[mode] = count
	}
	return stats, rows.Err()
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id          string
		clinicianID string
		modeStr     string
		validatedBy sql.NullString
		validatedAt sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(&id, &clinicianID, &modeStr, &validatedBy, &validatedAt, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	sess := &Session{
		ID:          id,
		ClinicianID: clinicianID,
		Mode:        Mode(modeStr),
		ValidatedBy: validatedBy.String,
	}
	if validatedAt.Valid {
		if t, err := parseTimeString(validatedAt.String); err == nil {
			sess.ValidatedAt = &t
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		sess.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		sess.UpdatedAt = updated
	}
	return sess, nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
