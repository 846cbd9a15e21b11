package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"quill/internal/record"
	"quill/internal/transcript"
)

// SaveField upserts one form field row for a session.
func (s *Store) SaveField(ctx context.Context, sessionID string, field record.FormField) error {
	segments, err := json.Marshal(field.SourceSegments)
	if err != nil {
		return fmt.Errorf("marshal source segments: %w", err)
	}
	_, err = s.execWithRetry(
		ensureContext(ctx),
		`INSERT INTO form_fields (session_id, field_id, value, confidence, origin, flagged, validated, source_segments, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(session_id, field_id) DO UPDATE SET
             value = excluded.value,
             confidence = excluded.confidence,
             origin = excluded.origin,
             flagged = excluded.flagged,
             validated = excluded.validated,
             source_segments = excluded.source_segments,
             updated_at = excluded.updated_at`,
		sessionID,
		field.ID,
		field.Value,
		field.Confidence,
		string(field.Origin),
		boolToInt(field.Flagged),
		boolToInt(field.Validated),
		string(segments),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save field %s: %w", field.ID, err)
	}
	return nil
}

// SaveFields upserts a batch of fields in one transaction.
func (s *Store) SaveFields(ctx context.Context, sessionID string, fields []record.FormField) error {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save fields tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	for _, field := range fields {
		segments, err := json.Marshal(field.SourceSegments)
		if err != nil {
			return fmt.Errorf("marshal source segments: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO form_fields (session_id, field_id, value, confidence, origin, flagged, validated, source_segments, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
             ON CONFLICT(session_id, field_id) DO UPDATE SET
                 value = excluded.value,
                 confidence = excluded.confidence,
                 origin = excluded.origin,
                 flagged = excluded.flagged,
                 validated = excluded.validated,
                 source_segments = excluded.source_segments,
                 updated_at = excluded.updated_at`,
			sessionID,
			field.ID,
			field.Value,
			field.Confidence,
			string(field.Origin),
			boolToInt(field.Flagged),
			boolToInt(field.Validated),
			string(segments),
			timestamp,
		); err != nil {
			return fmt.Errorf("save field %s: %w", field.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save fields: %w", err)
	}
	return nil
}

// ListFields returns all stored fields for a session.
func (s *Store) ListFields(ctx context.Context, sessionID string) ([]record.FormField, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT field_id, value, confidence, origin, flagged, validated, source_segments
         FROM form_fields WHERE session_id = ? ORDER BY field_id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	defer rows.Close()

	var fields []record.FormField
	for rows.Next() {
		var (
			field      record.FormField
			originStr  string
			flagged    int
			validated  int
			segmentRaw sql.NullString
		)
		if err := rows.Scan(&field.ID, &field.Value, &field.Confidence, &originStr, &flagged, &validated, &segmentRaw); err != nil {
			return nil, err
		}
		field.Origin, _ = record.ParseOrigin(originStr)
		field.Flagged = flagged != 0
		field.Validated = validated != 0
		if segmentRaw.Valid && segmentRaw.String != "" {
			if err := json.Unmarshal([]byte(segmentRaw.String), &field.SourceSegments); err != nil {
				return nil, fmt.Errorf("unmarshal source segments for %s: %w", field.ID, err)
			}
		}
		fields = append(fields, field)
	}
	return fields, rows.Err()
}

// ListSegments returns a session's transcript segments in original order.
func (s *Store) ListSegments(ctx context.Context, sessionID string) ([]transcript.Segment, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT segment_id, speaker, text, start_time, end_time, confidence
         FROM transcript_segments WHERE session_id = ? ORDER BY position`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var segments []transcript.Segment
	for rows.Next() {
		var (
			seg     transcript.Segment
			speaker string
		)
		if err := rows.Scan(&seg.ID, &speaker, &seg.Text, &seg.Start, &seg.End, &seg.Confidence); err != nil {
			return nil, err
		}
		seg.Speaker = transcript.ParseRole(speaker)
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}
