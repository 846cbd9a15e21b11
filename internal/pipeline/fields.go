package pipeline

import (
	"context"
	"strings"

	"quill/internal/audit"
	"quill/internal/logging"
	"quill/internal/session"
)

// EditField applies a clinician's text edit. The edit keeps the field's
// origin and provenance and counts as review, so the field comes out
// validated and unflagged.
func (c *Coordinator) EditField(ctx context.Context, sessionID, fieldID, newValue, actor string) error {
	return c.withSession(ctx, sessionID, func(st *state) error {
		if !st.sess.Editable() {
			return session.ErrFieldLocked
		}
		oldValue := ""
		if prior, ok := st.rec.Field(fieldID); ok {
			oldValue = prior.Value
		}
		if err := st.rec.Edit(fieldID, newValue); err != nil {
			return err
		}
		field, _ := st.rec.Field(fieldID)
		if err := c.store.SaveField(ctx, sessionID, field); err != nil {
			return err
		}

		c.emit(ctx, audit.EventFieldEdited, sessionID, actor, map[string]string{
			"field_id":  fieldID,
			"old_value": oldValue,
			"new_value": newValue,
		})
		c.logger.InfoContext(ctx, "field edited",
			logging.String(logging.FieldSessionID, sessionID),
			logging.String(logging.FieldFieldID, fieldID),
		)
		return nil
	})
}

// AssignSegments applies a manual clinician assignment: the field's value and
// provenance are replaced by the referenced transcript segments and the field
// is validated at full confidence. When value is empty the joined segment
// text is used.
func (c *Coordinator) AssignSegments(ctx context.Context, sessionID, fieldID string, segmentIDs []string, value, actor string) error {
	return c.withSession(ctx, sessionID, func(st *state) error {
		if !st.sess.Editable() {
			return session.ErrFieldLocked
		}
		if strings.TrimSpace(value) == "" {
			value = st.tr.JoinText(segmentIDs)
		}
		if err := st.rec.AssignSegments(fieldID, segmentIDs, value); err != nil {
			return err
		}
		field, _ := st.rec.Field(fieldID)
		if err := c.store.SaveField(ctx, sessionID, field); err != nil {
			return err
		}

		c.emit(ctx, audit.EventSegmentsAssigned, sessionID, actor, map[string]string{
			"field_id": fieldID,
			"segments": strings.Join(segmentIDs, ","),
		})
		c.logger.InfoContext(ctx, "segments assigned",
			logging.String(logging.FieldSessionID, sessionID),
			logging.String(logging.FieldFieldID, fieldID),
			logging.Int("segments", len(segmentIDs)),
		)
		return nil
	})
}

// MarkValidated records explicit clinician confirmation of a field value.
func (c *Coordinator) MarkValidated(ctx context.Context, sessionID, fieldID, actor string) error {
	return c.markValidation(ctx, sessionID, fieldID, actor, true)
}

// MarkUnvalidated withdraws confirmation; a low-confidence AI field returns
// to the flagged review list.
func (c *Coordinator) MarkUnvalidated(ctx context.Context, sessionID, fieldID, actor string) error {
	return c.markValidation(ctx, sessionID, fieldID, actor, false)
}

func (c *Coordinator) markValidation(ctx context.Context, sessionID, fieldID, actor string, validated bool) error {
	return c.withSession(ctx, sessionID, func(st *state) error {
		if !st.sess.Editable() {
			return session.ErrFieldLocked
		}
		var err error
		if validated {
			err = st.rec.MarkValidated(fieldID)
		} else {
			err = st.rec.MarkUnvalidated(fieldID)
		}
		if err != nil {
			return err
		}
		field, _ := st.rec.Field(fieldID)
		if err := c.store.SaveField(ctx, sessionID, field); err != nil {
			return err
		}

		eventType := audit.EventFieldValidated
		if !validated {
			eventType = audit.EventFieldUnvalidated
		}
		c.emit(ctx, eventType, sessionID, actor, map[string]string{
			"field_id": fieldID,
		})
		return nil
	})
}
