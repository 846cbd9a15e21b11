package pipeline

import (
	"context"
	"strconv"

	"quill/internal/audit"
	"quill/internal/logging"
	"quill/internal/record"
	"quill/internal/session"
)

// ApplyExtraction ingests a whole-record extraction batch, keyed by field ID.
// The batch is validated up front so a bad entry rejects the whole batch
// before any field changes. Manually assigned fields keep their values; a
// bulk extraction never outranks a clinician's explicit assignment.
func (c *Coordinator) ApplyExtraction(ctx context.Context, sessionID string, results map[string]record.Extraction, actor string) error {
	return c.withSession(ctx, sessionID, func(st *state) error {
		if !st.sess.Editable() {
			return session.ErrFieldLocked
		}
		for fieldID, ex := range results {
			if err := st.rec.CheckExtraction(fieldID, ex); err != nil {
				return err
			}
		}

		var (
			changed []record.FormField
			applied int
			skipped int
		)
		for _, fieldID := range c.registry.FieldIDs() {
			ex, ok := results[fieldID]
			if !ok {
				continue
			}
			if existing, ok := st.rec.Field(fieldID); ok && existing.Origin == record.OriginManuallyAssigned {
				skipped++
				continue
			}
			if err := st.rec.ApplyExtraction(fieldID, ex); err != nil {
				return err
			}
			if field, ok := st.rec.Field(fieldID); ok {
				changed = append(changed, field)
			}
			applied++
		}
		if err := c.store.SaveFields(ctx, sessionID, changed); err != nil {
			return err
		}

		c.emit(ctx, audit.EventExtractionApplied, sessionID, actor, map[string]string{
			"applied": strconv.Itoa(applied),
			"skipped": strconv.Itoa(skipped),
		})
		status := st.rec.Status()
		c.logger.InfoContext(ctx, "extraction applied",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Int("applied", applied),
			logging.Int("skipped", skipped),
			logging.Int("flagged", status.FlaggedFields),
		)
		if err := c.notifier.NotifyReviewReady(ctx, sessionID, status.FlaggedFields); err != nil {
			c.logger.WarnContext(ctx, "review notification failed", logging.Error(err))
		}
		return nil
	})
}

// ReExtractField applies a targeted single-field re-extraction. Unlike the
// bulk path it may override a manual assignment, and it touches nothing but
// the named field.
func (c *Coordinator) ReExtractField(ctx context.Context, sessionID, fieldID string, ex record.Extraction, actor string) error {
	return c.withSession(ctx, sessionID, func(st *state) error {
		if !st.sess.Editable() {
			return session.ErrFieldLocked
		}
		if err := st.rec.ReExtract(fieldID, ex); err != nil {
			return err
		}
		field, _ := st.rec.Field(fieldID)
		if err := c.store.SaveField(ctx, sessionID, field); err != nil {
			return err
		}

		c.emit(ctx, audit.EventFieldReExtracted, sessionID, actor, map[string]string{
			"field_id":   fieldID,
			"confidence": strconv.FormatFloat(ex.Confidence, 'f', -1, 64),
		})
		c.logger.InfoContext(ctx, "field re-extracted",
			logging.String(logging.FieldSessionID, sessionID),
			logging.String(logging.FieldFieldID, fieldID),
			logging.Bool("flagged", field.Flagged),
		)
		return nil
	})
}
