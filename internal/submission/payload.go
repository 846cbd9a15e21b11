package submission

import (
	"encoding/json"
	"fmt"
	"time"

	"quill/internal/config"
	"quill/internal/record"
	"quill/internal/schema"
	"quill/internal/session"
)

// payloadEnvelope is the wire shape delivered to the portal. Field values are
// grouped by schema category; metadata identifies who validated what and
// which system produced it.
type payloadEnvelope struct {
	SessionID           string                       `json:"session_id"`
	ClinicianID         string                       `json:"clinician_id"`
	ValidatedBy         string                       `json:"validated_by"`
	ValidationTimestamp string                       `json:"validation_timestamp"`
	SourceSystem        string                       `json:"source_system"`
	SourceVersion       string                       `json:"source_version"`
	Assessment          map[string]map[string]string `json:"assessment"`
}

// BuildPayload serializes a validated session into the immutable JSON
// snapshot an attempt delivers. Later edits to the record never alter a
// snapshot already taken.
func BuildPayload(cfg *config.Config, registry *schema.Registry, sess *session.Session, rec *record.Record) ([]byte, error) {
	if sess == nil {
		return nil, fmt.Errorf("session is nil")
	}
	if rec == nil {
		return nil, fmt.Errorf("record is nil")
	}

	assessment := make(map[string]map[string]string)
	for _, category := range registry.Categories() {
		assessment[category] = make(map[string]string)
	}
	for _, field := range rec.Fields() {
		category := registry.CategoryOf(field.ID)
		if category == "" {
			return nil, fmt.Errorf("field %s has no category", field.ID)
		}
		assessment[category][field.ID] = field.Value
	}

	validatedAt := ""
	if sess.ValidatedAt != nil {
		validatedAt = sess.ValidatedAt.UTC().Format(time.RFC3339)
	}

	envelope := payloadEnvelope{
		SessionID:           sess.ID,
		ClinicianID:         sess.ClinicianID,
		ValidatedBy:         sess.ValidatedBy,
		ValidationTimestamp: validatedAt,
		SourceSystem:        cfg.Portal.SourceSystem,
		SourceVersion:       cfg.Portal.SourceVersion,
		Assessment:          assessment,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}
