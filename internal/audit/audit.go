package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"quill/internal/logging"
)

// EventType identifies what happened.
type EventType string

const (
	EventExtractionApplied   EventType = "extraction_applied"
	EventFieldEdited         EventType = "field_edited"
	EventSegmentsAssigned    EventType = "segments_assigned"
	EventFieldReExtracted    EventType = "field_reextracted"
	EventFieldValidated      EventType = "field_validated"
	EventFieldUnvalidated    EventType = "field_unvalidated"
	EventValidationCommitted EventType = "validation_committed"
	EventSessionReopened     EventType = "session_reopened"
	EventSubmissionAttempted EventType = "submission_attempted"
	EventSubmissionSucceeded EventType = "submission_succeeded"
	EventSubmissionFailed    EventType = "submission_failed"
	EventSubmissionEnqueued  EventType = "submission_enqueued"
)

// Event is one audit record. Details hold event-specific context such as old
// and new values for edits or the attempt ID for submissions.
type Event struct {
	ID        string
	Type      EventType
	SessionID string
	Actor     string
	Time      time.Time
	Details   map[string]string
}

// Emitter receives one event per mutating pipeline operation.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// NewEvent stamps an event with an identifier and timestamp.
func NewEvent(eventType EventType, sessionID, actor string, details map[string]string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SessionID: sessionID,
		Actor:     actor,
		Time:      time.Now().UTC(),
		Details:   details,
	}
}

// LogEmitter writes audit events to a structured logger.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter builds an emitter over the given logger.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	return &LogEmitter{logger: logging.NewComponentLogger(logger, "audit")}
}

func (e *LogEmitter) Emit(ctx context.Context, event Event) {
	attrs := []logging.Attr{
		logging.String("audit_id", event.ID),
		logging.String(logging.FieldEventType, string(event.Type)),
		logging.String(logging.FieldSessionID, event.SessionID),
		logging.String(logging.FieldActor, event.Actor),
	}
	for key, value := range event.Details {
		attrs = append(attrs, logging.String(key, value))
	}
	e.logger.InfoContext(ctx, "audit event", logging.Args(attrs...)...)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}
