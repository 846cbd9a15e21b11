package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"quill/internal/audit"
	"quill/internal/config"
	"quill/internal/logging"
	"quill/internal/notify"
	"quill/internal/record"
	"quill/internal/schema"
	"quill/internal/session"
	"quill/internal/submission"
	"quill/internal/transcript"
)

// Coordinator drives sessions through extraction, validation, and submission.
type Coordinator struct {
	cfg      *config.Config
	store    *session.Store
	registry *schema.Registry
	gateway  *submission.Gateway
	emitter  audit.Emitter
	notifier notify.Service
	logger   *slog.Logger

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	states map[string]*state
}

// state is the in-memory working set for one session. The store remains the
// source of truth; state is a cache rebuilt on demand.
type state struct {
	sess *session.Session
	tr   *transcript.Transcript
	rec  *record.Record
}

// New assembles a coordinator. A nil notifier or emitter degrades to no-ops.
func New(cfg *config.Config, store *session.Store, registry *schema.Registry, gateway *submission.Gateway, emitter audit.Emitter, notifier notify.Service, logger *slog.Logger) *Coordinator {
	if emitter == nil {
		emitter = audit.Nop{}
	}
	if notifier == nil {
		notifier = notify.NewService(cfg)
	}
	return &Coordinator{
		cfg:      cfg,
		store:    store,
		registry: registry,
		gateway:  gateway,
		emitter:  emitter,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		locks:    make(map[string]*sync.Mutex),
		states:   make(map[string]*state),
	}
}

// Registry exposes the schema registry for read-side callers.
func (c *Coordinator) Registry() *schema.Registry {
	return c.registry
}

func (c *Coordinator) sessionLock(sessionID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[sessionID] = lock
	}
	return lock
}

// withSession runs fn with the session lock held and its state loaded.
func (c *Coordinator) withSession(ctx context.Context, sessionID string, fn func(*state) error) error {
	lock := c.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	st, err := c.loadState(ctx, sessionID)
	if err != nil {
		return err
	}
	return fn(st)
}

// loadState returns the cached state for a session, rebuilding it from the
// store after a restart. Caller must hold the session lock.
func (c *Coordinator) loadState(ctx context.Context, sessionID string) (*state, error) {
	c.mu.Lock()
	st, ok := c.states[sessionID]
	c.mu.Unlock()
	if ok {
		return st, nil
	}

	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	segments, err := c.store.ListSegments(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	tr, err := transcript.New(segments)
	if err != nil {
		return nil, err
	}
	rec := record.New(c.registry, tr, c.cfg.Validation.FlagThreshold)
	fields, err := c.store.ListFields(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, field := range fields {
		if err := rec.Restore(field); err != nil {
			return nil, err
		}
	}

	st = &state{sess: sess, tr: tr, rec: rec}
	c.mu.Lock()
	c.states[sessionID] = st
	c.mu.Unlock()
	return st, nil
}

// invalidate drops cached state so the next operation reloads from the store.
func (c *Coordinator) invalidate(sessionID string) {
	c.mu.Lock()
	delete(c.states, sessionID)
	c.mu.Unlock()
}

func (c *Coordinator) invalidateAll() {
	c.mu.Lock()
	c.states = make(map[string]*state)
	c.mu.Unlock()
}

func (c *Coordinator) emit(ctx context.Context, eventType audit.EventType, sessionID, actor string, details map[string]string) {
	c.emitter.Emit(ctx, audit.NewEvent(eventType, sessionID, actor, details))
}

// Session returns a copy of the session's lifecycle view.
func (c *Coordinator) Session(ctx context.Context, sessionID string) (session.Session, error) {
	var out session.Session
	err := c.withSession(ctx, sessionID, func(st *state) error {
		out = *st.sess
		return nil
	})
	return out, err
}

// Sessions lists stored sessions, optionally filtered by mode.
func (c *Coordinator) Sessions(ctx context.Context, modes ...session.Mode) ([]*session.Session, error) {
	return c.store.ListSessions(ctx, modes...)
}

// ModeCounts reports how many sessions sit in each lifecycle mode.
func (c *Coordinator) ModeCounts(ctx context.Context) (map[session.Mode]int, error) {
	return c.store.ModeCounts(ctx)
}

// Field returns a copy of one populated field.
func (c *Coordinator) Field(ctx context.Context, sessionID, fieldID string) (record.FormField, error) {
	var out record.FormField
	err := c.withSession(ctx, sessionID, func(st *state) error {
		if !c.registry.Contains(fieldID) {
			return &record.UnknownFieldError{FieldID: fieldID}
		}
		if field, ok := st.rec.Field(fieldID); ok {
			out = field
			return nil
		}
		// Known but not yet populated; an empty field with the ID set lets
		// callers render it without a lookup error.
		out = record.FormField{ID: fieldID}
		return nil
	})
	return out, err
}

// Fields returns copies of a session's populated fields in registry order.
func (c *Coordinator) Fields(ctx context.Context, sessionID string) ([]record.FormField, error) {
	var out []record.FormField
	err := c.withSession(ctx, sessionID, func(st *state) error {
		out = st.rec.Fields()
		return nil
	})
	return out, err
}

// Transcript returns a session's ordered transcript segments.
func (c *Coordinator) Transcript(ctx context.Context, sessionID string) ([]transcript.Segment, error) {
	var out []transcript.Segment
	err := c.withSession(ctx, sessionID, func(st *state) error {
		out = st.tr.Segments()
		return nil
	})
	return out, err
}

// SegmentsFor returns the provenance chain for one field.
func (c *Coordinator) SegmentsFor(ctx context.Context, sessionID, fieldID string) ([]transcript.Segment, error) {
	var out []transcript.Segment
	err := c.withSession(ctx, sessionID, func(st *state) error {
		for _, segID := range st.rec.Provenance().SegmentsFor(fieldID) {
			if seg, ok := st.tr.Lookup(segID); ok {
				out = append(out, seg)
			}
		}
		return nil
	})
	return out, err
}

// Status derives the session's validation status.
func (c *Coordinator) Status(ctx context.Context, sessionID string) (record.ValidationStatus, error) {
	var out record.ValidationStatus
	err := c.withSession(ctx, sessionID, func(st *state) error {
		out = st.rec.Status()
		return nil
	})
	return out, err
}

// Attempts returns a session's submission attempts oldest first.
func (c *Coordinator) Attempts(ctx context.Context, sessionID string) ([]*session.Attempt, error) {
	return c.store.AttemptsForSession(ctx, sessionID)
}
