package testsupport

import (
	"context"
	"testing"

	"quill/internal/config"
	"quill/internal/session"
	"quill/internal/transcript"
)

// MustOpenStore opens a session.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *session.Store {
	t.Helper()

	store, err := session.Open(cfg)
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewStoredSession persists a draft session with the given segments.
func NewStoredSession(t testing.TB, store *session.Store, id, clinicianID string, segments []transcript.Segment) *session.Session {
	t.Helper()

	sess := &session.Session{
		ID:          id,
		ClinicianID: clinicianID,
		Mode:        session.ModeDraft,
	}
	if err := store.CreateSession(context.Background(), sess, segments); err != nil {
		t.Fatalf("store.CreateSession: %v", err)
	}
	return sess
}
