package session_test

import (
	"context"
	"errors"
	"testing"

	"quill/internal/record"
	"quill/internal/session"
	"quill/internal/testsupport"
)

func TestCreateAndGetSessionRoundtrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	created := testsupport.NewStoredSession(t, store, "sess-1", "dr-khan", testsupport.Segments())

	fetched, err := store.GetSession(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if fetched.ClinicianID != "dr-khan" || fetched.Mode != session.ModeDraft {
		t.Fatalf("unexpected session %+v", fetched)
	}

	segments, err := store.ListSegments(ctx, created.ID)
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	want := testsupport.Segments()
	if len(segments) != len(want) {
		t.Fatalf("expected %d segments, got %d", len(want), len(segments))
	}
	for i, seg := range segments {
		if seg.ID != want[i].ID {
			t.Fatalf("segment %d out of order: expected %s, got %s", i, want[i].ID, seg.ID)
		}
	}
}

func TestGetSessionNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.GetSession(context.Background(), "nope"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateSessionPersistsModeAndValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sess := testsupport.NewStoredSession(t, store, "sess-1", "dr-khan", testsupport.Segments())
	if err := sess.Transition(session.ModeValidated); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	sess.ValidatedBy = "dr-khan"
	now := sess.CreatedAt
	sess.ValidatedAt = &now
	if err := store.UpdateSession(ctx, sess); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	fetched, err := store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if fetched.Mode != session.ModeValidated || fetched.ValidatedBy != "dr-khan" || fetched.ValidatedAt == nil {
		t.Fatalf("unexpected session %+v", fetched)
	}

	missing := &session.Session{ID: "ghost", Mode: session.ModeDraft}
	if err := store.UpdateSession(ctx, missing); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing session, got %v", err)
	}
}

func TestListSessionsFiltersByMode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewStoredSession(t, store, "sess-1", "dr-khan", testsupport.Segments())
	second := testsupport.NewStoredSession(t, store, "sess-2", "dr-lee", testsupport.Segments())
	if err := second.Transition(session.ModeValidated); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if err := store.UpdateSession(ctx, second); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	validated, err := store.ListSessions(ctx, session.ModeValidated)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(validated) != 1 || validated[0].ID != "sess-2" {
		t.Fatalf("unexpected filtered list %+v", validated)
	}

	all, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(all))
	}

	counts, err := store.ModeCounts(ctx)
	if err != nil {
		t.Fatalf("ModeCounts: %v", err)
	}
	if counts[session.ModeDraft] != 1 || counts[session.ModeValidated] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestSaveFieldsRoundtrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sess := testsupport.NewStoredSession(t, store, "sess-1", "dr-khan", testsupport.Segments())
	fields := []record.FormField{
		{ID: "age", Value: "82", Confidence: 0.92, SourceSegments: []string{"seg-2"}, Origin: record.OriginAIExtracted},
		{ID: "mobility", Value: "uses frame", Confidence: 0.5, SourceSegments: []string{"seg-5"}, Origin: record.OriginAIExtracted, Flagged: true},
	}
	if err := store.SaveFields(ctx, sess.ID, fields); err != nil {
		t.Fatalf("SaveFields: %v", err)
	}

	loaded, err := store.ListFields(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListFields: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(loaded))
	}
	byID := make(map[string]record.FormField)
	for _, field := range loaded {
		byID[field.ID] = field
	}
	if byID["mobility"].Flagged != true || byID["mobility"].SourceSegments[0] != "seg-5" {
		t.Fatalf("unexpected mobility field %+v", byID["mobility"])
	}

	// Upsert replaces the prior row.
	if err := store.SaveField(ctx, sess.ID, record.FormField{ID: "age", Value: "83", Confidence: 1.0, Origin: record.OriginManuallyAssigned, Validated: true}); err != nil {
		t.Fatalf("SaveField: %v", err)
	}
	loaded, err = store.ListFields(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListFields: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected upsert, got %d rows", len(loaded))
	}
	for _, field := range loaded {
		if field.ID == "age" && (field.Value != "83" || !field.Validated) {
			t.Fatalf("unexpected upserted field %+v", field)
		}
	}
}

func TestAttemptLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sess := testsupport.NewStoredSession(t, store, "sess-1", "dr-khan", testsupport.Segments())
	attempt := &session.Attempt{
		ID:        "attempt-1",
		SessionID: sess.ID,
		Payload:   []byte(`{"session_id":"sess-1"}`),
		Status:    session.AttemptPending,
	}
	if err := store.CreateAttempt(ctx, attempt); err != nil {
		t.Fatalf("CreateAttempt: %v", err)
	}

	active, err := store.ActiveAttempt(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ActiveAttempt: %v", err)
	}
	if active == nil || active.ID != "attempt-1" {
		t.Fatalf("expected pending attempt to be active, got %+v", active)
	}

	attempt.Status = session.AttemptSuccess
	attempt.PortalRecordID = "portal-9"
	if err := store.UpdateAttempt(ctx, attempt); err != nil {
		t.Fatalf("UpdateAttempt: %v", err)
	}

	active, err = store.ActiveAttempt(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ActiveAttempt: %v", err)
	}
	if active != nil {
		t.Fatalf("expected no active attempt after success, got %+v", active)
	}

	fetched, err := store.GetAttempt(ctx, "attempt-1")
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	if fetched.PortalRecordID != "portal-9" || string(fetched.Payload) != `{"session_id":"sess-1"}` {
		t.Fatalf("unexpected attempt %+v", fetched)
	}

	attempts, err := store.AttemptsForSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("AttemptsForSession: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(attempts))
	}
}

func TestOfflineQueueOrderAndDelivery(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewStoredSession(t, store, "sess-1", "dr-khan", testsupport.Segments())
	testsupport.NewStoredSession(t, store, "sess-2", "dr-lee", testsupport.Segments())

	ids := make([]int64, 0, 3)
	for _, entry := range []struct{ sessionID, attemptID string }{
		{"sess-1", "a1"},
		{"sess-2", "b1"},
		{"sess-1", "a2"},
	} {
		id, err := store.EnqueueOffline(ctx, entry.sessionID, entry.attemptID, []byte(entry.attemptID))
		if err != nil {
			t.Fatalf("EnqueueOffline: %v", err)
		}
		ids = append(ids, id)
	}

	sessions, err := store.OfflineSessions(ctx)
	if err != nil {
		t.Fatalf("OfflineSessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0] != "sess-1" || sessions[1] != "sess-2" {
		t.Fatalf("unexpected session order %v", sessions)
	}

	pending, err := store.PendingOffline(ctx, "sess-1")
	if err != nil {
		t.Fatalf("PendingOffline: %v", err)
	}
	if len(pending) != 2 || pending[0].AttemptID != "a1" || pending[1].AttemptID != "a2" {
		t.Fatalf("expected FIFO order, got %+v", pending)
	}

	depth, err := store.OfflineDepth(ctx)
	if err != nil {
		t.Fatalf("OfflineDepth: %v", err)
	}
	if depth != 3 {
		t.Fatalf("expected depth 3, got %d", depth)
	}

	if err := store.MarkDelivered(ctx, ids[0]); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	pending, err = store.PendingOffline(ctx, "sess-1")
	if err != nil {
		t.Fatalf("PendingOffline: %v", err)
	}
	if len(pending) != 1 || pending[0].AttemptID != "a2" {
		t.Fatalf("expected a2 remaining, got %+v", pending)
	}

	pruned, err := store.PruneDelivered(ctx)
	if err != nil {
		t.Fatalf("PruneDelivered: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned row, got %d", pruned)
	}
}
