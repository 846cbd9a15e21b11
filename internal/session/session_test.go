package session_test

import (
	"errors"
	"testing"

	"quill/internal/session"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from    session.Mode
		to      session.Mode
		allowed bool
	}{
		{session.ModeDraft, session.ModeValidated, true},
		{session.ModeDraft, session.ModeSubmitting, false},
		{session.ModeDraft, session.ModeSubmitted, false},
		{session.ModeValidated, session.ModeSubmitting, true},
		{session.ModeValidated, session.ModeDraft, true},
		{session.ModeValidated, session.ModeSubmitted, false},
		{session.ModeSubmitting, session.ModeSubmitted, true},
		{session.ModeSubmitting, session.ModeSubmissionFailed, true},
		{session.ModeSubmitting, session.ModeDraft, false},
		{session.ModeSubmissionFailed, session.ModeSubmitting, true},
		{session.ModeSubmissionFailed, session.ModeDraft, true},
		{session.ModeSubmitted, session.ModeDraft, false},
		{session.ModeSubmitted, session.ModeSubmitting, false},
	}

	for _, tc := range tests {
		sess := &session.Session{ID: "s", Mode: tc.from}
		err := sess.Transition(tc.to)
		if tc.allowed && err != nil {
			t.Fatalf("%s -> %s should be allowed: %v", tc.from, tc.to, err)
		}
		if !tc.allowed {
			var transition *session.TransitionError
			if !errors.As(err, &transition) {
				t.Fatalf("%s -> %s should be rejected, got %v", tc.from, tc.to, err)
			}
			if sess.Mode != tc.from {
				t.Fatalf("rejected transition must not change mode, got %s", sess.Mode)
			}
		}
	}
}

func TestEditableOnlyInDraft(t *testing.T) {
	for _, mode := range session.AllModes() {
		sess := &session.Session{Mode: mode}
		if sess.Editable() != (mode == session.ModeDraft) {
			t.Fatalf("unexpected editability for %s", mode)
		}
	}
}

func TestParseMode(t *testing.T) {
	if mode, ok := session.ParseMode(" Submission_Failed "); !ok || mode != session.ModeSubmissionFailed {
		t.Fatalf("unexpected parse result %v %v", mode, ok)
	}
	if _, ok := session.ParseMode("archived"); ok {
		t.Fatal("expected unknown mode to fail parsing")
	}
}

func TestAttemptStatusActive(t *testing.T) {
	if !session.AttemptPending.Active() || !session.AttemptRetrying.Active() {
		t.Fatal("pending and retrying must be active")
	}
	if session.AttemptSuccess.Active() || session.AttemptFailure.Active() {
		t.Fatal("terminal statuses must not be active")
	}
}
