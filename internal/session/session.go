package session

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode represents the lifecycle state of a session.
type Mode string

const (
	ModeDraft            Mode = "draft"
	ModeValidated        Mode = "validated"
	ModeSubmitting       Mode = "submitting"
	ModeSubmitted        Mode = "submitted"
	ModeSubmissionFailed Mode = "submission_failed"
)

var allModes = []Mode{
	ModeDraft,
	ModeValidated,
	ModeSubmitting,
	ModeSubmitted,
	ModeSubmissionFailed,
}

var modeSet = func() map[Mode]struct{} {
	set := make(map[Mode]struct{}, len(allModes))
	for _, mode := range allModes {
		set[mode] = struct{}{}
	}
	return set
}()

// transitions is the complete set of permitted mode changes. Submitted is
// terminal. Reopening (validated or submission_failed back to draft) keeps
// field-level validation flags; that is the coordinator's concern.
var transitions = map[Mode]map[Mode]struct{}{
	ModeDraft: {
		ModeValidated: {},
	},
	ModeValidated: {
		ModeSubmitting: {},
		ModeDraft:      {},
	},
	ModeSubmitting: {
		ModeSubmitted:        {},
		ModeSubmissionFailed: {},
	},
	ModeSubmissionFailed: {
		ModeSubmitting: {},
		ModeDraft:      {},
	},
	ModeSubmitted: {},
}

// ParseMode converts a string into a known Mode.
func ParseMode(value string) (Mode, bool) {
	normalized := Mode(strings.ToLower(strings.TrimSpace(value)))
	_, ok := modeSet[normalized]
	return normalized, ok
}

// AllModes returns the ordered list of known modes.
func AllModes() []Mode {
	cp := make([]Mode, len(allModes))
	copy(cp, allModes)
	return cp
}

// ErrFieldLocked rejects field mutations while the session is not in draft.
var ErrFieldLocked = errors.New("session is locked for editing")

// ErrSubmissionInFlight rejects a second concurrent submission attempt.
var ErrSubmissionInFlight = errors.New("a submission attempt is already in flight")

// ErrNotFound reports a session identifier with no stored session.
var ErrNotFound = errors.New("session not found")

// TransitionError reports a lifecycle change the state machine forbids.
type TransitionError struct {
	From Mode
	To   Mode
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid session transition %s -> %s", e.From, e.To)
}

// Session is one clinical encounter flowing through validation and submission.
type Session struct {
	ID          string
	ClinicianID string
	Mode        Mode
	ValidatedBy string
	ValidatedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CanTransition reports whether the state machine permits a mode change.
func (s *Session) CanTransition(to Mode) bool {
	allowed, ok := transitions[s.Mode]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// Transition applies a mode change after checking the transition table.
func (s *Session) Transition(to Mode) error {
	if !s.CanTransition(to) {
		return &TransitionError{From: s.Mode, To: to}
	}
	s.Mode = to
	return nil
}

// Editable reports whether field mutations are currently permitted.
func (s *Session) Editable() bool {
	return s.Mode == ModeDraft
}
