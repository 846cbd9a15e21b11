package record

import (
	"fmt"
	"strings"
)

// UnknownFieldError reports a field identifier absent from the schema registry.
type UnknownFieldError struct {
	FieldID string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.FieldID)
}

// InvalidConfidenceError reports a confidence score outside [0, 1].
type InvalidConfidenceError struct {
	FieldID    string
	Confidence float64
}

func (e *InvalidConfidenceError) Error() string {
	return fmt.Sprintf("field %q: confidence %v outside [0, 1]", e.FieldID, e.Confidence)
}

// DanglingSegmentError reports a segment reference not present in the
// session's transcript. References are rejected, never silently dropped.
type DanglingSegmentError struct {
	FieldID   string
	SegmentID string
}

func (e *DanglingSegmentError) Error() string {
	return fmt.Sprintf("field %q references unknown segment %q", e.FieldID, e.SegmentID)
}

// IncompleteValidationError lists the fields blocking submission commit.
type IncompleteValidationError struct {
	FieldIDs []string
}

func (e *IncompleteValidationError) Error() string {
	return fmt.Sprintf("validation incomplete: unvalidated fields [%s]", strings.Join(e.FieldIDs, ", "))
}
