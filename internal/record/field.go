package record

import "strings"

// Origin identifies which actor last set a field's value and provenance.
type Origin string

const (
	OriginAIExtracted      Origin = "ai_extracted"
	OriginManuallyAssigned Origin = "manually_assigned"
)

// ParseOrigin converts a string into a known Origin.
func ParseOrigin(value string) (Origin, bool) {
	switch Origin(strings.ToLower(strings.TrimSpace(value))) {
	case OriginAIExtracted:
		return OriginAIExtracted, true
	case OriginManuallyAssigned:
		return OriginManuallyAssigned, true
	default:
		return "", false
	}
}

// FormField is one named slot in the structured assessment output.
type FormField struct {
	ID             string
	Value          string
	Confidence     float64
	SourceSegments []string
	Origin         Origin
	Flagged        bool
	Validated      bool
}

// Clone returns a deep copy of the field.
func (f FormField) Clone() FormField {
	cp := f
	cp.SourceSegments = make([]string, len(f.SourceSegments))
	copy(cp.SourceSegments, f.SourceSegments)
	return cp
}

// Extraction is one field result from the extraction collaborator.
type Extraction struct {
	Value          string
	Confidence     float64
	SourceSegments []string
}

// ValidationStatus is derived on demand from the record's field set.
type ValidationStatus struct {
	TotalFields        int
	ValidatedFields    int
	FlaggedFields      int
	ReadyForSubmission bool
	// UnvalidatedFieldIDs lists the required fields blocking submission,
	// in registry order.
	UnvalidatedFieldIDs []string
}
