package record

import (
	"quill/internal/schema"
	"quill/internal/transcript"
)

// Record is the full set of form fields for one session. All mutations flow
// through its methods so the flagged/validated derivation rules hold; callers
// are responsible for serializing access per session.
type Record struct {
	registry   *schema.Registry
	transcript *transcript.Transcript
	provenance *transcript.Provenance
	threshold  float64
	fields     map[string]*FormField
}

// New creates an empty record bound to a schema registry and the session's
// transcript. Threshold is the confidence below which AI-extracted fields are
// flagged for review.
func New(registry *schema.Registry, tr *transcript.Transcript, threshold float64) *Record {
	return &Record{
		registry:   registry,
		transcript: tr,
		provenance: transcript.NewProvenance(),
		threshold:  threshold,
		fields:     make(map[string]*FormField),
	}
}

// Threshold returns the flagging threshold the record applies.
func (r *Record) Threshold() float64 {
	return r.threshold
}

// Restore places a previously persisted field into the record without
// re-deriving markers. Used when rebuilding a session after restart.
func (r *Record) Restore(field FormField) error {
	if !r.registry.Contains(field.ID) {
		return &UnknownFieldError{FieldID: field.ID}
	}
	cp := field.Clone()
	r.fields[field.ID] = &cp
	r.provenance.Replace(field.ID, cp.SourceSegments)
	return nil
}

// CheckExtraction validates an extraction without applying it. Callers use it
// to reject a whole batch before mutating any field.
func (r *Record) CheckExtraction(fieldID string, ex Extraction) error {
	return r.checkExtraction(fieldID, ex)
}

// ApplyExtraction ingests an AI extraction for a field: origin becomes
// ai_extracted, the flag is derived from the threshold, and any prior
// validation is reset.
func (r *Record) ApplyExtraction(fieldID string, ex Extraction) error {
	if err := r.checkExtraction(fieldID, ex); err != nil {
		return err
	}

	field := r.ensureField(fieldID)
	field.Value = ex.Value
	field.Confidence = ex.Confidence
	field.SourceSegments = append([]string(nil), ex.SourceSegments...)
	field.Origin = OriginAIExtracted
	field.Flagged = ex.Confidence < r.threshold
	field.Validated = false
	r.provenance.Replace(fieldID, field.SourceSegments)
	return nil
}

// ReExtract applies a targeted single-field re-extraction. It is the only
// path that may override a manual assignment, and it touches nothing but the
// named field.
func (r *Record) ReExtract(fieldID string, ex Extraction) error {
	return r.ApplyExtraction(fieldID, ex)
}

// Edit sets a field's value from a clinician edit. Provenance and origin are
// preserved; the edit itself marks the field reviewed, so it is validated and
// unflagged.
func (r *Record) Edit(fieldID, newValue string) error {
	field, ok := r.fields[fieldID]
	if !ok {
		if !r.registry.Contains(fieldID) {
			return &UnknownFieldError{FieldID: fieldID}
		}
		field = r.ensureField(fieldID)
	}
	field.Value = newValue
	field.Validated = true
	field.Flagged = false
	return nil
}

// AssignSegments records a manual clinician assignment: the field's value is
// replaced, its provenance is replaced by the referenced segments, origin
// becomes manually_assigned, and the field is validated with confidence 1.0.
// Manual assignment outranks any later whole-record extraction; only a
// targeted ReExtract can override it.
func (r *Record) AssignSegments(fieldID string, segmentIDs []string, replacedValue string) error {
	if !r.registry.Contains(fieldID) {
		return &UnknownFieldError{FieldID: fieldID}
	}
	for _, segID := range segmentIDs {
		if !r.transcript.Contains(segID) {
			return &DanglingSegmentError{FieldID: fieldID, SegmentID: segID}
		}
	}

	field := r.ensureField(fieldID)
	field.Value = replacedValue
	field.Confidence = 1.0
	field.SourceSegments = append([]string(nil), segmentIDs...)
	field.Origin = OriginManuallyAssigned
	field.Flagged = false
	field.Validated = true
	r.provenance.Replace(fieldID, field.SourceSegments)
	return nil
}

// MarkValidated records explicit clinician confirmation of a field.
func (r *Record) MarkValidated(fieldID string) error {
	field, ok := r.fields[fieldID]
	if !ok {
		return &UnknownFieldError{FieldID: fieldID}
	}
	field.Validated = true
	field.Flagged = false
	return nil
}

// MarkUnvalidated withdraws confirmation. The flag is re-derived so a
// low-confidence AI field returns to the review list.
func (r *Record) MarkUnvalidated(fieldID string) error {
	field, ok := r.fields[fieldID]
	if !ok {
		return &UnknownFieldError{FieldID: fieldID}
	}
	field.Validated = false
	field.Flagged = field.Origin == OriginAIExtracted && field.Confidence < r.threshold
	return nil
}

// Field returns a copy of the named field.
func (r *Record) Field(fieldID string) (FormField, bool) {
	field, ok := r.fields[fieldID]
	if !ok {
		return FormField{}, false
	}
	return field.Clone(), true
}

// Fields returns copies of all populated fields in registry order.
func (r *Record) Fields() []FormField {
	out := make([]FormField, 0, len(r.fields))
	for _, id := range r.registry.FieldIDs() {
		if field, ok := r.fields[id]; ok {
			out = append(out, field.Clone())
		}
	}
	return out
}

// Provenance exposes the field-to-segment index for read-side queries.
func (r *Record) Provenance() *transcript.Provenance {
	return r.provenance
}

// Status derives the validation status by scanning the field set. Required
// fields that are missing or unvalidated block submission readiness.
func (r *Record) Status() ValidationStatus {
	status := ValidationStatus{}
	for _, def := range r.registry.Fields() {
		field, present := r.fields[def.ID]
		if present {
			if field.Flagged {
				status.FlaggedFields++
			}
		}
		if !def.Required {
			continue
		}
		status.TotalFields++
		if present && field.Validated {
			status.ValidatedFields++
		} else {
			status.UnvalidatedFieldIDs = append(status.UnvalidatedFieldIDs, def.ID)
		}
	}
	status.ReadyForSubmission = status.ValidatedFields == status.TotalFields
	return status
}

func (r *Record) checkExtraction(fieldID string, ex Extraction) error {
	if !r.registry.Contains(fieldID) {
		return &UnknownFieldError{FieldID: fieldID}
	}
	if ex.Confidence < 0 || ex.Confidence > 1 {
		return &InvalidConfidenceError{FieldID: fieldID, Confidence: ex.Confidence}
	}
	for _, segID := range ex.SourceSegments {
		if !r.transcript.Contains(segID) {
			return &DanglingSegmentError{FieldID: fieldID, SegmentID: segID}
		}
	}
	return nil
}

func (r *Record) ensureField(fieldID string) *FormField {
	field, ok := r.fields[fieldID]
	if !ok {
		field = &FormField{ID: fieldID}
		r.fields[fieldID] = field
	}
	return field
}
