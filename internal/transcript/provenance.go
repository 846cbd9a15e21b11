package transcript

// Provenance maintains the bidirectional mapping between form fields and the
// transcript segments that justify their values. Field order of segment
// references is preserved; duplicates are collapsed.
type Provenance struct {
	fieldToSegments map[string][]string
	segmentToFields map[string]map[string]struct{}
}

// NewProvenance returns an empty provenance index.
func NewProvenance() *Provenance {
	return &Provenance{
		fieldToSegments: make(map[string][]string),
		segmentToFields: make(map[string]map[string]struct{}),
	}
}

// Replace sets the segment references for a field, discarding any prior links.
func (p *Provenance) Replace(fieldID string, segmentIDs []string) {
	p.Clear(fieldID)
	p.Link(fieldID, segmentIDs)
}

// Link appends segment references to a field, preserving order and skipping
// segments already linked to it.
func (p *Provenance) Link(fieldID string, segmentIDs []string) {
	existing := p.fieldToSegments[fieldID]
	seen := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		seen[id] = struct{}{}
	}
	for _, segID := range segmentIDs {
		if segID == "" {
			continue
		}
		if _, ok := seen[segID]; ok {
			continue
		}
		seen[segID] = struct{}{}
		existing = append(existing, segID)
		fields := p.segmentToFields[segID]
		if fields == nil {
			fields = make(map[string]struct{})
			p.segmentToFields[segID] = fields
		}
		fields[fieldID] = struct{}{}
	}
	p.fieldToSegments[fieldID] = existing
}

// Clear removes every segment reference for a field.
func (p *Provenance) Clear(fieldID string) {
	for _, segID := range p.fieldToSegments[fieldID] {
		if fields, ok := p.segmentToFields[segID]; ok {
			delete(fields, fieldID)
			if len(fields) == 0 {
				delete(p.segmentToFields, segID)
			}
		}
	}
	delete(p.fieldToSegments, fieldID)
}

// SegmentsFor returns the ordered segment references for a field.
func (p *Provenance) SegmentsFor(fieldID string) []string {
	refs := p.fieldToSegments[fieldID]
	cp := make([]string, len(refs))
	copy(cp, refs)
	return cp
}

// FieldsFor returns the fields referencing a segment. Order is unspecified.
func (p *Provenance) FieldsFor(segmentID string) []string {
	fields := p.segmentToFields[segmentID]
	out := make([]string, 0, len(fields))
	for fieldID := range fields {
		out = append(out, fieldID)
	}
	return out
}
