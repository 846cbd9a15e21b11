package transcript

import (
	"fmt"
	"strings"
)

// Role identifies who spoke a segment.
type Role string

const (
	RoleClinician Role = "clinician"
	RoleClient    Role = "client"
	RoleCarer     Role = "carer"
	RoleUnknown   Role = "unknown"
)

// ParseRole converts a string into a known Role, defaulting to unknown.
func ParseRole(value string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleClinician:
		return RoleClinician
	case RoleClient:
		return RoleClient
	case RoleCarer:
		return RoleCarer
	default:
		return RoleUnknown
	}
}

// Segment is one immutable diarized unit of the consultation transcript.
type Segment struct {
	ID         string
	Speaker    Role
	Text       string
	Start      float64
	End        float64
	Confidence float64
}

func (s Segment) validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("segment with empty id")
	}
	if s.Start < 0 || s.End <= s.Start {
		return fmt.Errorf("segment %s: times [%f, %f) invalid", s.ID, s.Start, s.End)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("segment %s: confidence %f outside [0, 1]", s.ID, s.Confidence)
	}
	return nil
}

// Transcript is the finite, ordered sequence of segments for one session.
type Transcript struct {
	segments []Segment
	byID     map[string]Segment
}

// New validates and assembles a transcript. Segment IDs must be unique within
// the transcript; times and confidences must be well-formed.
func New(segments []Segment) (*Transcript, error) {
	byID := make(map[string]Segment, len(segments))
	ordered := make([]Segment, len(segments))
	copy(ordered, segments)
	for _, seg := range ordered {
		if err := seg.validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[seg.ID]; dup {
			return nil, fmt.Errorf("segment %s defined twice", seg.ID)
		}
		byID[seg.ID] = seg
	}
	return &Transcript{segments: ordered, byID: byID}, nil
}

// Lookup returns the segment for an identifier.
func (t *Transcript) Lookup(segmentID string) (Segment, bool) {
	seg, ok := t.byID[segmentID]
	return seg, ok
}

// Contains reports whether a segment identifier exists in the transcript.
func (t *Transcript) Contains(segmentID string) bool {
	_, ok := t.byID[segmentID]
	return ok
}

// Segments returns the ordered segment list.
func (t *Transcript) Segments() []Segment {
	cp := make([]Segment, len(t.segments))
	copy(cp, t.segments)
	return cp
}

// Len returns the number of segments.
func (t *Transcript) Len() int {
	return len(t.segments)
}

// JoinText concatenates the text of the referenced segments in the order
// given, separated by single spaces. Unknown identifiers are skipped; callers
// validate references before relying on the result.
func (t *Transcript) JoinText(segmentIDs []string) string {
	parts := make([]string, 0, len(segmentIDs))
	for _, id := range segmentIDs {
		if seg, ok := t.byID[id]; ok {
			if text := strings.TrimSpace(seg.Text); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, " ")
}
