package transcript_test

import (
	"testing"

	"quill/internal/transcript"
)

func validSegments() []transcript.Segment {
	return []transcript.Segment{
		{ID: "s1", Speaker: transcript.RoleClinician, Text: "How are you?", Start: 0, End: 2, Confidence: 0.9},
		{ID: "s2", Speaker: transcript.RoleClient, Text: "Fine, thanks.", Start: 2, End: 4, Confidence: 0.8},
		{ID: "s3", Speaker: transcript.RoleCarer, Text: "She sleeps well.", Start: 4, End: 6, Confidence: 0.7},
	}
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	segments := validSegments()
	segments[2].ID = "s1"
	if _, err := transcript.New(segments); err == nil {
		t.Fatal("expected duplicate segment id to be rejected")
	}
}

func TestNewRejectsInvalidTimes(t *testing.T) {
	segments := validSegments()
	segments[1].End = segments[1].Start
	if _, err := transcript.New(segments); err == nil {
		t.Fatal("expected zero-length segment to be rejected")
	}
}

func TestNewRejectsConfidenceOutOfRange(t *testing.T) {
	segments := validSegments()
	segments[0].Confidence = 1.2
	if _, err := transcript.New(segments); err == nil {
		t.Fatal("expected confidence above 1 to be rejected")
	}
}

func TestLookupAndOrder(t *testing.T) {
	tr, err := transcript.New(validSegments())
	if err != nil {
		t.Fatalf("transcript.New: %v", err)
	}
	if tr.Len() != 3 {
		t.Fatalf("expected 3 segments, got %d", tr.Len())
	}
	if !tr.Contains("s2") || tr.Contains("s9") {
		t.Fatal("unexpected Contains results")
	}
	ordered := tr.Segments()
	for i, id := range []string{"s1", "s2", "s3"} {
		if ordered[i].ID != id {
			t.Fatalf("segment %d: expected %s, got %s", i, id, ordered[i].ID)
		}
	}
}

func TestJoinTextSkipsUnknownIDs(t *testing.T) {
	tr, err := transcript.New(validSegments())
	if err != nil {
		t.Fatalf("transcript.New: %v", err)
	}
	joined := tr.JoinText([]string{"s2", "missing", "s1"})
	if joined != "Fine, thanks. How are you?" {
		t.Fatalf("unexpected joined text %q", joined)
	}
}

func TestParseRoleDefaultsToUnknown(t *testing.T) {
	if transcript.ParseRole("Clinician") != transcript.RoleClinician {
		t.Fatal("expected case-insensitive parse")
	}
	if transcript.ParseRole("narrator") != transcript.RoleUnknown {
		t.Fatal("expected unknown role fallback")
	}
}

func TestProvenanceReplaceAndReverseIndex(t *testing.T) {
	p := transcript.NewProvenance()
	p.Replace("mobility", []string{"s1", "s2", "s1"})
	segs := p.SegmentsFor("mobility")
	if len(segs) != 2 || segs[0] != "s1" || segs[1] != "s2" {
		t.Fatalf("expected deduped ordered segments, got %v", segs)
	}

	p.Replace("falls_history", []string{"s2"})
	fields := p.FieldsFor("s2")
	if len(fields) != 2 {
		t.Fatalf("expected two fields referencing s2, got %v", fields)
	}

	p.Replace("mobility", []string{"s3"})
	if fields := p.FieldsFor("s1"); len(fields) != 0 {
		t.Fatalf("expected s1 unreferenced after replace, got %v", fields)
	}
}
