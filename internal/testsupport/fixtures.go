package testsupport

import (
	"quill/internal/record"
	"quill/internal/transcript"
)

// Segments returns a small consultation transcript suitable for most tests.
func Segments() []transcript.Segment {
	return []transcript.Segment{
		{ID: "seg-1", Speaker: transcript.RoleClinician, Text: "Can you tell me your name and age?", Start: 0, End: 4.5, Confidence: 0.97},
		{ID: "seg-2", Speaker: transcript.RoleClient, Text: "Margaret Wilson, I am 82.", Start: 4.5, End: 8.2, Confidence: 0.94},
		{ID: "seg-3", Speaker: transcript.RoleClient, Text: "I live alone since my husband passed.", Start: 8.2, End: 12.9, Confidence: 0.91},
		{ID: "seg-4", Speaker: transcript.RoleCarer, Text: "She takes metformin and a blood pressure tablet.", Start: 12.9, End: 17.4, Confidence: 0.88},
		{ID: "seg-5", Speaker: transcript.RoleClient, Text: "I had a fall in the kitchen last month.", Start: 17.4, End: 21.0, Confidence: 0.86},
	}
}

// Extraction builds one extraction result referencing the fixture segments.
func Extraction(value string, confidence float64, segmentIDs ...string) record.Extraction {
	return record.Extraction{
		Value:          value,
		Confidence:     confidence,
		SourceSegments: segmentIDs,
	}
}

// FullExtraction returns a high-confidence extraction for every registry
// field so tests can drive a session straight to submission readiness.
func FullExtraction(fieldIDs []string) map[string]record.Extraction {
	results := make(map[string]record.Extraction, len(fieldIDs))
	for _, id := range fieldIDs {
		results[id] = record.Extraction{
			Value:          "extracted " + id,
			Confidence:     0.95,
			SourceSegments: []string{"seg-2"},
		}
	}
	return results
}
