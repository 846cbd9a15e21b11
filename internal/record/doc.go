// Package record holds the extracted assessment record for a session and the
// validation rules applied to its fields.
//
// A Record tracks one FormField per schema identifier. AI extractions,
// clinician edits, manual segment assignment, and targeted re-extraction all
// mutate fields through the Record, which derives the flagged and validated
// markers from a single set of rules:
//
//   - an AI-extracted field below the confidence threshold is flagged
//   - a manually assigned field is always validated and never flagged
//   - any re-extraction resets validation, even after manual assignment
//
// Validation status is recomputed by scanning the field set on demand rather
// than by maintaining counters; mutations are rare relative to reads and a
// scan cannot drift.
package record
