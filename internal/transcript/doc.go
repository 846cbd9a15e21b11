// Package transcript models the diarized transcript a session reviews against.
//
// Segments are produced once by the transcription and diarization
// collaborators and never mutated afterwards; fields reference them by
// identifier. The Provenance index keeps the bidirectional mapping between
// form fields and the segments that justify their values.
package transcript
