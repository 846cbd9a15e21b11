// Command quill is the operator CLI for the assessment validation and
// submission pipeline. It ingests transcripts, applies extraction results,
// drives clinician review, and manages portal submissions against the same
// store the quilld daemon drains.
package main
