// Package schema defines the static registry of assessment form fields.
//
// The registry maps field identifiers to their category and required flag and
// is loaded once at startup, either from the embedded default or from a TOML
// file named in configuration. Components consult it to reject unknown field
// identifiers and to count required fields when deriving validation status;
// field names never appear in control flow elsewhere.
package schema
