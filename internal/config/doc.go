// Package config loads, normalizes, and validates quill configuration.
//
// Configuration is TOML with repository defaults applied first, then values
// from the config file layered on top. Path fields are expanded before
// validation so the rest of the system only ever sees absolute paths.
package config
