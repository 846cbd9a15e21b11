// Package notify delivers pipeline milestones via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Messages carry session and attempt identifiers only; field
// content never leaves the local store through this path.
//
// Extend this package if you need alternative transports; all pipeline code
// depends only on the simple Service interface.
package notify
