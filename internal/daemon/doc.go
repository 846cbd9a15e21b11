// Package daemon runs the background offline-queue drainer and enforces
// single-instance execution via a file lock.
package daemon
