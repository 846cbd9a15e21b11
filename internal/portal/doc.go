// Package portal is the boundary to the external record portal.
//
// The Client interface is what the submission gateway programs against; the
// HTTP implementation adds bearer auth, an idempotency key header, and a
// bounded request timeout. Errors are classified into transient failures
// (network, timeout, server-side) that are safe to retry and permanent
// rejections that will not change on their own.
package portal
