// Package protocol defines the AAP wire shapes exchanged between clients and
// providers: envelopes, payloads, stored messages and resolve results.
//
// Unknown JSON fields are ignored on read.
package protocol

import "time"

// Protocol versions.
const (
	// DefaultVersion is assumed when a resolve result carries no version.
	DefaultVersion = "0.03"
	// ServedVersion is the version this module's provider reports.
	ServedVersion = "0.04"
)

// Well-known provider paths.
const (
	PathResolve      = "/api/v1/resolve"
	PathInbox        = "/api/v1/inbox"
	PathInboxStream  = "/api/v1/inbox/stream"
	PathProviderInfo = "/api/v1/providers/info"
	PathRegister     = "/api/agent/register"
	PathFeed         = "/api/v1/feed"
)

// IdempotencyHeader carries the sender's idempotency key on inbox delivery.
const IdempotencyHeader = "X-Idempotency-Key"

// TimestampLayout is the ISO-8601 UTC layout used for envelope timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Inbox page limits.
const (
	DefaultInboxLimit = 20
	MaxInboxLimit     = 100
)

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
