// Package idempotency records which message an idempotency key produced for
// a recipient, so a retried delivery returns the original message instead
// of creating a second one.
package idempotency

import (
	"context"
	"errors"
)

// ErrEmptyKey is returned for a blank recipient or key.
var ErrEmptyKey = errors.New("idempotency: recipient and key are required")

// Store maps (recipient, key) to the ID of the first message accepted with
// that key. Implementations must make Claim atomic: for concurrent callers
// with the same recipient and key exactly one receives claimed == true and
// every other caller receives the winner's message ID.
type Store interface {
	// Claim records messageID for (recipient, key) unless a record exists.
	// winnerID is the recorded message ID either way.
	Claim(ctx context.Context, recipient, key, messageID string) (winnerID string, claimed bool, err error)
	// Lookup returns the recorded message ID, if any.
	Lookup(ctx context.Context, recipient, key string) (messageID string, found bool, err error)
	// Release removes the record only while it still names messageID.
	Release(ctx context.Context, recipient, key, messageID string) error
}

func validate(recipient, key string) error {
	if recipient == "" || key == "" {
		return ErrEmptyKey
	}
	return nil
}
