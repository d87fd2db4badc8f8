// Package idem defines the idempotency guard contract: a durable
// key→result map scoped to (key, route, user), checked and written inside
// the same transaction as the guarded work.
package idem

import (
	"context"
	"encoding/json"

	"restock/internal/core/apperror"
)

// MinKeyLength is enforced on every caller-supplied idempotency key.
const MinKeyLength = 8

// Result is the outcome of a guarded execution.
type Result struct {
	// Payload is the serialized result of the first successful execution.
	// Replays return the stored bytes untouched.
	Payload json.RawMessage

	// Replayed is true when the stored result was returned without
	// re-executing the work.
	Replayed bool
}

// Guard wraps a unit of work keyed by (key, route, acting user).
//
// First call: executes fn inside the current transaction, persists its
// serialized return value keyed by the tuple, returns it. Replay: returns
// the stored payload without running fn. An error from fn aborts the whole
// transaction, so no record survives and a retry starts from scratch.
type Guard interface {
	Do(ctx context.Context, key, route string, fn func(ctx context.Context) (any, error)) (Result, error)
}

// ValidateKey rejects keys below the minimum length before any lock is taken.
func ValidateKey(key string) error {
	if len(key) < MinKeyLength {
		return apperror.NewValidation("idempotency key too short").
			WithDetail("min_length", MinKeyLength)
	}
	return nil
}

// Unmarshal decodes a guarded result payload into out.
func Unmarshal(res Result, out any) error {
	if err := json.Unmarshal(res.Payload, out); err != nil {
		return apperror.NewInternal(err)
	}
	return nil
}
