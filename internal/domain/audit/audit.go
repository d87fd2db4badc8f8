// Package audit defines the write-behind audit sink contract. The sink is
// called once per meaningful mutation, inside the same transaction, so an
// aborted operation leaves no audit trace.
package audit

import (
	"context"

	"restock/internal/core/id"
)

// Entry is one audit record.
type Entry struct {
	OrganizationID id.ID
	ActorID        id.ID
	Action         string
	Entity         string
	EntityID       id.ID
	Before         any
	After          any
	RequestID      string
}

// Sink persists audit entries. The postgres implementation lives in
// infrastructure; tests use Nop or a recording fake.
type Sink interface {
	Write(ctx context.Context, entry Entry) error
}

// Nop discards all entries.
type Nop struct{}

func (Nop) Write(ctx context.Context, entry Entry) error { return nil }

var _ Sink = Nop{}
