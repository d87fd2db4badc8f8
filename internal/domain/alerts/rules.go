package alerts

import (
	"context"

	"restock/internal/core/id"
)

// RuleSource yields the alert rule expression configured for an
// organization. An empty string means the default rule.
type RuleSource interface {
	RuleFor(ctx context.Context, orgID id.ID) (string, error)
}

// StaticRule serves one fixed expression to every organization.
type StaticRule string

func (r StaticRule) RuleFor(ctx context.Context, orgID id.ID) (string, error) {
	return string(r), nil
}

var _ RuleSource = StaticRule("")
