package purchase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitionTable(t *testing.T) {
	all := []Status{
		StatusDraft, StatusSubmitted, StatusApproved,
		StatusPartiallyReceived, StatusReceived, StatusCancelled,
	}
	allowed := map[Status][]Status{
		StatusDraft:             {StatusSubmitted, StatusCancelled},
		StatusSubmitted:         {StatusApproved, StatusCancelled},
		StatusApproved:          {StatusPartiallyReceived, StatusReceived},
		StatusPartiallyReceived: {StatusReceived},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.True(t, StatusReceived.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPartiallyReceived.Terminal())
}

func TestLineRemaining(t *testing.T) {
	l := Line{QtyOrdered: 100, QtyReceived: 40}
	assert.Equal(t, int64(60), l.Remaining())
	assert.False(t, l.FullyReceived())

	l.QtyReceived = 110
	assert.Equal(t, int64(0), l.Remaining())
	assert.True(t, l.FullyReceived())
}
