package events

import (
	"context"
)

// Collector accumulates events raised during one transaction and flushes
// them to a Publisher once the transaction has committed. Not safe for
// concurrent use; one Collector serves one request.
type Collector struct {
	pending []Event
}

// Add queues an event for post-commit publication.
func (c *Collector) Add(event Event) {
	c.pending = append(c.pending, event)
}

// Len returns the number of queued events.
func (c *Collector) Len() int {
	return len(c.pending)
}

// Flush publishes every queued event and clears the queue.
// Call only after the surrounding transaction committed. A nil publisher
// drops the queue; deployments without a broker stay valid.
func (c *Collector) Flush(ctx context.Context, pub Publisher) {
	if pub != nil {
		for _, e := range c.pending {
			pub.Publish(ctx, e)
		}
	}
	c.pending = nil
}
