// Package queue maintains the per-queue bookkeeping the claim
// controller leans on: the claimed-message counter that doubles as
// Create's contention witness, and the aggregate stats exposed to
// clients.
package queue

import (
	"context"

	v1 "github.com/beaconmq/broker/api/v1"
	"github.com/beaconmq/broker/internal/store"
	"k8s.io/utils/clock"
)

// Controller is the Index & Counter Maintainer: it knows the keys a
// queue's counters live under and how to read them back as stats. It
// holds no backing store of its own; every call takes the reader or
// writer it needs, so it composes into whatever transaction the claim
// controller is already running.
type Controller struct {
	keys  store.Keys
	clock clock.Clock
}

// NewController returns a queue controller using the real wall clock.
func NewController() *Controller {
	return NewControllerWithClock(clock.RealClock{})
}

// NewControllerWithClock returns a queue controller using a caller
// supplied clock, for tests that need deterministic expiry.
func NewControllerWithClock(c clock.Clock) *Controller {
	return &Controller{clock: c}
}

// ClaimCounterKey returns the contention witness Create watches:
// the running count of claimed messages in this project/queue.
func (c *Controller) ClaimCounterKey(project, queue string) string {
	return c.keys.ClaimedCounter(project, queue)
}

// IncClaimed stages an adjustment to a queue's claimed-message count
// into the caller's batch. delta may be negative, as when Delete
// releases a claim's messages.
func (c *Controller) IncClaimed(project, queue string, delta int64, w store.Writer) {
	if delta == 0 {
		return
	}
	w.IncrBy(c.keys.ClaimedCounter(project, queue), delta)
}

// Stats reports how many messages in a queue are claimed, free, and
// total. Free counts messages that are neither expired nor under an
// unexpired claim; it is computed by scanning the queue's message
// list rather than maintained incrementally, since lazy expiry means
// no write path is guaranteed to observe a message crossing into or
// out of "free". Total is derived as claimed+free rather than the raw
// length of the message list, since lazily-expired messages are never
// removed from that list.
func (c *Controller) Stats(ctx context.Context, r store.Reader, project, queue string) (v1.QueueStats, error) {
	claimed, err := r.GetInt(ctx, c.keys.ClaimedCounter(project, queue))
	if err != nil {
		return v1.QueueStats{}, err
	}

	ids, err := r.LRange(ctx, c.keys.QueueMessages(project, queue))
	if err != nil {
		return v1.QueueStats{}, err
	}

	now := c.clock.Now().Unix()
	var free int64
	for _, id := range ids {
		fields, err := r.HGetAll(ctx, c.keys.Message(id))
		if err != nil {
			return v1.QueueStats{}, err
		}
		msg, ok := store.MessageFromFields(fields)
		if !ok {
			continue
		}
		if msg.Active(now) {
			free++
		}
	}

	return v1.QueueStats{
		Claimed: claimed,
		Free:    free,
		Total:   claimed + free,
	}, nil
}
