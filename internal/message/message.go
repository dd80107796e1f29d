// Package message provides the read and write paths the claim
// controller uses to inspect and mutate individual queue messages: a
// restartable scan over a queue's active backlog, and the deltas a
// claim stamps onto the messages it takes.
package message

import (
	"context"
	"fmt"
	"strconv"

	"github.com/beaconmq/broker/internal/ids"
	"github.com/beaconmq/broker/internal/store"
	"k8s.io/utils/clock"
)

// Delta is a pending mutation to one message, staged by a claim
// create or update and applied together with the claim's own bookkeeping
// inside the same transaction.
type Delta struct {
	MessageID    string
	ClaimID      string
	ClaimExpires int64
	// ExtendTTL and ExtendExpires are set when the message's own TTL/expiry must be pushed
	// out because it would otherwise lapse before the claim does; zero
	// means no extension is needed.
	ExtendTTL     int64
	ExtendExpires int64
}

// View reads a queue's messages back out in stable posting order.
type View struct {
	keys  store.Keys
	clock clock.Clock
}

// NewView returns a message view using the real wall clock.
func NewView() *View {
	return NewViewWithClock(clock.RealClock{})
}

// NewViewWithClock returns a message view using a caller supplied
// clock, for tests that need deterministic expiry.
func NewViewWithClock(c clock.Clock) *View {
	return &View{clock: c}
}

// Active returns up to limit active (unexpired, unclaimed-or-claim-lapsed)
// messages from a queue, in the order they were posted. The scan is
// restartable: it walks the queue's message list from the front and
// skips anything inactive, so a caller that aborts partway through and
// retries sees the same candidates again rather than missing messages
// a concurrent post added at the tail.
func (v *View) Active(ctx context.Context, r store.Reader, project, queue string, limit int) ([]store.Message, error) {
	ids, err := r.LRange(ctx, v.keys.QueueMessages(project, queue))
	if err != nil {
		return nil, err
	}

	now := v.clock.Now().Unix()
	out := make([]store.Message, 0, limit)
	for _, id := range ids {
		if len(out) >= limit {
			break
		}
		fields, err := r.HGetAll(ctx, v.keys.Message(id))
		if err != nil {
			return nil, err
		}
		msg, ok := store.MessageFromFields(fields)
		if !ok {
			// Message was independently deleted; skip it.
			continue
		}
		if !msg.Active(now) {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// Get reads a single message by ID, reporting ok=false if it no
// longer exists.
func (v *View) Get(ctx context.Context, r store.Reader, messageID string) (store.Message, bool, error) {
	fields, err := r.HGetAll(ctx, v.keys.Message(messageID))
	if err != nil {
		return store.Message{}, false, err
	}
	msg, ok := store.MessageFromFields(fields)
	return msg, ok, nil
}

// Mutator applies staged deltas to messages and posts new ones.
type Mutator struct {
	keys  store.Keys
	clock clock.Clock
}

// NewMutator returns a message mutator using the real wall clock.
func NewMutator() *Mutator {
	return NewMutatorWithClock(clock.RealClock{})
}

// NewMutatorWithClock returns a message mutator using a caller
// supplied clock, for tests that need deterministic posting times.
func NewMutatorWithClock(c clock.Clock) *Mutator {
	return &Mutator{clock: c}
}

// ApplyDeltas stamps each delta's claim fields (and, where requested,
// extended TTL/expiry) onto its message inside the caller's batch.
func (m *Mutator) ApplyDeltas(w store.Writer, deltas []Delta) {
	for _, d := range deltas {
		fields := map[string]string{
			"claim_id":      d.ClaimID,
			"claim_expires": strconv.FormatInt(d.ClaimExpires, 10),
		}
		if d.ExtendExpires != 0 {
			fields["ttl"] = strconv.FormatInt(d.ExtendTTL, 10)
			fields["expires"] = strconv.FormatInt(d.ExtendExpires, 10)
		}
		w.HSet(m.keys.Message(d.MessageID), fields)
	}
}

// ClearClaim releases a message's claim fields without touching its
// own TTL, as Delete does for every message in the claim it drops.
func (m *Mutator) ClearClaim(w store.Writer, messageID string) {
	w.HSet(m.keys.Message(messageID), map[string]string{
		"claim_id":      "",
		"claim_expires": "0",
	})
}

// Post appends a new message to a queue's backlog and returns its ID.
// Posted messages carry no claim.
func (m *Mutator) Post(ctx context.Context, w store.Writer, project, queue, body string, ttl int64) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("message: ttl must be positive, got %d", ttl)
	}
	id := ids.NewMessageID()
	now := m.clock.Now().Unix()
	msg := store.Message{
		ID:       id,
		Body:     body,
		TTL:      ttl,
		Expires:  now + ttl,
		PostedAt: now,
	}
	w.HSet(m.keys.Message(id), msg.ToFields())
	w.RPush(m.keys.QueueMessages(project, queue), id)
	return id, nil
}
