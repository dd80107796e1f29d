// Package claim implements the claim lifecycle: atomic creation under
// contention, inspection, renewal, and release of a lease over a
// batch of queue messages.
package claim

import (
	"context"
	"time"

	v1 "github.com/beaconmq/broker/api/v1"
	"github.com/beaconmq/broker/internal/ids"
	"github.com/beaconmq/broker/internal/message"
	"github.com/beaconmq/broker/internal/queue"
	"github.com/beaconmq/broker/internal/store"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"
)

const (
	// DefaultTTL is the lease duration a claim gets when the caller
	// doesn't specify one.
	DefaultTTL = 60
	// DefaultGrace is the extra lifetime claimed messages get beyond
	// their claim's own expiry, by default.
	DefaultGrace = 60
	// MaxBatch bounds how many messages a single create can claim.
	MaxBatch = 20
	// RetryClaimTimeout bounds how long create will keep retrying
	// against a contended counter before giving up.
	RetryClaimTimeout = 10 * time.Second
)

// Controller owns the claim lifecycle: create, get, update, delete.
type Controller struct {
	store store.Store
	queue *queue.Controller
	view  *message.View
	mut   *message.Mutator
	clock clock.Clock
	keys  store.Keys
}

// NewController returns a claim controller backed by st, using the
// real wall clock.
func NewController(st store.Store) *Controller {
	return NewControllerWithClock(st, clock.RealClock{})
}

// NewControllerWithClock returns a claim controller using a caller
// supplied clock, so tests can drive expiry deterministically with
// k8s.io/utils/clock/testing's fake clock instead of sleeping.
func NewControllerWithClock(st store.Store, c clock.Clock) *Controller {
	return &Controller{
		store: st,
		queue: queue.NewControllerWithClock(c),
		view:  message.NewViewWithClock(c),
		mut:   message.NewMutatorWithClock(c),
		clock: c,
	}
}

// Create attempts to lease up to limit active messages from a queue.
// An empty result ([], "") with a nil error means the queue currently
// has nothing to claim; this is not a failure.
func (c *Controller) Create(ctx context.Context, project, queueName string, ttl, grace int64, limit int) (string, []store.Message, error) {
	log := klog.FromContext(ctx).WithValues("project", project, "queue", queueName)
	counterKey := c.queue.ClaimCounterKey(project, queueName)
	deadline := c.clock.Now().Add(RetryClaimTimeout)
	claimID := ids.NewClaimID()
	start := c.clock.Now()

	for {
		var batch []store.Message
		attempt := func() error {
			return c.store.Watch(ctx, []string{counterKey}, func(r store.Reader, w store.Writer) error {
				var err error
				batch, err = c.view.Active(ctx, r, project, queueName, limit)
				if err != nil {
					return err
				}
				if len(batch) == 0 {
					return nil
				}
				return c.stageClaim(w, project, queueName, claimID, ttl, grace, batch)
			})
		}

		err := store.WithRetry(attempt)
		switch {
		case err == nil:
			CreateLatency.Observe(float64(c.clock.Now().Sub(start).Milliseconds()))
			if len(batch) == 0 {
				CreateResponses.WithLabelValues("empty").Inc()
				return "", nil, nil
			}
			BatchSize.Observe(float64(len(batch)))
			CreateResponses.WithLabelValues("success").Inc()
			log.Info("claim created", "claimID", claimID, "batch", len(batch))
			return claimID, batch, nil
		case err == store.ErrConflict:
			ContentionRetries.Inc()
			if c.clock.Now().After(deadline) {
				CreateResponses.WithLabelValues("conflict").Inc()
				log.Info("claim creation exhausted retry budget", "claimID", claimID)
				return "", nil, ErrClaimConflict(project, queueName)
			}
			continue
		default:
			CreateResponses.WithLabelValues("error").Inc()
			log.Error(err, "claim creation failed", "claimID", claimID)
			return "", nil, ErrConnection(err)
		}
	}
}

// stageClaim writes the per-message deltas, the claim record, the
// claims-set membership, and the counter bump for one create attempt.
// The same "would-expire" extension rule backs update's write path.
// The staged values are also stamped onto batch, so Create hands back
// the messages as they stand once the claim commits.
func (c *Controller) stageClaim(w store.Writer, project, queueName, claimID string, ttl, grace int64, batch []store.Message) error {
	now := c.clock.Now().Unix()
	claimExpires := now + ttl
	msgExpires := claimExpires + grace
	msgTTL := ttl + grace

	deltas := make([]message.Delta, 0, len(batch))
	msgIDs := make([]string, 0, len(batch))
	for i, m := range batch {
		d := message.Delta{MessageID: m.ID, ClaimID: claimID, ClaimExpires: claimExpires}
		if m.Expires < msgExpires {
			d.ExtendTTL = msgTTL
			d.ExtendExpires = msgExpires
			batch[i].TTL = msgTTL
			batch[i].Expires = msgExpires
		}
		batch[i].ClaimID = claimID
		batch[i].ClaimExpires = claimExpires
		deltas = append(deltas, d)
		msgIDs = append(msgIDs, m.ID)
	}
	c.mut.ApplyDeltas(w, deltas)

	w.RPush(c.keys.ClaimMessages(claimID), msgIDs...)
	w.HSet(c.keys.Claim(claimID), store.Claim{ID: claimID, TTL: ttl, Expires: claimExpires}.ToFields())
	w.SAdd(c.keys.ClaimsSet(project, queueName), claimID)
	c.queue.IncClaimed(project, queueName, int64(len(batch)), w)
	return nil
}

// Get returns a claim's metadata and its still-present messages.
func (c *Controller) Get(ctx context.Context, project, queueName, claimID string) (store.Claim, []store.Message, error) {
	var cl store.Claim
	var msgs []store.Message

	err := store.WithRetryIf(func() error {
		var ok bool
		var err error
		cl, ok, err = c.exists(ctx, project, queueName, claimID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrClaimDoesNotExist(claimID)
		}
		msgIDs, err := c.store.LRange(ctx, c.keys.ClaimMessages(claimID))
		if err != nil {
			return err
		}
		msgs = make([]store.Message, 0, len(msgIDs))
		for _, id := range msgIDs {
			msg, ok, err := c.view.Get(ctx, c.store, id)
			if err != nil {
				return err
			}
			if ok {
				msgs = append(msgs, msg)
			}
		}
		return nil
	}, isTransient)
	if err != nil {
		if IsClaimDoesNotExist(err) {
			return store.Claim{}, nil, err
		}
		return store.Claim{}, nil, ErrConnection(err)
	}
	return cl, msgs, nil
}

// isTransient reports whether err is worth retrying: anything that
// isn't one of this package's own semantic errors.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	return !IsClaimDoesNotExist(err) && !IsQueueDoesNotExist(err) && !IsConflict(err) && !IsValidation(err)
}

// Age reports how long ago a claim was created, given its current TTL
// and expiry.
func Age(now int64, cl store.Claim) int64 {
	return now - (cl.Expires - cl.TTL)
}

// Update renews a claim's lease, extending its own expiry and, for
// every message it still holds, extending the message's lifetime
// under the same would-expire rule create uses.
func (c *Controller) Update(ctx context.Context, project, queueName, claimID string, ttl, grace int64) error {
	log := klog.FromContext(ctx).WithValues("project", project, "queue", queueName, "claimID", claimID)

	err := store.WithRetryIf(func() error {
		_, ok, err := c.exists(ctx, project, queueName, claimID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrClaimDoesNotExist(claimID)
		}

		msgIDs, err := c.store.LRange(ctx, c.keys.ClaimMessages(claimID))
		if err != nil {
			return err
		}

		now := c.clock.Now().Unix()
		claimExpires := now + ttl
		msgExpires := claimExpires + grace
		msgTTL := ttl + grace

		deltas := make([]message.Delta, 0, len(msgIDs))
		for _, id := range msgIDs {
			msg, ok, err := c.view.Get(ctx, c.store, id)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			d := message.Delta{MessageID: id, ClaimID: claimID, ClaimExpires: claimExpires}
			if msg.Expires < msgExpires {
				d.ExtendTTL = msgTTL
				d.ExtendExpires = msgExpires
			}
			deltas = append(deltas, d)
		}

		return c.store.Batch(ctx, func(w store.Writer) error {
			c.mut.ApplyDeltas(w, deltas)
			w.HSet(c.keys.Claim(claimID), store.Claim{ID: claimID, TTL: ttl, Expires: claimExpires}.ToFields())
			return nil
		})
	}, isTransient)
	if err != nil {
		if IsClaimDoesNotExist(err) {
			return err
		}
		log.Error(err, "claim update failed")
		return ErrConnection(err)
	}
	log.Info("claim updated")
	return nil
}

// Delete releases a claim, making its messages immediately available
// again. Deleting an already-gone claim is a silent no-op.
func (c *Controller) Delete(ctx context.Context, project, queueName, claimID string) error {
	log := klog.FromContext(ctx).WithValues("project", project, "queue", queueName, "claimID", claimID)

	err := store.WithRetryIf(func() error {
		_, ok, err := c.exists(ctx, project, queueName, claimID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		msgIDs, err := c.store.LRange(ctx, c.keys.ClaimMessages(claimID))
		if err != nil {
			return err
		}

		present := make([]string, 0, len(msgIDs))
		for _, id := range msgIDs {
			if _, ok, err := c.view.Get(ctx, c.store, id); err != nil {
				return err
			} else if ok {
				present = append(present, id)
			}
		}

		return c.store.Batch(ctx, func(w store.Writer) error {
			w.SRem(c.keys.ClaimsSet(project, queueName), claimID)
			w.Del(c.keys.Claim(claimID))
			w.Del(c.keys.ClaimMessages(claimID))
			for _, id := range present {
				c.mut.ClearClaim(w, id)
			}
			c.queue.IncClaimed(project, queueName, -int64(len(present)), w)
			return nil
		})
	}, isTransient)
	if err != nil {
		log.Error(err, "claim deletion failed")
		return ErrConnection(err)
	}
	log.Info("claim deleted")
	return nil
}

// Stats reports a queue's claimed/free/total message counts, read
// through the same Store the claim controller uses.
func (c *Controller) Stats(ctx context.Context, project, queueName string) (v1.QueueStats, error) {
	return c.queue.Stats(ctx, c.store, project, queueName)
}

// Now returns the controller's current time, letting collaborators
// like the HTTP layer compute derived fields (claim age) against the
// same clock the controller itself uses.
func (c *Controller) Now() int64 {
	return c.clock.Now().Unix()
}

// exists applies the claim existence check: membership in the claims
// set alone is insufficient, since passively-expired claims are never
// swept from it; the stored expiry must also still be in the future.
func (c *Controller) exists(ctx context.Context, project, queueName, claimID string) (store.Claim, bool, error) {
	member, err := c.store.SIsMember(ctx, c.keys.ClaimsSet(project, queueName), claimID)
	if err != nil {
		return store.Claim{}, false, err
	}
	if !member {
		return store.Claim{}, false, nil
	}
	fields, err := c.store.HGetAll(ctx, c.keys.Claim(claimID))
	if err != nil {
		return store.Claim{}, false, err
	}
	cl, ok := store.ClaimFromFields(fields)
	if !ok {
		return store.Claim{}, false, nil
	}
	if c.clock.Now().Unix() >= cl.Expires {
		return store.Claim{}, false, nil
	}
	return cl, true, nil
}
