package claim

import (
	"testing"
	"time"

	"github.com/beaconmq/broker/internal/message"
	"github.com/beaconmq/broker/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

func postMessages(t *testing.T, ms *store.MemStore, mut *message.Mutator, project, queue string, n int, ttl int64) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		require.NoError(t, ms.Batch(t.Context(), func(w store.Writer) error {
			id, err := mut.Post(t.Context(), w, project, queue, "body", ttl)
			if err != nil {
				return err
			}
			ids = append(ids, id)
			return nil
		}))
	}
	return ids
}

func TestCreate_PostThenClaim(t *testing.T) {
	fc := clocktesting.NewFakeClock(time.Unix(1_000_000, 0))
	ms := store.NewMemStore()
	mut := message.NewMutatorWithClock(fc)
	c := NewControllerWithClock(ms, fc)

	postMessages(t, ms, mut, "480924", "fizbit", 10, 30)

	claimID, msgs, err := c.Create(t.Context(), "480924", "fizbit", 100, 60, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, claimID)
	require.Len(t, msgs, 5)

	for _, m := range msgs {
		assert.Equal(t, claimID, m.ClaimID)
		assert.InDelta(t, fc.Now().Unix()+160, m.Expires, 1)
	}

	stats, err := c.Stats(t.Context(), "480924", "fizbit")
	require.NoError(t, err)
	assert.EqualValues(t, 5, stats.Claimed)
}

func TestCreate_NoActiveMessagesYieldsEmptyBatch(t *testing.T) {
	fc := clocktesting.NewFakeClock(time.Unix(1_000_000, 0))
	ms := store.NewMemStore()
	c := NewControllerWithClock(ms, fc)

	claimID, msgs, err := c.Create(t.Context(), "proj", "empty-q", 60, 60, 5)
	require.NoError(t, err)
	assert.Empty(t, claimID)
	assert.Empty(t, msgs)

	stats, err := c.Stats(t.Context(), "proj", "empty-q")
	require.NoError(t, err)
	assert.Zero(t, stats.Claimed)
}

func TestGet_ReturnsClaimDoesNotExistForUnknownID(t *testing.T) {
	fc := clocktesting.NewFakeClock(time.Unix(1_000_000, 0))
	ms := store.NewMemStore()
	c := NewControllerWithClock(ms, fc)

	_, _, err := c.Get(t.Context(), "proj", "q", "not-a-real-claim")
	require.Error(t, err)
	assert.True(t, IsClaimDoesNotExist(err))
}

func TestGet_ReturnsClaimDoesNotExistAfterExpiry(t *testing.T) {
	fc := clocktesting.NewFakeClock(time.Unix(1_000_000, 0))
	ms := store.NewMemStore()
	mut := message.NewMutatorWithClock(fc)
	c := NewControllerWithClock(ms, fc)

	postMessages(t, ms, mut, "proj", "q", 3, 30)
	claimID, _, err := c.Create(t.Context(), "proj", "q", 1, 0, 3)
	require.NoError(t, err)

	fc.Step(2 * time.Second)

	_, _, err = c.Get(t.Context(), "proj", "q", claimID)
	require.Error(t, err)
	assert.True(t, IsClaimDoesNotExist(err))

	view := message.NewViewWithClock(fc)
	active, err := view.Active(t.Context(), ms, "proj", "q", 10)
	require.NoError(t, err)
	assert.Len(t, active, 3)
}

func TestUpdate_ExtendsLifetimes(t *testing.T) {
	fc := clocktesting.NewFakeClock(time.Unix(1_000_000, 0))
	ms := store.NewMemStore()
	mut := message.NewMutatorWithClock(fc)
	c := NewControllerWithClock(ms, fc)

	postMessages(t, ms, mut, "proj", "q", 1, 5)
	claimID, msgs, err := c.Create(t.Context(), "proj", "q", 10, 5, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, fc.Now().Unix()+15, msgs[0].Expires)

	fc.Step(3 * time.Second)
	require.NoError(t, c.Update(t.Context(), "proj", "q", claimID, 20, 5))

	cl, updated, err := c.Get(t.Context(), "proj", "q", claimID)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, fc.Now().Unix()+25, updated[0].Expires)
	assert.Equal(t, fc.Now().Unix()+20, cl.Expires)
}

func TestUpdate_UnknownClaimFails(t *testing.T) {
	fc := clocktesting.NewFakeClock(time.Unix(1_000_000, 0))
	ms := store.NewMemStore()
	c := NewControllerWithClock(ms, fc)

	err := c.Update(t.Context(), "proj", "q", "ghost", 10, 10)
	require.Error(t, err)
	assert.True(t, IsClaimDoesNotExist(err))
}

func TestDelete_ReleasesMessagesImmediately(t *testing.T) {
	fc := clocktesting.NewFakeClock(time.Unix(1_000_000, 0))
	ms := store.NewMemStore()
	mut := message.NewMutatorWithClock(fc)
	c := NewControllerWithClock(ms, fc)
	view := message.NewViewWithClock(fc)

	postMessages(t, ms, mut, "proj", "q", 4, 30)
	claimID, msgs, err := c.Create(t.Context(), "proj", "q", 60, 60, 4)
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	require.NoError(t, c.Delete(t.Context(), "proj", "q", claimID))

	active, err := view.Active(t.Context(), ms, "proj", "q", 10)
	require.NoError(t, err)
	assert.Len(t, active, 4)

	stats, err := c.Stats(t.Context(), "proj", "q")
	require.NoError(t, err)
	assert.Zero(t, stats.Claimed)
}

func TestDelete_IsIdempotent(t *testing.T) {
	fc := clocktesting.NewFakeClock(time.Unix(1_000_000, 0))
	ms := store.NewMemStore()
	mut := message.NewMutatorWithClock(fc)
	c := NewControllerWithClock(ms, fc)

	postMessages(t, ms, mut, "proj", "q", 2, 30)
	claimID, _, err := c.Create(t.Context(), "proj", "q", 60, 60, 2)
	require.NoError(t, err)

	require.NoError(t, c.Delete(t.Context(), "proj", "q", claimID))
	require.NoError(t, c.Delete(t.Context(), "proj", "q", claimID))
	require.NoError(t, c.Delete(t.Context(), "proj", "q", "never-existed"))
}

func TestCreate_SequentialCreatorsDrainQueueExactlyOnce(t *testing.T) {
	fc := clocktesting.NewFakeClock(time.Unix(1_000_000, 0))
	ms := store.NewMemStore()
	mut := message.NewMutatorWithClock(fc)
	c := NewControllerWithClock(ms, fc)

	postMessages(t, ms, mut, "proj", "two-message-queue", 2, 30)

	type result struct {
		claimID string
		count   int
	}
	results := make([]result, 2)
	for i := range results {
		claimID, msgs, err := c.Create(t.Context(), "proj", "two-message-queue", 60, 60, 2)
		require.NoError(t, err)
		results[i] = result{claimID: claimID, count: len(msgs)}
	}

	counts := []int{results[0].count, results[1].count}
	assert.ElementsMatch(t, []int{2, 0}, counts)
}

func TestCreate_ZeroTTLIsImmediatelyNonExistent(t *testing.T) {
	fc := clocktesting.NewFakeClock(time.Unix(1_000_000, 0))
	ms := store.NewMemStore()
	mut := message.NewMutatorWithClock(fc)
	c := NewControllerWithClock(ms, fc)

	postMessages(t, ms, mut, "proj", "q", 1, 30)
	claimID, msgs, err := c.Create(t.Context(), "proj", "q", 0, 0, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	_, _, err = c.Get(t.Context(), "proj", "q", claimID)
	require.Error(t, err)
	assert.True(t, IsClaimDoesNotExist(err))
}

func TestAge(t *testing.T) {
	cl := store.Claim{ID: "c1", TTL: 60, Expires: 1100}
	assert.EqualValues(t, 60, Age(1100, cl))
}
