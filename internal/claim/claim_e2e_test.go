package claim

import (
	"context"
	"sync"
	"time"

	"github.com/beaconmq/broker/internal/message"
	"github.com/beaconmq/broker/internal/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	clocktesting "k8s.io/utils/clock/testing"
)

var ctxBg = context.Background()

var _ = Describe("Claim lifecycle", func() {
	var (
		ms  *store.MemStore
		fc  *clocktesting.FakeClock
		mut *message.Mutator
		ctl *Controller
	)

	BeforeEach(func() {
		ms = store.NewMemStore()
		fc = clocktesting.NewFakeClock(time.Unix(1_700_000_000, 0))
		mut = message.NewMutatorWithClock(fc)
		ctl = NewControllerWithClock(ms, fc)
	})

	postN := func(n int, ttl int64) {
		for i := 0; i < n; i++ {
			Expect(ms.Batch(ctxBg, func(w store.Writer) error {
				_, err := mut.Post(ctxBg, w, "480924", "fizbit", "payload", ttl)
				return err
			})).To(Succeed())
		}
	}

	It("posts, claims, lets the claim expire, and sees the messages active again", func() {
		postN(5, 30)

		claimID, msgs, err := ctl.Create(ctxBg, "480924", "fizbit", 1, 0, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(5))

		stats, err := ctl.Stats(ctxBg, "480924", "fizbit")
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Claimed).To(BeEquivalentTo(5))

		fc.Step(2 * time.Second)

		_, _, err = ctl.Get(ctxBg, "480924", "fizbit", claimID)
		Expect(err).To(HaveOccurred())
		Expect(IsClaimDoesNotExist(err)).To(BeTrue())

		view := message.NewViewWithClock(fc)
		active, err := view.Active(ctxBg, ms, "480924", "fizbit", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(active).To(HaveLen(5))
	})

	It("never lets two concurrent creators claim the same message", func() {
		postN(2, 30)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			results []int
			errs    []error
		)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, msgs, err := ctl.Create(ctxBg, "480924", "fizbit", 60, 60, 2)
				mu.Lock()
				defer mu.Unlock()
				results = append(results, len(msgs))
				errs = append(errs, err)
			}()
		}
		wg.Wait()

		for _, err := range errs {
			Expect(err).NotTo(HaveOccurred())
		}
		total := 0
		for _, n := range results {
			total += n
		}
		Expect(total).To(Equal(2))
	})
})
