package crystal

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/presencelabs/substrate/pkg/llm"
	"github.com/presencelabs/substrate/pkg/substrate"
	"github.com/presencelabs/substrate/pkg/turnstore"
	"github.com/presencelabs/substrate/pkg/turnstore/inmemory"
)

var _ = Describe("Engine", func() {
	var (
		store *inmemory.Store
		chain *Chain
		ctx   context.Context
	)

	content := "## Field state\ncalm\n\n## Key events\nshipped\n\n## Decisions\nyes\n\n## Internal arc\nsteady\n\n## Continuity seeds\nfollow up"

	BeforeEach(func() {
		store = inmemory.New()
		ctx = context.Background()

		var err error
		chain, err = NewChain(GinkgoT().TempDir(), 4)
		Expect(err).NotTo(HaveOccurred())
	})

	newEngine := func(call llm.CallFunc) *Engine {
		return NewEngine(store, chain, llm.NewWithCallFunc("test", "test-model", call), "test-owner", nil)
	}

	canned := func(context.Context, string) (string, error) { return content, nil }

	appendTurns := func(n int) {
		GinkgoHelper()
		for i := range n {
			_, err := store.Append(ctx, turnstore.Turn{
				Channel: "chat",
				Author:  "presence",
				Content: fmt.Sprintf("message %d", i),
			})
			Expect(err).NotTo(HaveOccurred())
		}
	}

	Describe("ShouldCrystallize", func() {
		It("fires once enough turns accumulate with no prior crystal", func() {
			appendTurns(51)

			fire, err := newEngine(canned).ShouldCrystallize(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(fire).To(BeTrue())
		})

		It("stays quiet below both thresholds", func() {
			appendTurns(10)

			e := newEngine(canned)
			_, err := e.Create(ctx)
			Expect(err).NotTo(HaveOccurred())

			appendTurns(10)
			fire, err := e.ShouldCrystallize(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(fire).To(BeFalse())
		})

		It("fires on elapsed time alone", func() {
			appendTurns(10)

			e := newEngine(canned)
			_, err := e.Create(ctx)
			Expect(err).NotTo(HaveOccurred())

			appendTurns(1)
			e.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

			fire, err := e.ShouldCrystallize(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(fire).To(BeTrue())
		})

		It("fires on turn count alone", func() {
			appendTurns(10)

			e := newEngine(canned)
			_, err := e.Create(ctx)
			Expect(err).NotTo(HaveOccurred())

			appendTurns(50)
			fire, err := e.ShouldCrystallize(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(fire).To(BeTrue())
		})
	})

	Describe("Maybe", func() {
		It("creates exactly one crystal for 51 fresh turns", func() {
			appendTurns(51)

			e := newEngine(canned)
			c, err := e.Maybe(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(c).NotTo(BeNil())
			Expect(c.Sequence).To(Equal(1))
			Expect(c.StartTurnID).To(Equal(int64(1)))

			current, err := e.Current(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(current).To(HaveLen(1))

			// The trigger is spent; a second call is a no-op.
			c, err = e.Maybe(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(BeNil())
		})

		It("does nothing below the trigger", func() {
			appendTurns(5)

			c, err := newEngine(canned).Maybe(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(BeNil())
		})
	})

	Describe("Create", func() {
		It("covers only turns after the previous crystal", func() {
			appendTurns(10)
			e := newEngine(canned)

			first, err := e.Create(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.EndTurnID).To(Equal(int64(10)))

			appendTurns(10)
			second, err := e.Create(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.StartTurnID).To(Equal(int64(11)))
			Expect(second.EndTurnID).To(Equal(int64(20)))
			Expect(second.Sequence).To(Equal(2))
		})

		It("feeds the prior crystal back as continuity context", func() {
			appendTurns(5)

			var lastPrompt string
			e := newEngine(func(_ context.Context, prompt string) (string, error) {
				lastPrompt = prompt
				return content, nil
			})

			_, err := e.Create(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(lastPrompt).NotTo(ContainSubstring("Prior crystal"))

			appendTurns(5)
			_, err = e.Create(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(lastPrompt).To(ContainSubstring("Prior crystal"))
			Expect(lastPrompt).To(ContainSubstring("shipped"))
		})

		It("leaves the chain untouched when the model call fails", func() {
			appendTurns(10)

			e := newEngine(func(context.Context, string) (string, error) {
				return "", errors.New("model overloaded")
			})

			_, err := e.Create(ctx)
			Expect(errors.Is(err, substrate.ErrExtraction)).To(BeTrue())

			all, err := e.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())
		})

		It("refuses to crystallize an empty ledger", func() {
			_, err := newEngine(canned).Create(ctx)
			Expect(errors.Is(err, substrate.ErrExtraction)).To(BeTrue())
		})

		It("backs off while another owner holds the lock", func() {
			appendTurns(10)

			held, err := store.AcquireLock(ctx, turnstore.LockCrystallize, "someone-else", time.Minute)
			Expect(err).NotTo(HaveOccurred())
			Expect(held).To(BeTrue())

			_, err = newEngine(canned).Create(ctx)
			Expect(err).To(MatchError(turnstore.ErrLockHeld))
		})

		It("fills in any sections the model omitted", func() {
			appendTurns(5)

			e := newEngine(func(context.Context, string) (string, error) {
				return "## Field state\ncalm", nil
			})

			c, err := e.Create(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Content).To(ContainSubstring("## Continuity seeds"))
		})
	})

	Describe("Delete", func() {
		It("only accepts the newest crystal", func() {
			appendTurns(5)
			e := newEngine(canned)

			_, err := e.Create(ctx)
			Expect(err).NotTo(HaveOccurred())
			appendTurns(5)
			_, err = e.Create(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(errors.Is(e.Delete(ctx, 1), substrate.ErrChainIntegrity)).To(BeTrue())
			Expect(e.Delete(ctx, 2)).To(Succeed())

			all, err := e.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})
	})
})
