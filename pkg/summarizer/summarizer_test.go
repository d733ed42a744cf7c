package summarizer_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/presencelabs/substrate/pkg/llm"
	"github.com/presencelabs/substrate/pkg/substrate"
	"github.com/presencelabs/substrate/pkg/summarizer"
	"github.com/presencelabs/substrate/pkg/turnstore"
	"github.com/presencelabs/substrate/pkg/turnstore/inmemory"
)

var _ = Describe("Summarizer", func() {
	var (
		store *inmemory.Store
		ctx   context.Context
	)

	BeforeEach(func() {
		store = inmemory.New()
		ctx = context.Background()
	})

	appendTurns := func(n int, channel string) {
		GinkgoHelper()
		for i := range n {
			_, err := store.Append(ctx, turnstore.Turn{
				Channel: channel,
				Author:  "presence",
				Content: fmt.Sprintf("message %d", i),
			})
			Expect(err).NotTo(HaveOccurred())
		}
	}

	newSummarizer := func(call llm.CallFunc) *summarizer.Summarizer {
		return summarizer.New(store, llm.NewWithCallFunc("test", "test-model", call), nil)
	}

	canned := func(text string) llm.CallFunc {
		return func(context.Context, string) (string, error) { return text, nil }
	}

	Describe("Summarize", func() {
		It("compresses the oldest unsummarized range without persisting", func() {
			appendTurns(5, "chat")

			sum, err := newSummarizer(canned("a dense summary")).Summarize(ctx, 10, turnstore.KindWork)
			Expect(err).NotTo(HaveOccurred())
			Expect(sum).NotTo(BeNil())
			Expect(sum.Text).To(Equal("a dense summary"))
			Expect(sum.StartTurnID).To(Equal(int64(1)))
			Expect(sum.EndTurnID).To(Equal(int64(5)))
			Expect(sum.Channels).To(Equal([]string{"chat"}))

			// Nothing persisted, nothing marked.
			count, err := store.UnsummarizedCount(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(5))
		})

		It("sends the raw turn content to the model", func() {
			appendTurns(2, "terminal")

			var prompt string
			s := newSummarizer(func(_ context.Context, p string) (string, error) {
				prompt = p
				return "summary", nil
			})

			_, err := s.Summarize(ctx, 10, turnstore.KindTechnical)
			Expect(err).NotTo(HaveOccurred())
			Expect(prompt).To(ContainSubstring("message 0"))
			Expect(prompt).To(ContainSubstring("message 1"))
			Expect(prompt).To(ContainSubstring("terminal"))
		})

		It("returns nil when the backlog is empty", func() {
			sum, err := newSummarizer(canned("unused")).Summarize(ctx, 10, turnstore.KindWork)
			Expect(err).NotTo(HaveOccurred())
			Expect(sum).To(BeNil())
		})

		It("rejects an unknown kind", func() {
			appendTurns(1, "chat")

			_, err := newSummarizer(canned("unused")).Summarize(ctx, 10, "gossip")
			Expect(err).To(MatchError(ContainSubstring("unknown summary kind")))
		})

		It("surfaces an extraction failure and leaves the range unconsumed", func() {
			appendTurns(3, "chat")

			s := newSummarizer(func(context.Context, string) (string, error) {
				return "", errors.New("model overloaded")
			})

			_, err := s.Summarize(ctx, 10, turnstore.KindWork)
			Expect(errors.Is(err, substrate.ErrExtraction)).To(BeTrue())

			count, err := store.UnsummarizedCount(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(3))
		})
	})

	Describe("StoreSummary", func() {
		It("persists and marks the covered range", func() {
			appendTurns(5, "chat")

			s := newSummarizer(canned("the summary"))
			sum, err := s.Summarize(ctx, 3, turnstore.KindWork)
			Expect(err).NotTo(HaveOccurred())

			id, err := s.StoreSummary(ctx, *sum)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(BeNumerically(">", 0))

			count, err := s.BacklogCount(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))

			recent, err := s.RecentSummaries(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(recent).To(HaveLen(1))
			Expect(recent[0].Text).To(Equal("the summary"))
		})

		It("never produces overlapping ranges across successive summaries", func() {
			appendTurns(6, "chat")

			s := newSummarizer(canned("summary"))

			first, err := s.Summarize(ctx, 3, turnstore.KindWork)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.StoreSummary(ctx, *first)
			Expect(err).NotTo(HaveOccurred())

			second, err := s.Summarize(ctx, 3, turnstore.KindWork)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.StartTurnID).To(Equal(first.EndTurnID + 1))
		})
	})

	Describe("Stats", func() {
		It("reports totals by kind and the backlog", func() {
			appendTurns(4, "chat")

			s := newSummarizer(canned("summary"))
			sum, err := s.Summarize(ctx, 2, turnstore.KindSocial)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.StoreSummary(ctx, *sum)
			Expect(err).NotTo(HaveOccurred())

			stats, err := s.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Total).To(Equal(1))
			Expect(stats.ByKind[turnstore.KindSocial]).To(Equal(1))
			Expect(stats.Backlog).To(Equal(2))
		})
	})
})
