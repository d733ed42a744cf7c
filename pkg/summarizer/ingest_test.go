package summarizer_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/presencelabs/substrate/pkg/graph"
	graphmem "github.com/presencelabs/substrate/pkg/graph/inmemory"
	"github.com/presencelabs/substrate/pkg/llm"
	"github.com/presencelabs/substrate/pkg/summarizer"
	"github.com/presencelabs/substrate/pkg/turnstore"
	"github.com/presencelabs/substrate/pkg/turnstore/inmemory"
)

// failingGraph rejects every episode, standing in for an unreachable backend.
type failingGraph struct {
	*graphmem.Adapter
	calls int
}

func (f *failingGraph) AddEpisode(context.Context, graph.EpisodeRequest) (string, error) {
	f.calls++
	return "", errors.New("connection refused")
}

func zeroTime() time.Time { return time.Time{} }

var _ = Describe("Ingestor", func() {
	var (
		store   *inmemory.Store
		adapter *graphmem.Adapter
		ctx     context.Context
	)

	BeforeEach(func() {
		store = inmemory.New()
		adapter = graphmem.New()
		ctx = context.Background()
	})

	newIngestor := func(a graph.Adapter) *summarizer.Ingestor {
		GinkgoHelper()
		s := summarizer.New(store, llm.NewWithCallFunc("test", "test-model", nil), nil)
		ing, err := summarizer.NewIngestor(s, a, "alpha", "test-owner")
		Expect(err).NotTo(HaveOccurred())
		return ing
	}

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

	It("requires a namespace", func() {
		s := summarizer.New(store, llm.NewWithCallFunc("test", "test-model", nil), nil)
		_, err := summarizer.NewIngestor(s, adapter, "", "owner")
		Expect(err).To(MatchError(graph.ErrNamespaceRequired))
	})

	Describe("BatchID", func() {
		It("is deterministic over the range", func() {
			r := turnstore.Range{Start: 100, End: 119}
			Expect(summarizer.BatchID(r)).To(Equal(summarizer.BatchID(r)))
		})

		It("differs for different ranges", func() {
			a := summarizer.BatchID(turnstore.Range{Start: 1, End: 20})
			b := summarizer.BatchID(turnstore.Range{Start: 21, End: 40})
			Expect(a).NotTo(Equal(b))
		})
	})

	Describe("IngestBatch", func() {
		It("ingests the oldest contiguous range and marks it", func() {
			appendTurns(5)

			batch, err := newIngestor(adapter).IngestBatch(ctx, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(batch.Turns).To(Equal(turnstore.Range{Start: 1, End: 3}))
			Expect(batch.IngestedCount).To(Equal(3))
			Expect(batch.BatchID).To(Equal(summarizer.BatchID(batch.Turns)))

			count, err := store.UningestedCount(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))

			// Raw content reached the graph as episodes.
			episodes, err := adapter.Timeline(ctx, zeroTime(), zeroTime(), "alpha")
			Expect(err).NotTo(HaveOccurred())
			Expect(episodes).To(HaveLen(3))
			Expect(episodes[0].Body).To(ContainSubstring("message 0"))
		})

		It("returns a zero batch when the backlog is empty", func() {
			batch, err := newIngestor(adapter).IngestBatch(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(batch.BatchID).To(BeEmpty())
			Expect(batch.IngestedCount).To(BeZero())
		})

		It("treats a replayed range as a no-op", func() {
			appendTurns(4)
			ing := newIngestor(adapter)

			first, err := ing.IngestBatch(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.IngestedCount).To(Equal(4))

			stats, err := ing.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.UningestedCount).To(BeZero())

			// No new turns: the next call finds nothing and the backlog
			// count is unchanged.
			second, err := ing.IngestBatch(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.IngestedCount).To(BeZero())

			stats, err = ing.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.UningestedCount).To(BeZero())

			episodes, err := adapter.Timeline(ctx, zeroTime(), zeroTime(), "alpha")
			Expect(err).NotTo(HaveOccurred())
			Expect(episodes).To(HaveLen(4))
		})

		It("retries at batch granularity on failure", func() {
			appendTurns(3)
			failing := &failingGraph{Adapter: adapter}

			_, err := newIngestor(failing).IngestBatch(ctx, 10)
			Expect(err).To(HaveOccurred())

			// Nothing marked: the whole range stays eligible.
			count, err := store.UningestedCount(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(3))

			// A healthy retry covers the same range under the same id.
			batch, err := newIngestor(adapter).IngestBatch(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(batch.Turns).To(Equal(turnstore.Range{Start: 1, End: 3}))
			Expect(batch.IngestedCount).To(Equal(3))
		})

		It("refuses to run while another owner holds the lock", func() {
			appendTurns(2)

			held, err := store.AcquireLock(ctx, turnstore.LockGraphIngest, "someone-else", time.Minute)
			Expect(err).NotTo(HaveOccurred())
			Expect(held).To(BeTrue())

			_, err = newIngestor(adapter).IngestBatch(ctx, 10)
			Expect(err).To(MatchError(turnstore.ErrLockHeld))
		})
	})

	Describe("Stats", func() {
		It("recommends ingestion once the backlog is large enough", func() {
			appendTurns(summarizer.RecommendThreshold)

			stats, err := newIngestor(adapter).Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.UningestedCount).To(Equal(summarizer.RecommendThreshold))
			Expect(stats.Recommended).To(BeTrue())
		})

		It("does not recommend for a small backlog", func() {
			appendTurns(3)

			stats, err := newIngestor(adapter).Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Recommended).To(BeFalse())
		})
	})
})
