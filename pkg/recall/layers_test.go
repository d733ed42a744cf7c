package recall_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/presencelabs/substrate/pkg/anchors"
	"github.com/presencelabs/substrate/pkg/graph"
	graphmem "github.com/presencelabs/substrate/pkg/graph/inmemory"
	"github.com/presencelabs/substrate/pkg/llm"
	"github.com/presencelabs/substrate/pkg/recall"
	"github.com/presencelabs/substrate/pkg/summarizer"
	"github.com/presencelabs/substrate/pkg/turnstore"
	turnmem "github.com/presencelabs/substrate/pkg/turnstore/inmemory"
	testutils "github.com/presencelabs/substrate/pkg/utils/test"
)

var _ = Describe("Layers", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("GraphLayer", func() {
		It("surfaces facts as tagged results", func() {
			adapter := graphmem.New()
			err := adapter.AddTriplet(ctx, graph.Triplet{
				SourceEntity: "Ada",
				Predicate:    "built",
				TargetEntity: "compiler",
				FactText:     "Ada built the compiler",
				Namespace:    "alpha",
			})
			Expect(err).NotTo(HaveOccurred())

			layer := &recall.GraphLayer{Adapter: adapter, Namespace: "alpha"}
			results, err := layer.Search(ctx, "compiler", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Source).To(Equal(recall.LayerGraph))
			Expect(results[0].Content).To(Equal("Ada built the compiler"))
		})
	})

	Describe("AnchorLayer", func() {
		It("surfaces anchors with titles and scores", func() {
			index, err := anchors.New(GinkgoT().TempDir(),
				testutils.NewMockEmbedder(), testutils.NewMockVectorDriver(), nil)
			Expect(err).NotTo(HaveOccurred())

			_, err = index.Save(ctx, "Harbor", "boats at rest")
			Expect(err).NotTo(HaveOccurred())

			layer := &recall.AnchorLayer{Index: index}
			results, err := layer.Search(ctx, "boats", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Title).To(Equal("Harbor"))
			Expect(results[0].Source).To(Equal(recall.LayerAnchors))
		})
	})

	Describe("SummaryLayer", func() {
		It("surfaces stored summaries", func() {
			store := turnmem.New()
			_, err := store.AddSummary(ctx, turnstore.Summary{
				StartTurnID: 1,
				EndTurnID:   10,
				Kind:        turnstore.KindWork,
				Text:        "shipped the anchor index",
			})
			Expect(err).NotTo(HaveOccurred())

			s := summarizer.New(store, llm.NewWithCallFunc("test", "test-model", nil), nil)
			layer := &recall.SummaryLayer{Summarizer: s}

			results, err := layer.Search(ctx, "anchor", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Source).To(Equal(recall.LayerSummaries))
			Expect(results[0].Title).To(ContainSubstring("work summary"))
		})
	})
})
