package mcp

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/presencelabs/substrate/pkg/anchors"
	"github.com/presencelabs/substrate/pkg/crystal"
	graphmem "github.com/presencelabs/substrate/pkg/graph/inmemory"
	"github.com/presencelabs/substrate/pkg/llm"
	"github.com/presencelabs/substrate/pkg/recall"
	"github.com/presencelabs/substrate/pkg/summarizer"
	"github.com/presencelabs/substrate/pkg/turnstore"
	turnmem "github.com/presencelabs/substrate/pkg/turnstore/inmemory"
	testutils "github.com/presencelabs/substrate/pkg/utils/test"
)

var _ = Describe("MCP Server", func() {
	var (
		server *Server
		store  *turnmem.Store
		gr     *graphmem.Adapter
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = turnmem.New()
		gr = graphmem.New()

		index, err := anchors.New(GinkgoT().TempDir(), testutils.NewMockEmbedder(), testutils.NewMockVectorDriver(), nil)
		Expect(err).NotTo(HaveOccurred())

		chain, err := crystal.NewChain(GinkgoT().TempDir(), crystal.DefaultWindow)
		Expect(err).NotTo(HaveOccurred())

		crystalLLM := llm.NewWithCallFunc("test", "test-model", func(_ context.Context, _ string) (string, error) {
			return "## Field state\ncalm\n", nil
		})
		engine := crystal.NewEngine(store, chain, crystalLLM, "mcp-test", nil)

		summaryLLM := llm.NewWithCallFunc("test", "test-model", func(_ context.Context, _ string) (string, error) {
			return "a compressed week", nil
		})
		sum := summarizer.New(store, summaryLLM, nil)

		ingestor, err := summarizer.NewIngestor(sum, gr, "test-presence", "mcp-test")
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{
			Store:      store,
			Anchors:    index,
			Graph:      gr,
			Crystals:   engine,
			Summarizer: sum,
			Ingestor:   ingestor,
			Recall: recall.New(nil,
				&recall.AnchorLayer{Index: index},
				&recall.GraphLayer{Adapter: gr, Namespace: "test-presence"},
			),
			Namespace: "test-presence",
		})
		Expect(err).NotTo(HaveOccurred())
	})

	appendTurns := func(n int) {
		for i := range n {
			_, err := store.Append(ctx, turnstore.Turn{
				Channel: "discord", Author: "ren",
				Content: fmt.Sprintf("turn %d", i+1),
			})
			Expect(err).NotTo(HaveOccurred())
		}
	}

	Describe("NewServer", func() {
		It("returns an error when the turn store is nil", func() {
			_, err := NewServer(Config{})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("turn store is required"))
		})

		It("returns an HTTP handler", func() {
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("anchor tools", func() {
		It("saves then finds an anchor", func() {
			result, saved, err := server.handleAnchorSave(ctx, nil, AnchorSaveInput{
				Title: "Core Identity", Content: "I persist across restarts.",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(saved.Filename).To(Equal("core-identity.md"))

			_, found, err := server.handleAnchorSearch(ctx, nil, AnchorSearchInput{Query: "identity"})
			Expect(err).NotTo(HaveOccurred())
			Expect(found.Count).To(Equal(1))
			Expect(found.Results[0].Anchor.Title).To(Equal("Core Identity"))
		})

		It("reports a save failure as a tool error, not a protocol error", func() {
			result, _, err := server.handleAnchorSave(ctx, nil, AnchorSaveInput{Content: "untitled"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})

		It("lists and resyncs", func() {
			_, _, err := server.handleAnchorSave(ctx, nil, AnchorSaveInput{Title: "One", Content: "a"})
			Expect(err).NotTo(HaveOccurred())

			_, listed, err := server.handleAnchorList(ctx, nil, AnchorListInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(listed.Count).To(Equal(1))

			_, resynced, err := server.handleAnchorResync(ctx, nil, AnchorResyncInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(resynced.Reindexed).To(Equal(1))
		})
	})

	Describe("texture tools", func() {
		It("adds a triplet and searches it in the default namespace", func() {
			result, _, err := server.handleTextureAddTriplet(ctx, nil, TextureAddTripletInput{
				SourceEntity: "Ren", Predicate: "plays", TargetEntity: "bass guitar",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())

			_, found, err := server.handleTextureSearch(ctx, nil, TextureSearchInput{Query: "bass"})
			Expect(err).NotTo(HaveOccurred())
			Expect(found.Count).To(Equal(1))
			Expect(found.Facts[0].Namespace).To(Equal("test-presence"))
		})

		It("keeps namespace overrides isolated", func() {
			_, _, err := server.handleTextureAddTriplet(ctx, nil, TextureAddTripletInput{
				SourceEntity: "Ren", Predicate: "knows", TargetEntity: "Ryn",
				Namespace: "other-presence",
			})
			Expect(err).NotTo(HaveOccurred())

			_, found, err := server.handleTextureSearch(ctx, nil, TextureSearchInput{Query: "Ryn"})
			Expect(err).NotTo(HaveOccurred())
			Expect(found.Count).To(BeZero())
		})

		It("reports a missing fact as a tool error on delete", func() {
			result, _, err := server.handleTextureDelete(ctx, nil, TextureDeleteInput{UUID: "nope"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})

	Describe("crystal tools", func() {
		It("crystallizes the ledger and serves the chain back", func() {
			appendTurns(3)

			result, created, err := server.handleCrystallize(ctx, nil, CrystallizeInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(created.Crystal.Sequence).To(Equal(1))

			_, current, err := server.handleGetCrystals(ctx, nil, GetCrystalsInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(current.Count).To(Equal(1))
		})

		It("refuses deleting a non-latest crystal", func() {
			appendTurns(2)
			_, _, err := server.handleCrystallize(ctx, nil, CrystallizeInput{})
			Expect(err).NotTo(HaveOccurred())
			appendTurns(2)
			_, _, err = server.handleCrystallize(ctx, nil, CrystallizeInput{})
			Expect(err).NotTo(HaveOccurred())

			result, _, err := server.handleCrystalDelete(ctx, nil, CrystalDeleteInput{Sequence: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})

	Describe("summary tools", func() {
		It("summarizes without consuming, then stores explicitly", func() {
			appendTurns(4)

			_, out, err := server.handleSummarizeMessages(ctx, nil, SummarizeMessagesInput{Kind: "work"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Summary).NotTo(BeNil())
			Expect(out.Backlog).To(Equal(4))

			_, stored, err := server.handleStoreSummary(ctx, nil, StoreSummaryInput{
				StartTurnID: out.Summary.StartTurnID,
				EndTurnID:   out.Summary.EndTurnID,
				Kind:        out.Summary.Kind,
				Text:        out.Summary.Text,
				Channels:    out.Summary.Channels,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ID).NotTo(BeZero())

			_, stats, err := server.handleSummaryStats(ctx, nil, SummaryStatsInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Stats.Backlog).To(BeZero())
		})
	})

	Describe("ingestion tools", func() {
		It("reports stats and ingests a batch exactly once", func() {
			appendTurns(3)

			_, stats, err := server.handleIngestionStats(ctx, nil, IngestionStatsInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Stats.UningestedCount).To(Equal(3))

			_, ingested, err := server.handleIngestBatch(ctx, nil, IngestBatchInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(ingested.Batch.IngestedCount).To(Equal(3))

			_, again, err := server.handleIngestBatch(ctx, nil, IngestBatchInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(again.Batch.IngestedCount).To(BeZero())
		})
	})

	Describe("ambient_recall", func() {
		It("merges layers and tags sources", func() {
			_, _, err := server.handleAnchorSave(ctx, nil, AnchorSaveInput{
				Title: "Coffee Ritual", Content: "coffee before anything else",
			})
			Expect(err).NotTo(HaveOccurred())

			_, out, err := server.handleAmbientRecall(ctx, nil, AmbientRecallInput{Context: "coffee"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Layers).To(HaveLen(2))
			Expect(out.Text).NotTo(BeEmpty())
		})
	})

	Describe("pps_health", func() {
		It("reports healthy across all five components", func() {
			_, out, err := server.handleHealth(ctx, nil, HealthInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Components).To(HaveLen(5))
		})
	})
})
