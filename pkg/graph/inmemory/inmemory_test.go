package inmemory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/presencelabs/substrate/pkg/graph"
	"github.com/presencelabs/substrate/pkg/graph/inmemory"
)

var _ = Describe("Inmemory Adapter", func() {
	var (
		adapter *inmemory.Adapter
		ctx     context.Context
	)

	BeforeEach(func() {
		adapter = inmemory.New()
		ctx = context.Background()
	})

	triplet := func(namespace, source, predicate, target string) {
		GinkgoHelper()
		err := adapter.AddTriplet(ctx, graph.Triplet{
			SourceEntity: source,
			Predicate:    predicate,
			TargetEntity: target,
			FactText:     source + " " + predicate + " " + target,
			Namespace:    namespace,
		})
		Expect(err).NotTo(HaveOccurred())
	}

	Describe("namespace isolation", func() {
		BeforeEach(func() {
			triplet("alpha", "Ada", "wrote", "notes")
			triplet("beta", "Ada", "wrote", "poems")
		})

		It("never returns facts from another namespace", func() {
			facts, err := adapter.Search(ctx, "Ada", "alpha", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(1))
			Expect(facts[0].Namespace).To(Equal("alpha"))
			Expect(facts[0].TargetEntity).To(Equal("notes"))
		})

		It("rejects an empty namespace on every operation", func() {
			_, err := adapter.Search(ctx, "Ada", "", 10)
			Expect(err).To(MatchError(graph.ErrNamespaceRequired))

			_, err = adapter.Explore(ctx, "Ada", 1, "")
			Expect(err).To(MatchError(graph.ErrNamespaceRequired))

			_, err = adapter.Timeline(ctx, time.Time{}, time.Time{}, "")
			Expect(err).To(MatchError(graph.ErrNamespaceRequired))

			err = adapter.AddTriplet(ctx, graph.Triplet{SourceEntity: "a", Predicate: "b", TargetEntity: "c"})
			Expect(err).To(MatchError(graph.ErrNamespaceRequired))

			_, err = adapter.AddEpisode(ctx, graph.EpisodeRequest{Text: "hello"})
			Expect(err).To(MatchError(graph.ErrNamespaceRequired))
		})

		It("scopes Explore to the namespace", func() {
			sub, err := adapter.Explore(ctx, "Ada", 2, "beta")
			Expect(err).NotTo(HaveOccurred())
			Expect(sub.Facts).To(HaveLen(1))
			Expect(sub.Facts[0].TargetEntity).To(Equal("poems"))
		})
	})

	Describe("Search", func() {
		BeforeEach(func() {
			triplet("alpha", "Ada", "built", "compiler")
			triplet("alpha", "Grace", "debugged", "compiler")
			triplet("alpha", "Ada", "visited", "London")
		})

		It("matches by substring across all fact fields", func() {
			facts, err := adapter.Search(ctx, "compiler", "alpha", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(2))
		})

		It("returns newest facts first", func() {
			facts, err := adapter.Search(ctx, "Ada", "alpha", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts[0].TargetEntity).To(Equal("London"))
			Expect(facts[1].TargetEntity).To(Equal("compiler"))
		})

		It("honors the limit", func() {
			facts, err := adapter.Search(ctx, "", "alpha", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(2))
		})
	})

	Describe("Explore", func() {
		BeforeEach(func() {
			triplet("alpha", "Ada", "knows", "Grace")
			triplet("alpha", "Grace", "works-at", "Navy")
			triplet("alpha", "Navy", "located-in", "Washington")
		})

		It("walks one hop at depth 1", func() {
			sub, err := adapter.Explore(ctx, "Ada", 1, "alpha")
			Expect(err).NotTo(HaveOccurred())
			Expect(sub.Root).To(Equal("Ada"))
			Expect(sub.Facts).To(HaveLen(1))
			Expect(sub.Facts[0].TargetEntity).To(Equal("Grace"))
		})

		It("reaches further entities at depth 2", func() {
			sub, err := adapter.Explore(ctx, "Ada", 2, "alpha")
			Expect(err).NotTo(HaveOccurred())
			Expect(sub.Facts).To(HaveLen(2))

			var names []string
			for _, e := range sub.Entities {
				names = append(names, e.Name)
			}
			Expect(names).To(ContainElements("Ada", "Grace", "Navy"))
		})

		It("returns an empty subgraph for an unknown entity", func() {
			sub, err := adapter.Explore(ctx, "Nobody", 2, "alpha")
			Expect(err).NotTo(HaveOccurred())
			Expect(sub.Facts).To(BeEmpty())
		})
	})

	Describe("Timeline", func() {
		var base time.Time

		BeforeEach(func() {
			base = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
			for i := range 3 {
				_, err := adapter.AddEpisode(ctx, graph.EpisodeRequest{
					Text:          "day " + string(rune('A'+i)),
					ReferenceTime: base.AddDate(0, 0, i),
					Namespace:     "alpha",
				})
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("windows episodes by reference time", func() {
			episodes, err := adapter.Timeline(ctx, base.AddDate(0, 0, 1), base.AddDate(0, 0, 1), "alpha")
			Expect(err).NotTo(HaveOccurred())
			Expect(episodes).To(HaveLen(1))
			Expect(episodes[0].Body).To(Equal("day B"))
		})

		It("returns everything for a zero window", func() {
			episodes, err := adapter.Timeline(ctx, time.Time{}, time.Time{}, "alpha")
			Expect(err).NotTo(HaveOccurred())
			Expect(episodes).To(HaveLen(3))
		})
	})

	Describe("Delete", func() {
		It("removes a fact by uuid", func() {
			triplet("alpha", "Ada", "wrote", "notes")

			facts, err := adapter.Search(ctx, "", "alpha", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(1))

			Expect(adapter.Delete(ctx, facts[0].UUID)).To(Succeed())

			facts, err = adapter.Search(ctx, "", "alpha", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(BeEmpty())
		})

		It("errors for an unknown uuid", func() {
			err := adapter.Delete(ctx, "no-such-fact")
			Expect(err).To(MatchError(graph.ErrFactNotFound))
		})
	})
})
