package recall_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/presencelabs/substrate/pkg/recall"
	"github.com/presencelabs/substrate/pkg/substrate"
)

// stubLayer returns canned results or a canned error.
type stubLayer struct {
	name    string
	results []recall.Result
	err     error

	gotQuery string
	gotLimit int
}

func (s *stubLayer) Name() string { return s.name }

func (s *stubLayer) Search(_ context.Context, query string, limit int) ([]recall.Result, error) {
	s.gotQuery = query
	s.gotLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

var _ = Describe("Aggregator", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	results := func(source string, contents ...string) []recall.Result {
		var out []recall.Result
		for _, c := range contents {
			out = append(out, recall.Result{Source: source, Content: c})
		}
		return out
	}

	It("refuses to run with no layers", func() {
		_, err := recall.New(nil).Recall(ctx, "anything", 5)
		Expect(err).To(HaveOccurred())
	})

	It("fans the query out to every layer", func() {
		a := &stubLayer{name: "anchors", results: results("anchors", "anchor hit")}
		g := &stubLayer{name: "graph", results: results("graph", "graph hit")}

		out, err := recall.New(nil, a, g).Recall(ctx, "the query", 3)
		Expect(err).NotTo(HaveOccurred())

		Expect(a.gotQuery).To(Equal("the query"))
		Expect(g.gotQuery).To(Equal("the query"))
		Expect(a.gotLimit).To(Equal(3))
		Expect(out.Results).To(HaveLen(2))
	})

	It("tags every merged result with its source layer", func() {
		a := &stubLayer{name: "anchors", results: results("anchors", "one", "two")}
		s := &stubLayer{name: "summaries", results: results("summaries", "three")}

		out, err := recall.New(nil, a, s).Recall(ctx, "q", 5)
		Expect(err).NotTo(HaveOccurred())

		sources := map[string]int{}
		for _, r := range out.Results {
			sources[r.Source]++
		}
		Expect(sources).To(Equal(map[string]int{"anchors": 2, "summaries": 1}))
	})

	It("marks a failing layer degraded without failing the query", func() {
		healthy := &stubLayer{name: "anchors", results: results("anchors", "hit")}
		broken := &stubLayer{name: "graph", err: errors.New("connection refused")}

		out, err := recall.New(nil, healthy, broken).Recall(ctx, "q", 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Results).To(HaveLen(1))
		Expect(out.Results[0].Source).To(Equal("anchors"))

		Expect(out.Layers).To(HaveLen(2))
		byName := map[string]substrate.ComponentHealth{}
		for _, l := range out.Layers {
			byName[l.Component] = l
		}
		Expect(byName["anchors"].Status).To(Equal(substrate.StatusHealthy))
		Expect(byName["graph"].Status).To(Equal(substrate.StatusDegraded))
		Expect(byName["graph"].Detail).To(ContainSubstring("connection refused"))
	})

	It("keeps layer order stable in the merged output", func() {
		first := &stubLayer{name: "anchors", results: results("anchors", "a")}
		second := &stubLayer{name: "graph", results: results("graph", "b")}
		third := &stubLayer{name: "crystals", results: results("crystals", "c")}

		out, err := recall.New(nil, first, second, third).Recall(ctx, "q", 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Results[0].Source).To(Equal("anchors"))
		Expect(out.Results[1].Source).To(Equal("graph"))
		Expect(out.Results[2].Source).To(Equal("crystals"))
	})

	Describe("Format", func() {
		It("groups results by layer and lists degraded layers", func() {
			a := &stubLayer{name: "anchors", results: []recall.Result{
				{Source: "anchors", Title: "Harbor", Content: "boats at rest"},
			}}
			broken := &stubLayer{name: "graph", err: errors.New("down")}

			out, err := recall.New(nil, a, broken).Recall(ctx, "q", 5)
			Expect(err).NotTo(HaveOccurred())

			Expect(out.Text).To(ContainSubstring("## anchors"))
			Expect(out.Text).To(ContainSubstring("**Harbor**: boats at rest"))
			Expect(out.Text).To(ContainSubstring("degraded layers: graph"))
			Expect(out.Text).NotTo(ContainSubstring("## graph"))
		})
	})
})
