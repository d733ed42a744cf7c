package graph_test

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/presencelabs/substrate/pkg/graph"
)

var _ = Describe("ComposeExtractionContext", func() {
	var now time.Time

	BeforeEach(func() {
		now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	})

	It("returns the base context alone when nothing else is set", func() {
		out := graph.ComposeExtractionContext(graph.ComposeInput{})
		Expect(out).To(Equal(graph.DefaultBaseContext))
	})

	It("is deterministic for identical input", func() {
		in := graph.ComposeInput{
			Channel:       "terminal",
			SceneHints:    []string{"pair programming", "late evening"},
			ReferenceTime: now.Add(-2 * time.Hour),
			Now:           now,
		}
		Expect(graph.ComposeExtractionContext(in)).To(Equal(graph.ComposeExtractionContext(in)))
	})

	It("layers parts in a fixed order", func() {
		out := graph.ComposeExtractionContext(graph.ComposeInput{
			BaseContext:   "base guidance",
			Channel:       "chat",
			SceneHints:    []string{"first hint", "second hint"},
			ReferenceTime: now.Add(-30 * time.Minute),
			Now:           now,
		})

		parts := strings.Split(out, "\n\n")
		Expect(parts).To(HaveLen(5))
		Expect(parts[0]).To(Equal("base guidance"))
		Expect(parts[1]).To(Equal(graph.DefaultChannelOverlays["chat"]))
		Expect(parts[2]).To(Equal("Scene: first hint"))
		Expect(parts[3]).To(Equal("Scene: second hint"))
		Expect(parts[4]).To(ContainSubstring("last hour"))
	})

	It("skips the overlay for an unknown channel", func() {
		out := graph.ComposeExtractionContext(graph.ComposeInput{Channel: "radio"})
		Expect(out).To(Equal(graph.DefaultBaseContext))
	})

	It("honors custom overlays over the defaults", func() {
		out := graph.ComposeExtractionContext(graph.ComposeInput{
			Channel:  "chat",
			Overlays: map[string]string{"chat": "custom emphasis"},
		})
		Expect(out).To(ContainSubstring("custom emphasis"))
		Expect(out).NotTo(ContainSubstring(graph.DefaultChannelOverlays["chat"]))
	})

	It("drops empty scene hints", func() {
		out := graph.ComposeExtractionContext(graph.ComposeInput{
			SceneHints: []string{"", "real hint", ""},
		})
		Expect(strings.Count(out, "Scene: ")).To(Equal(1))
	})

	DescribeTable("recency notes by age",
		func(age time.Duration, fragment string) {
			out := graph.ComposeExtractionContext(graph.ComposeInput{
				ReferenceTime: now.Add(-age),
				Now:           now,
			})
			Expect(out).To(ContainSubstring(fragment))
		},
		Entry("minutes ago", 5*time.Minute, "last hour"),
		Entry("hours ago", 6*time.Hour, "last day"),
		Entry("days ago", 72*time.Hour, "3 days old"),
	)

	It("omits the recency note when reference time is unset", func() {
		out := graph.ComposeExtractionContext(graph.ComposeInput{Now: now})
		Expect(out).NotTo(ContainSubstring("material"))
	})
})
