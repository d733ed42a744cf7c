package crystal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/presencelabs/substrate/pkg/substrate"
)

var _ = Describe("Crystal", func() {
	sample := func(seq int) Crystal {
		c := Crystal{
			Sequence:    seq,
			Start:       time.Date(2026, 3, seq, 0, 0, 0, 0, time.UTC),
			End:         time.Date(2026, 3, seq, 12, 0, 0, 0, time.UTC),
			StartTurnID: int64(seq * 100),
			EndTurnID:   int64(seq*100 + 49),
			Content:     "## Field state\ncalm\n\n## Key events\nshipped\n\n## Decisions\nyes\n\n## Internal arc\nsteady\n\n## Continuity seeds\nfollow up",
			CreatedAt:   time.Date(2026, 3, seq, 13, 0, 0, 0, time.UTC),
		}
		c.Normalize()
		return c
	}

	Describe("Render and Parse", func() {
		It("round-trips", func() {
			c := sample(7)

			parsed, err := Parse(c.Render())
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed.Sequence).To(Equal(7))
			Expect(parsed.Start).To(Equal(c.Start))
			Expect(parsed.End).To(Equal(c.End))
			Expect(parsed.StartTurnID).To(Equal(c.StartTurnID))
			Expect(parsed.EndTurnID).To(Equal(c.EndTurnID))
			Expect(parsed.TokenEstimate).To(Equal(c.TokenEstimate))
			Expect(parsed.CreatedAt).To(Equal(c.CreatedAt))
			Expect(parsed.Content).To(Equal(c.Content))
		})

		It("rejects text with no sections", func() {
			_, err := Parse("# Crystal 1\n\njust prose\n")
			Expect(err).To(MatchError(ContainSubstring("no content sections")))
		})
	})

	Describe("Normalize", func() {
		It("appends any missing section headers", func() {
			c := Crystal{Content: "## Field state\ncalm"}
			c.Normalize()
			for _, header := range SectionHeaders {
				Expect(c.Content).To(ContainSubstring(header))
			}
			Expect(c.TokenEstimate).To(BeNumerically(">", 0))
		})
	})

	Describe("Chain", func() {
		var chain *Chain

		BeforeEach(func() {
			var err error
			chain, err = NewChain(GinkgoT().TempDir(), 4)
			Expect(err).NotTo(HaveOccurred())
		})

		currentCount := func() int {
			GinkgoHelper()
			current, err := chain.Current(0)
			Expect(err).NotTo(HaveOccurred())
			return len(current)
		}

		archivedCount := func() int {
			GinkgoHelper()
			all, err := chain.List()
			Expect(err).NotTo(HaveOccurred())
			n := 0
			for _, c := range all {
				if c.Archived {
					n++
				}
			}
			return n
		}

		It("keeps the current window at min(W, total)", func() {
			for n := 1; n <= 7; n++ {
				Expect(chain.Append(sample(n))).To(Succeed())

				want := n
				if want > 4 {
					want = 4
				}
				Expect(currentCount()).To(Equal(want), fmt.Sprintf("after %d crystals", n))
				Expect(archivedCount()).To(Equal(n - want))
			}
		})

		It("archives the oldest crystal on overflow", func() {
			for n := 1; n <= 5; n++ {
				Expect(chain.Append(sample(n))).To(Succeed())
			}

			all, err := chain.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(all[0].Sequence).To(Equal(1))
			Expect(all[0].Archived).To(BeTrue())
			for _, c := range all[1:] {
				Expect(c.Archived).To(BeFalse())
			}
		})

		It("lists the whole chain oldest first", func() {
			for n := 1; n <= 6; n++ {
				Expect(chain.Append(sample(n))).To(Succeed())
			}

			all, err := chain.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(6))
			for i, c := range all {
				Expect(c.Sequence).To(Equal(i + 1))
			}
		})

		It("limits Current to the newest n", func() {
			for n := 1; n <= 4; n++ {
				Expect(chain.Append(sample(n))).To(Succeed())
			}

			current, err := chain.Current(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(current).To(HaveLen(2))
			Expect(current[0].Sequence).To(Equal(3))
			Expect(current[1].Sequence).To(Equal(4))
		})

		Describe("DeleteLatest", func() {
			It("deletes the newest crystal and shrinks the window", func() {
				for n := 1; n <= 3; n++ {
					Expect(chain.Append(sample(n))).To(Succeed())
				}

				Expect(chain.DeleteLatest(3)).To(Succeed())
				Expect(currentCount()).To(Equal(2))
			})

			It("rejects deleting a mid-chain crystal", func() {
				for n := 1; n <= 3; n++ {
					Expect(chain.Append(sample(n))).To(Succeed())
				}

				err := chain.DeleteLatest(2)
				Expect(errors.Is(err, substrate.ErrChainIntegrity)).To(BeTrue())
				Expect(currentCount()).To(Equal(3))
			})

			It("rejects deleting from an empty chain", func() {
				err := chain.DeleteLatest(1)
				Expect(errors.Is(err, substrate.ErrChainIntegrity)).To(BeTrue())
			})
		})

		It("survives reopening from disk", func() {
			dir := GinkgoT().TempDir()
			first, err := NewChain(dir, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Append(sample(1))).To(Succeed())
			Expect(first.Append(sample(2))).To(Succeed())

			reopened, err := NewChain(dir, 4)
			Expect(err).NotTo(HaveOccurred())
			all, err := reopened.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))

			seq, err := reopened.NextSequence()
			Expect(err).NotTo(HaveOccurred())
			Expect(seq).To(Equal(3))
		})

		It("ignores stray non-crystal files", func() {
			dir := GinkgoT().TempDir()
			ch, err := NewChain(dir, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(os.WriteFile(filepath.Join(dir, "current", "notes.txt"), []byte("hi"), 0o644)).To(Succeed())
			Expect(ch.Append(sample(1))).To(Succeed())

			all, err := ch.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})
	})
})
