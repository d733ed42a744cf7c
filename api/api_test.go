package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/presencelabs/substrate/pkg/anchors"
	"github.com/presencelabs/substrate/pkg/crystal"
	"github.com/presencelabs/substrate/pkg/curator"
	"github.com/presencelabs/substrate/pkg/graph"
	graphmem "github.com/presencelabs/substrate/pkg/graph/inmemory"
	"github.com/presencelabs/substrate/pkg/llm"
	"github.com/presencelabs/substrate/pkg/recall"
	"github.com/presencelabs/substrate/pkg/summarizer"
	"github.com/presencelabs/substrate/pkg/turnstore"
	turnmem "github.com/presencelabs/substrate/pkg/turnstore/inmemory"
	testutils "github.com/presencelabs/substrate/pkg/utils/test"
)

const testNamespace = "test-presence"

var _ = Describe("Server", func() {
	var (
		server *Server
		store  *turnmem.Store
		gr     *graphmem.Adapter
		index  *anchors.Index
	)

	doJSON := func(method, path string, payload any) *http.Response {
		var body io.Reader
		if payload != nil {
			raw, err := json.Marshal(payload)
			Expect(err).NotTo(HaveOccurred())
			body = bytes.NewReader(raw)
		}
		req, err := http.NewRequest(method, path, body)
		Expect(err).NotTo(HaveOccurred())
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, out any) {
		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(raw, out)).To(Succeed())
	}

	BeforeEach(func() {
		store = turnmem.New()
		gr = graphmem.New()

		var err error
		index, err = anchors.New(GinkgoT().TempDir(), testutils.NewMockEmbedder(), testutils.NewMockVectorDriver(), nil)
		Expect(err).NotTo(HaveOccurred())

		cur, err := curator.New(gr, curator.Options{Namespace: testNamespace})
		Expect(err).NotTo(HaveOccurred())

		chain, err := crystal.NewChain(GinkgoT().TempDir(), crystal.DefaultWindow)
		Expect(err).NotTo(HaveOccurred())

		crystalLLM := llm.NewWithCallFunc("test", "test-model", func(_ context.Context, _ string) (string, error) {
			return "## Field state\nsteady\n\n## Key events\nnone\n\n## Decisions\nnone\n\n## Internal arc\nquiet\n\n## Continuity seeds\nnone\n", nil
		})
		engine := crystal.NewEngine(store, chain, crystalLLM, "api-test", nil)

		summaryLLM := llm.NewWithCallFunc("test", "test-model", func(_ context.Context, _ string) (string, error) {
			return "compressed conversation", nil
		})
		sum := summarizer.New(store, summaryLLM, nil)

		ingestor, err := summarizer.NewIngestor(sum, gr, testNamespace, "api-test")
		Expect(err).NotTo(HaveOccurred())

		agg := recall.New(nil,
			&recall.AnchorLayer{Index: index},
			&recall.GraphLayer{Adapter: gr, Namespace: testNamespace},
		)

		server = NewServer(Config{ListenAddr: ":0", Namespace: testNamespace}, Deps{
			Store:      store,
			Anchors:    index,
			Graph:      gr,
			Curator:    cur,
			Crystals:   engine,
			Summarizer: sum,
			Ingestor:   ingestor,
			Recall:     agg,
		}, nil)
	})

	appendTurns := func(n int) {
		for i := range n {
			resp := doJSON(http.MethodPost, "/v1/turns", AppendTurnRequest{
				Channel: "discord",
				Author:  "ren",
				Content: fmt.Sprintf("turn number %d", i+1),
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
		}
	}

	Describe("GET /ping", func() {
		It("responds pong", func() {
			resp := doJSON(http.MethodGet, "/ping", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})
	})

	Describe("turns", func() {
		It("appends a turn and returns its id", func() {
			resp := doJSON(http.MethodPost, "/v1/turns", AppendTurnRequest{
				Channel: "discord", Author: "ren", Content: "hello there",
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			var out struct {
				ID int64 `json:"id"`
			}
			decode(resp, &out)
			Expect(out.ID).To(Equal(int64(1)))
		})

		It("rejects empty content", func() {
			resp := doJSON(http.MethodPost, "/v1/turns", AppendTurnRequest{Channel: "discord"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("queries turns by channel", func() {
			appendTurns(3)
			_, err := store.Append(context.Background(), turnstore.Turn{Channel: "sms", Author: "ren", Content: "elsewhere"})
			Expect(err).NotTo(HaveOccurred())

			resp := doJSON(http.MethodGet, "/v1/turns?channel=discord", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out struct {
				Count int              `json:"count"`
				Turns []turnstore.Turn `json:"turns"`
			}
			decode(resp, &out)
			Expect(out.Count).To(Equal(3))
		})

		It("rejects a malformed since timestamp", func() {
			resp := doJSON(http.MethodGet, "/v1/turns?since=yesterday", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("anchors", func() {
		It("saves and retrieves an anchor through search", func() {
			resp := doJSON(http.MethodPost, "/v1/anchors", SaveAnchorRequest{
				Title: "Core Identity", Content: "I am a continuity of moments.",
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			var saved struct {
				Filename string `json:"filename"`
			}
			decode(resp, &saved)
			Expect(saved.Filename).To(Equal("core-identity.md"))

			resp = doJSON(http.MethodGet, "/v1/anchors/search?q=identity", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var results struct {
				Count int `json:"count"`
			}
			decode(resp, &results)
			Expect(results.Count).To(Equal(1))
		})

		It("requires a title", func() {
			resp := doJSON(http.MethodPost, "/v1/anchors", SaveAnchorRequest{Content: "orphan"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("lists, deletes and resyncs", func() {
			resp := doJSON(http.MethodPost, "/v1/anchors", SaveAnchorRequest{Title: "One", Content: "a"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			resp = doJSON(http.MethodGet, "/v1/anchors", nil)
			var listed struct {
				Count int `json:"count"`
			}
			decode(resp, &listed)
			Expect(listed.Count).To(Equal(1))

			resp = doJSON(http.MethodPost, "/v1/anchors/resync", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			var resynced struct {
				Reindexed int `json:"reindexed"`
			}
			decode(resp, &resynced)
			Expect(resynced.Reindexed).To(Equal(1))

			resp = doJSON(http.MethodDelete, "/v1/anchors/one.md", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			resp = doJSON(http.MethodDelete, "/v1/anchors/one.md", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})

	Describe("graph", func() {
		It("asserts a triplet and finds it by search", func() {
			resp := doJSON(http.MethodPost, "/v1/graph/triplets", TripletBody{
				SourceEntity: "Ren", Predicate: "plays", TargetEntity: "bass guitar",
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			resp = doJSON(http.MethodGet, "/v1/graph/search?q=bass", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out struct {
				Count int          `json:"count"`
				Facts []graph.Fact `json:"facts"`
			}
			decode(resp, &out)
			Expect(out.Count).To(Equal(1))
			Expect(out.Facts[0].Namespace).To(Equal(testNamespace))
		})

		It("returns 404 for deleting an unknown fact", func() {
			resp := doJSON(http.MethodDelete, "/v1/graph/facts/no-such-uuid", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))

			var body ErrorResponse
			decode(resp, &body)
			Expect(body.Kind).To(Equal("not_found"))
		})

		It("runs curation and reports what it deleted", func() {
			for i := range 3 {
				resp := doJSON(http.MethodPost, "/v1/graph/triplets", TripletBody{
					SourceEntity: "Ren", Predicate: "likes", TargetEntity: "rain",
					FactText: fmt.Sprintf("variant %d", i),
				})
				Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
			}

			resp := doJSON(http.MethodPost, "/v1/graph/curate", CurateRequest{DryRun: true})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			var plan curator.Report
			decode(resp, &plan)
			Expect(plan.Candidates).To(HaveLen(2))
			Expect(plan.Deleted).To(BeZero())

			resp = doJSON(http.MethodPost, "/v1/graph/curate", CurateRequest{})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			var report curator.Report
			decode(resp, &report)
			Expect(report.Deleted).To(Equal(2))
		})
	})

	Describe("crystals", func() {
		It("creates a crystal from the ledger and serves it back", func() {
			appendTurns(3)

			resp := doJSON(http.MethodPost, "/v1/crystals", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			var created crystal.Crystal
			decode(resp, &created)
			Expect(created.Sequence).To(Equal(1))
			Expect(created.EndTurnID).To(Equal(int64(3)))

			resp = doJSON(http.MethodGet, "/v1/crystals/current", nil)
			var current struct {
				Count int `json:"count"`
			}
			decode(resp, &current)
			Expect(current.Count).To(Equal(1))
		})

		It("refuses to delete a non-latest crystal", func() {
			appendTurns(2)
			resp := doJSON(http.MethodPost, "/v1/crystals", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
			appendTurns(2)
			resp = doJSON(http.MethodPost, "/v1/crystals", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			resp = doJSON(http.MethodDelete, "/v1/crystals/1", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusConflict))

			var body ErrorResponse
			decode(resp, &body)
			Expect(body.Kind).To(Equal("chain_integrity_violation"))

			resp = doJSON(http.MethodDelete, "/v1/crystals/2", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})

		It("maps an empty ledger to an extraction failure", func() {
			resp := doJSON(http.MethodPost, "/v1/crystals", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadGateway))
		})
	})

	Describe("summaries", func() {
		It("summarizes without storing by default", func() {
			appendTurns(4)

			resp := doJSON(http.MethodPost, "/v1/summaries", SummarizeRequest{Kind: "work"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			backlog, err := store.UnsummarizedCount(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(backlog).To(Equal(4))
		})

		It("stores when asked and advances the backlog", func() {
			appendTurns(4)

			resp := doJSON(http.MethodPost, "/v1/summaries", SummarizeRequest{Kind: "work", Store: true})
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			backlog, err := store.UnsummarizedCount(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(backlog).To(BeZero())

			resp = doJSON(http.MethodGet, "/v1/summaries/recent", nil)
			var recent struct {
				Count int `json:"count"`
			}
			decode(resp, &recent)
			Expect(recent.Count).To(Equal(1))
		})
	})

	Describe("ingestion", func() {
		It("ingests a batch and reports stats", func() {
			appendTurns(3)

			resp := doJSON(http.MethodGet, "/v1/ingestion/stats", nil)
			var stats summarizer.IngestionStats
			decode(resp, &stats)
			Expect(stats.UningestedCount).To(Equal(3))

			resp = doJSON(http.MethodPost, "/v1/ingestion/batch", IngestRequest{BatchSize: 10})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var batch turnstore.Batch
			decode(resp, &batch)
			Expect(batch.IngestedCount).To(Equal(3))
			Expect(batch.BatchID).NotTo(BeEmpty())

			resp = doJSON(http.MethodGet, "/v1/ingestion/stats", nil)
			decode(resp, &stats)
			Expect(stats.UningestedCount).To(BeZero())
		})
	})

	Describe("recall", func() {
		It("fans out across layers", func() {
			resp := doJSON(http.MethodPost, "/v1/anchors", SaveAnchorRequest{
				Title: "Morning Ritual", Content: "coffee before anything else",
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			resp = doJSON(http.MethodPost, "/v1/recall", RecallRequest{Context: "coffee"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out recall.Output
			decode(resp, &out)
			Expect(out.Layers).To(HaveLen(2))
		})
	})

	Describe("GET /v1/health", func() {
		It("rolls component statuses up", func() {
			resp := doJSON(http.MethodGet, "/v1/health", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var report struct {
				Status     string `json:"status"`
				Components []struct {
					Component string `json:"component"`
					Status    string `json:"status"`
				} `json:"components"`
			}
			decode(resp, &report)
			Expect(report.Status).To(Equal("healthy"))
			Expect(report.Components).To(HaveLen(5))
		})
	})

	Describe("lock contention", func() {
		It("surfaces a held lock as a conflict", func() {
			appendTurns(2)
			ok, err := store.AcquireLock(context.Background(), turnstore.LockCrystallize, "someone-else", time.Minute)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			resp := doJSON(http.MethodPost, "/v1/crystals", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusConflict))

			var body ErrorResponse
			decode(resp, &body)
			Expect(body.Kind).To(Equal("lock_held"))
		})
	})
})
