// Package anchors manages curated markdown memory artifacts ("word-photos")
// and their semantic index.
//
// Disk is the source of truth. The vector index is a derived projection:
// every disk file has exactly one index entry and vice versa, and any drift
// between them is repairable only by a full resync, never an incremental
// patch.
package anchors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/presencelabs/substrate/pkg/embeddings"
	"github.com/presencelabs/substrate/pkg/logger"
	"github.com/presencelabs/substrate/pkg/substrate"
	"github.com/presencelabs/substrate/pkg/vector"
)

// Anchor is one curated memory unit on disk.
type Anchor struct {
	Filename  string    `json:"filename"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Entry reports one anchor's disk/index parity for List.
type Entry struct {
	Filename string `json:"filename"`
	OnDisk   bool   `json:"on_disk"`
	InIndex  bool   `json:"in_index"`
}

// Result is one ranked search hit.
type Result struct {
	Anchor
	Score float32 `json:"score"`
}

// Index is the anchor store: markdown files plus a vector projection.
type Index struct {
	// mu excludes resync from concurrent save/delete.
	mu sync.Mutex

	dir      string
	embedder embeddings.Embedder
	driver   vector.Driver
	log      *slog.Logger

	// degraded notes the last backend failure for health reporting.
	degradedMu sync.Mutex
	degraded   string
}

// New opens (creating if needed) the anchor index rooted at dir.
func New(dir string, embedder embeddings.Embedder, driver vector.Driver, log *slog.Logger) (*Index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating anchor dir: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Index{dir: dir, embedder: embedder, driver: driver, log: log}, nil
}

// Dir returns the anchor directory.
func (ix *Index) Dir() string { return ix.dir }

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "anchor"
	}
	return slug
}

// Save writes the anchor to disk and indexes it, returning the filename.
// The file is written first: a failed embedding leaves a disk file with no
// index entry, which List surfaces as drift and Resync repairs.
func (ix *Index) Save(ctx context.Context, title, content string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", errors.New("anchor title is required")
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	filename := slugify(title) + ".md"
	path := filepath.Join(ix.dir, filename)
	if _, err := os.Stat(path); err == nil {
		filename = fmt.Sprintf("%s-%d.md", slugify(title), time.Now().Unix())
		path = filepath.Join(ix.dir, filename)
	}

	rendered := "# " + strings.TrimSpace(title) + "\n\n" + strings.TrimSpace(content) + "\n"
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("writing anchor: %w", err)
	}

	if err := ix.indexFile(ctx, filename, rendered); err != nil {
		ix.noteDegraded(err)
		ix.log.Warn("anchor saved to disk but not indexed; resync will repair",
			"filename", filename, "error", err)
		return filename, nil
	}

	ix.clearDegraded()
	return filename, nil
}

func (ix *Index) indexFile(ctx context.Context, filename, content string) error {
	embedding, err := ix.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("%w: embedding anchor: %v", substrate.ErrStorageUnavailable, err)
	}

	err = ix.driver.Add(ctx, []vector.Document{{ID: filename, Embedding: embedding}})
	if err != nil {
		return fmt.Errorf("%w: indexing anchor: %v", substrate.ErrStorageUnavailable, err)
	}
	return nil
}

// Search returns anchors ranked by cosine similarity. When the embedding or
// vector backend is unreachable it degrades to an empty result, never an
// error, and records the degradation for health.
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}

	embedding, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		ix.noteDegraded(err)
		ix.log.Warn("anchor search degraded: embedder unreachable", "error", err)
		return nil, nil
	}

	hits, err := ix.driver.Query(ctx, embedding, limit)
	if err != nil {
		ix.noteDegraded(err)
		ix.log.Warn("anchor search degraded: vector backend unreachable", "error", err)
		return nil, nil
	}
	ix.clearDegraded()

	var out []Result
	for _, hit := range hits {
		anchor, err := ix.read(hit.ID)
		if err != nil {
			// Index entry without a disk file: drift, skip the hit.
			ix.log.Warn("indexed anchor missing on disk", "filename", hit.ID)
			continue
		}
		out = append(out, Result{Anchor: anchor, Score: hit.Score})
	}
	return out, nil
}

func (ix *Index) read(filename string) (Anchor, error) {
	path := filepath.Join(ix.dir, filename)
	raw, err := os.ReadFile(path)
	if err != nil {
		return Anchor{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return Anchor{}, err
	}

	a := Anchor{Filename: filename, Content: string(raw), CreatedAt: info.ModTime().UTC()}
	for line := range strings.Lines(string(raw)) {
		if title, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			a.Title = title
			break
		}
	}
	return a, nil
}

// Get reads one anchor from disk.
func (ix *Index) Get(_ context.Context, filename string) (Anchor, error) {
	return ix.read(filename)
}

// Delete removes the anchor from disk and the index.
func (ix *Index) Delete(ctx context.Context, filename string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := os.Remove(filepath.Join(ix.dir, filename)); err != nil {
		return fmt.Errorf("removing anchor file: %w", err)
	}

	if err := ix.driver.Delete(ctx, []string{filename}); err != nil {
		ix.noteDegraded(err)
		return fmt.Errorf("%w: removing anchor %s from index: %v",
			substrate.ErrSyncDrift, filename, err)
	}
	return nil
}

// List reports every anchor's disk/index parity. An entry with OnDisk !=
// InIndex indicates drift, recoverable via Resync.
func (ix *Index) List(ctx context.Context) ([]Entry, error) {
	files, err := ix.diskFiles()
	if err != nil {
		return nil, err
	}

	indexed, err := ix.driver.List(ctx)
	if err != nil {
		ix.noteDegraded(err)
		return nil, fmt.Errorf("%w: listing index: %v", substrate.ErrStorageUnavailable, err)
	}

	inIndex := make(map[string]bool, len(indexed))
	for _, id := range indexed {
		inIndex[id] = true
	}

	var out []Entry
	for _, f := range files {
		out = append(out, Entry{Filename: f, OnDisk: true, InIndex: inIndex[f]})
		delete(inIndex, f)
	}
	for id := range inIndex {
		out = append(out, Entry{Filename: id, OnDisk: false, InIndex: true})
	}
	return out, nil
}

func (ix *Index) diskFiles() ([]string, error) {
	entries, err := os.ReadDir(ix.dir)
	if err != nil {
		return nil, fmt.Errorf("reading anchor dir: %w", err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		out = append(out, e.Name())
	}
	return out, nil
}

// Resync wipes the index and rebuilds it from disk. Idempotent, and the only
// repair for drift. Concurrent save/delete are excluded for its duration.
func (ix *Index) Resync(ctx context.Context) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	files, err := ix.diskFiles()
	if err != nil {
		return 0, err
	}

	if err := ix.driver.Reset(ctx); err != nil {
		ix.noteDegraded(err)
		return 0, fmt.Errorf("%w: wiping index: %v", substrate.ErrStorageUnavailable, err)
	}

	indexed := 0
	for _, f := range files {
		raw, err := os.ReadFile(filepath.Join(ix.dir, f))
		if err != nil {
			return indexed, fmt.Errorf("reading anchor %s: %w", f, err)
		}
		if err := ix.indexFile(ctx, f, string(raw)); err != nil {
			return indexed, err
		}
		indexed++
	}

	ix.clearDegraded()
	ix.log.Info("anchor index rebuilt", "count", indexed)
	return indexed, nil
}

// Health reports the index's own status: degraded when a backend was
// recently unreachable or when disk/index parity is broken.
func (ix *Index) Health(ctx context.Context) substrate.ComponentHealth {
	h := substrate.ComponentHealth{Component: "anchors", Status: substrate.StatusHealthy}

	files, err := ix.diskFiles()
	if err != nil {
		h.Status = substrate.StatusCritical
		h.Detail = err.Error()
		return h
	}
	h.Counts = map[string]int{"on_disk": len(files)}

	indexed, err := ix.driver.Count(ctx)
	if err != nil {
		h.Status = substrate.StatusDegraded
		h.Detail = "vector backend unreachable"
		return h
	}
	h.Counts["in_index"] = indexed

	if indexed != len(files) {
		h.Status = substrate.StatusDegraded
		h.Detail = substrate.ErrSyncDrift.Error()
		return h
	}

	ix.degradedMu.Lock()
	defer ix.degradedMu.Unlock()
	if ix.degraded != "" {
		h.Status = substrate.StatusDegraded
		h.Detail = ix.degraded
	}
	return h
}

func (ix *Index) noteDegraded(err error) {
	ix.degradedMu.Lock()
	ix.degraded = err.Error()
	ix.degradedMu.Unlock()
}

func (ix *Index) clearDegraded() {
	ix.degradedMu.Lock()
	ix.degraded = ""
	ix.degradedMu.Unlock()
}

// Ensure Index reports health.
var _ substrate.Checker = (*Index)(nil)
