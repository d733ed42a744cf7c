package testutils

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/presencelabs/substrate/pkg/vector"
)

// MockVectorDriver is an in-process vector driver with real cosine ranking,
// so index tests exercise actual similarity ordering.
type MockVectorDriver struct {
	Documents map[string][]float32

	// FailAll causes every call to fail, standing in for an unreachable
	// vector backend.
	FailAll bool
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		Documents: make(map[string][]float32),
	}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	if m.FailAll {
		return errors.New("mock vector backend unreachable")
	}
	for _, d := range docs {
		m.Documents[d.ID] = d.Embedding
	}
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if m.FailAll {
		return nil, errors.New("mock vector backend unreachable")
	}

	var out []vector.QueryResult
	for id, emb := range m.Documents {
		out = append(out, vector.QueryResult{
			Document: vector.Document{ID: id, Embedding: emb},
			Score:    cosine(embedding, emb),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (m *MockVectorDriver) List(_ context.Context) ([]string, error) {
	if m.FailAll {
		return nil, errors.New("mock vector backend unreachable")
	}
	var ids []string
	for id := range m.Documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, ids []string) error {
	if m.FailAll {
		return errors.New("mock vector backend unreachable")
	}
	for _, id := range ids {
		delete(m.Documents, id)
	}
	return nil
}

func (m *MockVectorDriver) Reset(context.Context) error {
	if m.FailAll {
		return errors.New("mock vector backend unreachable")
	}
	m.Documents = make(map[string][]float32)
	return nil
}

func (m *MockVectorDriver) Count(context.Context) (int, error) {
	if m.FailAll {
		return 0, errors.New("mock vector backend unreachable")
	}
	return len(m.Documents), nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

var _ vector.Driver = (*MockVectorDriver)(nil)
