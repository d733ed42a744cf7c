package testutils

import (
	"context"
	"errors"
	"fmt"
)

// MockEmbedder is a test embedder that returns predictable embeddings.
type MockEmbedder struct {
	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches.
	FailOn string

	// FailAll causes every Embed call to fail, standing in for an
	// unreachable embedding backend.
	FailAll bool
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.FailAll {
		return nil, errors.New("mock embedder unreachable")
	}
	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	// Deterministic default derived from the text so distinct inputs get
	// distinct vectors.
	var sum float32
	for _, r := range text {
		sum += float32(r)
	}
	return []float32{sum / 1000, float32(len(text)) / 100, 0.5}, nil
}

func (m *MockEmbedder) Close() error {
	return nil
}
