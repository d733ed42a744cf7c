// Package vector provides interfaces and implementations for vector storage
// backing the anchor index's semantic search.
package vector

import "context"

// Document represents a stored item with its embedding.
type Document struct {
	// ID is a unique identifier for the document (the anchor filename).
	ID string

	// Embedding is the vector representation of the document content.
	Embedding []float32
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score represents the similarity score (higher = more similar).
	Score float32
}

// Driver handles storage and retrieval of vector embeddings. The index is a
// derived projection: it must support being wiped and rebuilt from the
// disk source of truth at any time.
type Driver interface {
	// Add stores documents with their embeddings. An existing document
	// with the same ID is updated.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the given embedding.
	Query(ctx context.Context, embedding []float32, topK int) ([]QueryResult, error)

	// List returns the IDs of all indexed documents.
	List(ctx context.Context) ([]string, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Reset removes every document. Used by resync before a rebuild.
	Reset(ctx context.Context) error

	// Count returns the number of indexed documents.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the driver.
	Close() error
}
