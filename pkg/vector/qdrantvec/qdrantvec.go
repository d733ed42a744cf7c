// Package qdrantvec provides a Qdrant-backed vector driver for deployments
// where the anchor index lives on a shared remote vector store.
package qdrantvec

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/presencelabs/substrate/pkg/vector"
)

const payloadDocID = "doc_id"

// Driver implements vector.Driver against a Qdrant collection.
type Driver struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Host is the Qdrant gRPC host (e.g., "localhost").
	Host string

	// Port is the Qdrant gRPC port (defaults to 6334).
	Port int

	// Collection is the collection name holding anchor embeddings.
	Collection string

	// Dimensions is the embedding vector size.
	Dimensions uint64
}

// New connects to Qdrant and ensures the collection exists.
func New(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.Collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}

	port := c.Port
	if port == 0 {
		port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: c.Host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", vector.ErrConnection, err)
	}

	exists, err := client.CollectionExists(ctx, c.Collection)
	if err != nil {
		return nil, fmt.Errorf("%w: checking collection: %v", vector.ErrConnection, err)
	}

	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: c.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     c.Dimensions,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: creating collection: %v", vector.ErrConnection, err)
		}
	}

	logger.Info("qdrant vector driver initialized",
		"host", c.Host,
		"collection", c.Collection,
		"dimensions", c.Dimensions,
	)

	return &Driver{client: client, collection: c.Collection, logger: logger}, nil
}

// pointID derives a stable Qdrant point id from a document id. Qdrant point
// ids must be integers or UUIDs, so the string id is mapped through UUIDv5
// and the original kept in the payload.
func pointID(docID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(docID)).String())
}

// Add stores documents with their embeddings.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		points = append(points, &qdrant.PointStruct{
			Id:      pointID(doc.ID),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{payloadDocID: doc.ID}),
		})
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("%w: upserting points: %v", vector.ErrConnection, err)
	}
	return nil
}

// Query finds the topK most similar documents to the given embedding.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 5
	}

	limit := uint64(topK)
	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: querying points: %v", vector.ErrConnection, err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, p := range points {
		docID := p.GetPayload()[payloadDocID].GetStringValue()
		if docID == "" {
			continue
		}
		results = append(results, vector.QueryResult{
			Document: vector.Document{ID: docID},
			Score:    p.GetScore(),
		})
	}
	return results, nil
}

// List returns the IDs of all indexed documents by scrolling the collection.
func (d *Driver) List(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		offset *qdrant.PointId
	)

	for {
		limit := uint32(256)
		points, err := d.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: d.collection,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: scrolling points: %v", vector.ErrConnection, err)
		}
		if len(points) == 0 {
			break
		}

		for _, p := range points {
			if docID := p.GetPayload()[payloadDocID].GetStringValue(); docID != "" {
				ids = append(ids, docID)
			}
		}

		if len(points) < int(limit) {
			break
		}
		offset = points[len(points)-1].GetId()
	}

	return ids, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	points := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		points = append(points, pointID(id))
	}

	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Points:         qdrant.NewPointsSelector(points...),
	})
	if err != nil {
		return fmt.Errorf("%w: deleting points: %v", vector.ErrConnection, err)
	}
	return nil
}

// Reset drops and recreates the collection.
func (d *Driver) Reset(ctx context.Context) error {
	info, err := d.client.GetCollectionInfo(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("%w: reading collection info: %v", vector.ErrConnection, err)
	}

	params := info.GetConfig().GetParams().GetVectorsConfig()

	if err := d.client.DeleteCollection(ctx, d.collection); err != nil {
		return fmt.Errorf("%w: dropping collection: %v", vector.ErrConnection, err)
	}

	err = d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig:  params,
	})
	if err != nil {
		return fmt.Errorf("%w: recreating collection: %v", vector.ErrConnection, err)
	}
	return nil
}

// Count returns the number of indexed documents.
func (d *Driver) Count(ctx context.Context) (int, error) {
	n, err := d.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: d.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: counting points: %v", vector.ErrConnection, err)
	}
	return int(n), nil
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

// Ensure Driver implements vector.Driver.
var _ vector.Driver = (*Driver)(nil)
