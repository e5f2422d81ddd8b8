// Package qdrant provides a Qdrant vector database driver over gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/papercomputeco/embedsrv/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection embeddings are stored in.
	DefaultCollectionName = "embeddings"

	// DefaultAddr is Qdrant's default gRPC address.
	DefaultAddr = "localhost:6334"

	// docIDKey is the payload key holding the caller's document id. Qdrant
	// point ids must be integers or UUIDs.
	docIDKey = "_doc_id"
)

// pointNamespace derives stable point UUIDs from document ids.
var pointNamespace = uuid.MustParse("6f1c3a52-9d0e-4b8a-a7f4-2c5e8b1d0a93")

// Driver implements vector.Driver using Qdrant.
type Driver struct {
	client     *qdrant.Client
	collection string
	dimensions int
	logger     *zap.Logger
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Addr is the Qdrant gRPC host:port. Defaults to DefaultAddr.
	Addr string

	// APIKey authenticates against Qdrant Cloud. Optional.
	APIKey string

	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool

	// CollectionName defaults to DefaultCollectionName.
	CollectionName string

	// Dimensions is the vector size used when creating the collection.
	Dimensions uint
}

// NewDriver connects to Qdrant and creates the collection if it does not
// exist.
func NewDriver(ctx context.Context, c Config, logger *zap.Logger) (*Driver, error) {
	if c.Dimensions == 0 {
		return nil, errors.New("qdrant embedding dimensions cannot be 0, must be configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	addr := c.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}

	collection := c.CollectionName
	if collection == "" {
		collection = DefaultCollectionName
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: checking collection %q: %w", vector.ErrConnection, collection, err)
	}
	if !exists {
		if err := client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(c.Dimensions),
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			client.Close()
			return nil, fmt.Errorf("creating collection %q: %w", collection, err)
		}
	}

	logger.Info("connected to Qdrant",
		zap.String("addr", addr),
		zap.String("collection", collection),
		zap.Bool("created", !exists),
	)

	return &Driver{
		client:     client,
		collection: collection,
		dimensions: int(c.Dimensions),
		logger:     logger,
	}, nil
}

// PointID returns the Qdrant point id a document id is stored under.
func PointID(docID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(docID)).String()
}

func pointIDs(ids []string) []*qdrant.PointId {
	out := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		out[i] = qdrant.NewID(PointID(id))
	}
	return out
}

// payloadToDocument splits a point payload into the document id and its
// string metadata.
func payloadToDocument(payload map[string]*qdrant.Value) vector.Document {
	var doc vector.Document
	for k, v := range payload {
		if k == docIDKey {
			doc.ID = v.GetStringValue()
			continue
		}
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]string, len(payload))
		}
		doc.Metadata[k] = v.GetStringValue()
	}
	return doc
}

// Add upserts documents as points.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		if len(doc.Embedding) != d.dimensions {
			return fmt.Errorf("%w: doc %s has %d, store expects %d",
				vector.ErrDimensionMismatch, doc.ID, len(doc.Embedding), d.dimensions)
		}

		payload := make(map[string]any, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			payload[k] = v
		}
		payload[docIDKey] = doc.ID

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(doc.ID)),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	if _, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("added documents to qdrant",
		zap.Int("count", len(docs)),
	)

	return nil
}

// Query finds the topK nearest points. Score is Qdrant's cosine score.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}
	if len(embedding) != d.dimensions {
		return nil, fmt.Errorf("%w: query has %d, store expects %d",
			vector.ErrDimensionMismatch, len(embedding), d.dimensions)
	}

	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	results := make([]vector.QueryResult, len(points))
	for i, p := range points {
		results[i] = vector.QueryResult{
			Document: payloadToDocument(p.GetPayload()),
			Score:    p.GetScore(),
		}
	}

	d.logger.Debug("queried qdrant",
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	points, err := d.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: d.collection,
		Ids:            pointIDs(ids),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting points: %w", err)
	}

	docs := make([]vector.Document, len(points))
	for i, p := range points {
		docs[i] = payloadToDocument(p.GetPayload())
		docs[i].Embedding = p.GetVectors().GetVector().GetData()
	}

	return docs, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if _, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointIDs(ids)...),
	}); err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}

	d.logger.Debug("deleted documents from qdrant",
		zap.Int("count", len(ids)),
	)

	return nil
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

var _ vector.Driver = (*Driver)(nil)
