// Package vector provides the interface and implementations for the vector
// stores that embeddings are indexed into and searched from.
package vector

import "context"

// Document represents a stored item with its embedding and metadata.
type Document struct {
	// ID is a unique identifier for the document.
	ID string

	// Embedding is the vector representation of the document content.
	Embedding []float32

	// Metadata is free-form string metadata stored alongside the embedding.
	Metadata map[string]string
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score is the store's similarity score, passed through as reported.
	// Higher is more similar.
	Score float32
}

// Driver handles storage and retrieval of vector embeddings.
type Driver interface {
	// Add stores documents with their embeddings.
	// If a document with the same ID already exists, implementers should update
	// the document.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the given embedding, in
	// the order the store ranks them.
	Query(ctx context.Context, embedding []float32, topK int) ([]QueryResult, error)

	// Get retrieves documents by their IDs. Unknown IDs are skipped.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the driver.
	Close() error
}

// Metadata keys the CLI writes for every indexed item.
const (
	// MetaType is "text" or "image".
	MetaType = "type"

	// MetaContent is the indexed text, or the image path.
	MetaContent = "content"
)
