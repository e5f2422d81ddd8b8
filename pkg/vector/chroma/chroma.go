// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/embedsrv/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection name for stored embeddings.
	DefaultCollectionName = "embeddings"

	collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"
)

// Driver implements vector.Driver using Chroma's REST API.
type Driver struct {
	baseURL        string
	collectionName string
	collectionID   string
	httpClient     *http.Client
	logger         *zap.Logger
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName is the name of the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string

	// Timeout bounds each HTTP call. Defaults to 60s.
	Timeout time.Duration

	// MaxRetries is how many times connecting is attempted while Chroma is
	// still starting up. Defaults to 5.
	MaxRetries int

	// RetryDelay is the first wait between attempts, doubled after each
	// failure up to MaxRetryDelay. Defaults to 500ms and 5s.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// statusError is a non-2xx Chroma response.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("chroma returned status %d: %s", e.status, e.body)
}

// NewDriver connects to Chroma, creating the collection if it does not exist.
func NewDriver(ctx context.Context, c Config, logger *zap.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, errors.New("chroma URL is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	collectionName := c.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	d := &Driver{
		baseURL:        c.URL,
		collectionName: collectionName,
		httpClient:     &http.Client{Timeout: timeout},
		logger:         logger,
	}

	collectionID, err := d.connect(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%w: collection %q: %w", vector.ErrConnection, collectionName, err)
	}
	d.collectionID = collectionID

	logger.Info("connected to Chroma",
		zap.String("url", c.URL),
		zap.String("collection", collectionName),
		zap.String("collection_id", collectionID),
	)

	return d, nil
}

// connect resolves the collection, retrying with exponential backoff.
func (d *Driver) connect(ctx context.Context, c Config) (string, error) {
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.MaxRetryDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		id, err := d.getOrCreateCollection(ctx)
		if err == nil {
			return id, nil
		}
		lastErr = err

		if attempt == maxRetries {
			break
		}

		d.logger.Debug("chroma not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, maxDelay)
	}

	return "", fmt.Errorf("after %d attempts: %w", maxRetries, lastErr)
}

func (d *Driver) getOrCreateCollection(ctx context.Context) (string, error) {
	var existing collection
	err := d.do(ctx, http.MethodGet, collectionsPath+"/"+url.PathEscape(d.collectionName), nil, &existing)
	if err == nil {
		return existing.ID, nil
	}

	var se *statusError
	if !errors.As(err, &se) {
		return "", err
	}

	var created collection
	if err := d.do(ctx, http.MethodPost, collectionsPath, createCollectionRequest{
		Name:     d.collectionName,
		Metadata: map[string]any{"hnsw:space": "cosine"},
	}, &created); err != nil {
		return "", fmt.Errorf("creating collection: %w", err)
	}

	return created.ID, nil
}

// do sends a JSON request to Chroma and decodes the response into out when
// out is non-nil.
func (d *Driver) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return &statusError{status: resp.StatusCode, body: string(b)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (d *Driver) recordsPath(op string) string {
	return collectionsPath + "/" + d.collectionID + "/" + op
}

// Add upserts documents with their embeddings and metadata.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	req := upsertRequest{
		IDs:        make([]string, len(docs)),
		Embeddings: make([][]float32, len(docs)),
		Metadatas:  make([]map[string]string, len(docs)),
	}
	hasMetadata := false
	for i, doc := range docs {
		req.IDs[i] = doc.ID
		req.Embeddings[i] = doc.Embedding
		req.Metadatas[i] = doc.Metadata
		hasMetadata = hasMetadata || len(doc.Metadata) > 0
	}
	if !hasMetadata {
		req.Metadatas = nil
	}

	if err := d.do(ctx, http.MethodPost, d.recordsPath("upsert"), req, nil); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}

	d.logger.Debug("added documents to chroma",
		zap.Int("count", len(docs)),
	)

	return nil
}

// Query finds the topK most similar documents to the given embedding.
// Chroma reports distances; they are converted so higher is more similar
// without changing Chroma's ranking.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	var resp queryResponse
	if err := d.do(ctx, http.MethodPost, d.recordsPath("query"), queryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Include:         []string{"metadatas", "distances", "embeddings"},
	}, &resp); err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}

	// One query embedding, so one result group.
	if len(resp.IDs) == 0 || len(resp.IDs[0]) == 0 {
		return []vector.QueryResult{}, nil
	}

	ids := resp.IDs[0]
	distances := firstGroup(resp.Distances)
	metadatas := firstGroup(resp.Metadatas)
	embeddings := firstGroup(resp.Embeddings)

	results := make([]vector.QueryResult, len(ids))
	for i, id := range ids {
		results[i].ID = id
		if i < len(metadatas) {
			results[i].Metadata = stringMetadata(metadatas[i])
		}
		if i < len(embeddings) {
			results[i].Embedding = embeddings[i]
		}
		if i < len(distances) {
			results[i].Score = 1.0 / (1.0 + distances[i])
		}
	}

	d.logger.Debug("queried chroma",
		zap.Int("results", len(results)),
	)

	return results, nil
}

func firstGroup[T any](groups [][]T) []T {
	if len(groups) == 0 {
		return nil
	}
	return groups[0]
}

// stringMetadata keeps the string-valued entries of a Chroma metadata map.
func stringMetadata(m map[string]any) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		} else if v != nil {
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var resp getResponse
	if err := d.do(ctx, http.MethodPost, d.recordsPath("get"), getRequest{
		IDs:     ids,
		Include: []string{"metadatas", "embeddings"},
	}, &resp); err != nil {
		return nil, fmt.Errorf("getting documents: %w", err)
	}

	docs := make([]vector.Document, len(resp.IDs))
	for i, id := range resp.IDs {
		docs[i].ID = id
		if i < len(resp.Metadatas) {
			docs[i].Metadata = stringMetadata(resp.Metadatas[i])
		}
		if i < len(resp.Embeddings) {
			docs[i].Embedding = resp.Embeddings[i]
		}
	}

	return docs, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := d.do(ctx, http.MethodPost, d.recordsPath("delete"), deleteRequest{IDs: ids}, nil); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	d.logger.Debug("deleted documents from chroma",
		zap.Int("count", len(ids)),
	)

	return nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	d.httpClient.CloseIdleConnections()
	return nil
}

var _ vector.Driver = (*Driver)(nil)
