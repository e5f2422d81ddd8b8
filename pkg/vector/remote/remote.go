// Package remote provides a vector driver for the standalone vector store
// service, speaking its /vector and /search HTTP contract.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/embedsrv/pkg/vector"
)

// DefaultURL is where the vector store service listens by default.
const DefaultURL = "http://localhost:8001"

// Driver implements vector.Driver against the vector store service.
type Driver struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds configuration for the remote driver.
type Config struct {
	// URL is the vector store service URL. Defaults to DefaultURL.
	URL string

	// Timeout bounds each HTTP call. Defaults to 30s.
	Timeout time.Duration
}

// NewDriver creates a remote vector driver. No request is made until the
// first operation.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	baseURL := strings.TrimRight(c.URL, "/")
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid vector store URL %q: %w", c.URL, err)
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Driver{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// Add inserts each document with POST /vector.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	for _, doc := range docs {
		metadata := doc.Metadata
		if metadata == nil {
			// the service requires an object
			metadata = map[string]string{}
		}

		resp, err := d.do(ctx, http.MethodPost, "/vector", insertRequest{
			ID:        doc.ID,
			Embedding: doc.Embedding,
			Metadata:  metadata,
		})
		if err != nil {
			return fmt.Errorf("inserting %s: %w", doc.ID, err)
		}
		resp.Body.Close()
	}

	d.logger.Debug("inserted documents into vector store",
		zap.Int("count", len(docs)),
	)

	return nil
}

// Query runs POST /search. Results keep the service's order and scores.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	resp, err := d.do(ctx, http.MethodPost, "/search", searchRequest{
		Vector: embedding,
		K:      topK,
	})
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer resp.Body.Close()

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	results := make([]vector.QueryResult, len(body.Results))
	for i, h := range body.Results {
		results[i] = vector.QueryResult{
			Document: vector.Document{ID: h.ID},
			Score:    h.Score,
		}
	}

	d.logger.Debug("searched vector store",
		zap.Int("k", topK),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Get is not offered by the vector store service.
func (d *Driver) Get(_ context.Context, _ []string) ([]vector.Document, error) {
	return nil, fmt.Errorf("remote vector store: lookup by id: %w", errors.ErrUnsupported)
}

// Delete removes each document with DELETE /vector/{id}.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		resp, err := d.do(ctx, http.MethodDelete, "/vector/"+url.PathEscape(id), nil)
		if err != nil {
			return fmt.Errorf("deleting %s: %w", id, err)
		}
		resp.Body.Close()
	}
	return nil
}

// Close releases idle connections.
func (d *Driver) Close() error {
	d.httpClient.CloseIdleConnections()
	return nil
}

// do sends a request and returns the response when the status is 2xx. The
// caller closes the body.
func (d *Driver) do(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		if isNotFound(resp.StatusCode, msg) {
			return nil, fmt.Errorf("%w: %s", vector.ErrNotFound, msg)
		}
		return nil, fmt.Errorf("vector store returned status %d: %s", resp.StatusCode, msg)
	}

	return resp, nil
}

// notFoundPrefix starts the body the vector store service sends for an
// unknown id. The service reports it as a 500, not a 404.
const notFoundPrefix = "Vector not found"

func isNotFound(status int, msg string) bool {
	switch {
	case status == http.StatusNotFound:
		return true
	case status >= 500:
		return strings.HasPrefix(msg, notFoundPrefix)
	default:
		return false
	}
}

var _ vector.Driver = (*Driver)(nil)
