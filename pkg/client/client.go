// Package client is a Go client for a running embedsrv gateway.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/papercomputeco/embedsrv/api"
)

// StatusError is a non-200 gateway response.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("embedsrv returned %d: %s", e.StatusCode, e.Detail)
}

// Client calls the embedding gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds configuration for the client.
type Config struct {
	// URL is the gateway URL, e.g. "http://localhost:8000".
	URL string

	// Timeout bounds each call. Defaults to 60s.
	Timeout time.Duration
}

func NewClient(c Config) (*Client, error) {
	baseURL := strings.TrimRight(c.URL, "/")
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid embedsrv URL %q: %w", c.URL, err)
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// EmbedText returns the text embedding for text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(api.TextRequest{Text: &text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var out api.EmbeddingResponse
	if err := c.do(ctx, http.MethodPost, "/embed/text", "application/json", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	return out.Embedding, nil
}

// EmbedImage uploads data as the file field and returns its embedding. The
// part's content type comes from the filename extension, falling back to
// sniffing the bytes.
func (c *Client) EmbedImage(ctx context.Context, filename string, data []byte) ([]float32, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	h.Set("Content-Type", contentType(filename, data))

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("creating form part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("writing form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing form: %w", err)
	}

	var out api.EmbeddingResponse
	if err := c.do(ctx, http.MethodPost, "/embed/image", w.FormDataContentType(), &buf, &out); err != nil {
		return nil, err
	}
	return out.Embedding, nil
}

// Health returns the gateway's model and device report.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var out api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func contentType(filename string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to embedsrv at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e api.ErrorResponse
		if json.Unmarshal(raw, &e) != nil || e.Detail == "" {
			e.Detail = strings.TrimSpace(string(raw))
		}
		return &StatusError{StatusCode: resp.StatusCode, Detail: e.Detail}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
