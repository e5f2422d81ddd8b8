// Package vision implements the image encoder against a vision-transformer
// inference backend. Images are shipped as base64 PNG and the pooled
// representation comes back as a flat vector.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/papercomputeco/embedsrv/pkg/embeddings"
)

const (
	// DefaultModel is the ViT-Base/16 checkpoint at 224px.
	DefaultModel = "google/vit-base-patch16-224"

	// DefaultBaseURL is the default vision backend URL.
	DefaultBaseURL = "http://localhost:11435"
)

// Embedder wraps the vision backend's embedding API.
type Embedder struct {
	baseURL    string
	model      string
	device     string
	httpClient *http.Client
	encoder    png.Encoder
}

// EmbedderConfig holds configuration for the vision embedder.
type EmbedderConfig struct {
	// BaseURL is the backend URL. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model is the image model to use. Defaults to DefaultModel if empty.
	Model string

	// Timeout bounds a single HTTP call. Defaults to 120s.
	Timeout time.Duration
}

// NewEmbedder creates a new image embedder.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Embedder{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		// Speed matters more than size on a loopback hop.
		encoder: png.Encoder{CompressionLevel: png.BestSpeed},
	}, nil
}

// Load confirms the backend has the configured model and reports where it runs.
func (e *Embedder) Load(ctx context.Context) (embeddings.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/models", nil)
	if err != nil {
		return embeddings.ModelInfo{}, fmt.Errorf("creating models request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return embeddings.ModelInfo{}, fmt.Errorf("listing models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return embeddings.ModelInfo{}, fmt.Errorf("listing models: %s", readError(resp))
	}

	var list listModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return embeddings.ModelInfo{}, fmt.Errorf("decoding models response: %w", err)
	}

	for _, m := range list.Models {
		if m.Name == e.model {
			return embeddings.ModelInfo{
				Name:       m.Name,
				Dimensions: m.EmbeddingDim,
				Backend:    m.Backend,
			}, nil
		}
	}

	return embeddings.ModelInfo{}, fmt.Errorf("model %q is not loaded by the vision backend", e.model)
}

// Place pins subsequent inference calls to the given device.
// Must be called before the embedder is shared between goroutines.
func (e *Embedder) Place(device string) {
	e.device = device
}

// EmbedImage converts an image into a vector embedding.
func (e *Embedder) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	var buf bytes.Buffer
	if err := e.encoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: encoding image: %v", embeddings.ErrEmbedding, err)
	}

	jsonBody, err := json.Marshal(embedImageRequest{
		Model:  e.model,
		Image:  base64.StdEncoding.EncodeToString(buf.Bytes()),
		Device: e.device,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", embeddings.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed/image", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", embeddings.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", embeddings.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: vision backend returned status %d: %s", embeddings.ErrEmbedding, resp.StatusCode, readError(resp))
	}

	var embedResp embedImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", embeddings.ErrEmbedding, err)
	}

	if len(embedResp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", embeddings.ErrEmbedding)
	}

	return embedResp.Embedding, nil
}

// Model returns the configured model name.
func (e *Embedder) Model() string {
	return e.model
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

// readError extracts the backend's error message, falling back to the raw body.
func readError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var errResp errorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return errResp.Error
	}
	return string(body)
}

var (
	_ embeddings.ImageEmbedder = (*Embedder)(nil)
	_ embeddings.Loader        = (*Embedder)(nil)
	_ embeddings.Placer        = (*Embedder)(nil)
)
