package testutils

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/embedsrv/pkg/embeddings"
)

// MockEmbedder is a test embedder that returns predictable embeddings
type MockEmbedder struct {
	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	// Info is returned by Load.
	Info embeddings.ModelInfo

	// LoadErr causes Load to fail.
	LoadErr error

	// Delay is slept inside every Embed call.
	Delay time.Duration

	calls  atomic.Int64
	closed atomic.Bool
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
		Info:       embeddings.ModelInfo{Name: "mock-text", Dimensions: 3},
	}
}

func (m *MockEmbedder) Load(_ context.Context) (embeddings.ModelInfo, error) {
	if m.LoadErr != nil {
		return embeddings.ModelInfo{}, m.LoadErr
	}
	return m.Info, nil
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}

	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	// Return a default embedding for any text
	return []float32{0.1, 0.2, 0.3}, nil
}

// Calls is the number of Embed calls made so far.
func (m *MockEmbedder) Calls() int64 {
	return m.calls.Load()
}

// Closed reports whether Close was called.
func (m *MockEmbedder) Closed() bool {
	return m.closed.Load()
}

func (m *MockEmbedder) Close() error {
	m.closed.Store(true)
	return nil
}

// MockImageEmbedder is a test image embedder that records the images and
// device it was given.
type MockImageEmbedder struct {
	// Embedding is returned for every image.
	Embedding []float32

	// Err causes EmbedImage to fail.
	Err error

	// Info is returned by Load.
	Info embeddings.ModelInfo

	// LoadErr causes Load to fail.
	LoadErr error

	// Delay is slept inside every EmbedImage call.
	Delay time.Duration

	mu     sync.Mutex
	images []image.Image
	device string
	closed bool

	inFlight atomic.Int64
	peak     atomic.Int64
}

func NewMockImageEmbedder() *MockImageEmbedder {
	return &MockImageEmbedder{
		Embedding: []float32{0.4, 0.5, 0.6, 0.7},
		Info:      embeddings.ModelInfo{Name: "mock-image", Dimensions: 4},
	}
}

func (m *MockImageEmbedder) Load(_ context.Context) (embeddings.ModelInfo, error) {
	if m.LoadErr != nil {
		return embeddings.ModelInfo{}, m.LoadErr
	}
	return m.Info, nil
}

func (m *MockImageEmbedder) Place(device string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.device = device
}

func (m *MockImageEmbedder) EmbedImage(_ context.Context, img image.Image) ([]float32, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		peak := m.peak.Load()
		if n <= peak || m.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}

	m.mu.Lock()
	m.images = append(m.images, img)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	return m.Embedding, nil
}

// Images returns every image passed to EmbedImage.
func (m *MockImageEmbedder) Images() []image.Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]image.Image(nil), m.images...)
}

// Device returns the device passed to Place.
func (m *MockImageEmbedder) Device() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device
}

// PeakConcurrency is the highest number of simultaneous EmbedImage calls seen.
func (m *MockImageEmbedder) PeakConcurrency() int64 {
	return m.peak.Load()
}

// Closed reports whether Close was called.
func (m *MockImageEmbedder) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockImageEmbedder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
