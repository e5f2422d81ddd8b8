package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/embedsrv/pkg/vector"
)

// MockVectorDriver is an in-memory vector.Driver. Query returns Results when
// set; otherwise every stored document with a zero score.
type MockVectorDriver struct {
	Results []vector.QueryResult
	Err     error

	mu        sync.Mutex
	documents map[string]vector.Document
	order     []string
	queries   [][]float32
	closed    bool
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		documents: make(map[string]vector.Document),
	}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range docs {
		if _, ok := m.documents[doc.ID]; !ok {
			m.order = append(m.order, doc.ID)
		}
		m.documents[doc.ID] = doc
	}
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, embedding)

	results := m.Results
	if results == nil {
		for _, id := range m.order {
			results = append(results, vector.QueryResult{Document: m.documents[id]})
		}
	}
	if len(results) < topK {
		return results, nil
	}
	return results[:topK], nil
}

func (m *MockVectorDriver) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var docs []vector.Document
	for _, id := range ids {
		if doc, ok := m.documents[id]; ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, ids []string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.documents, id)
	}
	kept := m.order[:0]
	for _, id := range m.order {
		if _, ok := m.documents[id]; ok {
			kept = append(kept, id)
		}
	}
	m.order = kept
	return nil
}

func (m *MockVectorDriver) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Documents returns the stored documents in insertion order.
func (m *MockVectorDriver) Documents() []vector.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make([]vector.Document, 0, len(m.order))
	for _, id := range m.order {
		docs = append(docs, m.documents[id])
	}
	return docs
}

// Queries returns the embeddings passed to Query.
func (m *MockVectorDriver) Queries() [][]float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]float32(nil), m.queries...)
}

func (m *MockVectorDriver) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
