package chroma_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/embedsrv/pkg/vector"
	"github.com/papercomputeco/embedsrv/pkg/vector/chroma"
)

const collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"

// fakeChroma is a minimal in-memory stand-in for Chroma's v2 REST API.
type fakeChroma struct {
	mu       sync.Mutex
	created  bool
	order    []string
	records  map[string]record
	requests atomic.Int32
}

type record struct {
	embedding []float32
	metadata  map[string]string
}

func newFakeChroma() *fakeChroma {
	return &fakeChroma{records: make(map[string]record)}
}

func (f *fakeChroma) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, collectionsPath+"/"):
		if !f.created {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "col-1", "name": "embeddings"})

	case r.Method == http.MethodPost && r.URL.Path == collectionsPath:
		f.created = true
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "col-1", "name": "embeddings"})

	case r.URL.Path == collectionsPath+"/col-1/upsert":
		var req struct {
			IDs        []string            `json:"ids"`
			Embeddings [][]float32         `json:"embeddings"`
			Metadatas  []map[string]string `json:"metadatas"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for i, id := range req.IDs {
			if _, ok := f.records[id]; !ok {
				f.order = append(f.order, id)
			}
			rec := record{embedding: req.Embeddings[i]}
			if i < len(req.Metadatas) {
				rec.metadata = req.Metadatas[i]
			}
			f.records[id] = rec
		}
		_, _ = w.Write([]byte(`{}`))

	case r.URL.Path == collectionsPath+"/col-1/query":
		var req struct {
			NResults int `json:"n_results"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		ids := []string{}
		distances := []float32{}
		metadatas := []map[string]string{}
		for i, id := range f.order {
			if i == req.NResults {
				break
			}
			ids = append(ids, id)
			distances = append(distances, float32(i))
			metadatas = append(metadatas, f.records[id].metadata)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ids":       [][]string{ids},
			"distances": [][]float32{distances},
			"metadatas": [][]map[string]string{metadatas},
		})

	case r.URL.Path == collectionsPath+"/col-1/get":
		var req struct {
			IDs []string `json:"ids"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		ids := []string{}
		embeddings := [][]float32{}
		for _, id := range req.IDs {
			if rec, ok := f.records[id]; ok {
				ids = append(ids, id)
				embeddings = append(embeddings, rec.embedding)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ids": ids, "embeddings": embeddings})

	case r.URL.Path == collectionsPath+"/col-1/delete":
		var req struct {
			IDs []string `json:"ids"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, id := range req.IDs {
			delete(f.records, id)
		}
		_, _ = w.Write([]byte(`{}`))

	default:
		http.Error(w, "unexpected request", http.StatusBadRequest)
	}
}

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		logger *zap.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = zap.NewNop()
	})

	Describe("NewDriver", func() {
		It("should return an error when URL is empty", func() {
			_, err := chroma.NewDriver(ctx, chroma.Config{URL: ""}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("chroma URL is required"))
		})

		It("should create the collection when it does not exist", func() {
			fake := newFakeChroma()
			server := httptest.NewServer(fake)
			defer server.Close()

			driver, err := chroma.NewDriver(ctx, chroma.Config{URL: server.URL}, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).NotTo(BeNil())
			Expect(fake.created).To(BeTrue())
		})

		It("should succeed after retrying when Chroma becomes available", func() {
			var attempts atomic.Int32

			// Each attempt is a GET for the collection followed by a POST to
			// create it, so the first two attempts fail outright.
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempt := attempts.Add(1)
				if attempt <= 4 {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}

				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]string{
					"id":   "test-collection-id",
					"name": "embeddings",
				})
			}))
			defer server.Close()

			driver, err := chroma.NewDriver(ctx, chroma.Config{
				URL:           server.URL,
				MaxRetries:    5,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).NotTo(BeNil())
			Expect(attempts.Load()).To(Equal(int32(5)))
		})

		It("should return a connection error after exhausting all retries", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			}))
			defer server.Close()

			_, err := chroma.NewDriver(ctx, chroma.Config{
				URL:           server.URL,
				MaxRetries:    3,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, logger)
			Expect(err).To(MatchError(vector.ErrConnection))
			Expect(err.Error()).To(ContainSubstring("after 3 attempts"))
		})
	})

	Describe("documents", func() {
		var (
			fake   *fakeChroma
			server *httptest.Server
			driver *chroma.Driver
		)

		BeforeEach(func() {
			fake = newFakeChroma()
			server = httptest.NewServer(fake)

			var err error
			driver, err = chroma.NewDriver(ctx, chroma.Config{URL: server.URL}, logger)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			Expect(driver.Close()).To(Succeed())
			server.Close()
		})

		It("round-trips metadata through Add and Query", func() {
			Expect(driver.Add(ctx, []vector.Document{
				{ID: "a", Embedding: []float32{1, 0}, Metadata: map[string]string{"source": "unit"}},
				{ID: "b", Embedding: []float32{0, 1}},
			})).To(Succeed())

			results, err := driver.Query(ctx, []float32{1, 0}, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].ID).To(Equal("a"))
			Expect(results[0].Metadata).To(HaveKeyWithValue("source", "unit"))
			Expect(results[0].Score).To(BeNumerically(">", results[1].Score))
		})

		It("limits results to topK", func() {
			Expect(driver.Add(ctx, []vector.Document{
				{ID: "a", Embedding: []float32{1}},
				{ID: "b", Embedding: []float32{2}},
				{ID: "c", Embedding: []float32{3}},
			})).To(Succeed())

			results, err := driver.Query(ctx, []float32{1}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
		})

		It("returns an empty slice when nothing is stored", func() {
			results, err := driver.Query(ctx, []float32{1}, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("gets and deletes documents by id", func() {
			Expect(driver.Add(ctx, []vector.Document{{ID: "a", Embedding: []float32{0.5, 0.5}}})).To(Succeed())

			docs, err := driver.Get(ctx, []string{"a", "missing"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Embedding).To(Equal([]float32{0.5, 0.5}))

			Expect(driver.Delete(ctx, []string{"a"})).To(Succeed())

			docs, err = driver.Get(ctx, []string{"a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(BeEmpty())
		})

		It("makes no request for empty input", func() {
			before := fake.requests.Load()
			Expect(driver.Add(ctx, nil)).To(Succeed())
			Expect(driver.Delete(ctx, nil)).To(Succeed())
			Expect(fake.requests.Load()).To(Equal(before))
		})
	})

	Describe("Interface compliance", func() {
		It("should implement vector.Driver interface", func() {
			var _ vector.Driver = (*chroma.Driver)(nil)
		})
	})
})
