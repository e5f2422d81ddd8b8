package qdrant_test

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/embedsrv/pkg/vector"
	"github.com/papercomputeco/embedsrv/pkg/vector/qdrant"
)

var _ = Describe("Driver", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("PointID", func() {
		It("derives a stable UUID from the document id", func() {
			id := qdrant.PointID("text_0")
			Expect(uuid.Validate(id)).To(Succeed())
			Expect(qdrant.PointID("text_0")).To(Equal(id))
			Expect(qdrant.PointID("text_1")).NotTo(Equal(id))
		})
	})

	Describe("NewDriver", func() {
		It("should error when dimension not specified", func() {
			_, err := qdrant.NewDriver(ctx, qdrant.Config{}, zap.NewNop())
			Expect(err).To(MatchError(ContainSubstring("dimensions cannot be 0")))
		})

		It("should reject an address without a port", func() {
			_, err := qdrant.NewDriver(ctx, qdrant.Config{Addr: "localhost", Dimensions: 3}, zap.NewNop())
			Expect(err).To(MatchError(ContainSubstring("invalid qdrant address")))
		})
	})

	Describe("Interface compliance", func() {
		It("should implement vector.Driver interface", func() {
			var _ vector.Driver = (*qdrant.Driver)(nil)
		})
	})

	Describe("against Qdrant", func() {
		var driver *qdrant.Driver

		BeforeEach(func() {
			addr := os.Getenv("EMBEDSRV_TEST_QDRANT_ADDR")
			if addr == "" {
				Skip("EMBEDSRV_TEST_QDRANT_ADDR not set")
			}

			var err error
			driver, err = qdrant.NewDriver(ctx, qdrant.Config{
				Addr:           addr,
				CollectionName: fmt.Sprintf("embeddings_test_%d", time.Now().UnixNano()),
				Dimensions:     3,
			}, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			if driver != nil {
				Expect(driver.Close()).To(Succeed())
			}
		})

		It("should store, search, fetch and delete documents", func() {
			Expect(driver.Add(ctx, []vector.Document{
				{ID: "x", Embedding: []float32{1, 0, 0}, Metadata: map[string]string{"axis": "x"}},
				{ID: "y", Embedding: []float32{0, 1, 0}},
			})).To(Succeed())

			results, err := driver.Query(ctx, []float32{1, 0.1, 0}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("x"))
			Expect(results[0].Metadata).To(HaveKeyWithValue("axis", "x"))

			docs, err := driver.Get(ctx, []string{"y"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].ID).To(Equal("y"))

			Expect(driver.Delete(ctx, []string{"y"})).To(Succeed())
			docs, err = driver.Get(ctx, []string{"y"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(BeEmpty())
		})
	})
})
