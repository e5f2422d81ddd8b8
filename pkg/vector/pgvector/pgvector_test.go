package pgvector_test

import (
	"context"
	"fmt"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/embedsrv/pkg/vector"
	"github.com/papercomputeco/embedsrv/pkg/vector/pgvector"
)

var _ = Describe("Driver", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("NewDriver", func() {
		It("should return an error when the connection string is empty", func() {
			_, err := pgvector.NewDriver(ctx, pgvector.Config{Dimensions: 3}, zap.NewNop())
			Expect(err).To(MatchError(ContainSubstring("connection string is required")))
		})

		It("should return an error when dimensions are not configured", func() {
			_, err := pgvector.NewDriver(ctx, pgvector.Config{ConnString: "postgres://localhost/x"}, zap.NewNop())
			Expect(err).To(MatchError(ContainSubstring("dimensions cannot be 0")))
		})
	})

	Describe("Interface compliance", func() {
		It("should implement vector.Driver interface", func() {
			var _ vector.Driver = (*pgvector.Driver)(nil)
		})
	})

	Describe("against PostgreSQL", func() {
		var driver *pgvector.Driver

		BeforeEach(func() {
			dsn := os.Getenv("EMBEDSRV_TEST_POSTGRES_DSN")
			if dsn == "" {
				Skip("EMBEDSRV_TEST_POSTGRES_DSN not set")
			}

			var err error
			driver, err = pgvector.NewDriver(ctx, pgvector.Config{
				ConnString: dsn,
				Table:      fmt.Sprintf("embeddings_test_%d", time.Now().UnixNano()),
				Dimensions: 3,
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
			Expect(docs[0].Embedding).To(Equal([]float32{0, 1, 0}))

			Expect(driver.Delete(ctx, []string{"y"})).To(Succeed())
			docs, err = driver.Get(ctx, []string{"y"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(BeEmpty())
		})

		It("should reject embeddings of the wrong dimensionality", func() {
			err := driver.Add(ctx, []vector.Document{{ID: "a", Embedding: []float32{1}}})
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
		})
	})
})
