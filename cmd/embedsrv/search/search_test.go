package searchcmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	embedsrvcmder "github.com/papercomputeco/embedsrv/cmd/embedsrv"
	"github.com/papercomputeco/embedsrv/pkg/vector"
	"github.com/papercomputeco/embedsrv/pkg/vector/sqlitevec"
)

var _ = Describe("Search command execution", func() {
	var (
		tmpDir  string
		dbPath  string
		gateway *httptest.Server
		out     *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "embedsrv-search-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, tmpDir)

		// Text queries embed to the x axis, images to the y axis.
		gateway = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			emb := []float32{1, 0, 0}
			if r.URL.Path == "/embed/image" {
				emb = []float32{0, 1, 0}
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"embedding": emb})
		}))
		DeferCleanup(gateway.Close)

		dbPath = filepath.Join(tmpDir, "vectors.sqlite")
		d, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: dbPath, Dimensions: 3}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Add(context.Background(), []vector.Document{
			{ID: "fox", Embedding: []float32{1, 0, 0}, Metadata: map[string]string{"type": "text", "content": "The quick brown fox"}},
			{ID: "both", Embedding: []float32{0.7, 0.7, 0}, Metadata: map[string]string{"type": "text", "content": "A fox and a cat"}},
			{ID: "cat", Embedding: []float32{0, 1, 0}, Metadata: map[string]string{"type": "image", "content": "cat.png"}},
		})).To(Succeed())
		Expect(d.Close()).To(Succeed())

		out = &bytes.Buffer{}
	})

	execute := func(args ...string) error {
		cmd := embedsrvcmder.NewEmbedsrvCmd()
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append(append([]string{"search"}, args...),
			"--config-dir", tmpDir,
			"--target", gateway.URL,
			"--vector-store-provider", "sqlite",
			"--vector-store-target", dbPath,
			"--dimensions", "3",
		))
		return cmd.Execute()
	}

	It("prints IDs nearest first with --quiet", func() {
		Expect(execute("quick fox", "--quiet")).To(Succeed())
		Expect(strings.Fields(out.String())).To(Equal([]string{"fox", "both", "cat"}))
	})

	It("limits results with --top", func() {
		Expect(execute("quick fox", "-q", "-k", "1")).To(Succeed())
		Expect(strings.Fields(out.String())).To(Equal([]string{"fox"}))
	})

	It("searches by image", func() {
		img := filepath.Join(tmpDir, "query.png")
		Expect(os.WriteFile(img, []byte("\x89PNG\r\n\x1a\n"), 0o600)).To(Succeed())

		Expect(execute("--image", img, "-q", "-k", "2")).To(Succeed())
		Expect(strings.Fields(out.String())).To(Equal([]string{"cat", "both"}))
	})

	It("renders ranked results with previews", func() {
		Expect(execute("quick fox", "-k", "2")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Search Results for:"))
		Expect(out.String()).To(ContainSubstring("#1"))
		Expect(out.String()).To(ContainSubstring("The quick brown fox"))
		Expect(out.String()).NotTo(ContainSubstring("cat.png"))
	})

	It("rejects a query together with --image", func() {
		Expect(execute("fox", "--image", "x.png")).To(MatchError("pass either a text query or --image"))
	})

	It("rejects a non-positive --top", func() {
		Expect(execute("fox", "--top", "0")).To(MatchError(ContainSubstring("--top must be at least 1")))
	})
})
