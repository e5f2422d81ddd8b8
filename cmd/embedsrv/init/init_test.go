package initcmder_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/embedsrv/cmd/embedsrv/init"
	"github.com/papercomputeco/embedsrv/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"extra"})).To(HaveOccurred())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "embedsrv-init-test-*")
		Expect(err).NotTo(HaveOccurred())
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())

		DeferCleanup(func() {
			Expect(os.Chdir(origDir)).To(Succeed())
			os.RemoveAll(tmpDir)
		})
	})

	execute := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	It("creates a .embedsrv directory with a default config.toml", func() {
		Expect(execute()).To(Succeed())
		Expect(filepath.Join(tmpDir, ".embedsrv")).To(BeADirectory())

		cfg := loadConfig(tmpDir)
		Expect(cfg.Version).To(Equal(config.CurrentV))
		Expect(cfg.Server.Listen).To(Equal(":8000"))
		Expect(cfg.TextModel.Model).To(Equal("all-minilm"))
	})

	It("does not overwrite an existing config.toml", func() {
		dir := filepath.Join(tmpDir, ".embedsrv")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		existing := "[server]\nlisten = \":9999\"\n"
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte(existing), 0o600)).To(Succeed())

		Expect(execute()).To(Succeed())

		data, err := os.ReadFile(filepath.Join(dir, "config.toml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(existing))
	})

	Describe("--preset with vector store presets", func() {
		It("writes the sqlite preset", func() {
			Expect(execute("--preset", "sqlite")).To(Succeed())

			cfg := loadConfig(tmpDir)
			Expect(cfg.VectorStore.Provider).To(Equal("sqlite"))
			Expect(cfg.VectorStore.Target).To(BeEmpty())
		})

		It("overwrites on re-init with a different preset", func() {
			Expect(execute("--preset", "qdrant")).To(Succeed())
			Expect(loadConfig(tmpDir).VectorStore.Provider).To(Equal("qdrant"))

			Expect(execute("--preset", "pgvector")).To(Succeed())
			Expect(loadConfig(tmpDir).VectorStore.Provider).To(Equal("pgvector"))
		})

		It("rejects unknown preset names", func() {
			err := execute("--preset", "faiss")
			Expect(err).To(MatchError(ContainSubstring("unknown preset")))
		})
	})

	Describe("--preset with remote URL", func() {
		It("fetches and writes remote config.toml", func() {
			remoteCfg := `version = 0

[device]
preference = "cuda"
parallelism = 1

[image_model]
target = "http://vision:11435"
`
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, remoteCfg)
			}))
			defer server.Close()

			Expect(execute("--preset", server.URL)).To(Succeed())

			cfg := loadConfig(tmpDir)
			Expect(cfg.Device.Preference).To(Equal("cuda"))
			Expect(cfg.Device.Parallelism).To(Equal(uint(1)))
			Expect(cfg.ImageModel.Target).To(Equal("http://vision:11435"))
		})

		It("returns error for non-200 HTTP response", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}))
			defer server.Close()

			Expect(execute("--preset", server.URL)).To(MatchError(ContainSubstring("HTTP 404")))
		})

		It("returns error for invalid TOML from URL", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, "this is not valid toml [[[")
			}))
			defer server.Close()

			Expect(execute("--preset", server.URL)).To(MatchError(ContainSubstring("parsing")))
		})

		It("returns error for unreachable URL", func() {
			Expect(execute("--preset", "http://127.0.0.1:1")).To(MatchError(ContainSubstring("fetching remote config")))
		})
	})
})

// loadConfig reads and parses the config.toml from the .embedsrv directory
// within the given base directory.
func loadConfig(baseDir string) *config.Config {
	data, err := os.ReadFile(filepath.Join(baseDir, ".embedsrv", "config.toml"))
	ExpectWithOffset(1, err).NotTo(HaveOccurred())

	cfg := &config.Config{}
	ExpectWithOffset(1, toml.Unmarshal(data, cfg)).To(Succeed())
	return cfg
}
