package modelhost_test

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/embedsrv/pkg/device"
	"github.com/papercomputeco/embedsrv/pkg/embeddings"
	"github.com/papercomputeco/embedsrv/pkg/modelhost"
	testutils "github.com/papercomputeco/embedsrv/pkg/utils/test"
)

var noGPU = device.ProberFunc(func() bool { return false })

var _ = Describe("Host", func() {
	var (
		ctx   context.Context
		text  *testutils.MockEmbedder
		img   *testutils.MockImageEmbedder
		cfg   modelhost.Config
		hosts []*modelhost.Host
	)

	newHost := func() (*modelhost.Host, error) {
		h, err := modelhost.New(ctx, cfg, zap.NewNop())
		if h != nil {
			hosts = append(hosts, h)
		}
		return h, err
	}

	BeforeEach(func() {
		ctx = context.Background()
		text = testutils.NewMockEmbedder()
		img = testutils.NewMockImageEmbedder()
		hosts = nil
		cfg = modelhost.Config{
			TextEncoder:      text,
			ImageEncoder:     img,
			DevicePreference: device.PreferAuto,
			Prober:           noGPU,
		}
	})

	AfterEach(func() {
		for _, h := range hosts {
			Expect(h.Close()).To(Succeed())
		}
	})

	Describe("New", func() {
		It("reports the loaded model identifiers", func() {
			h, err := newHost()
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Info().TextModel).To(Equal("mock-text"))
			Expect(h.Info().ImageModel).To(Equal("mock-image"))
		})

		It("falls back to the configured name when the backend reports none", func() {
			img.Info.Name = ""
			cfg.ImageModel = "google/vit-base-patch16-224"

			h, err := newHost()
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Info().ImageModel).To(Equal("google/vit-base-patch16-224"))
		})

		It("selects the cpu when no accelerator is present", func() {
			h, err := newHost()
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Info().Device).To(Equal("cpu"))
			Expect(img.Device()).To(Equal("cpu"))
		})

		It("selects the accelerator when one is probed", func() {
			cfg.Prober = device.ProberFunc(func() bool { return true })

			h, err := newHost()
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Info().Device).To(Equal("cuda"))
			Expect(h.Device().Parallelism).To(Equal(1))
			Expect(img.Device()).To(Equal("cuda"))
		})

		It("adopts the device the image backend reports on auto", func() {
			img.Info.Backend = "cuda"

			h, err := newHost()
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Info().Device).To(Equal("cuda"))
		})

		It("keeps an explicit preference over the backend report", func() {
			cfg.DevicePreference = device.PreferCPU
			img.Info.Backend = "cuda"

			h, err := newHost()
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Info().Device).To(Equal("cpu"))
		})

		It("honours a parallelism override", func() {
			cfg.Parallelism = 3

			h, err := newHost()
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Stats().Workers).To(Equal(3))
		})

		It("fails with an initialization error when the text model cannot load", func() {
			text.LoadErr = errors.New("model not found")

			h, err := newHost()
			Expect(h).To(BeNil())
			Expect(embeddings.KindOf(err)).To(Equal(embeddings.KindInitialization))
			Expect(err.Error()).To(ContainSubstring("model not found"))
		})

		It("fails with an initialization error when the image model cannot load", func() {
			img.LoadErr = errors.New("connection refused")

			h, err := newHost()
			Expect(h).To(BeNil())
			Expect(embeddings.KindOf(err)).To(Equal(embeddings.KindInitialization))
		})

		It("rejects an unknown device preference", func() {
			cfg.DevicePreference = "tpu"

			_, err := newHost()
			Expect(embeddings.KindOf(err)).To(Equal(embeddings.KindInitialization))
		})

		It("requires both encoders", func() {
			cfg.ImageEncoder = nil

			_, err := newHost()
			Expect(embeddings.KindOf(err)).To(Equal(embeddings.KindInitialization))
		})
	})

	Describe("encoding", func() {
		It("runs text through the text encoder", func() {
			text.Embeddings["hello world"] = []float32{1, 2}

			h, err := newHost()
			Expect(err).NotTo(HaveOccurred())

			emb, err := h.EncodeText(ctx, "hello world")
			Expect(err).NotTo(HaveOccurred())
			Expect(emb).To(Equal([]float32{1, 2}))
		})

		It("runs images through the image encoder", func() {
			h, err := newHost()
			Expect(err).NotTo(HaveOccurred())

			emb, err := h.EncodeImage(ctx, image.NewRGBA(image.Rect(0, 0, 2, 2)))
			Expect(err).NotTo(HaveOccurred())
			Expect(emb).To(HaveLen(4))
			Expect(img.Images()).To(HaveLen(1))
		})

		It("never runs more calls at once than the device parallelism", func() {
			cfg.Prober = device.ProberFunc(func() bool { return true })
			img.Delay = 10 * time.Millisecond

			h, err := newHost()
			Expect(err).NotTo(HaveOccurred())

			var wg sync.WaitGroup
			for range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					_, err := h.EncodeImage(ctx, image.NewRGBA(image.Rect(0, 0, 1, 1)))
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()

			Expect(img.PeakConcurrency()).To(Equal(int64(1)))
			Expect(h.Stats().Completed).To(Equal(int64(8)))
		})
	})

	Describe("Close", func() {
		It("closes both encoders", func() {
			h, err := modelhost.New(ctx, cfg, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Close()).To(Succeed())
			Expect(text.Closed()).To(BeTrue())
			Expect(img.Closed()).To(BeTrue())
		})
	})
})
