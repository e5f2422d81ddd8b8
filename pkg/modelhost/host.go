// Package modelhost owns the loaded text and image encoders and the compute
// device they run on. A Host is built once at process start, is immutable
// afterwards, and is shared read-only by every request.
package modelhost

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/embedsrv/pkg/device"
	"github.com/papercomputeco/embedsrv/pkg/embeddings"
	"github.com/papercomputeco/embedsrv/pkg/worker"
)

// Config is the configuration for a Host.
type Config struct {
	// TextEncoder is the sentence-level text encoder. Required.
	TextEncoder embeddings.Embedder

	// ImageEncoder is the vision-transformer image encoder. Required.
	ImageEncoder embeddings.ImageEmbedder

	// TextModel and ImageModel are the identifiers reported on /health when
	// the encoders do not report their own.
	TextModel  string
	ImageModel string

	// DevicePreference is "auto", "cuda" or "cpu".
	DevicePreference string

	// Parallelism overrides the device's default concurrency when non-zero.
	Parallelism uint

	// QueueSize is the inference queue capacity.
	QueueSize uint

	// Prober detects an accelerator when DevicePreference is "auto".
	// Defaults to device.HostProber.
	Prober device.Prober

	// LoadTimeout bounds model loading. Defaults to 2 minutes.
	LoadTimeout time.Duration
}

// Info is the static description of a Host reported on /health.
type Info struct {
	TextModel  string
	ImageModel string
	Device     string
}

// Host is the process-scoped model handle.
type Host struct {
	text   embeddings.Embedder
	image  embeddings.ImageEmbedder
	info   Info
	device device.Device
	pool   *worker.Pool
	logger *zap.Logger
}

// New loads both models and selects the compute device. Any failure is
// returned as an initialization error and the caller must not serve traffic.
func New(ctx context.Context, c Config, logger *zap.Logger) (*Host, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if c.TextEncoder == nil {
		return nil, embeddings.Initialization("loading text model", errors.New("no text encoder configured"))
	}
	if c.ImageEncoder == nil {
		return nil, embeddings.Initialization("loading image model", errors.New("no image encoder configured"))
	}

	prober := c.Prober
	if prober == nil {
		prober = device.HostProber{}
	}

	dev, err := device.Resolve(c.DevicePreference, c.Parallelism, prober)
	if err != nil {
		return nil, embeddings.Initialization("selecting device", err)
	}

	loadTimeout := c.LoadTimeout
	if loadTimeout == 0 {
		loadTimeout = 2 * time.Minute
	}
	loadCtx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	textInfo, err := load(loadCtx, c.TextEncoder, c.TextModel)
	if err != nil {
		return nil, embeddings.Initialization("loading text model", err)
	}
	logger.Info("text model loaded",
		zap.String("model", textInfo.Name),
		zap.Int("dimensions", textInfo.Dimensions),
	)

	imageInfo, err := load(loadCtx, c.ImageEncoder, c.ImageModel)
	if err != nil {
		return nil, embeddings.Initialization("loading image model", err)
	}
	logger.Info("image model loaded",
		zap.String("model", imageInfo.Name),
		zap.Int("dimensions", imageInfo.Dimensions),
		zap.String("backend", imageInfo.Backend),
	)

	// On auto, where the backend says the model actually runs wins over
	// what this machine looks like.
	if isAuto(c.DevicePreference) {
		if kind, ok := device.FromBackend(imageInfo.Backend); ok && kind != dev.Kind {
			logger.Info("using device reported by image backend",
				zap.String("probed", dev.String()),
				zap.String("reported", string(kind)),
			)
			dev = device.New(kind, c.Parallelism)
		}
	}

	if placer, ok := c.ImageEncoder.(embeddings.Placer); ok {
		placer.Place(dev.String())
	}

	pool, err := worker.NewPool(&worker.Config{
		NumWorkers: uint(dev.Parallelism),
		QueueSize:  c.QueueSize,
		Logger:     logger.Named("inference"),
	})
	if err != nil {
		return nil, embeddings.Initialization("starting inference pool", err)
	}

	logger.Info("model host ready",
		zap.String("device", dev.String()),
		zap.Int("parallelism", dev.Parallelism),
	)

	return &Host{
		text:  c.TextEncoder,
		image: c.ImageEncoder,
		info: Info{
			TextModel:  textInfo.Name,
			ImageModel: imageInfo.Name,
			Device:     dev.String(),
		},
		device: dev,
		pool:   pool,
		logger: logger,
	}, nil
}

func load(ctx context.Context, encoder any, fallbackName string) (embeddings.ModelInfo, error) {
	info := embeddings.ModelInfo{Name: fallbackName}

	if loader, ok := encoder.(embeddings.Loader); ok {
		loaded, err := loader.Load(ctx)
		if err != nil {
			return info, err
		}
		if loaded.Name == "" {
			loaded.Name = fallbackName
		}
		info = loaded
	}

	if info.Name == "" {
		return info, fmt.Errorf("model identifier unknown")
	}
	return info, nil
}

func isAuto(preference string) bool {
	return preference == "" || preference == device.PreferAuto
}

// EncodeText runs the text encoder.
func (h *Host) EncodeText(ctx context.Context, text string) ([]float32, error) {
	return h.pool.Submit(ctx, "text", func(ctx context.Context) ([]float32, error) {
		return h.text.Embed(ctx, text)
	})
}

// EncodeImage runs the image encoder on a normalized image.
func (h *Host) EncodeImage(ctx context.Context, img image.Image) ([]float32, error) {
	return h.pool.Submit(ctx, "image", func(ctx context.Context) ([]float32, error) {
		return h.image.EmbedImage(ctx, img)
	})
}

// Info returns the loaded model identifiers and the selected device.
func (h *Host) Info() Info {
	return h.info
}

// Device returns the selected compute device.
func (h *Host) Device() device.Device {
	return h.device
}

// Stats returns inference pool activity.
func (h *Host) Stats() worker.Stats {
	return h.pool.Stats()
}

// Close drains in-flight inference and releases both encoders.
func (h *Host) Close() error {
	h.pool.Close()
	return errors.Join(h.text.Close(), h.image.Close())
}
