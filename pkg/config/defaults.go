package config

import "github.com/papercomputeco/embedsrv/pkg/device"

const (
	defaultListen = ":8000"

	defaultTextProvider = "ollama"
	defaultTextTarget   = "http://localhost:11434"
	defaultTextModel    = "all-minilm"

	defaultImageProvider = "vision"
	defaultImageTarget   = "http://localhost:11435"
	defaultImageModel    = "google/vit-base-patch16-224"

	defaultDevicePreference = device.PreferAuto
	defaultQueueSize        = 64

	defaultVectorProvider   = "remote"
	defaultVectorTarget     = "http://localhost:8001"
	defaultVectorCollection = "embeddings"

	// all-MiniLM-L6-v2 output width
	defaultVectorDimensions = 384

	defaultClientTarget = "http://localhost:8000"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen: defaultListen,
		},
		TextModel: ModelConfig{
			Provider: defaultTextProvider,
			Target:   defaultTextTarget,
			Model:    defaultTextModel,
		},
		ImageModel: ModelConfig{
			Provider: defaultImageProvider,
			Target:   defaultImageTarget,
			Model:    defaultImageModel,
		},
		Device: DeviceConfig{
			Preference: defaultDevicePreference,
			QueueSize:  defaultQueueSize,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Target:     defaultVectorTarget,
			Collection: defaultVectorCollection,
			Dimensions: defaultVectorDimensions,
		},
		Client: ClientConfig{
			Target: defaultClientTarget,
		},
	}
}
