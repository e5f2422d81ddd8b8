package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/embedsrv/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "EMBEDSRV"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the EMBEDSRV_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (EMBEDSRV_SERVER_LISTEN, EMBEDSRV_DEVICE_PREFERENCE, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	v.AddConfigPath(target)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper reads the resolved configuration back out of v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Server: ServerConfig{
			Listen: v.GetString("server.listen"),
		},
		TextModel: ModelConfig{
			Provider: v.GetString("text_model.provider"),
			Target:   v.GetString("text_model.target"),
			Model:    v.GetString("text_model.model"),
		},
		ImageModel: ModelConfig{
			Provider: v.GetString("image_model.provider"),
			Target:   v.GetString("image_model.target"),
			Model:    v.GetString("image_model.model"),
		},
		Device: DeviceConfig{
			Preference:  v.GetString("device.preference"),
			Parallelism: v.GetUint("device.parallelism"),
			QueueSize:   v.GetUint("device.queue_size"),
		},
		VectorStore: VectorStoreConfig{
			Provider:   v.GetString("vector_store.provider"),
			Target:     v.GetString("vector_store.target"),
			Collection: v.GetString("vector_store.collection"),
			Dimensions: v.GetUint("vector_store.dimensions"),
		},
		Client: ClientConfig{
			Target: v.GetString("client.target"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("server.listen", d.Server.Listen)

	v.SetDefault("text_model.provider", d.TextModel.Provider)
	v.SetDefault("text_model.target", d.TextModel.Target)
	v.SetDefault("text_model.model", d.TextModel.Model)

	v.SetDefault("image_model.provider", d.ImageModel.Provider)
	v.SetDefault("image_model.target", d.ImageModel.Target)
	v.SetDefault("image_model.model", d.ImageModel.Model)

	v.SetDefault("device.preference", d.Device.Preference)
	v.SetDefault("device.parallelism", d.Device.Parallelism)
	v.SetDefault("device.queue_size", d.Device.QueueSize)

	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.collection", d.VectorStore.Collection)
	v.SetDefault("vector_store.dimensions", d.VectorStore.Dimensions)

	v.SetDefault("client.target", d.Client.Target)
}
