package config

import (
	"fmt"
	"strconv"

	"github.com/papercomputeco/embedsrv/pkg/device"
)

// Config represents the persistent embedsrv configuration stored as
// config.toml in the .embedsrv/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Server      ServerConfig      `toml:"server"`
	TextModel   ModelConfig       `toml:"text_model"`
	ImageModel  ModelConfig       `toml:"image_model"`
	Device      DeviceConfig      `toml:"device"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Client      ClientConfig      `toml:"client"`
}

// ServerConfig holds the embedding gateway settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ModelConfig points an encoder at the backend that serves it.
type ModelConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`
}

// DeviceConfig controls where inference runs and how many requests may run
// it at once. Zero Parallelism derives the value from the device.
type DeviceConfig struct {
	Preference  string `toml:"preference,omitempty"`
	Parallelism uint   `toml:"parallelism,omitempty"`
	QueueSize   uint   `toml:"queue_size,omitempty"`
}

// VectorStoreConfig holds vector store settings used by the index and search
// commands.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// embedsrv gateway. Target is a full URL (scheme + host + port).
type ClientConfig struct {
	Target string `toml:"target,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(key string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen": stringKey(func(c *Config) *string { return &c.Server.Listen }),

	"text_model.provider": stringKey(func(c *Config) *string { return &c.TextModel.Provider }),
	"text_model.target":   stringKey(func(c *Config) *string { return &c.TextModel.Target }),
	"text_model.model":    stringKey(func(c *Config) *string { return &c.TextModel.Model }),

	"image_model.provider": stringKey(func(c *Config) *string { return &c.ImageModel.Provider }),
	"image_model.target":   stringKey(func(c *Config) *string { return &c.ImageModel.Target }),
	"image_model.model":    stringKey(func(c *Config) *string { return &c.ImageModel.Model }),

	"device.preference": {
		get: func(c *Config) string { return c.Device.Preference },
		set: func(c *Config, v string) error {
			switch v {
			case device.PreferAuto, device.PreferGPU, device.PreferCUDA, device.PreferCPU:
				c.Device.Preference = v
				return nil
			default:
				return fmt.Errorf("invalid value for device.preference: %q (expected auto, gpu, cuda or cpu)", v)
			}
		},
	},
	"device.parallelism": uintKey("device.parallelism", func(c *Config) *uint { return &c.Device.Parallelism }),
	"device.queue_size":  uintKey("device.queue_size", func(c *Config) *uint { return &c.Device.QueueSize }),

	"vector_store.provider":   stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":     stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.collection": stringKey(func(c *Config) *string { return &c.VectorStore.Collection }),
	"vector_store.dimensions": uintKey("vector_store.dimensions", func(c *Config) *uint { return &c.VectorStore.Dimensions }),

	"client.target": stringKey(func(c *Config) *string { return &c.Client.Target }),
}
