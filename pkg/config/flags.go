package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline, so the same logical flag
// (e.g. --target on embed, index and search) cannot drift between commands.
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "server.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of registry keys to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagListen           = "listen"
	FlagTextProvider     = "text-provider"
	FlagTextTarget       = "text-target"
	FlagTextModel        = "text-model"
	FlagImageProvider    = "image-provider"
	FlagImageTarget      = "image-target"
	FlagImageModel       = "image-model"
	FlagDevice           = "device"
	FlagParallelism      = "parallelism"
	FlagQueueSize        = "queue-size"
	FlagVectorStoreProv  = "vector-store-provider"
	FlagVectorStoreTgt   = "vector-store-target"
	FlagVectorCollection = "collection"
	FlagVectorDims       = "dimensions"
	FlagTarget           = "target"
)

// Flags is the registry shared by every embedsrv command.
var Flags = FlagSet{
	FlagListen:           {Name: "listen", Shorthand: "l", ViperKey: "server.listen", Description: "Address for the embedding gateway to listen on"},
	FlagTextProvider:     {Name: "text-provider", ViperKey: "text_model.provider", Description: "Text encoder backend (ollama)"},
	FlagTextTarget:       {Name: "text-target", ViperKey: "text_model.target", Description: "Text encoder backend URL"},
	FlagTextModel:        {Name: "text-model", ViperKey: "text_model.model", Description: "Text encoder model name"},
	FlagImageProvider:    {Name: "image-provider", ViperKey: "image_model.provider", Description: "Image encoder backend (vision)"},
	FlagImageTarget:      {Name: "image-target", ViperKey: "image_model.target", Description: "Image encoder backend URL"},
	FlagImageModel:       {Name: "image-model", ViperKey: "image_model.model", Description: "Image encoder model name"},
	FlagDevice:           {Name: "device", ViperKey: "device.preference", Description: "Inference device (auto, gpu, cuda, cpu)"},
	FlagParallelism:      {Name: "parallelism", ViperKey: "device.parallelism", Description: "Concurrent inference calls (0 derives from the device)"},
	FlagQueueSize:        {Name: "queue-size", ViperKey: "device.queue_size", Description: "Inference queue capacity"},
	FlagVectorStoreProv:  {Name: "vector-store-provider", ViperKey: "vector_store.provider", Description: "Vector store (remote, chroma, sqlite, pgvector, qdrant)"},
	FlagVectorStoreTgt:   {Name: "vector-store-target", ViperKey: "vector_store.target", Description: "Vector store URL, path or connection string"},
	FlagVectorCollection: {Name: "collection", ViperKey: "vector_store.collection", Description: "Vector store collection or table"},
	FlagVectorDims:       {Name: "dimensions", ViperKey: "vector_store.dimensions", Description: "Embedding width for stores that need it up front"},
	FlagTarget:           {Name: "target", Shorthand: "t", ViperKey: "client.target", Description: "embedsrv gateway URL"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddPersistentStringFlag is AddStringFlag for a flag that subcommands of
// cmd inherit.
func AddPersistentStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	cmd.PersistentFlags().StringVarP(target, def.Name, def.Shorthand, defaultString(def.ViperKey), def.Description)
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
