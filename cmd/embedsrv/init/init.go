// Package initcmder provides the init command for initializing a local
// .embedsrv directory in the current working directory.
package initcmder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/embedsrv/pkg/config"
)

const (
	dirName    = ".embedsrv"
	configFile = "config.toml"
)

const initLongDesc string = `Initialize a new .embedsrv/ directory in the current working directory.

Creates a local .embedsrv/ directory that takes precedence over the default
~/.embedsrv/ directory, and writes config.toml with default values if there
is none yet.

--preset writes config.toml even if one exists. It takes either a vector
store name (remote, sqlite, chroma, pgvector, qdrant) or an http(s) URL to a
config.toml to download.

Examples:
  embedsrv init
  embedsrv init --preset sqlite
  embedsrv init --preset https://example.com/embedsrv/config.toml`

const initShortDesc string = "Initialize a local .embedsrv/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runInit(ctx, cmd.OutOrStdout(), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Vector store preset name or URL of a config.toml")

	return cmd
}

func runInit(ctx context.Context, w io.Writer, preset string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .embedsrv directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}

	if preset == "" {
		if _, err := os.Stat(filepath.Join(dir, configFile)); err == nil {
			fmt.Fprintf(w, "Already initialized: %s\n", dir)
			return nil
		}
		if err := cfger.SaveConfig(config.NewDefaultConfig()); err != nil {
			return err
		}
		fmt.Fprintf(w, "Initialized .embedsrv directory: %s\n", dir)
		return nil
	}

	cfg, err := resolvePreset(ctx, preset)
	if err != nil {
		return err
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "Initialized .embedsrv directory with preset %q: %s\n", preset, dir)
	return nil
}

func resolvePreset(ctx context.Context, preset string) (*config.Config, error) {
	if !strings.HasPrefix(preset, "http://") && !strings.HasPrefix(preset, "https://") {
		return config.PresetConfig(preset)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, preset, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading remote config: %w", err)
	}

	return config.ParseConfigTOML(data)
}
