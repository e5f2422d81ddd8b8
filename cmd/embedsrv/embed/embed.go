// Package embedcmder provides the embed command for calling a running
// embedsrv gateway.
package embedcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/embedsrv/pkg/client"
	"github.com/papercomputeco/embedsrv/pkg/cliui"
	"github.com/papercomputeco/embedsrv/pkg/config"
)

type embedCommander struct {
	target string
	asJSON bool
	out    io.Writer
}

const embedLongDesc string = `Embed text or an image with a running embedsrv gateway.

By default the dimensionality of the returned vector is printed. Use --json
to print the vector itself.

Examples:
  embedsrv embed text "The quick brown fox"
  embedsrv embed image ./photo.jpg --json
  embedsrv embed text "hello" --target http://gpu-box:8000`

const embedShortDesc string = "Embed text or an image"

func NewEmbedCmd() *cobra.Command {
	cmder := &embedCommander{}

	cmd := &cobra.Command{
		Use:   "embed",
		Short: embedShortDesc,
		Long:  embedLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagTarget})
			cmder.target = config.FromViper(v).Client.Target
			cmder.out = cmd.OutOrStdout()
			return nil
		},
	}

	var target string
	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagTarget, &target)
	cmd.PersistentFlags().BoolVar(&cmder.asJSON, "json", false, "Print the embedding as JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "text <text>",
		Short: "Embed a string",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.runText(cmd.Context(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "image <path>",
		Short: "Embed a PNG, JPEG or WEBP file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.runImage(cmd.Context(), args[0])
		},
	})

	return cmd
}

func (c *embedCommander) client() (*client.Client, error) {
	return client.NewClient(client.Config{URL: c.target})
}

func (c *embedCommander) runText(ctx context.Context, text string) error {
	cl, err := c.client()
	if err != nil {
		return err
	}
	emb, err := cl.EmbedText(orBackground(ctx), text)
	if err != nil {
		return err
	}
	return c.print(emb)
}

func (c *embedCommander) runImage(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}
	cl, err := c.client()
	if err != nil {
		return err
	}
	emb, err := cl.EmbedImage(orBackground(ctx), path, data)
	if err != nil {
		return err
	}
	return c.print(emb)
}

func (c *embedCommander) print(emb []float32) error {
	if c.asJSON {
		return json.NewEncoder(c.out).Encode(emb)
	}
	_, err := fmt.Fprintf(c.out, "%s %s\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(fmt.Sprintf("%d dimensions", len(emb))),
	)
	return err
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
