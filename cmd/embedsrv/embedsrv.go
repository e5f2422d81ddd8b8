// Package embedsrvcmder is the root embedsrv command.
package embedsrvcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/embedsrv/cmd/embedsrv/config"
	deletecmder "github.com/papercomputeco/embedsrv/cmd/embedsrv/deletecmd"
	embedcmder "github.com/papercomputeco/embedsrv/cmd/embedsrv/embed"
	indexcmder "github.com/papercomputeco/embedsrv/cmd/embedsrv/index"
	initcmder "github.com/papercomputeco/embedsrv/cmd/embedsrv/init"
	searchcmder "github.com/papercomputeco/embedsrv/cmd/embedsrv/search"
	servecmder "github.com/papercomputeco/embedsrv/cmd/embedsrv/serve"
	statuscmder "github.com/papercomputeco/embedsrv/cmd/embedsrv/status"
	versioncmder "github.com/papercomputeco/embedsrv/cmd/embedsrv/version"
)

const embedsrvLongDesc string = `embedsrv turns text and images into embedding vectors over HTTP.

Run the service:
  embedsrv serve                 Load both models and serve /embed/text, /embed/image and /health

Talk to a running service:
  embedsrv embed text <text>     Embed a string
  embedsrv embed image <path>    Embed an image file
  embedsrv status                Show loaded models and device

Work with a vector store:
  embedsrv index <text>...       Embed and store texts (and --image files)
  embedsrv search <text>         Find the nearest stored documents
  embedsrv delete <id>...        Remove stored documents

Set up:
  embedsrv init                  Create ./.embedsrv/config.toml
  embedsrv config list           Show the effective configuration`

const embedsrvShortDesc string = "embedsrv - text and image embeddings"

func NewEmbedsrvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "embedsrv",
		Short:        embedsrvShortDesc,
		Long:         embedsrvLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .embedsrv directory holding config.toml")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(embedcmder.NewEmbedCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(indexcmder.NewIndexCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(deletecmder.NewDeleteCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
