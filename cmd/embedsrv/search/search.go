// Package searchcmder provides the search command for nearest-neighbour
// lookups against the vector store.
package searchcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/embedsrv/pkg/client"
	"github.com/papercomputeco/embedsrv/pkg/config"
	"github.com/papercomputeco/embedsrv/pkg/logger"
	"github.com/papercomputeco/embedsrv/pkg/utils"
	"github.com/papercomputeco/embedsrv/pkg/vector"
	vectorutils "github.com/papercomputeco/embedsrv/pkg/vector/utils"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	typeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
)

type searchCommander struct {
	flags struct {
		target     string
		provider   string
		storeURL   string
		collection string
		dimensions uint
	}

	query string
	image string
	topK  int
	quiet bool

	cfg       *config.Config
	configDir string
	debug     bool
	out       io.Writer
}

const searchLongDesc string = `Search the vector store for the items nearest to a query.

The query is embedded through the running gateway, as text or with --image
as an image, and the topmost matches are printed with their scores. Higher
scores are more similar.

Use --quiet to print only IDs, one per line.

Examples:
  embedsrv search "A quick fox"
  embedsrv search "A quick fox" --top 3
  embedsrv search --image ./query.jpg --quiet`

const searchShortDesc string = "Search stored embeddings"

var searchFlags = []string{
	config.FlagTarget,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagVectorCollection,
	config.FlagVectorDims,
}

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (cmder.image == "") {
				return errors.New("pass either a text query or --image")
			}
			if cmder.topK < 1 {
				return fmt.Errorf("--top must be at least 1, got %d", cmder.topK)
			}

			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, searchFlags)
			cmder.cfg = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cmder.query = args[0]
			}
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.out = cmd.OutOrStdout()
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &cmder.flags.target)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.flags.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.flags.storeURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorCollection, &cmder.flags.collection)
	config.AddUintFlag(cmd, config.Flags, config.FlagVectorDims, &cmder.flags.dimensions)
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 5, "Number of results to return")
	cmd.Flags().StringVar(&cmder.image, "image", "", "Search with an image file instead of text")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only IDs, one per line (for piping)")

	return cmd
}

func (c *searchCommander) run(ctx context.Context) error {
	emb, label, err := c.embedQuery(ctx)
	if err != nil {
		return err
	}

	zl := zap.NewNop()
	if c.debug {
		zl = logger.NewLogger(true)
	}
	driver, err := vectorutils.NewVectorDriver(ctx, vectorutils.OptsFromConfig(c.cfg.VectorStore, c.configDir, zl))
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	defer driver.Close()

	results, err := driver.Query(ctx, emb, c.topK)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if c.quiet {
		for _, r := range results {
			fmt.Fprintln(c.out, r.ID)
		}
		return nil
	}

	if len(results) == 0 {
		fmt.Fprintln(c.out, "No results found.")
		return nil
	}

	fmt.Fprintf(c.out, "\n%s %s\n\n",
		headerStyle.Render("Search Results for:"),
		idStyle.Render(label),
	)
	for i, r := range results {
		c.printResult(i+1, r)
	}

	return nil
}

func (c *searchCommander) embedQuery(ctx context.Context) ([]float32, string, error) {
	cl, err := client.NewClient(client.Config{URL: c.cfg.Client.Target})
	if err != nil {
		return nil, "", err
	}

	if c.image != "" {
		data, err := os.ReadFile(c.image)
		if err != nil {
			return nil, "", fmt.Errorf("reading image: %w", err)
		}
		emb, err := cl.EmbedImage(ctx, c.image, data)
		return emb, c.image, err
	}

	emb, err := cl.EmbedText(ctx, c.query)
	return emb, fmt.Sprintf("%q", c.query), err
}

func (c *searchCommander) printResult(rank int, r vector.QueryResult) {
	fmt.Fprintf(c.out, "  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", r.Score)),
		idStyle.Render(r.ID),
	)

	if content, ok := r.Metadata[vector.MetaContent]; ok {
		preview := strings.ReplaceAll(utils.Truncate(content, 77), "\n", " ")
		fmt.Fprintf(c.out, "  %s %s\n",
			typeStyle.Render(r.Metadata[vector.MetaType]+":"),
			previewStyle.Render(preview),
		)
	}

	fmt.Fprintln(c.out)
}
