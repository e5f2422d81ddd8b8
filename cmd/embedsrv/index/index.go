// Package indexcmder provides the index command that embeds texts and images
// through the gateway and stores them in the configured vector store.
package indexcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/embedsrv/pkg/client"
	"github.com/papercomputeco/embedsrv/pkg/cliui"
	"github.com/papercomputeco/embedsrv/pkg/config"
	"github.com/papercomputeco/embedsrv/pkg/logger"
	"github.com/papercomputeco/embedsrv/pkg/utils"
	"github.com/papercomputeco/embedsrv/pkg/vector"
	vectorutils "github.com/papercomputeco/embedsrv/pkg/vector/utils"
)

type indexCommander struct {
	flags struct {
		target     string
		provider   string
		storeURL   string
		collection string
		dimensions uint
	}

	texts  []string
	images []string
	ids    []string
	meta   map[string]string

	cfg       *config.Config
	configDir string
	debug     bool
	out       io.Writer
}

const indexLongDesc string = `Embed texts and images and store them in the vector store.

Each positional argument is embedded as text; each --image is embedded as an
image. Every stored document carries "type" and "content" metadata plus any
--meta pairs. IDs are random UUIDs unless --id is given once per item, texts
first.

Examples:
  embedsrv index "The quick brown fox" "A lazy dog sleeps in the sun"
  embedsrv index --image ./cat.png --meta source=camera
  embedsrv index "hello" --id text_0 --vector-store-provider sqlite`

const indexShortDesc string = "Embed and store texts and images"

var indexFlags = []string{
	config.FlagTarget,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagVectorCollection,
	config.FlagVectorDims,
}

func NewIndexCmd() *cobra.Command {
	cmder := &indexCommander{}

	cmd := &cobra.Command{
		Use:   "index [text]...",
		Short: indexShortDesc,
		Long:  indexLongDesc,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(cmder.images) == 0 {
				return errors.New("nothing to index: pass texts or --image")
			}
			if len(cmder.ids) > 0 && len(cmder.ids) != len(args)+len(cmder.images) {
				return fmt.Errorf("got %d --id values for %d items", len(cmder.ids), len(args)+len(cmder.images))
			}

			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, indexFlags)
			cmder.cfg = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.texts = args
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
	cmd.Flags().StringArrayVar(&cmder.images, "image", nil, "Image file to index (repeatable)")
	cmd.Flags().StringArrayVar(&cmder.ids, "id", nil, "Document ID (repeatable, one per item)")
	cmd.Flags().StringToStringVar(&cmder.meta, "meta", nil, "Extra metadata as key=value (repeatable)")

	return cmd
}

func (c *indexCommander) run(ctx context.Context) error {
	log := logger.NewPretty(c.out, c.debug)

	cl, err := client.NewClient(client.Config{URL: c.cfg.Client.Target})
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

	docs := make([]vector.Document, 0, len(c.texts)+len(c.images))

	for _, text := range c.texts {
		var emb []float32
		err := cliui.Step(c.out, fmt.Sprintf("embedding %q", utils.Truncate(text, 40)), func() error {
			var err error
			emb, err = cl.EmbedText(ctx, text)
			return err
		})
		if err != nil {
			return err
		}
		docs = append(docs, c.document(len(docs), emb, "text", text))
	}

	for _, path := range c.images {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading image: %w", err)
		}
		var emb []float32
		err = cliui.Step(c.out, "embedding "+path, func() error {
			var err error
			emb, err = cl.EmbedImage(ctx, path, data)
			return err
		})
		if err != nil {
			return err
		}
		docs = append(docs, c.document(len(docs), emb, "image", path))
	}

	if err := driver.Add(ctx, docs); err != nil {
		return fmt.Errorf("storing embeddings: %w", err)
	}

	for _, doc := range docs {
		log.Info("indexed", "id", doc.ID, vector.MetaType, doc.Metadata[vector.MetaType], "dimensions", len(doc.Embedding))
	}
	return nil
}

func (c *indexCommander) document(i int, emb []float32, kind, content string) vector.Document {
	id := uuid.NewString()
	if len(c.ids) > 0 {
		id = c.ids[i]
	}

	meta := make(map[string]string, len(c.meta)+2)
	maps.Copy(meta, c.meta)
	meta[vector.MetaType] = kind
	meta[vector.MetaContent] = content

	return vector.Document{ID: id, Embedding: emb, Metadata: meta}
}
