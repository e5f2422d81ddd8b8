// Package deletecmder provides the delete command for removing documents
// from the vector store.
package deletecmder

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/embedsrv/pkg/config"
	"github.com/papercomputeco/embedsrv/pkg/logger"
	"github.com/papercomputeco/embedsrv/pkg/vector"
	vectorutils "github.com/papercomputeco/embedsrv/pkg/vector/utils"
)

type deleteCommander struct {
	flags struct {
		provider   string
		storeURL   string
		collection string
		dimensions uint
	}

	ids           []string
	ignoreMissing bool

	cfg       *config.Config
	configDir string
	debug     bool
	out       io.Writer
}

const deleteLongDesc string = `Remove documents from the vector store by ID.

Examples:
  embedsrv delete text_0 text_1
  embedsrv search "old" --quiet | xargs embedsrv delete`

const deleteShortDesc string = "Remove stored documents"

var deleteFlags = []string{
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagVectorCollection,
	config.FlagVectorDims,
}

func NewDeleteCmd() *cobra.Command {
	cmder := &deleteCommander{}

	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: deleteShortDesc,
		Long:  deleteLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, deleteFlags)
			cmder.cfg = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.ids = args
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.out = cmd.OutOrStdout()
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.flags.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.flags.storeURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorCollection, &cmder.flags.collection)
	config.AddUintFlag(cmd, config.Flags, config.FlagVectorDims, &cmder.flags.dimensions)
	cmd.Flags().BoolVar(&cmder.ignoreMissing, "ignore-missing", false, "Do not fail on IDs the store does not have")

	return cmd
}

func (c *deleteCommander) run(ctx context.Context) error {
	log := logger.NewPretty(c.out, c.debug)

	zl := zap.NewNop()
	if c.debug {
		zl = logger.NewLogger(true)
	}
	driver, err := vectorutils.NewVectorDriver(ctx, vectorutils.OptsFromConfig(c.cfg.VectorStore, c.configDir, zl))
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	defer driver.Close()

	// One call per ID so a missing ID does not hide the others.
	var errs []error
	for _, id := range c.ids {
		err := driver.Delete(ctx, []string{id})
		switch {
		case err == nil:
			log.Info("deleted", "id", id)
		case errors.Is(err, vector.ErrNotFound) && c.ignoreMissing:
			log.Warn("not found", "id", id)
		default:
			errs = append(errs, fmt.Errorf("deleting %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
