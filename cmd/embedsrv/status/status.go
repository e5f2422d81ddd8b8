// Package statuscmder provides the status command that reports what a
// running gateway has loaded.
package statuscmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/embedsrv/pkg/client"
	"github.com/papercomputeco/embedsrv/pkg/cliui"
	"github.com/papercomputeco/embedsrv/pkg/config"
)

type statusCommander struct {
	target string
	out    io.Writer
}

const statusLongDesc string = `Show the models and device of a running embedsrv gateway.

Calls GET /health. A gateway only answers once both models are loaded, so a
successful status means it is ready for traffic.

Examples:
  embedsrv status
  embedsrv status --target http://gpu-box:8000`

const statusShortDesc string = "Show gateway models and device"

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagTarget})
			cmder.target = config.FromViper(v).Client.Target
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx)
		},
	}

	var target string
	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &target)

	return cmd
}

func (c *statusCommander) run(ctx context.Context) error {
	cl, err := client.NewClient(client.Config{URL: c.target})
	if err != nil {
		return err
	}

	health, err := cl.Health(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "\n  %s %s\n\n", cliui.FailMark, cliui.DimStyle.Render(c.target))
		return err
	}

	fmt.Fprintf(c.out, "\n  %s %s %s\n\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(health.Status),
		cliui.DimStyle.Render(c.target),
	)
	rows := [][2]string{
		{"text model", health.Models.Text},
		{"image model", health.Models.Image},
		{"device", health.Device},
	}
	cliui.Rows(c.out, rows)
	fmt.Fprintln(c.out)

	return nil
}
