// Package servecmder provides the serve command that hosts the embedding
// gateway.
package servecmder

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/embedsrv/api"
	"github.com/papercomputeco/embedsrv/pkg/config"
	embeddingutils "github.com/papercomputeco/embedsrv/pkg/embeddings/utils"
	"github.com/papercomputeco/embedsrv/pkg/generator"
	"github.com/papercomputeco/embedsrv/pkg/logger"
	"github.com/papercomputeco/embedsrv/pkg/modelhost"
)

type serveCommander struct {
	flags struct {
		listen        string
		textProvider  string
		textTarget    string
		textModel     string
		imageProvider string
		imageTarget   string
		imageModel    string
		device        string
		parallelism   uint
		queueSize     uint
	}

	cfg     *config.Config
	logFile string
	debug   bool
	logger  *zap.Logger
}

const serveLongDesc string = `Run the embedding gateway.

Both models are loaded before the gateway accepts connections. If either
fails to load, serve exits with an error instead of serving traffic.

Routes:
  POST /embed/text     {"text": "..."} -> {"embedding": [...]}
  POST /embed/image    multipart "file" (PNG, JPEG or WEBP) -> {"embedding": [...]}
  GET  /health         loaded models and the selected device

Flags override EMBEDSRV_* environment variables, which override config.toml.

Examples:
  embedsrv serve
  embedsrv serve --device cpu --parallelism 2
  embedsrv serve --listen :9000 --log-file embedsrv.log`

const serveShortDesc string = "Run the embedding gateway"

// shutdownTimeout bounds draining in-flight requests after a signal.
const shutdownTimeout = 30 * time.Second

var serveFlags = []string{
	config.FlagListen,
	config.FlagTextProvider,
	config.FlagTextTarget,
	config.FlagTextModel,
	config.FlagImageProvider,
	config.FlagImageTarget,
	config.FlagImageModel,
	config.FlagDevice,
	config.FlagParallelism,
	config.FlagQueueSize,
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)
			cmder.cfg = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.flags.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagTextProvider, &cmder.flags.textProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagTextTarget, &cmder.flags.textTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagTextModel, &cmder.flags.textModel)
	config.AddStringFlag(cmd, config.Flags, config.FlagImageProvider, &cmder.flags.imageProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagImageTarget, &cmder.flags.imageTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagImageModel, &cmder.flags.imageModel)
	config.AddStringFlag(cmd, config.Flags, config.FlagDevice, &cmder.flags.device)
	config.AddUintFlag(cmd, config.Flags, config.FlagParallelism, &cmder.flags.parallelism)
	config.AddUintFlag(cmd, config.Flags, config.FlagQueueSize, &cmder.flags.queueSize)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	closeLog, err := c.setupLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	host, err := c.newHost(ctx)
	if err != nil {
		return fmt.Errorf("initializing models: %w", err)
	}
	defer func() {
		if err := host.Close(); err != nil {
			c.logger.Warn("closing model host", zap.Error(err))
		}
	}()
	publishStats(host)

	server, err := api.NewServer(api.Config{
		ListenAddr: c.cfg.Server.Listen,
	}, generator.New(host, c.logger), host, c.logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer stop()
		c.logger.Info("starting embedding gateway",
			zap.String("listen", c.cfg.Server.Listen),
			zap.String("device", host.Device().String()),
		)
		if err := server.Run(); err != nil {
			return fmt.Errorf("gateway error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		c.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (c *serveCommander) setupLogger() (func(), error) {
	console := logger.NewLogger(c.debug)
	if c.logFile == "" {
		c.logger = console
		return func() { _ = c.logger.Sync() }, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	c.logger = logger.Multi(console, logger.NewJSONLogger(c.debug, f))

	return func() {
		_ = c.logger.Sync()
		_ = f.Close()
	}, nil
}

func (c *serveCommander) newHost(ctx context.Context) (*modelhost.Host, error) {
	textEncoder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: c.cfg.TextModel.Provider,
		TargetURL:    c.cfg.TextModel.Target,
		Model:        c.cfg.TextModel.Model,
	})
	if err != nil {
		return nil, err
	}

	imageEncoder, err := embeddingutils.NewImageEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: c.cfg.ImageModel.Provider,
		TargetURL:    c.cfg.ImageModel.Target,
		Model:        c.cfg.ImageModel.Model,
	})
	if err != nil {
		return nil, errors.Join(err, textEncoder.Close())
	}

	host, err := modelhost.New(ctx, modelhost.Config{
		TextEncoder:      textEncoder,
		ImageEncoder:     imageEncoder,
		TextModel:        c.cfg.TextModel.Model,
		ImageModel:       c.cfg.ImageModel.Model,
		DevicePreference: c.cfg.Device.Preference,
		Parallelism:      c.cfg.Device.Parallelism,
		QueueSize:        c.cfg.Device.QueueSize,
	}, c.logger)
	if err != nil {
		return nil, errors.Join(err, textEncoder.Close(), imageEncoder.Close())
	}
	return host, nil
}

var (
	publishOnce sync.Once
	statsHost   atomic.Pointer[modelhost.Host]
)

// publishStats exposes the inference pool counters under /debug/vars.
func publishStats(host *modelhost.Host) {
	statsHost.Store(host)
	publishOnce.Do(func() {
		expvar.Publish("inference_pool", expvar.Func(func() any {
			if h := statsHost.Load(); h != nil {
				return h.Stats()
			}
			return nil
		}))
	})
}
