package api

import (
	"context"
	"errors"
	"expvar"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/embedsrv/pkg/modelhost"
	"github.com/papercomputeco/embedsrv/pkg/validate"
)

// DefaultBodyLimit is the transport cap on request bodies. Uploads below it
// are rejected by the image validator from the part header; anything larger
// never reaches a handler and is reported with the same detail.
const DefaultBodyLimit = 4 * validate.MaxImageBytes

// Generator produces embeddings. *generator.Generator satisfies it.
type Generator interface {
	TextEmbedding(ctx context.Context, text string) ([]float32, error)
	ImageEmbedding(ctx context.Context, data []byte) ([]float32, error)
}

// ModelReporter describes the loaded models. *modelhost.Host satisfies it.
type ModelReporter interface {
	Info() modelhost.Info
}

// Server is the embedding service HTTP gateway.
type Server struct {
	config    Config
	generator Generator
	models    ModelReporter
	logger    *zap.Logger
	app       *fiber.App
}

// NewServer creates a new API server.
// The generator and model reporter are built once by the caller and shared
// by every request.
func NewServer(config Config, generator Generator, models ModelReporter, logger *zap.Logger) (*Server, error) {
	if generator == nil {
		return nil, errors.New("generator is required")
	}
	if models == nil {
		return nil, errors.New("model reporter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BodyLimit <= 0 {
		config.BodyLimit = DefaultBodyLimit
	}

	s := &Server{
		config:    config,
		generator: generator,
		models:    models,
		logger:    logger,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             config.BodyLimit,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(cors.New())
	app.Use(s.logRequests)

	app.Get("/ping", s.handlePing)
	app.Get("/health", s.handleHealth)
	app.Post("/embed/text", s.handleEmbedText)
	app.Post("/embed/image", s.handleEmbedImage)
	app.Get("/debug/vars", adaptor.HTTPHandler(expvar.Handler()))

	s.app = app
	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server, waiting for in-flight
// requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
