package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/embedsrv/pkg/embeddings"
	"github.com/papercomputeco/embedsrv/pkg/validate"
)

// TextRequest is the body of POST /embed/text.
type TextRequest struct {
	Text *string `json:"text"`
}

// EmbeddingResponse is returned by both embed routes.
type EmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string       `json:"status"`
	Models HealthModels `json:"models"`
	Device string       `json:"device"`
}

// HealthModels names the loaded models.
type HealthModels struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// imageFormField is the multipart field carrying the upload.
const imageFormField = "file"

// handlePing returns a simple liveness response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleHealth reports the loaded models and the selected device. The host
// is built before the server starts, so reaching this handler means
// initialization succeeded.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	info := s.models.Info()
	return c.JSON(HealthResponse{
		Status: "healthy",
		Models: HealthModels{
			Text:  info.TextModel,
			Image: info.ImageModel,
		},
		Device: info.Device,
	})
}

// handleEmbedText embeds the text from a JSON body, or from the "text" query
// parameter when no body is sent.
func (s *Server) handleEmbedText(c *fiber.Ctx) error {
	text, err := textFromRequest(c)
	if err != nil {
		return s.fail(c, err)
	}

	emb, err := s.generator.TextEmbedding(c.UserContext(), text)
	if err != nil {
		return s.fail(c, err)
	}

	requestMetrics.Add("text_embeddings", 1)
	return c.JSON(EmbeddingResponse{Embedding: emb})
}

func textFromRequest(c *fiber.Ctx) (string, error) {
	if body := c.Body(); len(bytes.TrimSpace(body)) > 0 {
		var req TextRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return "", embeddings.Validation(`invalid request body: expected {"text": string}`)
		}
		if req.Text != nil {
			return *req.Text, nil
		}
	}

	if c.Context().QueryArgs().Has("text") {
		return c.Query("text"), nil
	}

	return "", embeddings.Validation("missing text field")
}

// handleEmbedImage embeds an uploaded image. The declared content type and
// size are checked from the part header before the file is opened.
func (s *Server) handleEmbedImage(c *fiber.Ctx) error {
	fh, err := c.FormFile(imageFormField)
	if err != nil {
		return s.fail(c, embeddings.Validation(`missing file field: expected a multipart upload with a "file" part`))
	}

	if err := validate.ContentType(fh.Header.Get(fiber.HeaderContentType)); err != nil {
		return s.fail(c, err)
	}
	if err := validate.Size(fh.Size); err != nil {
		return s.fail(c, err)
	}

	f, err := fh.Open()
	if err != nil {
		return s.fail(c, embeddings.Inference("reading upload", err))
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, validate.MaxImageBytes+1))
	if err != nil {
		return s.fail(c, embeddings.Inference("reading upload", err))
	}

	emb, err := s.generator.ImageEmbedding(c.UserContext(), data)
	if err != nil {
		return s.fail(c, err)
	}

	requestMetrics.Add("image_embeddings", 1)
	return c.JSON(EmbeddingResponse{Embedding: emb})
}

// fail writes err as a {"detail": ...} body with the status its kind maps to.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)

	switch {
	case errors.Is(err, context.Canceled):
		requestMetrics.Add("canceled", 1)
		s.logger.Debug("embedding request canceled by client",
			zap.String("path", c.Path()),
			zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
		)
	case status >= fiber.StatusInternalServerError:
		requestMetrics.Add("inference_errors", 1)
		s.logger.Error("embedding request failed",
			zap.String("path", c.Path()),
			zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
			zap.Error(err),
		)
	default:
		requestMetrics.Add("validation_errors", 1)
		s.logger.Debug("embedding request rejected",
			zap.String("path", c.Path()),
			zap.String("reason", err.Error()),
		)
	}

	return c.Status(status).JSON(ErrorResponse{Detail: err.Error()})
}
