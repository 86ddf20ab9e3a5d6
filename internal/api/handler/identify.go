package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/patientid/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/patientid/internal/domain"
	"github.com/saturnino-fabrica-de-software/patientid/internal/service"
)

const (
	maxImageSize = 10 * 1024 * 1024 // 10MB
)

var validImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// IdentificationService interface for the service
type IdentificationService interface {
	Identify(ctx context.Context, image []byte, meta service.RequestMeta) (*domain.Identification, error)
}

// IdentifyHandler handles probe identification requests
type IdentifyHandler struct {
	service IdentificationService
	logger  *slog.Logger
}

func NewIdentifyHandler(service IdentificationService, logger *slog.Logger) *IdentifyHandler {
	return &IdentifyHandler{
		service: service,
		logger:  logger,
	}
}

// IdentityResponse is the matched identity; the portrait URL is not exposed.
type IdentityResponse struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// IdentifyResponse response for identify endpoint
type IdentifyResponse struct {
	Matched             bool              `json:"matched"`
	Identity            *IdentityResponse `json:"identity,omitempty"`
	Distance            *float64          `json:"distance,omitempty"`
	Confidence          string            `json:"confidence,omitempty"`
	RunnerUpDistance    *float64          `json:"runner_up_distance,omitempty"`
	CandidatesEvaluated int               `json:"candidates_evaluated"`
	GallerySize         int               `json:"gallery_size"`
	LatencyMs           int64             `json:"latency_ms"`
}

// Identify POST /v1/identify - match a probe photo against the gallery
func (h *IdentifyHandler) Identify(c *fiber.Ctx) error {
	// 1. Extract and validate image
	imageBytes, err := extractAndValidateImage(c)
	if err != nil {
		return fmt.Errorf("identify: %w", err)
	}

	// 2. Match
	result, err := h.service.Identify(c.Context(), imageBytes, requestMeta(c))
	if err != nil {
		return err
	}

	// 3. Return response
	return c.JSON(newIdentifyResponse(result))
}

func newIdentifyResponse(result *domain.Identification) IdentifyResponse {
	resp := IdentifyResponse{
		Matched:             result.Matched(),
		CandidatesEvaluated: result.CandidatesEvaluated,
		GallerySize:         result.GallerySize,
		LatencyMs:           result.LatencyMs,
	}
	if !result.Matched() {
		return resp
	}

	m := result.Match
	distance := m.Distance
	resp.Identity = &IdentityResponse{Key: m.Identity.Key, Name: m.Identity.Name}
	resp.Distance = &distance
	resp.Confidence = string(m.Confidence)
	resp.RunnerUpDistance = m.RunnerUpDistance
	return resp
}

// extractAndValidateImage extracts and validates the image from the form
func extractAndValidateImage(c *fiber.Ctx) ([]byte, error) {
	// 1. Extract file
	file, err := c.FormFile("image")
	if err != nil {
		return nil, domain.ErrValidationFailed.WithError(errors.New("image is required"))
	}

	// 2. Validate size
	if file.Size == 0 || file.Size > maxImageSize {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("image size %d outside 1..%d bytes", file.Size, maxImageSize))
	}

	// 3. Read image bytes
	f, err := file.Open()
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	defer func() {
		_ = f.Close()
	}()

	imageBytes, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}

	// 4. Validate Content-Type, sniffing when the client did not declare one
	contentType := file.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(imageBytes)
	}
	if !validImageTypes[contentType] {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("unsupported content type %q", contentType))
	}

	return imageBytes, nil
}

func requestMeta(c *fiber.Ctx) service.RequestMeta {
	return service.RequestMeta{
		RequestID: middleware.RequestID(c),
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}
