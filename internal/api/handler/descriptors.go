package handler

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/patientid/internal/domain"
	"github.com/saturnino-fabrica-de-software/patientid/internal/service"
)

// DescriptorAdmin is the cache administration side of the service.
type DescriptorAdmin interface {
	StartPreload() (<-chan struct{}, bool)
	Refresh(ctx context.Context, keys []string, meta service.RequestMeta) (domain.RefreshReport, error)
	Stats() domain.CacheStats
	ClearCache(ctx context.Context, meta service.RequestMeta) domain.ClearReport
}

type DescriptorsHandler struct {
	admin  DescriptorAdmin
	logger *slog.Logger
}

func NewDescriptorsHandler(admin DescriptorAdmin, logger *slog.Logger) *DescriptorsHandler {
	return &DescriptorsHandler{
		admin:  admin,
		logger: logger,
	}
}

type RefreshRequest struct {
	Keys []string `json:"keys"`
}

type PreloadResponse struct {
	Status string `json:"status"`
}

// Preload POST /v1/admin/descriptors/preload - warm the cache in background
func (h *DescriptorsHandler) Preload(c *fiber.Ctx) error {
	status := "started"
	if _, started := h.admin.StartPreload(); !started {
		status = "already_running"
	}
	h.logger.Info("preload requested", slog.String("status", status))
	return c.Status(fiber.StatusAccepted).JSON(PreloadResponse{Status: status})
}

// Refresh POST /v1/admin/descriptors/refresh - recompute selected identities
func (h *DescriptorsHandler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	report, err := h.admin.Refresh(c.Context(), req.Keys, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(report)
}

// Stats GET /v1/admin/descriptors/stats
func (h *DescriptorsHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(h.admin.Stats())
}

// Clear DELETE /v1/admin/descriptors - empty both caches
func (h *DescriptorsHandler) Clear(c *fiber.Ctx) error {
	return c.JSON(h.admin.ClearCache(c.Context(), requestMeta(c)))
}
