package handlers

import (
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/housefly/backend/internal/pipeline"
	"github.com/housefly/backend/pkg/logger"
)

type AdminHandler struct {
	refresher *pipeline.Refresher
	running   atomic.Bool
}

func NewAdminHandler(refresher *pipeline.Refresher) *AdminHandler {
	return &AdminHandler{refresher: refresher}
}

// HandleRefresh runs the full pipeline and blocks until it finishes; callers
// own their timeout. Overlapping runs would race on dedup and commit
// ordering, so a second trigger while one is in flight gets a 409.
func (h *AdminHandler) HandleRefresh(c *fiber.Ctx) error {
	if !h.running.CompareAndSwap(false, true) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Refresh already in progress",
		})
	}
	defer h.running.Store(false)

	if err := h.refresher.Run(c.Context()); err != nil {
		logger.Error("Refresh failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":    "error",
			"message":   "Data refresh failed",
			"timestamp": time.Now().Unix(),
		})
	}

	return c.JSON(fiber.Map{
		"status":    "success",
		"message":   "Data refresh completed",
		"timestamp": time.Now().Unix(),
	})
}
