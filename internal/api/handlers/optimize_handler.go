package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bq-insights/backend/internal/optimizer"
	"github.com/bq-insights/backend/internal/storage/models"
	"github.com/bq-insights/backend/internal/storage/sqlite"
	"github.com/bq-insights/backend/pkg/logger"
)

type OptimizeHandler struct {
	manager *optimizer.Manager
	history *sqlite.Client
}

func NewOptimizeHandler(manager *optimizer.Manager, history *sqlite.Client) *OptimizeHandler {
	return &OptimizeHandler{
		manager: manager,
		history: history,
	}
}

func (h *OptimizeHandler) HandleOptimize(c *fiber.Ctx) error {
	var req struct {
		Query string `json:"query"`
		DDL   string `json:"ddl"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" || req.DDL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Both 'query' and 'ddl' are required",
		})
	}

	result, err := h.manager.Optimize(c.Context(), req.Query, req.DDL)
	if err != nil {
		logger.Error("Failed to optimize query", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"recommendations": result.Recommendations,
	})
}

func (h *OptimizeHandler) GetOptimizationHistory(c *fiber.Ctx) error {
	if h.history == nil {
		return c.JSON(fiber.Map{
			"history": []models.OptimizationRecord{},
		})
	}

	limit := c.QueryInt("limit", 20)

	records, err := h.history.GetOptimizationHistory(limit)
	if err != nil {
		logger.Error("Failed to fetch optimization history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch optimization history",
		})
	}

	if records == nil {
		records = []models.OptimizationRecord{}
	}

	return c.JSON(fiber.Map{
		"history": records,
	})
}
