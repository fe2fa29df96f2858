package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bq-insights/backend/internal/dashboard"
	"github.com/bq-insights/backend/internal/ddl"
	"github.com/bq-insights/backend/internal/warehouse"
	"github.com/bq-insights/backend/pkg/logger"
)

// DashboardHandler serves the analytics views. composer and meta are nil when
// the warehouse client failed to initialize at startup; every endpoint that
// needs them reports that instead of panicking.
type DashboardHandler struct {
	composer *dashboard.Composer
	meta     warehouse.Introspector
	location string
}

func NewDashboardHandler(composer *dashboard.Composer, meta warehouse.Introspector, location string) *DashboardHandler {
	return &DashboardHandler{
		composer: composer,
		meta:     meta,
		location: location,
	}
}

func (h *DashboardHandler) warehouseUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "BigQuery client not initialized",
		"debug": "BigQuery client not available",
	})
}

func (h *DashboardHandler) GetExpensiveQueries(c *fiber.Ctx) error {
	if h.composer == nil {
		return h.warehouseUnavailable(c)
	}

	project := c.Query("project", "any_value")
	region := c.Query("region", "")

	payload, err := h.composer.ExpensiveQueries(c.Context(), project, region)
	if err != nil {
		logger.Error("Failed to fetch expensive queries", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   err.Error(),
			"message": "Unable to fetch queries from INFORMATION_SCHEMA. Check permissions and region configuration.",
			"queries": []interface{}{},
		})
	}

	return c.JSON(payload)
}

func (h *DashboardHandler) GetQueryDetails(c *fiber.Ctx) error {
	if h.meta == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "BigQuery client not initialized",
		})
	}

	var req struct {
		JobID    string `json:"job_id"`
		Location string `json:"location"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.JobID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "job_id is required",
		})
	}

	location := req.Location
	if location == "" {
		location = h.location
	}

	job, err := h.meta.JobInfo(c.Context(), req.JobID, location)
	if err != nil {
		logger.Error("Failed to fetch job",
			zap.String("job_id", req.JobID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	statements := make([]string, 0, len(job.ReferencedTables))
	for _, ref := range job.ReferencedTables {
		meta, err := h.meta.TableMeta(c.Context(), ref)
		if err != nil {
			statements = append(statements, ddl.ErrorComment(ref, err))
			continue
		}
		statements = append(statements, ddl.ForTable(meta))
	}

	return c.JSON(fiber.Map{
		"query": job.Query,
		"ddl":   ddl.Join(statements),
	})
}

func (h *DashboardHandler) GetOrganizationOverview(c *fiber.Ctx) error {
	if h.composer == nil {
		return h.warehouseUnavailable(c)
	}

	payload, err := h.composer.OrganizationOverview(c.Context())
	if err != nil {
		logger.Error("Failed to compose organization overview", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(payload)
}

func (h *DashboardHandler) GetOperationalDashboard(c *fiber.Ctx) error {
	if h.composer == nil {
		return h.warehouseUnavailable(c)
	}

	timeRange := c.Query("timeRange", "24h")
	project := c.Query("project", "any_value")
	region := c.Query("region", "")

	payload, err := h.composer.OperationalDashboard(c.Context(), timeRange, project, region)
	if err != nil {
		logger.Error("Failed to compose operational dashboard", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(payload)
}

func (h *DashboardHandler) GetProjectDetails(c *fiber.Ctx) error {
	if h.composer == nil {
		return h.warehouseUnavailable(c)
	}

	projectID := c.Params("id")

	payload, err := h.composer.ProjectDetails(c.Context(), projectID)
	if err != nil {
		if errors.Is(err, dashboard.ErrProjectNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Project not found",
			})
		}
		logger.Error("Failed to compose project details",
			zap.String("project", projectID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(payload)
}

func (h *DashboardHandler) GetPulseData(c *fiber.Ctx) error {
	if h.composer == nil {
		return h.warehouseUnavailable(c)
	}

	project := c.Query("project", "any_value")

	payload, err := h.composer.PulseData(c.Context(), project)
	if err != nil {
		logger.Error("Failed to compose pulse data", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(payload)
}

func (h *DashboardHandler) GetProjects(c *fiber.Ctx) error {
	if h.composer == nil {
		return h.warehouseUnavailable(c)
	}

	projects, err := h.composer.Projects(c.Context())
	if err != nil {
		logger.Error("Failed to list projects", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"projects": projects,
	})
}

func (h *DashboardHandler) GetTimeWindowInvestigation(c *fiber.Ctx) error {
	if h.composer == nil {
		return h.warehouseUnavailable(c)
	}

	filter := c.Query("filter", "is in the last 1 complete day")

	payload, err := h.composer.TimeWindowInvestigation(c.Context(), filter)
	if err != nil {
		logger.Error("Failed to compose investigation", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(payload)
}
