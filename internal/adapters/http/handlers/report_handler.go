package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"toolhub/internal/core/services"
	"toolhub/internal/pkg/response"
)

// ReportHandler serves the lending dashboard
type ReportHandler struct {
	reportService *services.ReportService
	finePerDay    decimal.Decimal
}

// NewReportHandler creates a new report handler
func NewReportHandler(reportService *services.ReportService, finePerDay decimal.Decimal) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		finePerDay:    finePerDay,
	}
}

// Summary returns stock and loan counters
// @Summary Dashboard summary
// @Description Stock totals, loans per status, overdue count and fines collected
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /reports/summary [get]
func (h *ReportHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.reportService.Summary(c.UserContext())
	if err != nil {
		return response.FromError(c, err, "Failed to get summary")
	}

	return response.Success(c, "Summary retrieved successfully", summary)
}

// Overdue lists lent loans past their planned return date
// @Summary Overdue loans
// @Description Each loan carries its days late and the fine accrued so far
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /reports/overdue [get]
func (h *ReportHandler) Overdue(c *fiber.Ctx) error {
	loans, err := h.reportService.Overdue(c.UserContext(), h.finePerDay)
	if err != nil {
		return response.FromError(c, err, "Failed to get overdue loans")
	}

	return response.Success(c, "Overdue loans retrieved successfully", fiber.Map{
		"loans": loans,
	})
}

// TopTools ranks the most borrowed tools
// @Summary Most borrowed tools
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of tools" default(10)
// @Success 200 {object} response.Response
// @Router /reports/top-tools [get]
func (h *ReportHandler) TopTools(c *fiber.Ctx) error {
	tools, err := h.reportService.TopTools(c.UserContext(), queryInt(c, "limit", 10))
	if err != nil {
		return response.FromError(c, err, "Failed to get top tools")
	}

	return response.Success(c, "Top tools retrieved successfully", fiber.Map{
		"tools": tools,
	})
}
