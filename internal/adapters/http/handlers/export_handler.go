package handlers

import (
	"bytes"

	"github.com/gofiber/fiber/v2"

	"toolhub/internal/core/services"
	"toolhub/internal/pkg/response"
)

// ExportHandler streams catalog and loan exports
type ExportHandler struct {
	exportService *services.ExportService
}

// NewExportHandler creates a new export handler
func NewExportHandler(exportService *services.ExportService) *ExportHandler {
	return &ExportHandler{exportService: exportService}
}

// send writes a finished export as an attachment
func send(c *fiber.Ctx, format services.ExportFormat, name string, buf *bytes.Buffer) error {
	c.Attachment(format.Filename(name))
	c.Set(fiber.HeaderContentType, format.ContentType())
	return c.Send(buf.Bytes())
}

// Tools exports the tool catalog
// @Summary Export tools
// @Description The columns match the tool import, so an export can be edited and re-imported
// @Tags Exports
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string false "csv or xlsx" default(csv)
// @Success 200 {file} file
// @Failure 422 {object} response.Response
// @Router /exports/tools [get]
func (h *ExportHandler) Tools(c *fiber.Ctx) error {
	format, err := services.ParseExportFormat(c.Query("format"))
	if err != nil {
		return response.FromError(c, err, "Invalid format")
	}

	var buf bytes.Buffer
	if err := h.exportService.ExportTools(c.UserContext(), format, &buf); err != nil {
		return response.FromError(c, err, "Failed to export tools")
	}
	return send(c, format, "tools", &buf)
}

// Loans exports loans with their return breakdown
// @Summary Export loans
// @Tags Exports
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string false "csv or xlsx" default(csv)
// @Param status query string false "Loan status"
// @Success 200 {file} file
// @Failure 422 {object} response.Response
// @Router /exports/loans [get]
func (h *ExportHandler) Loans(c *fiber.Ctx) error {
	format, err := services.ParseExportFormat(c.Query("format"))
	if err != nil {
		return response.FromError(c, err, "Invalid format")
	}

	var buf bytes.Buffer
	if err := h.exportService.ExportLoans(c.UserContext(), c.Query("status"), format, &buf); err != nil {
		return response.FromError(c, err, "Failed to export loans")
	}
	return send(c, format, "loans", &buf)
}
