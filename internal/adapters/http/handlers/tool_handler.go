package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"toolhub/internal/adapters/persistence/models"
	"toolhub/internal/core/services"
	"toolhub/internal/pkg/response"
)

// ToolHandler handles the tool catalog
type ToolHandler struct {
	toolService *services.ToolService
}

// NewToolHandler creates a new tool handler
func NewToolHandler(toolService *services.ToolService) *ToolHandler {
	return &ToolHandler{toolService: toolService}
}

// StockRequest sets the administrative stock total
type StockRequest struct {
	StockTotal *int `json:"stock_total"`
}

// RepairRequest settles units under repair
type RepairRequest struct {
	Units  int    `json:"units"`
	Action string `json:"action"` // complete | write_off
}

// List lists tools
// @Summary List tools
// @Tags Tools
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Param search query string false "Code or name"
// @Param category_id query int false "Category"
// @Param available query bool false "Only tools with available units"
// @Success 200 {object} response.Response
// @Router /tools [get]
func (h *ToolHandler) List(c *fiber.Ctx) error {
	input := &services.ListToolsInput{
		Page:      queryInt(c, "page", 1),
		Limit:     queryInt(c, "limit", 10),
		Search:    c.Query("search"),
		Available: c.QueryBool("available"),
	}
	if id := queryInt(c, "category_id", 0); id > 0 {
		categoryID := uint(id)
		input.CategoryID = &categoryID
	}

	result, err := h.toolService.List(c.UserContext(), input)
	if err != nil {
		return response.FromError(c, err, "Failed to list tools")
	}

	return response.Success(c, "Tools retrieved successfully", result)
}

// Get gets a tool by ID
// @Summary Get tool
// @Tags Tools
// @Produce json
// @Security BearerAuth
// @Param id path int true "Tool ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /tools/{id} [get]
func (h *ToolHandler) Get(c *fiber.Ctx) error {
	id, ok := paramID(c, "id", "tool")
	if !ok {
		return nil
	}

	tool, err := h.toolService.GetByID(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err, "Failed to get tool")
	}

	return response.Success(c, "Tool retrieved successfully", fiber.Map{
		"tool": tool,
	})
}

// Create adds a tool
// @Summary Create tool
// @Description Every unit of a new tool starts available. A blank code is generated.
// @Tags Tools
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.ToolInput true "Tool data"
// @Success 201 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /tools [post]
func (h *ToolHandler) Create(c *fiber.Ctx) error {
	var req services.ToolInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	tool, err := h.toolService.Create(c.UserContext(), &req)
	if err != nil {
		return response.FromError(c, err, "Failed to create tool")
	}

	return response.Created(c, "Tool created successfully", fiber.Map{
		"tool": tool,
	})
}

// Update changes descriptive fields of a tool
// @Summary Update tool
// @Description stock_total is ignored here; use PUT /tools/{id}/stock
// @Tags Tools
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Tool ID"
// @Param body body services.ToolInput true "Tool data"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /tools/{id} [put]
func (h *ToolHandler) Update(c *fiber.Ctx) error {
	id, ok := paramID(c, "id", "tool")
	if !ok {
		return nil
	}

	var req services.ToolInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	tool, err := h.toolService.Update(c.UserContext(), id, &req)
	if err != nil {
		return response.FromError(c, err, "Failed to update tool")
	}

	return response.Success(c, "Tool updated successfully", fiber.Map{
		"tool": tool,
	})
}

// Delete removes a tool with no units lent out
// @Summary Delete tool
// @Tags Tools
// @Produce json
// @Security BearerAuth
// @Param id path int true "Tool ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 412 {object} response.Response
// @Router /tools/{id} [delete]
func (h *ToolHandler) Delete(c *fiber.Ctx) error {
	id, ok := paramID(c, "id", "tool")
	if !ok {
		return nil
	}

	if err := h.toolService.Delete(c.UserContext(), id); err != nil {
		return response.FromError(c, err, "Failed to delete tool")
	}

	return response.Success(c, "Tool deleted successfully", nil)
}

// SetStock changes the stock total
// @Summary Set stock total
// @Tags Tools
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Tool ID"
// @Param body body StockRequest true "New total"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /tools/{id}/stock [put]
func (h *ToolHandler) SetStock(c *fiber.Ctx) error {
	id, ok := paramID(c, "id", "tool")
	if !ok {
		return nil
	}

	var req StockRequest
	if err := c.BodyParser(&req); err != nil || req.StockTotal == nil {
		return response.BadRequest(c, "stock_total is required")
	}

	tool, err := h.toolService.SetTotal(c.UserContext(), id, *req.StockTotal)
	if err != nil {
		return response.FromError(c, err, "Failed to set stock")
	}

	return response.Success(c, "Stock updated successfully", fiber.Map{
		"tool": tool,
	})
}

// Repair settles units under repair
// @Summary Complete or write off repairs
// @Description action=complete returns units to available, action=write_off removes them
// @Tags Tools
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Tool ID"
// @Param body body RepairRequest true "Units and action"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /tools/{id}/repair [post]
func (h *ToolHandler) Repair(c *fiber.Ctx) error {
	id, ok := paramID(c, "id", "tool")
	if !ok {
		return nil
	}

	var req RepairRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	var (
		tool *models.Tool
		err  error
	)
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "", "complete":
		tool, err = h.toolService.CompleteRepair(c.UserContext(), id, req.Units)
	case "write_off":
		tool, err = h.toolService.WriteOffRepair(c.UserContext(), id, req.Units)
	default:
		return response.BadRequest(c, "action must be complete or write_off")
	}
	if err != nil {
		return response.FromError(c, err, "Failed to settle repair")
	}

	return response.Success(c, "Repair settled successfully", fiber.Map{
		"tool": tool,
	})
}
