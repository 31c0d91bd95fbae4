package handlers

import (
	"github.com/gofiber/fiber/v2"

	"toolhub/internal/core/services"
	"toolhub/internal/pkg/response"
)

// ReturnHandler handles return reconciliation
type ReturnHandler struct {
	returnService *services.ReturnService
}

// NewReturnHandler creates a new return handler
func NewReturnHandler(returnService *services.ReturnService) *ReturnHandler {
	return &ReturnHandler{returnService: returnService}
}

// Reconcile records the return of a lent loan
// @Summary Reconcile return
// @Description Split the returned units into good, damaged and lost. The
// @Description buckets must sum to the loan quantity. The return date is
// @Description today; late days and fine are computed from it.
// @Tags Returns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param body body services.ReconcileInput true "Return breakdown"
// @Success 201 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 412 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /loans/{id}/return [post]
func (h *ReturnHandler) Reconcile(c *fiber.Ctx) error {
	loanID, ok := paramID(c, "id", "loan")
	if !ok {
		return nil
	}

	var req services.ReconcileInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.LoanID = loanID

	staffID, _ := currentUser(c)
	record, err := h.returnService.ReconcileReturn(c.UserContext(), &req, staffID, getClientIP(c))
	if err != nil {
		return response.FromError(c, err, "Failed to record return")
	}

	return response.Created(c, "Return recorded successfully", fiber.Map{
		"return": record,
	})
}

// GetByLoan gets the return record of a loan
// @Summary Get return of a loan
// @Tags Returns
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id}/return [get]
func (h *ReturnHandler) GetByLoan(c *fiber.Ctx) error {
	loanID, ok := paramID(c, "id", "loan")
	if !ok {
		return nil
	}

	record, err := h.returnService.GetByLoanID(c.UserContext(), loanID)
	if err != nil {
		return response.FromError(c, err, "Failed to get return")
	}

	return response.Success(c, "Return retrieved successfully", fiber.Map{
		"return": record,
	})
}

// Get gets a return record
// @Summary Get return
// @Tags Returns
// @Produce json
// @Security BearerAuth
// @Param id path int true "Return ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /returns/{id} [get]
func (h *ReturnHandler) Get(c *fiber.Ctx) error {
	id, ok := paramID(c, "id", "return")
	if !ok {
		return nil
	}

	record, err := h.returnService.GetByID(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err, "Failed to get return")
	}

	return response.Success(c, "Return retrieved successfully", fiber.Map{
		"return": record,
	})
}

// List lists return records
// @Summary List returns
// @Tags Returns
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Success 200 {object} response.Response
// @Router /returns [get]
func (h *ReturnHandler) List(c *fiber.Ctx) error {
	result, err := h.returnService.List(c.UserContext(), queryInt(c, "page", 1), queryInt(c, "limit", 10))
	if err != nil {
		return response.FromError(c, err, "Failed to list returns")
	}

	return response.Success(c, "Returns retrieved successfully", result)
}

// Correct edits a recorded return and moves stock by the difference
// @Summary Correct return
// @Tags Returns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Return ID"
// @Param body body services.CorrectReturnInput true "Corrected breakdown"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /returns/{id} [put]
func (h *ReturnHandler) Correct(c *fiber.Ctx) error {
	id, ok := paramID(c, "id", "return")
	if !ok {
		return nil
	}

	var req services.CorrectReturnInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	staffID, _ := currentUser(c)
	record, err := h.returnService.CorrectReturn(c.UserContext(), id, &req, staffID, getClientIP(c))
	if err != nil {
		return response.FromError(c, err, "Failed to correct return")
	}

	return response.Success(c, "Return corrected successfully", fiber.Map{
		"return": record,
	})
}
