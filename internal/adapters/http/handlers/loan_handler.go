package handlers

import (
	"github.com/gofiber/fiber/v2"

	"toolhub/internal/adapters/persistence/models"
	"toolhub/internal/core/domain"
	"toolhub/internal/core/services"
	"toolhub/internal/pkg/response"
)

// LoanHandler handles the loan life cycle
type LoanHandler struct {
	loanService *services.LoanService
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(loanService *services.LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

// NoteRequest carries the validator's note on approve or reject
type NoteRequest struct {
	Note string `json:"note"`
}

func isBorrower(c *fiber.Ctx) bool {
	return currentRole(c) == string(domain.RoleBorrower)
}

// visible loads a loan and hides other people's loans from borrowers
func (h *LoanHandler) visible(c *fiber.Ctx, id uint) (*models.Loan, error) {
	loan, err := h.loanService.GetByID(c.UserContext(), id)
	if err != nil {
		return nil, err
	}
	if userID, _ := currentUser(c); isBorrower(c) && loan.BorrowerID != userID {
		return nil, services.ErrLoanNotFound
	}
	return loan, nil
}

// Create opens a loan request
// @Summary Create loan request
// @Description Borrowers request for themselves; staff may set borrower_id
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateLoanInput true "Loan data"
// @Success 201 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 412 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /loans [post]
func (h *LoanHandler) Create(c *fiber.Ctx) error {
	var req services.CreateLoanInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.ToolID == 0 {
		return response.BadRequest(c, "tool_id is required")
	}

	userID, _ := currentUser(c)
	if isBorrower(c) {
		req.BorrowerID = 0
	}

	loan, err := h.loanService.Create(c.UserContext(), &req, userID, getClientIP(c))
	if err != nil {
		return response.FromError(c, err, "Failed to create loan")
	}

	return response.Created(c, "Loan created successfully", fiber.Map{
		"loan": loan.ToResponse(),
	})
}

// List lists loans
// @Summary List loans
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Param status query string false "pending, approved, rejected, lent or returned"
// @Param borrower_id query int false "Borrower"
// @Param tool_id query int false "Tool"
// @Param overdue query bool false "Only lent loans past their planned return date"
// @Param search query string false "Loan code"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /loans [get]
func (h *LoanHandler) List(c *fiber.Ctx) error {
	input := listLoansInput(c)
	if id := queryInt(c, "borrower_id", 0); id > 0 {
		borrowerID := uint(id)
		input.BorrowerID = &borrowerID
	}

	result, err := h.loanService.List(c.UserContext(), input)
	if err != nil {
		return response.FromError(c, err, "Failed to list loans")
	}

	return response.Success(c, "Loans retrieved successfully", result)
}

// ListMine lists the caller's own loans
// @Summary List my loans
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Param status query string false "Loan status"
// @Success 200 {object} response.Response
// @Router /loans/my [get]
func (h *LoanHandler) ListMine(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	result, err := h.loanService.ListMine(c.UserContext(), userID, listLoansInput(c))
	if err != nil {
		return response.FromError(c, err, "Failed to list loans")
	}

	return response.Success(c, "Loans retrieved successfully", result)
}

func listLoansInput(c *fiber.Ctx) *services.ListLoansInput {
	input := &services.ListLoansInput{
		Page:    queryInt(c, "page", 1),
		Limit:   queryInt(c, "limit", 10),
		Status:  c.Query("status"),
		Overdue: c.QueryBool("overdue"),
		Search:  c.Query("search"),
	}
	if id := queryInt(c, "tool_id", 0); id > 0 {
		toolID := uint(id)
		input.ToolID = &toolID
	}
	return input
}

// Get gets a loan by ID
// @Summary Get loan
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id} [get]
func (h *LoanHandler) Get(c *fiber.Ctx) error {
	id, ok := paramID(c, "id", "loan")
	if !ok {
		return nil
	}

	loan, err := h.visible(c, id)
	if err != nil {
		return response.FromError(c, err, "Failed to get loan")
	}

	return response.Success(c, "Loan retrieved successfully", fiber.Map{
		"loan": loan.ToResponse(),
	})
}

// History gets the audit trail of a loan, newest first
// @Summary Get loan history
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id}/history [get]
func (h *LoanHandler) History(c *fiber.Ctx) error {
	id, ok := paramID(c, "id", "loan")
	if !ok {
		return nil
	}
	if _, err := h.visible(c, id); err != nil {
		return response.FromError(c, err, "Failed to get loan history")
	}

	history, err := h.loanService.History(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err, "Failed to get loan history")
	}

	return response.Success(c, "Loan history retrieved successfully", fiber.Map{
		"history": history,
	})
}

// Receipt returns the data for a printable loan slip
// @Summary Get loan receipt
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id}/receipt [get]
func (h *LoanHandler) Receipt(c *fiber.Ctx) error {
	id, ok := paramID(c, "id", "loan")
	if !ok {
		return nil
	}
	if _, err := h.visible(c, id); err != nil {
		return response.FromError(c, err, "Failed to get receipt")
	}

	receipt, err := h.loanService.Receipt(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err, "Failed to get receipt")
	}

	return response.Success(c, "Receipt retrieved successfully", fiber.Map{
		"receipt": receipt,
	})
}

// Approve approves a pending loan
// @Summary Approve loan
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param body body NoteRequest false "Optional note"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 412 {object} response.Response
// @Router /loans/{id}/approve [put]
func (h *LoanHandler) Approve(c *fiber.Ctx) error {
	id, ok := paramID(c, "id", "loan")
	if !ok {
		return nil
	}

	var req NoteRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}

	userID, _ := currentUser(c)
	loan, err := h.loanService.Approve(c.UserContext(), id, userID, req.Note, getClientIP(c))
	if err != nil {
		return response.FromError(c, err, "Failed to approve loan")
	}

	return response.Success(c, "Loan approved successfully", fiber.Map{
		"loan": loan.ToResponse(),
	})
}

// Reject rejects a pending loan
// @Summary Reject loan
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param body body NoteRequest true "Reason"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 412 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /loans/{id}/reject [put]
func (h *LoanHandler) Reject(c *fiber.Ctx) error {
	id, ok := paramID(c, "id", "loan")
	if !ok {
		return nil
	}

	var req NoteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	userID, _ := currentUser(c)
	loan, err := h.loanService.Reject(c.UserContext(), id, userID, req.Note, getClientIP(c))
	if err != nil {
		return response.FromError(c, err, "Failed to reject loan")
	}

	return response.Success(c, "Loan rejected successfully", fiber.Map{
		"loan": loan.ToResponse(),
	})
}

// Lend hands an approved loan out, taking units from available stock
// @Summary Hand out loan
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 412 {object} response.Response
// @Router /loans/{id}/lend [put]
func (h *LoanHandler) Lend(c *fiber.Ctx) error {
	id, ok := paramID(c, "id", "loan")
	if !ok {
		return nil
	}

	userID, _ := currentUser(c)
	loan, err := h.loanService.Lend(c.UserContext(), id, userID, getClientIP(c))
	if err != nil {
		return response.FromError(c, err, "Failed to lend loan")
	}

	return response.Success(c, "Loan handed out successfully", fiber.Map{
		"loan": loan.ToResponse(),
	})
}
