package handlers

import (
	"github.com/gofiber/fiber/v2"

	"toolhub/internal/core/domain"
	"toolhub/internal/core/services"
	"toolhub/internal/pkg/response"
)

// CategoryHandler handles tool category master data
type CategoryHandler struct {
	categoryService *services.CategoryService
}

// NewCategoryHandler creates a new category handler
func NewCategoryHandler(categoryService *services.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

// List lists categories
// @Summary List categories
// @Description Active categories; staff and admins may pass include_inactive=true
// @Tags Categories
// @Produce json
// @Param include_inactive query bool false "Include inactive categories"
// @Success 200 {object} response.Response
// @Router /categories [get]
func (h *CategoryHandler) List(c *fiber.Ctx) error {
	includeInactive := c.QueryBool("include_inactive") &&
		(currentRole(c) == string(domain.RoleStaff) || currentRole(c) == string(domain.RoleAdmin))

	categories, err := h.categoryService.List(c.UserContext(), includeInactive)
	if err != nil {
		return response.FromError(c, err, "Failed to list categories")
	}

	return response.Success(c, "Categories retrieved successfully", fiber.Map{
		"categories": categories,
	})
}

// Get gets a category by ID
// @Summary Get category
// @Tags Categories
// @Produce json
// @Param id path int true "Category ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /categories/{id} [get]
func (h *CategoryHandler) Get(c *fiber.Ctx) error {
	id, ok := paramID(c, "id", "category")
	if !ok {
		return nil
	}

	category, err := h.categoryService.GetByID(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err, "Failed to get category")
	}

	return response.Success(c, "Category retrieved successfully", fiber.Map{
		"category": category,
	})
}

// Create creates a category
// @Summary Create category
// @Tags Categories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CategoryInput true "Category data"
// @Success 201 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /categories [post]
func (h *CategoryHandler) Create(c *fiber.Ctx) error {
	var req services.CategoryInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	category, err := h.categoryService.Create(c.UserContext(), &req)
	if err != nil {
		return response.FromError(c, err, "Failed to create category")
	}

	return response.Created(c, "Category created successfully", fiber.Map{
		"category": category,
	})
}

// Update updates a category
// @Summary Update category
// @Tags Categories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Category ID"
// @Param body body services.CategoryInput true "Category data"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /categories/{id} [put]
func (h *CategoryHandler) Update(c *fiber.Ctx) error {
	id, ok := paramID(c, "id", "category")
	if !ok {
		return nil
	}

	var req services.CategoryInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	category, err := h.categoryService.Update(c.UserContext(), id, &req)
	if err != nil {
		return response.FromError(c, err, "Failed to update category")
	}

	return response.Success(c, "Category updated successfully", fiber.Map{
		"category": category,
	})
}

// Delete deletes an unused category
// @Summary Delete category
// @Tags Categories
// @Produce json
// @Security BearerAuth
// @Param id path int true "Category ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 412 {object} response.Response
// @Router /categories/{id} [delete]
func (h *CategoryHandler) Delete(c *fiber.Ctx) error {
	id, ok := paramID(c, "id", "category")
	if !ok {
		return nil
	}

	if err := h.categoryService.Delete(c.UserContext(), id); err != nil {
		return response.FromError(c, err, "Failed to delete category")
	}

	return response.Success(c, "Category deleted successfully", nil)
}
