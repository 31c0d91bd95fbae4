package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"toolhub/internal/adapters/spreadsheet"
	"toolhub/internal/core/services"
	"toolhub/internal/pkg/response"
)

// ImportHandler handles spreadsheet imports of tools and users
type ImportHandler struct {
	importService *services.ImportService
	log           *zap.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(importService *services.ImportService) *ImportHandler {
	return &ImportHandler{
		importService: importService,
		log:           zap.L().Named("import"),
	}
}

// upload reads the kind, the uploaded sheet and the optional mapping.
// On failure the response is already written and ok is false.
func (h *ImportHandler) upload(c *fiber.Ctx) (services.ImportKind, *spreadsheet.Table, map[string]string, bool) {
	kind, err := services.ParseImportKind(c.Params("kind"))
	if err != nil {
		_ = response.FromError(c, err, "Invalid import kind")
		return "", nil, nil, false
	}

	fh, err := c.FormFile("file")
	if err != nil {
		_ = response.BadRequest(c, "file is required")
		return "", nil, nil, false
	}
	f, err := fh.Open()
	if err != nil {
		_ = response.BadRequest(c, "Cannot read uploaded file")
		return "", nil, nil, false
	}
	defer f.Close()

	table, err := spreadsheet.Read(fh.Filename, f, kind.Vocabulary())
	switch {
	case errors.Is(err, spreadsheet.ErrUnsupportedFormat):
		_ = response.BadRequest(c, "Only .csv and .xlsx files are supported")
		return "", nil, nil, false
	case errors.Is(err, spreadsheet.ErrEmpty):
		_ = response.UnprocessableEntity(c, "Spreadsheet has no data")
		return "", nil, nil, false
	case err != nil:
		h.log.Warn("unreadable spreadsheet", zap.String("file", fh.Filename), zap.Error(err))
		_ = response.BadRequest(c, "Cannot parse spreadsheet")
		return "", nil, nil, false
	}

	var mapping map[string]string
	if raw := c.FormValue("mapping"); raw != "" {
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(raw, &mapping); err != nil {
			_ = response.BadRequest(c, "mapping must be a JSON object of field to header")
			return "", nil, nil, false
		}
	}

	return kind, table, mapping, true
}

// Preview parses an upload and reports what a commit would do
// @Summary Preview spreadsheet import
// @Description Detects the header row, proposes a column mapping and lists
// @Description duplicate and invalid rows. Nothing is stored.
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param kind path string true "tools or users"
// @Param file formData file true "CSV or XLSX file"
// @Param mapping formData string false "JSON object: field -> header"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /imports/{kind}/preview [post]
func (h *ImportHandler) Preview(c *fiber.Ctx) error {
	kind, table, mapping, ok := h.upload(c)
	if !ok {
		return nil
	}

	preview, err := h.importService.Preview(c.UserContext(), kind, table, mapping)
	if err != nil {
		return response.FromError(c, err, "Failed to preview import")
	}

	return response.Success(c, "Import preview ready", preview)
}

// Commit stores every row of an upload, or none of them
// @Summary Commit spreadsheet import
// @Description A single duplicate or invalid row rejects the whole batch;
// @Description the offending rows are returned in details.
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param kind path string true "tools or users"
// @Param file formData file true "CSV or XLSX file"
// @Param mapping formData string false "JSON object: field -> header"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /imports/{kind}/commit [post]
func (h *ImportHandler) Commit(c *fiber.Ctx) error {
	kind, table, mapping, ok := h.upload(c)
	if !ok {
		return nil
	}

	result, err := h.importService.Commit(c.UserContext(), kind, table, mapping)
	if err != nil {
		var rejected *services.ImportRejectedError
		if errors.As(err, &rejected) {
			return response.ErrorWithDetails(c, response.Status(err), rejected.Error(), rejected)
		}
		return response.FromError(c, err, "Failed to import")
	}

	return response.Created(c, "Import completed successfully", result)
}

// Fields lists the target fields a column can be mapped to
// @Summary List import fields
// @Tags Imports
// @Produce json
// @Security BearerAuth
// @Param kind path string true "tools or users"
// @Success 200 {object} response.Response
// @Router /imports/{kind}/fields [get]
func (h *ImportHandler) Fields(c *fiber.Ctx) error {
	kind, err := services.ParseImportKind(c.Params("kind"))
	if err != nil {
		return response.FromError(c, err, "Invalid import kind")
	}

	return response.Success(c, "Import fields retrieved successfully", fiber.Map{
		"kind":   kind,
		"fields": kind.Vocabulary(),
	})
}
