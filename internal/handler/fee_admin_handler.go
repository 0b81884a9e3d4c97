package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidya-labs/school-console-api/internal/service"
	appErrors "github.com/vidya-labs/school-console-api/pkg/errors"
	"github.com/vidya-labs/school-console-api/pkg/response"
)

// FeeAdminHandler exposes catalog administration: fee heads, fee
// structures and late fine rules.
type FeeAdminHandler struct {
	catalog    *service.FeeCatalogService
	structures *service.FeeStructureService
}

// NewFeeAdminHandler creates a new handler.
func NewFeeAdminHandler(catalog *service.FeeCatalogService, structures *service.FeeStructureService) *FeeAdminHandler {
	return &FeeAdminHandler{catalog: catalog, structures: structures}
}

// ListFeeHeads godoc
// @Summary List fee heads
// @Tags Fee Catalog
// @Produce json
// @Security BearerAuth
// @Param active query bool false "Only active heads"
// @Success 200 {object} response.Envelope
// @Router /fees/heads [get]
func (h *FeeAdminHandler) ListFeeHeads(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	heads, err := h.catalog.ListFeeHeads(c.Request.Context(), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, heads, nil)
}

// GetFeeHead godoc
// @Summary Get a fee head
// @Tags Fee Catalog
// @Produce json
// @Security BearerAuth
// @Param id path string true "Fee head ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /fees/heads/{id} [get]
func (h *FeeAdminHandler) GetFeeHead(c *gin.Context) {
	head, err := h.catalog.GetFeeHead(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, head, nil)
}

// CreateFeeHead godoc
// @Summary Create a fee head
// @Tags Fee Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateFeeHeadRequest true "Fee head payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /fees/heads [post]
func (h *FeeAdminHandler) CreateFeeHead(c *gin.Context) {
	var req service.CreateFeeHeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid fee head payload"))
		return
	}

	head, err := h.catalog.CreateFeeHead(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, head)
}

// UpdateFeeHead godoc
// @Summary Update a fee head
// @Tags Fee Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Fee head ID"
// @Param payload body service.UpdateFeeHeadRequest true "Fee head payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /fees/heads/{id} [put]
func (h *FeeAdminHandler) UpdateFeeHead(c *gin.Context) {
	var req service.UpdateFeeHeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid fee head payload"))
		return
	}

	head, err := h.catalog.UpdateFeeHead(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, head, nil)
}

// DeactivateFeeHead godoc
// @Summary Deactivate a fee head
// @Description Retire a fee head; heads referenced by payments are never deleted
// @Tags Fee Catalog
// @Produce json
// @Security BearerAuth
// @Param id path string true "Fee head ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /fees/heads/{id} [delete]
func (h *FeeAdminHandler) DeactivateFeeHead(c *gin.Context) {
	head, err := h.catalog.DeactivateFeeHead(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, head, nil)
}

// ListStructures godoc
// @Summary List fee structure entries
// @Tags Fee Catalog
// @Produce json
// @Security BearerAuth
// @Param academic_year query string true "Academic year, e.g. 2025-2026"
// @Param active query bool false "Only active entries"
// @Success 200 {object} response.Envelope
// @Router /fees/structures [get]
func (h *FeeAdminHandler) ListStructures(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	entries, err := h.structures.List(c.Request.Context(), c.Query("academic_year"), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// UpsertStructure godoc
// @Summary Set a fee structure amount
// @Description Replace the active entry for a (fee head, class, ward, year) tuple, keeping history
// @Tags Fee Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.UpsertStructureRequest true "Structure payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /fees/structures [put]
func (h *FeeAdminHandler) UpsertStructure(c *gin.Context) {
	var req service.UpsertStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid fee structure payload"))
		return
	}

	entry, err := h.structures.Upsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// ListFineRules godoc
// @Summary List late fine rules
// @Tags Fee Catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /fees/fine-rules [get]
func (h *FeeAdminHandler) ListFineRules(c *gin.Context) {
	rules, err := h.catalog.ListFineRules(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rules, nil)
}

// CreateFineRule godoc
// @Summary Create a late fine rule
// @Description Validate and store a tiered late fine schedule
// @Tags Fee Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateFineRuleRequest true "Fine rule payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /fees/fine-rules [post]
func (h *FeeAdminHandler) CreateFineRule(c *gin.Context) {
	var req service.CreateFineRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid fine rule payload"))
		return
	}

	rule, err := h.catalog.CreateFineRule(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rule)
}

// DeactivateFineRule godoc
// @Summary Deactivate a late fine rule
// @Tags Fee Catalog
// @Produce json
// @Security BearerAuth
// @Param id path string true "Fine rule ID"
// @Success 204 {object} response.Envelope
// @Router /fees/fine-rules/{id} [delete]
func (h *FeeAdminHandler) DeactivateFineRule(c *gin.Context) {
	if err := h.catalog.DeactivateFineRule(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
