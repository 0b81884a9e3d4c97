package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidya-labs/school-console-api/internal/service"
	appErrors "github.com/vidya-labs/school-console-api/pkg/errors"
	"github.com/vidya-labs/school-console-api/pkg/response"
)

// WardHandler exposes ward categories.
type WardHandler struct {
	service *service.WardService
}

// NewWardHandler creates a new handler.
func NewWardHandler(svc *service.WardService) *WardHandler {
	return &WardHandler{service: svc}
}

// List godoc
// @Summary List wards
// @Tags Wards
// @Produce json
// @Security BearerAuth
// @Param active query bool false "Only active wards"
// @Success 200 {object} response.Envelope
// @Router /wards [get]
func (h *WardHandler) List(c *gin.Context) {
	wards, err := h.service.List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, wards, nil)
}

// Get godoc
// @Summary Get a ward
// @Tags Wards
// @Produce json
// @Security BearerAuth
// @Param id path string true "Ward ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /wards/{id} [get]
func (h *WardHandler) Get(c *gin.Context) {
	ward, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ward, nil)
}

// Create godoc
// @Summary Create a ward
// @Tags Wards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.WardRequest true "Ward payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /wards [post]
func (h *WardHandler) Create(c *gin.Context) {
	var req service.WardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid ward payload"))
		return
	}

	ward, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ward)
}

// Update godoc
// @Summary Update a ward
// @Tags Wards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Ward ID"
// @Param payload body service.WardRequest true "Ward payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /wards/{id} [put]
func (h *WardHandler) Update(c *gin.Context) {
	var req service.WardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid ward payload"))
		return
	}

	ward, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ward, nil)
}
