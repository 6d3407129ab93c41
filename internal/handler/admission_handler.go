package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/middleware"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/service"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/response"
)

type admissionService interface {
	List(ctx context.Context, query dto.AdmissionListQuery) ([]models.AdmissionConfirmation, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.AdmissionConfirmation, error)
	Create(ctx context.Context, req dto.CreateAdmissionRequest) (*models.AdmissionConfirmation, error)
	Confirm(ctx context.Context, id, reviewerID string, req dto.ConfirmAdmissionRequest) (*models.AdmissionConfirmation, error)
	Reject(ctx context.Context, id, reviewerID string, req dto.RejectAdmissionRequest) (*models.AdmissionConfirmation, error)
	Stats(ctx context.Context) (*models.AdmissionStats, bool, error)
	Export(ctx context.Context, query dto.AdmissionExportQuery) (*service.ExportFile, error)
}

// AdmissionHandler exposes the admission review dashboard.
type AdmissionHandler struct {
	service admissionService
}

// NewAdmissionHandler builds a new handler.
func NewAdmissionHandler(service admissionService) *AdmissionHandler {
	return &AdmissionHandler{service: service}
}

// List godoc
// @Summary List admission confirmations
// @Tags Admissions
// @Produce json
// @Param status query string false "PENDING, CONFIRMED or REJECTED"
// @Param search query string false "Substring of order or payment id"
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 10, max 100)"
// @Success 200 {object} response.Envelope
// @Router /admission-confirmations [get]
func (h *AdmissionHandler) List(c *gin.Context) {
	var query dto.AdmissionListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Stats godoc
// @Summary Admission counts by status
// @Tags Admissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admission-confirmations/stats [get]
func (h *AdmissionHandler) Stats(c *gin.Context) {
	stats, cacheHit, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.Meta(c))
}

// Export godoc
// @Summary Download admission confirmations
// @Tags Admissions
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param status query string false "Status filter"
// @Param search query string false "Substring of order or payment id"
// @Success 200 {file} file
// @Router /admission-confirmations/export [get]
func (h *AdmissionHandler) Export(c *gin.Context) {
	var query dto.AdmissionExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	file, err := h.service.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// Get godoc
// @Summary Get an admission confirmation
// @Tags Admissions
// @Produce json
// @Param id path string true "Admission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admission-confirmations/{id} [get]
func (h *AdmissionHandler) Get(c *gin.Context) {
	admission, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admission, nil)
}

// Create godoc
// @Summary Open a manual admission for review
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body dto.CreateAdmissionRequest true "Admission"
// @Success 201 {object} response.Envelope
// @Router /admission-confirmations [post]
func (h *AdmissionHandler) Create(c *gin.Context) {
	var req dto.CreateAdmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid admission payload"))
		return
	}
	admission, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, admission)
}

// Confirm godoc
// @Summary Confirm a pending admission
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Admission ID"
// @Param payload body dto.ConfirmAdmissionRequest false "Review"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admission-confirmations/{id}/confirm [put]
func (h *AdmissionHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmAdmissionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid confirmation payload"))
		return
	}
	admission, err := h.service.Confirm(c.Request.Context(), c.Param("id"), reviewerID(c, req.ReviewerID), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admission, nil)
}

// Reject godoc
// @Summary Reject a pending admission
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Admission ID"
// @Param payload body dto.RejectAdmissionRequest true "Review"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admission-confirmations/{id}/reject [put]
func (h *AdmissionHandler) Reject(c *gin.Context) {
	var req dto.RejectAdmissionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rejection payload"))
		return
	}
	admission, err := h.service.Reject(c.Request.Context(), c.Param("id"), reviewerID(c, req.ReviewerID), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admission, nil)
}

// reviewerID prefers an explicit reviewer and falls back to the authenticated user.
func reviewerID(c *gin.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if claims, ok := c.Value(middleware.ContextUserKey).(*models.JWTClaims); ok && claims != nil {
		return claims.UserID
	}
	return ""
}

func bindOptionalJSON(c *gin.Context, dest interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(dest)
}
