package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/response"
)

type paymentService interface {
	Capture(ctx context.Context, req dto.CaptureRequest) (*dto.CaptureResponse, error)
	Verify(ctx context.Context, req dto.VerifyRequest) (*dto.VerifyResponse, error)
}

// PaymentHandler exposes order capture and payment verification.
type PaymentHandler struct {
	service paymentService
}

// NewPaymentHandler builds a new handler.
func NewPaymentHandler(service paymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// Capture godoc
// @Summary Create a payment order for a cart of courses
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body dto.CaptureRequest true "Cart"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /payments/capture [post]
func (h *PaymentHandler) Capture(c *gin.Context) {
	var req dto.CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid capture payload"))
		return
	}
	order, err := h.service.Capture(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, order)
}

// Verify godoc
// @Summary Verify a completed payment and enroll the student
// @Description Returns per-course outcomes; a 200 means the signature was valid even if some courses failed.
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body dto.VerifyRequest true "Payment proof"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/verify [post]
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrMissingFields.Code, http.StatusBadRequest, "invalid verify payload"))
		return
	}
	result, err := h.service.Verify(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
