package dto

import "github.com/noah-isme/course-enrollment-api/internal/models"

// CaptureRequest asks for a payment order covering the listed courses.
type CaptureRequest struct {
	StudentID string   `json:"studentId" validate:"required"`
	CourseIDs []string `json:"courseIds" validate:"required,min=1,dive,required"`
}

// CaptureResponse carries the gateway order the client must pay.
type CaptureResponse struct {
	OrderID     string             `json:"orderId"`
	Amount      int64              `json:"amount"`
	Currency    string             `json:"currency"`
	Receipt     string             `json:"receipt"`
	RedirectURL string             `json:"redirectUrl,omitempty"`
	Breakdown   []models.QuoteLine `json:"breakdown"`
}

// VerifyRequest presents a payment proof together with the courses it pays for.
type VerifyRequest struct {
	StudentID string   `json:"studentId" validate:"required"`
	CourseIDs []string `json:"courseIds" validate:"required,min=1,dive,required"`
	OrderID   string   `json:"orderId" validate:"required"`
	PaymentID string   `json:"paymentId" validate:"required"`
	Signature string   `json:"signature" validate:"required"`
}

// VerifyResponse reports how each course fared.
type VerifyResponse struct {
	Outcomes []models.CourseOutcome `json:"outcomes"`
	Enrolled int                    `json:"enrolled"`
	Total    int                    `json:"total"`
}
