package models

import (
	"encoding/json"
	"time"
)

// AdmissionStatus captures the review state of an admission confirmation.
type AdmissionStatus string

const (
	AdmissionStatusPending   AdmissionStatus = "PENDING"
	AdmissionStatusConfirmed AdmissionStatus = "CONFIRMED"
	AdmissionStatusRejected  AdmissionStatus = "REJECTED"
)

// AdmissionConfirmation records the admission decision for a student and course.
// Payment columns are populated only for records created from a verified payment
// and are serialized together as payment_details.
type AdmissionConfirmation struct {
	ID              string          `db:"id" json:"id"`
	StudentID       string          `db:"student_id" json:"student_id"`
	CourseID        string          `db:"course_id" json:"course_id"`
	OrderID         *string         `db:"order_id" json:"-"`
	PaymentID       *string         `db:"payment_id" json:"-"`
	Amount          *int64          `db:"amount" json:"-"`
	PaidAt          *time.Time      `db:"paid_at" json:"-"`
	Status          AdmissionStatus `db:"status" json:"status"`
	ReviewedBy      *string         `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time      `db:"reviewed_at" json:"reviewed_at,omitempty"`
	RejectionReason *string         `db:"rejection_reason" json:"rejection_reason,omitempty"`
	Notes           *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// PaymentDetails returns the payment block when the record came from a payment.
func (a *AdmissionConfirmation) PaymentDetails() *PaymentDetails {
	if a.OrderID == nil || a.PaymentID == nil {
		return nil
	}
	details := &PaymentDetails{OrderID: *a.OrderID, PaymentID: *a.PaymentID}
	if a.Amount != nil {
		details.Amount = *a.Amount
	}
	if a.PaidAt != nil {
		details.PaidAt = *a.PaidAt
	}
	return details
}

// MarshalJSON nests the payment columns under payment_details.
func (a AdmissionConfirmation) MarshalJSON() ([]byte, error) {
	type plain AdmissionConfirmation
	return json.Marshal(struct {
		plain
		PaymentDetails *PaymentDetails `json:"payment_details,omitempty"`
	}{plain: plain(a), PaymentDetails: a.PaymentDetails()})
}

// AdmissionFilter constrains admission listing queries.
type AdmissionFilter struct {
	Status   AdmissionStatus
	Search   string
	Page     int
	PageSize int
}

// AdmissionTransition is a single conditional review update.
type AdmissionTransition struct {
	ID              string
	Status          AdmissionStatus
	ReviewedBy      string
	ReviewedAt      time.Time
	RejectionReason *string
	Notes           *string
}

// AdmissionStats aggregates admission counts for the review dashboard.
type AdmissionStats struct {
	Pending   int `db:"pending" json:"pending"`
	Confirmed int `db:"confirmed" json:"confirmed"`
	Rejected  int `db:"rejected" json:"rejected"`
	Total     int `db:"total" json:"total"`
	Today     int `db:"today" json:"today"`
}
