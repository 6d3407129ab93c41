package models

import (
	"time"

	"github.com/lib/pq"
)

// EnrollmentOutcome is the per-course result of applying a verified payment.
type EnrollmentOutcome string

const (
	OutcomeEnrolled        EnrollmentOutcome = "ENROLLED"
	OutcomeAlreadyEnrolled EnrollmentOutcome = "ALREADY_ENROLLED"
	OutcomeCourseNotFound  EnrollmentOutcome = "COURSE_NOT_FOUND"
	OutcomeFailed          EnrollmentOutcome = "FAILED"
)

// CourseOutcome pairs a course with its enrollment outcome.
type CourseOutcome struct {
	CourseID string            `json:"courseId"`
	Outcome  EnrollmentOutcome `json:"outcome"`
}

// QuoteLine is one course's contribution to an order total.
type QuoteLine struct {
	CourseID string `json:"courseId"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
}

// Quote is the authoritative price calculation for a cart of courses.
type Quote struct {
	Total     int64       `json:"total"`
	Breakdown []QuoteLine `json:"breakdown"`
}

// PaymentDetails is the payment block stored on an admission confirmation.
type PaymentDetails struct {
	OrderID   string    `json:"order_id"`
	PaymentID string    `json:"payment_id"`
	Amount    int64     `json:"amount"`
	PaidAt    time.Time `json:"paid_at"`
}

// PaymentOrder is the capture intent recorded when a gateway order is opened.
// PaymentID and PaidAt stay nil until the first verified proof settles it.
type PaymentOrder struct {
	OrderID   string         `db:"order_id" json:"order_id"`
	StudentID string         `db:"student_id" json:"student_id"`
	CourseIDs pq.StringArray `db:"course_ids" json:"course_ids"`
	Amount    int64          `db:"amount" json:"amount"`
	Currency  string         `db:"currency" json:"currency"`
	Receipt   string         `db:"receipt" json:"receipt"`
	PaymentID *string        `db:"payment_id" json:"payment_id,omitempty"`
	PaidAt    *time.Time     `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// Uncovered returns the course ids that were not part of the captured cart.
func (o *PaymentOrder) Uncovered(courseIDs []string) []string {
	captured := make(map[string]struct{}, len(o.CourseIDs))
	for _, id := range o.CourseIDs {
		captured[id] = struct{}{}
	}
	var extra []string
	for _, id := range courseIDs {
		if _, ok := captured[id]; !ok {
			extra = append(extra, id)
		}
	}
	return extra
}
