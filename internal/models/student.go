package models

import (
	"time"

	"github.com/lib/pq"
)

// Student represents a learner account able to purchase courses.
type Student struct {
	ID                string         `db:"id" json:"id"`
	FullName          string         `db:"full_name" json:"full_name"`
	Email             string         `db:"email" json:"email"`
	EnrolledCourseIDs pq.StringArray `db:"enrolled_course_ids" json:"enrolled_course_ids"`
	EnrollmentFeePaid bool           `db:"enrollment_fee_paid" json:"enrollment_fee_paid"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// IsEnrolledIn reports whether courseID is present in the student's enrollment list.
func (s *Student) IsEnrolledIn(courseID string) bool {
	for _, id := range s.EnrolledCourseIDs {
		if id == courseID {
			return true
		}
	}
	return false
}
