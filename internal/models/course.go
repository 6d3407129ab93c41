package models

import (
	"time"

	"github.com/lib/pq"
)

// Course is a purchasable course. Price is expressed in minor currency units.
type Course struct {
	ID                 string         `db:"id" json:"id"`
	Name               string         `db:"name" json:"name"`
	Price              int64          `db:"price" json:"price"`
	EnrolledStudentIDs pq.StringArray `db:"enrolled_student_ids" json:"enrolled_student_ids"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// HasStudent reports whether studentID is present in the course's enrollment list.
func (c *Course) HasStudent(studentID string) bool {
	for _, id := range c.EnrolledStudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}
