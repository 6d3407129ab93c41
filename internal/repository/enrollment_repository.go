package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

// Sentinel errors for the enrollment unit of work.
var (
	ErrStudentNotFound = errors.New("student not found")
	ErrCourseNotFound  = errors.New("course not found")
)

// EnrollmentRepository links students and courses.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// LinkStudentCourse adds courseID to the student's list and studentID to the course's list
// in one transaction. The student row is locked first, so concurrent calls for the same
// student are serialized and the membership check cannot race with the append.
// It returns OutcomeAlreadyEnrolled with a nil course when the link already exists.
func (r *EnrollmentRepository) LinkStudentCourse(ctx context.Context, studentID, courseID string) (course *models.Course, outcome models.EnrollmentOutcome, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var enrolled bool
	const lockStudent = `SELECT $2 = ANY(enrolled_course_ids) FROM students WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &enrolled, lockStudent, studentID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrStudentNotFound
			return nil, "", err
		}
		return nil, "", fmt.Errorf("lock student: %w", err)
	}
	if enrolled {
		if err = tx.Commit(); err != nil {
			return nil, "", fmt.Errorf("commit enrollment check: %w", err)
		}
		return nil, models.OutcomeAlreadyEnrolled, nil
	}

	var locked models.Course
	lockCourse := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &locked, lockCourse, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrCourseNotFound
			return nil, "", err
		}
		return nil, "", fmt.Errorf("lock course: %w", err)
	}

	const appendCourse = `UPDATE students SET enrolled_course_ids = array_append(enrolled_course_ids, $2), updated_at = NOW() WHERE id = $1`
	if _, err = tx.ExecContext(ctx, appendCourse, studentID, courseID); err != nil {
		return nil, "", fmt.Errorf("append student course: %w", err)
	}
	// The guard keeps the course side duplicate free even if it was left ahead of the student side.
	const appendStudent = `UPDATE courses SET enrolled_student_ids = array_append(enrolled_student_ids, $2), updated_at = NOW()
        WHERE id = $1 AND NOT ($2 = ANY(enrolled_student_ids))`
	if _, err = tx.ExecContext(ctx, appendStudent, courseID, studentID); err != nil {
		return nil, "", fmt.Errorf("append course student: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, "", fmt.Errorf("commit enrollment: %w", err)
	}
	if !locked.HasStudent(studentID) {
		locked.EnrolledStudentIDs = append(locked.EnrolledStudentIDs, studentID)
	}
	return &locked, models.OutcomeEnrolled, nil
}
