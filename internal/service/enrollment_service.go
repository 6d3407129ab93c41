package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/notify"
)

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type enrollmentLinker interface {
	LinkStudentCourse(ctx context.Context, studentID, courseID string) (*models.Course, models.EnrollmentOutcome, error)
}

// AdmissionRecorder stores the admission record that accompanies a payment-driven enrollment.
type AdmissionRecorder interface {
	RecordPaymentAdmission(ctx context.Context, studentID string, course models.Course, payment models.PaymentDetails) error
}

// NopAdmissionRecorder discards admission records.
type NopAdmissionRecorder struct{}

// RecordPaymentAdmission implements AdmissionRecorder.
func (NopAdmissionRecorder) RecordPaymentAdmission(context.Context, string, models.Course, models.PaymentDetails) error {
	return nil
}

// EnrollmentService applies a verified payment to the student and course records.
type EnrollmentService struct {
	students   studentReader
	links      enrollmentLinker
	admissions AdmissionRecorder
	notifier   notify.Sender
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewEnrollmentService wires the executor. Nil collaborators fall back to no-op implementations.
func NewEnrollmentService(students studentReader, links enrollmentLinker, admissions AdmissionRecorder, notifier notify.Sender, metrics *MetricsService, logger *zap.Logger) *EnrollmentService {
	if admissions == nil {
		admissions = NopAdmissionRecorder{}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		students:   students,
		links:      links,
		admissions: admissions,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
	}
}

// Enroll links the student to each course in order and reports a per-course outcome.
// A failure on one course never aborts the rest. Each link commits on its own, so a
// failure after the link (admission record, notification) is logged and not undone.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID string, courseIDs []string, payment models.PaymentDetails) ([]models.CourseOutcome, error) {
	if len(courseIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrMissingFields, "courseIds must not be empty")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	outcomes := make([]models.CourseOutcome, 0, len(courseIDs))
	for _, courseID := range courseIDs {
		outcome := s.enrollOne(ctx, student, courseID, payment)
		s.metrics.RecordEnrollmentOutcome(outcome)
		outcomes = append(outcomes, models.CourseOutcome{CourseID: courseID, Outcome: outcome})
	}
	return outcomes, nil
}

func (s *EnrollmentService) enrollOne(ctx context.Context, student *models.Student, courseID string, payment models.PaymentDetails) models.EnrollmentOutcome {
	log := s.logger.With(zap.String("student_id", student.ID), zap.String("course_id", courseID), zap.String("order_id", payment.OrderID))

	course, outcome, err := s.links.LinkStudentCourse(ctx, student.ID, courseID)
	switch {
	case errors.Is(err, repository.ErrCourseNotFound):
		log.Warn("enrollment skipped: course not found")
		return models.OutcomeCourseNotFound
	case err != nil:
		log.Error("enrollment failed", zap.Error(err))
		return models.OutcomeFailed
	case outcome != models.OutcomeEnrolled:
		return outcome
	}

	record := payment
	record.Amount = course.Price
	if err := s.admissions.RecordPaymentAdmission(ctx, student.ID, *course, record); err != nil {
		log.Error("admission confirmation not recorded", zap.Error(err))
	}

	if student.Email != "" {
		subject := fmt.Sprintf("You are enrolled in %s", course.Name)
		body := fmt.Sprintf("Hi %s,\n\nYour payment %s was received and you now have access to %s.\n",
			student.FullName, payment.PaymentID, course.Name)
		if err := s.notifier.Send(ctx, student.Email, subject, body); err != nil {
			log.Warn("enrollment notification not sent", zap.Error(err))
		}
	}

	log.Info("student enrolled", zap.Int64("amount", course.Price))
	return models.OutcomeEnrolled
}
