package service

import (
	"context"
	"fmt"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

type courseCatalog interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Course, error)
}

// AmountCalculator prices a cart of courses from the catalog.
type AmountCalculator struct {
	courses courseCatalog
}

// NewAmountCalculator constructs an AmountCalculator.
func NewAmountCalculator(courses courseCatalog) *AmountCalculator {
	return &AmountCalculator{courses: courses}
}

// Calculate resolves authoritative prices for courseIDs and sums them.
// The whole cart is rejected when any course is unknown or already owned by the student.
func (c *AmountCalculator) Calculate(ctx context.Context, courseIDs []string, studentID string, enrolledCourseIDs []string) (*models.Quote, error) {
	if len(courseIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrMissingFields, "courseIds must not be empty")
	}

	catalog, err := c.courses.FindByIDs(ctx, courseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}

	owned := make(map[string]struct{}, len(enrolledCourseIDs))
	for _, id := range enrolledCourseIDs {
		owned[id] = struct{}{}
	}

	quote := &models.Quote{Breakdown: make([]models.QuoteLine, 0, len(courseIDs))}
	var conflicts []string
	for _, id := range courseIDs {
		course, ok := catalog[id]
		if !ok {
			return nil, appErrors.WithDetails(appErrors.ErrCourseNotFound,
				fmt.Sprintf("course %s not found", id), map[string]string{"courseId": id})
		}
		if _, enrolled := owned[id]; enrolled {
			conflicts = append(conflicts, course.Name)
			continue
		}
		quote.Total += course.Price
		quote.Breakdown = append(quote.Breakdown, models.QuoteLine{CourseID: course.ID, Name: course.Name, Price: course.Price})
	}

	if len(conflicts) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrAlreadyEnrolled,
			fmt.Sprintf("student %s is already enrolled in %d of the selected courses", studentID, len(conflicts)),
			map[string][]string{"courses": conflicts})
	}
	if quote.Total <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidAmount, "order total must be greater than zero")
	}
	return quote, nil
}
