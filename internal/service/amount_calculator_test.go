package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

func calculatorStore() *memoryStore {
	return newMemoryStore().
		addCourse(models.Course{ID: "c1", Name: "Go Basics", Price: 500}).
		addCourse(models.Course{ID: "c2", Name: "SQL Deep Dive", Price: 700}).
		addCourse(models.Course{ID: "free", Name: "Orientation", Price: 0})
}

func TestAmountCalculatorSumsPrices(t *testing.T) {
	calc := NewAmountCalculator(calculatorStore())

	quote, err := calc.Calculate(context.Background(), []string{"c1", "c2"}, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), quote.Total)
	require.Len(t, quote.Breakdown, 2)
	assert.Equal(t, models.QuoteLine{CourseID: "c1", Name: "Go Basics", Price: 500}, quote.Breakdown[0])
	assert.Equal(t, "c2", quote.Breakdown[1].CourseID)
}

func TestAmountCalculatorUnknownCourseRejectsCart(t *testing.T) {
	calc := NewAmountCalculator(calculatorStore())

	_, err := calc.Calculate(context.Background(), []string{"c1", "ghost", "c2"}, "u1", nil)
	require.ErrorIs(t, err, appErrors.ErrCourseNotFound)
	assert.Contains(t, err.Error(), "ghost")
}

func TestAmountCalculatorListsEveryOwnedCourse(t *testing.T) {
	calc := NewAmountCalculator(calculatorStore())

	_, err := calc.Calculate(context.Background(), []string{"c1", "c2"}, "u1", []string{"c2", "c1"})
	require.ErrorIs(t, err, appErrors.ErrAlreadyEnrolled)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, map[string][]string{"courses": {"Go Basics", "SQL Deep Dive"}}, appErr.Details)
}

func TestAmountCalculatorRejectsNonPositiveTotal(t *testing.T) {
	calc := NewAmountCalculator(calculatorStore())

	_, err := calc.Calculate(context.Background(), []string{"free"}, "u1", nil)
	require.ErrorIs(t, err, appErrors.ErrInvalidAmount)

	_, err = calc.Calculate(context.Background(), nil, "u1", nil)
	require.ErrorIs(t, err, appErrors.ErrMissingFields)
}
