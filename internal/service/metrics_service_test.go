package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()
	m.RecordCapture(resultLabel(nil))
	m.RecordVerification(resultLabel(appErrors.Clone(appErrors.ErrInvalidSignature, "")))
	m.RecordVerification(resultLabel(errors.New("boom")))
	m.RecordEnrollmentOutcome(models.OutcomeEnrolled)
	m.RecordEnrollmentOutcome(models.OutcomeEnrolled)
	m.RecordAdmissionReview(models.AdmissionStatusRejected)
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/payments/verify", http.StatusOK, 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.captures.WithLabelValues("OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("INVALID_SIGNATURE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("INTERNAL_ERROR")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.enrollmentOutcomes.WithLabelValues("ENROLLED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.admissionReviews.WithLabelValues("REJECTED")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "payment_verifications_total"))
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.RecordCapture("OK")
	m.RecordEnrollmentOutcome(models.OutcomeFailed)
	m.RecordNotificationDropped()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
