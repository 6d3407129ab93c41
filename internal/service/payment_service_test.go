package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/gateway"
	"github.com/noah-isme/course-enrollment-api/pkg/signature"
)

const testSecret = "whsec_test"

type paymentFixture struct {
	svc        *PaymentService
	store      *memoryStore
	gateway    *gatewayStub
	admissions *AdmissionService
	signer     *signature.Verifier
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	store := newMemoryStore().
		addStudent(models.Student{ID: "u1", FullName: "Uma", Email: "uma@example.com", EnrollmentFeePaid: true}).
		addStudent(models.Student{ID: "u2", EnrollmentFeePaid: false}).
		addCourse(models.Course{ID: "c1", Name: "Go Basics", Price: 500}).
		addCourse(models.Course{ID: "c2", Name: "SQL Deep Dive", Price: 700})
	clock := fixedClock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	gw := &gatewayStub{}
	verifier := signature.NewVerifier(testSecret)
	admissions := NewAdmissionService(store.admissionStore(), store, store.courseReader(), nil, nil, clock, nil, nil, AdmissionConfig{})
	enrollment := NewEnrollmentService(store, store, admissions, &senderStub{}, nil, nil)
	svc := NewPaymentService(store, NewAmountCalculator(store), gw, verifier, store.orderLedger(), enrollment, clock, NewMetricsService(), nil, nil,
		PaymentConfig{Currency: "INR", ReceiptPrefix: "rcpt", GatewayTimeout: time.Second})
	return &paymentFixture{svc: svc, store: store, gateway: gw, admissions: admissions, signer: verifier}
}

func (f *paymentFixture) capture(t *testing.T, studentID string, courseIDs ...string) string {
	t.Helper()
	captured, err := f.svc.Capture(context.Background(), dto.CaptureRequest{StudentID: studentID, CourseIDs: courseIDs})
	require.NoError(t, err)
	return captured.OrderID
}

func (f *paymentFixture) proof(orderID, studentID string, courseIDs ...string) dto.VerifyRequest {
	return f.paidWith(orderID, "pay_123", studentID, courseIDs...)
}

func (f *paymentFixture) paidWith(orderID, paymentID, studentID string, courseIDs ...string) dto.VerifyRequest {
	return dto.VerifyRequest{
		StudentID: studentID,
		CourseIDs: courseIDs,
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: f.signer.Sign(orderID, paymentID),
	}
}

func TestCaptureThenVerifyEnrollsWithPerCourseAmounts(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	captured, err := f.svc.Capture(ctx, dto.CaptureRequest{StudentID: "u1", CourseIDs: []string{"c1", "c2"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1200), captured.Amount)
	assert.Equal(t, "INR", captured.Currency)
	assert.Equal(t, "order_1", captured.OrderID)
	require.Len(t, f.gateway.calls, 1)
	assert.Len(t, f.gateway.calls[0].Items, 2)
	assert.Equal(t, "u1", f.gateway.calls[0].Metadata["student_id"])
	assert.Equal(t, "c1,c2", f.gateway.calls[0].Metadata["course_ids"])

	order := f.store.orders[captured.OrderID]
	require.NotNil(t, order)
	assert.Equal(t, "u1", order.StudentID)
	assert.Equal(t, []string{"c1", "c2"}, []string(order.CourseIDs))
	assert.Nil(t, order.PaymentID)

	verified, err := f.svc.Verify(ctx, f.proof(captured.OrderID, "u1", "c1", "c2"))
	require.NoError(t, err)
	assert.Equal(t, 2, verified.Enrolled)
	assert.Equal(t, 2, verified.Total)
	require.NotNil(t, f.store.orders[captured.OrderID].PaymentID)
	assert.Equal(t, "pay_123", *f.store.orders[captured.OrderID].PaymentID)

	items, _, err := f.admissions.List(ctx, dto.AdmissionListQuery{Status: string(models.AdmissionStatusConfirmed)})
	require.NoError(t, err)
	require.Len(t, items, 2)
	amounts := map[string]int64{}
	for _, item := range items {
		details := item.PaymentDetails()
		require.NotNil(t, details)
		assert.Equal(t, captured.OrderID, details.OrderID)
		amounts[item.CourseID] = details.Amount
	}
	assert.Equal(t, map[string]int64{"c1": 500, "c2": 700}, amounts)
	require.NoError(t, f.store.mirrorHolds())
}

func TestVerifyTwiceEnrollsOnce(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	orderID := f.capture(t, "u1", "c1", "c2")

	_, err := f.svc.Verify(ctx, f.proof(orderID, "u1", "c1", "c2"))
	require.NoError(t, err)
	again, err := f.svc.Verify(ctx, f.proof(orderID, "u1", "c2", "c1"))
	require.NoError(t, err)
	require.Len(t, again.Outcomes, 2)
	for _, o := range again.Outcomes {
		assert.Equal(t, models.OutcomeAlreadyEnrolled, o.Outcome)
	}
	subset, err := f.svc.Verify(ctx, f.proof(orderID, "u1", "c1"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAlreadyEnrolled, subset.Outcomes[0].Outcome)

	student, _ := f.store.FindByID(ctx, "u1")
	assert.Equal(t, []string{"c1", "c2"}, []string(student.EnrolledCourseIDs))
	stats, _, err := f.admissions.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Confirmed)
}

func TestVerifyRejectsProofReusedForUnpaidCourse(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	orderID := f.capture(t, "u1", "c1")

	_, err := f.svc.Verify(ctx, f.proof(orderID, "u1", "c1"))
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, f.proof(orderID, "u1", "c2"))
	require.ErrorIs(t, err, appErrors.ErrPaymentMismatch)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, map[string][]string{"courseIds": {"c2"}}, appErr.Details)

	_, err = f.svc.Verify(ctx, f.proof(orderID, "u1", "c1", "c2"))
	require.ErrorIs(t, err, appErrors.ErrPaymentMismatch)

	student, _ := f.store.FindByID(ctx, "u1")
	assert.Equal(t, []string{"c1"}, []string(student.EnrolledCourseIDs))
	assert.Empty(t, f.store.courses["c2"].EnrolledStudentIDs)
	assert.Len(t, f.store.admissions, 1)
}

func TestVerifyRejectsProofReusedForAnotherStudent(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	orderID := f.capture(t, "u1", "c1")

	_, err := f.svc.Verify(ctx, f.proof(orderID, "u1", "c1"))
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, f.proof(orderID, "u2", "c1"))
	require.ErrorIs(t, err, appErrors.ErrPaymentMismatch)
	_, err = f.svc.Verify(ctx, f.proof(orderID, "u2", "c1", "c2"))
	require.ErrorIs(t, err, appErrors.ErrPaymentMismatch)

	other, _ := f.store.FindByID(ctx, "u2")
	assert.Empty(t, other.EnrolledCourseIDs)
	assert.Equal(t, []string{"u1"}, []string(f.store.courses["c1"].EnrolledStudentIDs))
}

func TestVerifyRejectsSecondPaymentForSettledOrder(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	orderID := f.capture(t, "u1", "c1")

	_, err := f.svc.Verify(ctx, f.proof(orderID, "u1", "c1"))
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, f.paidWith(orderID, "pay_456", "u1", "c1"))
	require.ErrorIs(t, err, appErrors.ErrPaymentMismatch)
	assert.Equal(t, "pay_123", *f.store.orders[orderID].PaymentID)
	assert.Len(t, f.store.admissions, 1)
}

func TestVerifyRejectsOrderThatWasNeverCaptured(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	_, err := f.svc.Verify(ctx, f.proof("order_forged", "u1", "c1"))
	require.ErrorIs(t, err, appErrors.ErrInvalidSignature)

	student, _ := f.store.FindByID(ctx, "u1")
	assert.Empty(t, student.EnrolledCourseIDs)
	assert.Empty(t, f.store.admissions)
}

func TestVerifyBadSignatureHasNoSideEffects(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	orderID := f.capture(t, "u1", "c1")

	req := f.proof(orderID, "u1", "c1")
	req.Signature = f.signer.Sign(orderID, "pay_999")
	_, err := f.svc.Verify(ctx, req)
	require.ErrorIs(t, err, appErrors.ErrInvalidSignature)

	req = f.proof(orderID, "u1", "c1")
	req.PaymentID = ""
	_, err = f.svc.Verify(ctx, req)
	require.ErrorIs(t, err, appErrors.ErrMissingFields)

	req = f.proof(orderID, "u1")
	_, err = f.svc.Verify(ctx, req)
	require.ErrorIs(t, err, appErrors.ErrMissingFields)

	student, _ := f.store.FindByID(ctx, "u1")
	assert.Empty(t, student.EnrolledCourseIDs)
	assert.Empty(t, f.store.courses["c1"].EnrolledStudentIDs)
	assert.Empty(t, f.store.admissions)
	assert.Nil(t, f.store.orders[orderID].PaymentID)
}

func TestCaptureValidationPrecedesGateway(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	_, err := f.svc.Capture(ctx, dto.CaptureRequest{StudentID: "u1"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = f.svc.Capture(ctx, dto.CaptureRequest{StudentID: "u1", CourseIDs: []string{"c1", ""}})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = f.svc.Capture(ctx, dto.CaptureRequest{StudentID: "ghost", CourseIDs: []string{"c1"}})
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = f.svc.Capture(ctx, dto.CaptureRequest{StudentID: "u2", CourseIDs: []string{"c1"}})
	require.ErrorIs(t, err, appErrors.ErrEnrollmentFeeUnpaid)
	_, err = f.svc.Capture(ctx, dto.CaptureRequest{StudentID: "u1", CourseIDs: []string{"c1", "missing"}})
	require.ErrorIs(t, err, appErrors.ErrCourseNotFound)

	assert.Empty(t, f.gateway.calls)
}

func TestCaptureDeduplicatesCart(t *testing.T) {
	f := newPaymentFixture(t)

	captured, err := f.svc.Capture(context.Background(), dto.CaptureRequest{StudentID: "u1", CourseIDs: []string{"c1", "c1"}})
	require.NoError(t, err)
	assert.Equal(t, int64(500), captured.Amount)
	assert.Equal(t, []string{"c1"}, []string(f.store.orders[captured.OrderID].CourseIDs))
}

func TestCaptureRejectsOwnedCourses(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	orderID := f.capture(t, "u1", "c1")
	_, err := f.svc.Verify(ctx, f.proof(orderID, "u1", "c1"))
	require.NoError(t, err)

	_, err = f.svc.Capture(ctx, dto.CaptureRequest{StudentID: "u1", CourseIDs: []string{"c1", "c2"}})
	require.ErrorIs(t, err, appErrors.ErrAlreadyEnrolled)
	assert.Len(t, f.gateway.calls, 1)
}

func TestCaptureMapsGatewayErrors(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	req := dto.CaptureRequest{StudentID: "u1", CourseIDs: []string{"c1"}}

	f.gateway.err = errors.New("amount too large")
	_, err := f.svc.Capture(ctx, req)
	require.ErrorIs(t, err, appErrors.ErrOrderCreationFailed)

	f.gateway.err = errors.Join(gateway.ErrUnavailable, errors.New("dial tcp: timeout"))
	_, err = f.svc.Capture(ctx, req)
	require.ErrorIs(t, err, appErrors.ErrGatewayUnavailable)

	f.gateway.err = context.DeadlineExceeded
	_, err = f.svc.Capture(ctx, req)
	require.ErrorIs(t, err, appErrors.ErrGatewayUnavailable)
	assert.Len(t, f.gateway.calls, 3)
}
