package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/gateway"
	"github.com/noah-isme/course-enrollment-api/pkg/signature"
)

// OrderGateway opens orders with the payment provider.
type OrderGateway interface {
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error)
}

type proofVerifier interface {
	Verify(orderID, paymentID, signature string) error
}

type quoteCalculator interface {
	Calculate(ctx context.Context, courseIDs []string, studentID string, enrolledCourseIDs []string) (*models.Quote, error)
}

type paymentOrderStore interface {
	Create(ctx context.Context, order *models.PaymentOrder) error
	GetByOrderID(ctx context.Context, orderID string) (*models.PaymentOrder, error)
	MarkPaid(ctx context.Context, orderID, paymentID string, paidAt time.Time) error
}

type enrollmentExecutor interface {
	Enroll(ctx context.Context, studentID string, courseIDs []string, payment models.PaymentDetails) ([]models.CourseOutcome, error)
}

// PaymentConfig carries order defaults.
type PaymentConfig struct {
	Currency       string
	ReceiptPrefix  string
	GatewayTimeout time.Duration
}

// PaymentService orchestrates order capture and proof verification.
type PaymentService struct {
	students   studentReader
	calculator quoteCalculator
	gateway    OrderGateway
	verifier   proofVerifier
	ledger     paymentOrderStore
	enrollment enrollmentExecutor
	clock      Clock
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        PaymentConfig
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(
	students studentReader,
	calculator quoteCalculator,
	orders OrderGateway,
	verifier proofVerifier,
	ledger paymentOrderStore,
	enrollment enrollmentExecutor,
	clock Clock,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg PaymentConfig,
) *PaymentService {
	if clock == nil {
		clock = SystemClock{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.ReceiptPrefix == "" {
		cfg.ReceiptPrefix = "receipt"
	}
	return &PaymentService{
		students:   students,
		calculator: calculator,
		gateway:    orders,
		verifier:   verifier,
		ledger:     ledger,
		enrollment: enrollment,
		clock:      clock,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
}

// Capture prices the cart and opens a gateway order for the total.
func (s *PaymentService) Capture(ctx context.Context, req dto.CaptureRequest) (resp *dto.CaptureResponse, err error) {
	defer func() { s.metrics.RecordCapture(resultLabel(err)) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "studentId and a non-empty courseIds array are required")
	}
	courseIDs := uniqueIDs(req.CourseIDs)

	student, err := s.loadStudent(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	if !student.EnrollmentFeePaid {
		return nil, appErrors.Clone(appErrors.ErrEnrollmentFeeUnpaid, "enrollment fee must be paid before purchasing courses")
	}

	quote, err := s.calculator.Calculate(ctx, courseIDs, student.ID, student.EnrolledCourseIDs)
	if err != nil {
		return nil, err
	}

	items := make([]gateway.Item, 0, len(quote.Breakdown))
	for _, line := range quote.Breakdown {
		items = append(items, gateway.Item{ID: line.CourseID, Name: line.Name, Price: line.Price})
	}
	receipt := fmt.Sprintf("%s_%d", s.cfg.ReceiptPrefix, s.clock.Now().UnixMilli())

	gwCtx := ctx
	if s.cfg.GatewayTimeout > 0 {
		var cancel context.CancelFunc
		gwCtx, cancel = context.WithTimeout(ctx, s.cfg.GatewayTimeout)
		defer cancel()
	}
	order, err := s.gateway.CreateOrder(gwCtx, gateway.OrderRequest{
		Amount:   quote.Total,
		Currency: s.cfg.Currency,
		Receipt:  receipt,
		Items:    items,
		Metadata: map[string]string{"student_id": student.ID, "course_ids": strings.Join(courseIDs, ",")},
	})
	if err != nil {
		s.logger.Error("gateway order creation failed", zap.String("student_id", student.ID), zap.Int64("amount", quote.Total), zap.Error(err))
		if errors.Is(err, gateway.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
			return nil, appErrors.Wrap(err, appErrors.ErrGatewayUnavailable.Code, appErrors.ErrGatewayUnavailable.Status, appErrors.ErrGatewayUnavailable.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrOrderCreationFailed.Code, appErrors.ErrOrderCreationFailed.Status, appErrors.ErrOrderCreationFailed.Message)
	}

	if err := s.ledger.Create(ctx, &models.PaymentOrder{
		OrderID:   order.OrderID,
		StudentID: student.ID,
		CourseIDs: courseIDs,
		Amount:    order.Amount,
		Currency:  order.Currency,
		Receipt:   receipt,
		CreatedAt: s.clock.Now(),
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment order")
	}

	s.logger.Info("payment order created",
		zap.String("order_id", order.OrderID),
		zap.String("student_id", student.ID),
		zap.Strings("course_ids", courseIDs),
		zap.Int64("amount", order.Amount),
	)
	return &dto.CaptureResponse{
		OrderID:     order.OrderID,
		Amount:      order.Amount,
		Currency:    order.Currency,
		Receipt:     receipt,
		RedirectURL: order.RedirectURL,
		Breakdown:   quote.Breakdown,
	}, nil
}

// Verify authenticates a payment proof and enrolls the student in each paid course.
// No enrollment happens unless the signature checks out and the proof matches the
// student and cart recorded at capture.
func (s *PaymentService) Verify(ctx context.Context, req dto.VerifyRequest) (resp *dto.VerifyResponse, err error) {
	defer func() { s.metrics.RecordVerification(resultLabel(err)) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMissingFields.Code, appErrors.ErrMissingFields.Status,
			"orderId, paymentId, signature, courseIds and studentId are required")
	}

	if err := s.verifier.Verify(req.OrderID, req.PaymentID, req.Signature); err != nil {
		s.logger.Warn("payment signature rejected", zap.String("order_id", req.OrderID), zap.String("student_id", req.StudentID))
		if errors.Is(err, signature.ErrMissingFields) {
			return nil, appErrors.Wrap(err, appErrors.ErrMissingFields.Code, appErrors.ErrMissingFields.Status, appErrors.ErrMissingFields.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidSignature.Code, appErrors.ErrInvalidSignature.Status, appErrors.ErrInvalidSignature.Message)
	}

	paidAt := s.clock.Now()
	if err := s.settleOrder(ctx, req, paidAt); err != nil {
		return nil, err
	}

	outcomes, err := s.enrollment.Enroll(ctx, req.StudentID, req.CourseIDs, models.PaymentDetails{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		PaidAt:    paidAt,
	})
	if err != nil {
		return nil, err
	}

	resp = &dto.VerifyResponse{Outcomes: outcomes, Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Outcome == models.OutcomeEnrolled || o.Outcome == models.OutcomeAlreadyEnrolled {
			resp.Enrolled++
		}
	}
	s.logger.Info("payment verified",
		zap.String("order_id", req.OrderID),
		zap.String("payment_id", req.PaymentID),
		zap.Int("enrolled", resp.Enrolled),
		zap.Int("total", resp.Total),
	)
	return resp, nil
}

// settleOrder binds a proof to the order it was captured for. The first verified
// payment id settles the order; later proofs must repeat it.
func (s *PaymentService) settleOrder(ctx context.Context, req dto.VerifyRequest, paidAt time.Time) error {
	log := s.logger.With(zap.String("order_id", req.OrderID), zap.String("student_id", req.StudentID))

	order, err := s.ledger.GetByOrderID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("payment proof for unknown order")
			return appErrors.Clone(appErrors.ErrInvalidSignature, "payment order was not issued by this service")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment order")
	}
	if order.StudentID != req.StudentID {
		log.Warn("payment proof replayed for another student", zap.String("captured_student_id", order.StudentID))
		return appErrors.Clone(appErrors.ErrPaymentMismatch, "payment order belongs to another student")
	}
	if extra := order.Uncovered(req.CourseIDs); len(extra) > 0 {
		log.Warn("payment proof names unpaid courses", zap.Strings("course_ids", extra))
		return appErrors.WithDetails(appErrors.ErrPaymentMismatch, "courses were not part of the captured order",
			map[string][]string{"courseIds": extra})
	}

	if err := s.ledger.MarkPaid(ctx, req.OrderID, req.PaymentID, paidAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("payment order already settled by another payment", zap.String("payment_id", req.PaymentID))
			return appErrors.Clone(appErrors.ErrPaymentMismatch, "payment order already settled by another payment")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle payment order")
	}
	return nil
}

func (s *PaymentService) loadStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
