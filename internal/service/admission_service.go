package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/export"
)

const (
	admissionStatsCacheKey = "admissions:stats"
	defaultAdmissionLimit  = 10
	maxAdmissionExportRows = 5000
)

type admissionStore interface {
	Create(ctx context.Context, admission *models.AdmissionConfirmation) error
	GetByID(ctx context.Context, id string) (*models.AdmissionConfirmation, error)
	List(ctx context.Context, filter models.AdmissionFilter) ([]models.AdmissionConfirmation, int, error)
	ListAll(ctx context.Context, filter models.AdmissionFilter, limit int) ([]models.AdmissionConfirmation, error)
	Transition(ctx context.Context, t models.AdmissionTransition) (*models.AdmissionConfirmation, error)
	Stats(ctx context.Context, since time.Time) (*models.AdmissionStats, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// AdmissionConfig tunes the review workflow.
type AdmissionConfig struct {
	StatsCacheTTL time.Duration
}

// ExportFile is a rendered admission export.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AdmissionService implements the admission review workflow and records payment-driven admissions.
type AdmissionService struct {
	repo      admissionStore
	students  studentReader
	courses   courseReader
	cache     *CacheService
	metrics   *MetricsService
	clock     Clock
	renderers map[export.Format]datasetRenderer
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AdmissionConfig
}

// NewAdmissionService constructs an AdmissionService.
func NewAdmissionService(
	repo admissionStore,
	students studentReader,
	courses courseReader,
	cache *CacheService,
	metrics *MetricsService,
	clock Clock,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg AdmissionConfig,
) *AdmissionService {
	if clock == nil {
		clock = SystemClock{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdmissionService{
		repo:     repo,
		students: students,
		courses:  courses,
		cache:    cache,
		metrics:  metrics,
		clock:    clock,
		renderers: map[export.Format]datasetRenderer{
			export.FormatCSV: export.NewCSVExporter(),
			export.FormatPDF: export.NewPDFExporter(),
		},
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// List returns one page of admissions, newest first.
func (s *AdmissionService) List(ctx context.Context, query dto.AdmissionListQuery) ([]models.AdmissionConfirmation, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admission filter")
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit < 1 {
		limit = defaultAdmissionLimit
	}

	items, total, err := s.repo.List(ctx, models.AdmissionFilter{
		Status:   models.AdmissionStatus(query.Status),
		Search:   query.Search,
		Page:     page,
		PageSize: limit,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list admission confirmations")
	}
	return items, models.NewPagination(page, limit, total), nil
}

// Get returns a single admission.
func (s *AdmissionService) Get(ctx context.Context, id string) (*models.AdmissionConfirmation, error) {
	admission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission confirmation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission confirmation")
	}
	return admission, nil
}

// Create opens a manual admission in PENDING state for later review.
func (s *AdmissionService) Create(ctx context.Context, req dto.CreateAdmissionRequest) (*models.AdmissionConfirmation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admission payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, fmt.Sprintf("course %s not found", req.CourseID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	now := s.clock.Now()
	admission := &models.AdmissionConfirmation{
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		Status:    models.AdmissionStatusPending,
		Notes:     optionalString(req.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, admission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create admission confirmation")
	}
	s.invalidateStats(ctx)
	return admission, nil
}

// RecordPaymentAdmission stores an already confirmed admission for a paid enrollment.
func (s *AdmissionService) RecordPaymentAdmission(ctx context.Context, studentID string, course models.Course, payment models.PaymentDetails) error {
	now := s.clock.Now()
	paidAt := payment.PaidAt
	if paidAt.IsZero() {
		paidAt = now
	}
	amount := payment.Amount
	admission := &models.AdmissionConfirmation{
		StudentID: studentID,
		CourseID:  course.ID,
		OrderID:   optionalString(payment.OrderID),
		PaymentID: optionalString(payment.PaymentID),
		Amount:    &amount,
		PaidAt:    &paidAt,
		Status:    models.AdmissionStatusConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, admission); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	return nil
}

// Confirm approves a PENDING admission.
func (s *AdmissionService) Confirm(ctx context.Context, id, reviewerID string, req dto.ConfirmAdmissionRequest) (*models.AdmissionConfirmation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid confirmation payload")
	}
	return s.transition(ctx, models.AdmissionTransition{
		ID:         id,
		Status:     models.AdmissionStatusConfirmed,
		ReviewedBy: strings.TrimSpace(reviewerID),
		Notes:      optionalString(req.Notes),
	})
}

// Reject declines a PENDING admission. A non-blank reason is required.
func (s *AdmissionService) Reject(ctx context.Context, id, reviewerID string, req dto.RejectAdmissionRequest) (*models.AdmissionConfirmation, error) {
	reason := strings.TrimSpace(req.RejectionReason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingReason, "rejectionReason is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rejection payload")
	}
	return s.transition(ctx, models.AdmissionTransition{
		ID:              id,
		Status:          models.AdmissionStatusRejected,
		ReviewedBy:      strings.TrimSpace(reviewerID),
		RejectionReason: &reason,
		Notes:           optionalString(req.Notes),
	})
}

func (s *AdmissionService) transition(ctx context.Context, t models.AdmissionTransition) (*models.AdmissionConfirmation, error) {
	if t.ReviewedBy == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reviewerId is required")
	}
	t.ReviewedAt = s.clock.Now()

	updated, err := s.repo.Transition(ctx, t)
	if err == nil {
		s.metrics.RecordAdmissionReview(t.Status)
		s.invalidateStats(ctx)
		s.logger.Info("admission reviewed",
			zap.String("admission_id", t.ID),
			zap.String("status", string(t.Status)),
			zap.String("reviewed_by", t.ReviewedBy),
		)
		return updated, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update admission confirmation")
	}

	// Nothing matched: either the id is unknown or another reviewer got there first.
	current, err := s.Get(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	return nil, appErrors.WithDetails(appErrors.ErrAlreadyProcessed,
		fmt.Sprintf("admission confirmation is already %s", strings.ToLower(string(current.Status))),
		map[string]string{"status": string(current.Status)})
}

// Stats returns counts by status and the number created since local midnight.
func (s *AdmissionService) Stats(ctx context.Context) (*models.AdmissionStats, bool, error) {
	var cached models.AdmissionStats
	day := startOfDay(s.clock.Now())
	key := statsCacheKey(day)
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}

	stats, err := s.repo.Stats(ctx, day)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute admission stats")
	}
	_ = s.cache.Set(ctx, key, stats, s.cfg.StatsCacheTTL)
	return stats, false, nil
}

// Export renders admissions matching the filters as CSV or PDF.
func (s *AdmissionService) Export(ctx context.Context, query dto.AdmissionExportQuery) (*ExportFile, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}
	format := export.Format(strings.ToLower(query.Format))
	if format == "" {
		format = export.FormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	items, err := s.repo.ListAll(ctx, models.AdmissionFilter{Status: models.AdmissionStatus(query.Status), Search: query.Search}, maxAdmissionExportRows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission confirmations")
	}

	payload, err := renderer.Render(admissionDataset(items))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("admission-confirmations-%s.%s", s.clock.Now().Format("20060102-150405"), format),
		ContentType: format.ContentType(),
		Data:        payload,
	}, nil
}

func (s *AdmissionService) invalidateStats(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, statsCacheKey(startOfDay(s.clock.Now())))
}

// statsCacheKey is scoped to the local day so the today count never outlives midnight.
func statsCacheKey(day time.Time) string {
	return admissionStatsCacheKey + ":" + day.Format("20060102")
}

func admissionDataset(items []models.AdmissionConfirmation) export.Dataset {
	data := export.Dataset{
		Title:   "Admission confirmations",
		Headers: []string{"ID", "Student", "Course", "Status", "Order", "Payment", "Amount", "Paid At", "Reviewed By", "Reviewed At", "Reason", "Created At"},
		Rows:    make([][]string, 0, len(items)),
	}
	for _, item := range items {
		amount := ""
		if item.Amount != nil {
			amount = strconv.FormatInt(*item.Amount, 10)
		}
		data.Rows = append(data.Rows, []string{
			item.ID,
			item.StudentID,
			item.CourseID,
			string(item.Status),
			deref(item.OrderID),
			deref(item.PaymentID),
			amount,
			formatTime(item.PaidAt),
			deref(item.ReviewedBy),
			formatTime(item.ReviewedAt),
			deref(item.RejectionReason),
			item.CreatedAt.Format(time.RFC3339),
		})
	}
	return data
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
