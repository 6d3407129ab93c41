package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

const admissionColumns = `id, student_id, course_id, order_id, payment_id, amount, paid_at, status,
       reviewed_by, reviewed_at, rejection_reason, notes, created_at, updated_at`

// AdmissionConfirmationRepository persists admission confirmations.
type AdmissionConfirmationRepository struct {
	db *sqlx.DB
}

// NewAdmissionConfirmationRepository constructs the repository.
func NewAdmissionConfirmationRepository(db *sqlx.DB) *AdmissionConfirmationRepository {
	return &AdmissionConfirmationRepository{db: db}
}

// Create inserts a new confirmation row.
func (r *AdmissionConfirmationRepository) Create(ctx context.Context, admission *models.AdmissionConfirmation) error {
	if admission.ID == "" {
		admission.ID = uuid.NewString()
	}
	if admission.Status == "" {
		admission.Status = models.AdmissionStatusPending
	}
	if admission.CreatedAt.IsZero() {
		admission.CreatedAt = time.Now().UTC()
	}
	if admission.UpdatedAt.IsZero() {
		admission.UpdatedAt = admission.CreatedAt
	}
	const query = `INSERT INTO admission_confirmations
	(id, student_id, course_id, order_id, payment_id, amount, paid_at, status, reviewed_by, reviewed_at, rejection_reason, notes, created_at, updated_at)
	VALUES (:id, :student_id, :course_id, :order_id, :payment_id, :amount, :paid_at, :status, :reviewed_by, :reviewed_at, :rejection_reason, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, admission); err != nil {
		return fmt.Errorf("create admission confirmation: %w", err)
	}
	return nil
}

// GetByID fetches a confirmation by identifier.
func (r *AdmissionConfirmationRepository) GetByID(ctx context.Context, id string) (*models.AdmissionConfirmation, error) {
	query := `SELECT ` + admissionColumns + ` FROM admission_confirmations WHERE id = $1`
	var admission models.AdmissionConfirmation
	if err := r.db.GetContext(ctx, &admission, query, id); err != nil {
		return nil, err
	}
	return &admission, nil
}

// List returns one page of confirmations, newest first, and the total matching count.
func (r *AdmissionConfirmationRepository) List(ctx context.Context, filter models.AdmissionFilter) ([]models.AdmissionConfirmation, int, error) {
	clause, args := admissionConditions(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 10
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM admission_confirmations%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		admissionColumns, clause, size, offset)
	admissions := make([]models.AdmissionConfirmation, 0, size)
	if err := r.db.SelectContext(ctx, &admissions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list admission confirmations: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM admission_confirmations"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count admission confirmations: %w", err)
	}
	return admissions, total, nil
}

// ListAll returns up to limit confirmations matching the filter, newest first.
func (r *AdmissionConfirmationRepository) ListAll(ctx context.Context, filter models.AdmissionFilter, limit int) ([]models.AdmissionConfirmation, error) {
	clause, args := admissionConditions(filter)
	if limit <= 0 {
		limit = 1000
	}
	query := fmt.Sprintf(`SELECT %s FROM admission_confirmations%s ORDER BY created_at DESC LIMIT %d`, admissionColumns, clause, limit)
	var admissions []models.AdmissionConfirmation
	if err := r.db.SelectContext(ctx, &admissions, query, args...); err != nil {
		return nil, fmt.Errorf("export admission confirmations: %w", err)
	}
	return admissions, nil
}

// Transition moves a PENDING confirmation to a terminal status in one conditional update.
// It returns sql.ErrNoRows when the row is missing or no longer PENDING.
func (r *AdmissionConfirmationRepository) Transition(ctx context.Context, t models.AdmissionTransition) (*models.AdmissionConfirmation, error) {
	query := `UPDATE admission_confirmations
	SET status = $2, reviewed_by = $3, reviewed_at = $4, rejection_reason = $5, notes = COALESCE($6, notes), updated_at = $4
	WHERE id = $1 AND status = $7
	RETURNING ` + admissionColumns
	var admission models.AdmissionConfirmation
	if err := r.db.GetContext(ctx, &admission, query,
		t.ID, t.Status, t.ReviewedBy, t.ReviewedAt, t.RejectionReason, t.Notes, models.AdmissionStatusPending,
	); err != nil {
		return nil, err
	}
	return &admission, nil
}

// Stats counts confirmations by status and those created at or after since.
func (r *AdmissionConfirmationRepository) Stats(ctx context.Context, since time.Time) (*models.AdmissionStats, error) {
	const query = `SELECT
        COUNT(*) FILTER (WHERE status = 'PENDING') AS pending,
        COUNT(*) FILTER (WHERE status = 'CONFIRMED') AS confirmed,
        COUNT(*) FILTER (WHERE status = 'REJECTED') AS rejected,
        COUNT(*) AS total,
        COUNT(*) FILTER (WHERE created_at >= $1) AS today
        FROM admission_confirmations`
	var stats models.AdmissionStats
	if err := r.db.GetContext(ctx, &stats, query, since); err != nil {
		return nil, fmt.Errorf("admission stats: %w", err)
	}
	return &stats, nil
}

func admissionConditions(filter models.AdmissionFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		conditions = append(conditions, fmt.Sprintf("(order_id ILIKE $%d OR payment_id ILIKE $%d)", len(args), len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
