package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
	"github.com/noah-isme/course-enrollment-api/pkg/gateway"
)

// memoryStore is an in-memory stand-in for the student, course, admission and payment order tables.
type memoryStore struct {
	mu         sync.Mutex
	students   map[string]*models.Student
	courses    map[string]*models.Course
	admissions []*models.AdmissionConfirmation
	orders     map[string]*models.PaymentOrder
	linkErr    map[string]error
	createErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		students: map[string]*models.Student{},
		courses:  map[string]*models.Course{},
		orders:   map[string]*models.PaymentOrder{},
		linkErr:  map[string]error{},
	}
}

func (m *memoryStore) addStudent(s models.Student) *memoryStore {
	m.students[s.ID] = &s
	return m
}

func (m *memoryStore) addCourse(c models.Course) *memoryStore {
	m.courses[c.ID] = &c
	return m
}

func (m *memoryStore) FindByID(ctx context.Context, id string) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	cp.EnrolledCourseIDs = append([]string(nil), s.EnrolledCourseIDs...)
	return &cp, nil
}

func (m *memoryStore) FindByIDs(ctx context.Context, ids []string) (map[string]models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]models.Course{}
	for _, id := range ids {
		if c, ok := m.courses[id]; ok {
			out[id] = *c
		}
	}
	return out, nil
}

func (m *memoryStore) LinkStudentCourse(ctx context.Context, studentID, courseID string) (*models.Course, models.EnrollmentOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.linkErr[courseID]; err != nil {
		return nil, "", err
	}
	s, ok := m.students[studentID]
	if !ok {
		return nil, "", repository.ErrStudentNotFound
	}
	if s.IsEnrolledIn(courseID) {
		return nil, models.OutcomeAlreadyEnrolled, nil
	}
	c, ok := m.courses[courseID]
	if !ok {
		return nil, "", repository.ErrCourseNotFound
	}
	s.EnrolledCourseIDs = append(s.EnrolledCourseIDs, courseID)
	if !c.HasStudent(studentID) {
		c.EnrolledStudentIDs = append(c.EnrolledStudentIDs, studentID)
	}
	cp := *c
	return &cp, models.OutcomeEnrolled, nil
}

func (m *memoryStore) courseReader() courseReader { return courseLookup{m} }

type courseLookup struct{ m *memoryStore }

func (l courseLookup) FindByID(ctx context.Context, id string) (*models.Course, error) {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	c, ok := l.m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (m *memoryStore) admissionStore() admissionStore { return admissionTable{m} }

type admissionTable struct{ m *memoryStore }

func (a admissionTable) Create(ctx context.Context, admission *models.AdmissionConfirmation) error {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if a.m.createErr != nil {
		return a.m.createErr
	}
	if admission.ID == "" {
		admission.ID = uuid.NewString()
	}
	cp := *admission
	a.m.admissions = append(a.m.admissions, &cp)
	return nil
}

func (a admissionTable) GetByID(ctx context.Context, id string) (*models.AdmissionConfirmation, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	for _, adm := range a.m.admissions {
		if adm.ID == id {
			cp := *adm
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (a admissionTable) List(ctx context.Context, filter models.AdmissionFilter) ([]models.AdmissionConfirmation, int, error) {
	all, _ := a.ListAll(ctx, filter, 0)
	start := (filter.Page - 1) * filter.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + filter.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (a admissionTable) ListAll(ctx context.Context, filter models.AdmissionFilter, limit int) ([]models.AdmissionConfirmation, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	var out []models.AdmissionConfirmation
	for _, adm := range a.m.admissions {
		if filter.Status != "" && adm.Status != filter.Status {
			continue
		}
		out = append(out, *adm)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (a admissionTable) Transition(ctx context.Context, t models.AdmissionTransition) (*models.AdmissionConfirmation, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	for _, adm := range a.m.admissions {
		if adm.ID != t.ID || adm.Status != models.AdmissionStatusPending {
			continue
		}
		reviewedAt := t.ReviewedAt
		reviewer := t.ReviewedBy
		adm.Status = t.Status
		adm.ReviewedBy = &reviewer
		adm.ReviewedAt = &reviewedAt
		adm.RejectionReason = t.RejectionReason
		if t.Notes != nil {
			adm.Notes = t.Notes
		}
		adm.UpdatedAt = reviewedAt
		cp := *adm
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (a admissionTable) Stats(ctx context.Context, since time.Time) (*models.AdmissionStats, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	stats := &models.AdmissionStats{}
	for _, adm := range a.m.admissions {
		switch adm.Status {
		case models.AdmissionStatusPending:
			stats.Pending++
		case models.AdmissionStatusConfirmed:
			stats.Confirmed++
		case models.AdmissionStatusRejected:
			stats.Rejected++
		}
		stats.Total++
		if !adm.CreatedAt.Before(since) {
			stats.Today++
		}
	}
	return stats, nil
}

func (m *memoryStore) orderLedger() paymentOrderStore { return orderTable{m} }

type orderTable struct{ m *memoryStore }

func (o orderTable) Create(ctx context.Context, order *models.PaymentOrder) error {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	if _, ok := o.m.orders[order.OrderID]; ok {
		return errors.New("duplicate order " + order.OrderID)
	}
	cp := *order
	cp.CourseIDs = append([]string(nil), order.CourseIDs...)
	o.m.orders[order.OrderID] = &cp
	return nil
}

func (o orderTable) GetByOrderID(ctx context.Context, orderID string) (*models.PaymentOrder, error) {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	order, ok := o.m.orders[orderID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *order
	return &cp, nil
}

func (o orderTable) MarkPaid(ctx context.Context, orderID, paymentID string, paidAt time.Time) error {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	order, ok := o.m.orders[orderID]
	if !ok || (order.PaymentID != nil && *order.PaymentID != paymentID) {
		return sql.ErrNoRows
	}
	if order.PaymentID == nil {
		order.PaymentID = &paymentID
		order.PaidAt = &paidAt
	}
	return nil
}

// mirrorHolds reports whether student and course enrollment lists agree and carry no duplicates.
func (m *memoryStore) mirrorHolds() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.students {
		seen := map[string]bool{}
		for _, cid := range s.EnrolledCourseIDs {
			if seen[cid] {
				return errors.New("duplicate course " + cid + " on student " + s.ID)
			}
			seen[cid] = true
			c, ok := m.courses[cid]
			if ok && !c.HasStudent(s.ID) {
				return errors.New("course " + cid + " missing student " + s.ID)
			}
		}
	}
	for _, c := range m.courses {
		seen := map[string]bool{}
		for _, sid := range c.EnrolledStudentIDs {
			if seen[sid] {
				return errors.New("duplicate student " + sid + " on course " + c.ID)
			}
			seen[sid] = true
			s, ok := m.students[sid]
			if ok && !s.IsEnrolledIn(c.ID) {
				return errors.New("student " + sid + " missing course " + c.ID)
			}
		}
	}
	return nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

type gatewayStub struct {
	calls []gateway.OrderRequest
	err   error
}

func (g *gatewayStub) CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	g.calls = append(g.calls, req)
	if g.err != nil {
		return nil, g.err
	}
	return &gateway.Order{OrderID: fmt.Sprintf("order_%d", len(g.calls)), Amount: req.Amount, Currency: req.Currency}, nil
}

type senderStub struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *senderStub) Send(ctx context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, to+"|"+subject)
	return s.err
}

func (s *senderStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
