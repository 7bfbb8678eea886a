package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusregistry/registrar-api/internal/models"
	"github.com/campusregistry/registrar-api/internal/repository"
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	mu          sync.Mutex
	enrollments map[string]models.Enrollment
	pairs       map[string]bool
	slots       int
	dropped     []string
	released    []string
	seq         int
}

func newMockEnrollmentRepo(slots int) *mockEnrollmentRepo {
	return &mockEnrollmentRepo{
		enrollments: make(map[string]models.Enrollment),
		pairs:       make(map[string]bool),
		slots:       slots,
	}
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	details := make([]models.EnrollmentDetail, 0, len(m.enrollments))
	for _, e := range m.enrollments {
		details = append(details, models.EnrollmentDetail{Enrollment: e})
	}
	return details, len(details), nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) CreateWithSlot(ctx context.Context, enrollment *models.Enrollment, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pair := enrollment.StudentID + "/" + enrollment.CourseOfferingID
	if m.pairs[pair] {
		return repository.ErrDuplicateKey
	}
	if !force && m.slots <= 0 {
		return repository.ErrSlotsExhausted
	}
	if !force {
		m.slots--
	}
	m.seq++
	if enrollment.ID == "" {
		enrollment.ID = "enr-" + string(rune('0'+m.seq))
	}
	m.pairs[pair] = true
	m.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id string, from, to models.EnrollmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	if e.Status != from {
		return repository.ErrStaleStatus
	}
	e.Status = to
	m.enrollments[id] = e
	return nil
}

func (m *mockEnrollmentRepo) DropWithRelease(ctx context.Context, id, offeringID string, droppedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	if e.Status == models.EnrollmentDropped || e.Status == models.EnrollmentCompleted {
		return repository.ErrStaleStatus
	}
	e.Status = models.EnrollmentDropped
	e.DroppedDate = &droppedAt
	m.enrollments[id] = e
	m.slots++
	m.dropped = append(m.dropped, id)
	m.released = append(m.released, offeringID)
	return nil
}

type mockEnrollmentStudents struct {
	students map[string]models.StudentDetail
}

func (m *mockEnrollmentStudents) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockEnrollmentOfferings struct {
	offerings map[string]models.OfferingDetail
}

func (m *mockEnrollmentOfferings) FindByID(ctx context.Context, id string) (*models.OfferingDetail, error) {
	if o, ok := m.offerings[id]; ok {
		return &o, nil
	}
	return nil, sql.ErrNoRows
}

type mockSemesterReader struct {
	semesters map[string]models.Semester
}

func (m *mockSemesterReader) FindSemesterByID(ctx context.Context, id string) (*models.Semester, error) {
	if s, ok := m.semesters[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockAuditLog struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (m *mockAuditLog) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *log)
	return nil
}

func activeStudent(id string) models.StudentDetail {
	return models.StudentDetail{Student: models.Student{ID: id, UserID: "user-" + id, Status: models.StudentActive}}
}

func openSemester(id string, now time.Time) models.Semester {
	return models.Semester{
		ID:              id,
		IsActive:        true,
		EnrollmentStart: now.Add(-24 * time.Hour),
		EnrollmentEnd:   now.Add(24 * time.Hour),
	}
}

func enrollmentFixture(slots int) (*EnrollmentService, *mockEnrollmentRepo, *mockAuditLog) {
	now := time.Date(2025, 8, 15, 10, 0, 0, 0, time.UTC)
	repo := newMockEnrollmentRepo(slots)
	audit := &mockAuditLog{}
	svc := NewEnrollmentService(
		repo,
		&mockEnrollmentStudents{students: map[string]models.StudentDetail{
			"stu-1": activeStudent("stu-1"),
			"stu-2": activeStudent("stu-2"),
		}},
		&mockEnrollmentOfferings{offerings: map[string]models.OfferingDetail{
			"off-1": {CourseOffering: models.CourseOffering{ID: "off-1", SemesterID: "sem-1", MaxSlots: slots, IsActive: true}},
		}},
		&mockSemesterReader{semesters: map[string]models.Semester{"sem-1": openSemester("sem-1", now)}},
		audit,
		nil, nil,
	)
	svc.now = func() time.Time { return now }
	return svc, repo, audit
}

func TestEnrollTakesSlot(t *testing.T) {
	svc, repo, _ := enrollmentFixture(2)

	enrollment, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", CourseOfferingID: "off-1"}, "")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentPending, enrollment.Status)
	assert.Equal(t, 1, repo.slots)
}

func TestEnrollDuplicatePair(t *testing.T) {
	svc, _, _ := enrollmentFixture(5)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", CourseOfferingID: "off-1"}, "")
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", CourseOfferingID: "off-1"}, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, errorCode(err))
}

func TestEnrollCapacityExceeded(t *testing.T) {
	svc, _, _ := enrollmentFixture(1)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", CourseOfferingID: "off-1"}, "")
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-2", CourseOfferingID: "off-1"}, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, errorCode(err))
}

func TestEnrollLastSlotConcurrent(t *testing.T) {
	svc, repo, _ := enrollmentFixture(1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, student := range []string{"stu-1", "stu-2"} {
		wg.Add(1)
		go func(i int, student string) {
			defer wg.Done()
			_, errs[i] = svc.Enroll(context.Background(), EnrollRequest{StudentID: student, CourseOfferingID: "off-1"}, "")
		}(i, student)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, repo.slots)
}

func TestEnrollWindowClosed(t *testing.T) {
	svc, _, _ := enrollmentFixture(5)
	svc.now = func() time.Time { return time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC) }

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", CourseOfferingID: "off-1"}, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEnrollmentClosed.Code, errorCode(err))
}

func TestEnrollOverrideSkipsWindowAndAudits(t *testing.T) {
	svc, _, audit := enrollmentFixture(0)
	svc.now = func() time.Time { return time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC) }

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", CourseOfferingID: "off-1", Override: true}, "registrar-1")
	require.NoError(t, err)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionOverride, audit.entries[0].Action)
	assert.Equal(t, "enrollment", audit.entries[0].Resource)
}

func TestUpdateStatusLifecycle(t *testing.T) {
	svc, _, _ := enrollmentFixture(5)

	enrollment, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", CourseOfferingID: "off-1"}, "")
	require.NoError(t, err)

	for _, status := range []models.EnrollmentStatus{models.EnrollmentApproved, models.EnrollmentEnrolled, models.EnrollmentCompleted} {
		enrollment, err = svc.UpdateStatus(context.Background(), enrollment.ID, UpdateEnrollmentStatusRequest{Status: string(status)})
		require.NoError(t, err)
		assert.Equal(t, status, enrollment.Status)
	}
}

func TestUpdateStatusSameStateNoOp(t *testing.T) {
	svc, _, _ := enrollmentFixture(5)

	enrollment, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", CourseOfferingID: "off-1"}, "")
	require.NoError(t, err)

	same, err := svc.UpdateStatus(context.Background(), enrollment.ID, UpdateEnrollmentStatusRequest{Status: string(models.EnrollmentPending)})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentPending, same.Status)
}

func TestUpdateStatusSkipNotPermitted(t *testing.T) {
	svc, _, _ := enrollmentFixture(5)

	enrollment, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", CourseOfferingID: "off-1"}, "")
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), enrollment.ID, UpdateEnrollmentStatusRequest{Status: string(models.EnrollmentCompleted)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, errorCode(err))
}

func TestUpdateStatusTerminalRejected(t *testing.T) {
	svc, _, _ := enrollmentFixture(5)

	enrollment, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", CourseOfferingID: "off-1"}, "")
	require.NoError(t, err)

	_, err = svc.Drop(context.Background(), enrollment.ID)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), enrollment.ID, UpdateEnrollmentStatusRequest{Status: string(models.EnrollmentApproved)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTerminalState.Code, errorCode(err))
}

func TestDropReleasesSlotOnce(t *testing.T) {
	svc, repo, _ := enrollmentFixture(1)

	enrollment, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", CourseOfferingID: "off-1"}, "")
	require.NoError(t, err)
	assert.Equal(t, 0, repo.slots)

	dropped, err := svc.Drop(context.Background(), enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentDropped, dropped.Status)
	require.NotNil(t, dropped.DroppedDate)
	assert.Equal(t, 1, repo.slots)

	// A second drop is a no-op and never touches the counter again.
	again, err := svc.Drop(context.Background(), enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentDropped, again.Status)
	assert.Equal(t, 1, repo.slots)
	assert.Len(t, repo.dropped, 1)
}

// staleReadEnrollmentRepo serves one stale status snapshot for a chosen
// enrollment, standing in for a second request whose read raced a write.
type staleReadEnrollmentRepo struct {
	*mockEnrollmentRepo
	staleID     string
	staleStatus models.EnrollmentStatus
	served      bool
}

func (r *staleReadEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := r.mockEnrollmentRepo.FindByID(ctx, id)
	if err != nil || id != r.staleID || r.served {
		return detail, err
	}
	r.served = true
	detail.Status = r.staleStatus
	return detail, nil
}

func TestDropRacingDropReleasesOnce(t *testing.T) {
	svc, repo, _ := enrollmentFixture(1)

	enrollment, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", CourseOfferingID: "off-1"}, "")
	require.NoError(t, err)
	_, err = svc.Drop(context.Background(), enrollment.ID)
	require.NoError(t, err)
	require.Equal(t, 1, repo.slots)

	// The losing request read the row before the first drop committed, so
	// its snapshot still says PENDING. The guarded write must turn it into
	// an idempotent success without touching the counter again.
	svc.repo = &staleReadEnrollmentRepo{mockEnrollmentRepo: repo, staleID: enrollment.ID, staleStatus: models.EnrollmentPending}
	again, err := svc.Drop(context.Background(), enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentDropped, again.Status)
	assert.Equal(t, 1, repo.slots)
	assert.Len(t, repo.released, 1)
}

func TestDropRacingCompletionRejected(t *testing.T) {
	svc, repo, _ := enrollmentFixture(5)

	enrollment, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", CourseOfferingID: "off-1"}, "")
	require.NoError(t, err)
	for _, status := range []models.EnrollmentStatus{models.EnrollmentApproved, models.EnrollmentEnrolled, models.EnrollmentCompleted} {
		_, err = svc.UpdateStatus(context.Background(), enrollment.ID, UpdateEnrollmentStatusRequest{Status: string(status)})
		require.NoError(t, err)
	}

	// A drop that raced the completion sees the old ENROLLED snapshot; it
	// must surface the terminal state, not resurrect the slot.
	svc.repo = &staleReadEnrollmentRepo{mockEnrollmentRepo: repo, staleID: enrollment.ID, staleStatus: models.EnrollmentEnrolled}
	_, err = svc.Drop(context.Background(), enrollment.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTerminalState.Code, errorCode(err))
	assert.Empty(t, repo.released)
}

func TestUpdateStatusRacingChangeConflicts(t *testing.T) {
	svc, repo, _ := enrollmentFixture(5)

	enrollment, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", CourseOfferingID: "off-1"}, "")
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), enrollment.ID, UpdateEnrollmentStatusRequest{Status: string(models.EnrollmentApproved)})
	require.NoError(t, err)

	// A second approval based on the old PENDING snapshot loses the
	// compare-and-swap and reports the conflict instead of rewriting.
	svc.repo = &staleReadEnrollmentRepo{mockEnrollmentRepo: repo, staleID: enrollment.ID, staleStatus: models.EnrollmentPending}
	_, err = svc.UpdateStatus(context.Background(), enrollment.ID, UpdateEnrollmentStatusRequest{Status: string(models.EnrollmentApproved)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, errorCode(err))
	approved, err := repo.FindByID(context.Background(), enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentApproved, approved.Status)
}

func TestEnrollInactiveStudent(t *testing.T) {
	svc, _, _ := enrollmentFixture(5)
	students := svc.students.(*mockEnrollmentStudents)
	suspended := activeStudent("stu-3")
	suspended.Status = models.StudentSuspended
	students.students["stu-3"] = suspended

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-3", CourseOfferingID: "off-1"}, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, errorCode(err))
}
