package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusregistry/registrar-api/internal/models"
	"github.com/campusregistry/registrar-api/internal/repository"
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
)

type mockOfferingRepo struct {
	offerings map[string]models.CourseOffering
	schedules map[string]models.Schedule
	seq       int
}

func newMockOfferingRepo() *mockOfferingRepo {
	return &mockOfferingRepo{offerings: make(map[string]models.CourseOffering), schedules: make(map[string]models.Schedule)}
}

func (m *mockOfferingRepo) List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, int, error) {
	out := make([]models.OfferingDetail, 0, len(m.offerings))
	for _, o := range m.offerings {
		out = append(out, models.OfferingDetail{CourseOffering: o})
	}
	return out, len(out), nil
}

func (m *mockOfferingRepo) FindByID(ctx context.Context, id string) (*models.OfferingDetail, error) {
	if o, ok := m.offerings[id]; ok {
		return &models.OfferingDetail{CourseOffering: o}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockOfferingRepo) Create(ctx context.Context, offering *models.CourseOffering) error {
	for _, existing := range m.offerings {
		if existing.CourseID == offering.CourseID && existing.SemesterID == offering.SemesterID && existing.Section == offering.Section {
			return repository.ErrDuplicateKey
		}
	}
	m.seq++
	offering.ID = fmt.Sprintf("off-%d", m.seq)
	m.offerings[offering.ID] = *offering
	return nil
}

func (m *mockOfferingRepo) Update(ctx context.Context, offering *models.CourseOffering) error {
	if _, ok := m.offerings[offering.ID]; !ok {
		return sql.ErrNoRows
	}
	m.offerings[offering.ID] = *offering
	return nil
}

func (m *mockOfferingRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.offerings[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.offerings, id)
	return nil
}

func (m *mockOfferingRepo) ListSchedules(ctx context.Context, offeringID string) ([]models.Schedule, error) {
	var out []models.Schedule
	for _, s := range m.schedules {
		if s.CourseOfferingID == offeringID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockOfferingRepo) FindScheduleByID(ctx context.Context, id string) (*models.Schedule, error) {
	if s, ok := m.schedules[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockOfferingRepo) CreateSchedule(ctx context.Context, schedule *models.Schedule) error {
	if _, ok := m.offerings[schedule.CourseOfferingID]; !ok {
		return sql.ErrNoRows
	}
	m.seq++
	schedule.ID = fmt.Sprintf("sch-%d", m.seq)
	m.schedules[schedule.ID] = *schedule
	return nil
}

func (m *mockOfferingRepo) UpdateSchedule(ctx context.Context, schedule *models.Schedule) error {
	m.schedules[schedule.ID] = *schedule
	return nil
}

func (m *mockOfferingRepo) DeleteSchedule(ctx context.Context, id string) error {
	if _, ok := m.schedules[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.schedules, id)
	return nil
}

func offeringFixture() (*OfferingService, *mockOfferingRepo) {
	repo := newMockOfferingRepo()
	return NewOfferingService(repo, nil, nil), repo
}

func sectionRequest(section string) CreateOfferingRequest {
	return CreateOfferingRequest{CourseID: "c-1", SemesterID: "sem-1", Section: section, MaxSlots: 40}
}

func TestCreateOfferingUppercasesSection(t *testing.T) {
	svc, _ := offeringFixture()

	offering, err := svc.Create(context.Background(), sectionRequest("a"))
	require.NoError(t, err)
	assert.Equal(t, "A", offering.Section)
	assert.Zero(t, offering.EnrolledCount)
	assert.True(t, offering.IsActive)
}

func TestCreateOfferingDuplicateSection(t *testing.T) {
	svc, _ := offeringFixture()

	_, err := svc.Create(context.Background(), sectionRequest("A"))
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), sectionRequest("a"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, errorCode(err))
}

func TestCreateOfferingRequiresPositiveSlots(t *testing.T) {
	svc, _ := offeringFixture()

	req := sectionRequest("A")
	req.MaxSlots = 0
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
}

func TestUpdateOfferingShrinkKeepsEnrolled(t *testing.T) {
	svc, repo := offeringFixture()

	offering, err := svc.Create(context.Background(), sectionRequest("A"))
	require.NoError(t, err)

	stored := repo.offerings[offering.ID]
	stored.EnrolledCount = 35
	repo.offerings[offering.ID] = stored

	lowered := 30
	updated, err := svc.Update(context.Background(), offering.ID, UpdateOfferingRequest{MaxSlots: &lowered})
	require.NoError(t, err)
	assert.Equal(t, 30, updated.MaxSlots)
	assert.Equal(t, 35, updated.EnrolledCount)
}

func TestUpdateOfferingClearFaculty(t *testing.T) {
	svc, _ := offeringFixture()

	facultyID := "fac-1"
	req := sectionRequest("A")
	req.FacultyID = &facultyID
	offering, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, offering.FacultyID)

	updated, err := svc.Update(context.Background(), offering.ID, UpdateOfferingRequest{ClearFaculty: true})
	require.NoError(t, err)
	assert.Nil(t, updated.FacultyID)
}

func TestAddScheduleNormalizesDay(t *testing.T) {
	svc, _ := offeringFixture()

	offering, err := svc.Create(context.Background(), sectionRequest("A"))
	require.NoError(t, err)

	schedule, err := svc.AddSchedule(context.Background(), offering.ID, CreateScheduleRequest{
		DayOfWeek: "mon",
		StartTime: "08:00",
		EndTime:   "09:30",
		Room:      "204",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DayMonday, schedule.DayOfWeek)
}

func TestAddScheduleUnknownDay(t *testing.T) {
	svc, _ := offeringFixture()

	offering, err := svc.Create(context.Background(), sectionRequest("A"))
	require.NoError(t, err)

	_, err = svc.AddSchedule(context.Background(), offering.ID, CreateScheduleRequest{
		DayOfWeek: "SUN",
		StartTime: "08:00",
		EndTime:   "09:30",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
}

func TestAddScheduleMissingOffering(t *testing.T) {
	svc, _ := offeringFixture()

	_, err := svc.AddSchedule(context.Background(), "off-missing", CreateScheduleRequest{
		DayOfWeek: "FRI",
		StartTime: "10:00",
		EndTime:   "11:30",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(err))
}
