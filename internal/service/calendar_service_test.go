package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusregistry/registrar-api/internal/models"
	"github.com/campusregistry/registrar-api/internal/repository"
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
)

type mockCalendarRepo struct {
	years     map[string]models.AcademicYear
	semesters map[string]models.Semester
	seq       int
}

func newMockCalendarRepo() *mockCalendarRepo {
	return &mockCalendarRepo{years: make(map[string]models.AcademicYear), semesters: make(map[string]models.Semester)}
}

func (m *mockCalendarRepo) ListYears(ctx context.Context, filter models.AcademicYearFilter) ([]models.AcademicYear, int, error) {
	out := make([]models.AcademicYear, 0, len(m.years))
	for _, y := range m.years {
		out = append(out, y)
	}
	return out, len(out), nil
}

func (m *mockCalendarRepo) FindYearByID(ctx context.Context, id string) (*models.AcademicYear, error) {
	if y, ok := m.years[id]; ok {
		return &y, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCalendarRepo) CreateYear(ctx context.Context, year *models.AcademicYear) error {
	for _, existing := range m.years {
		if existing.Name == year.Name {
			return repository.ErrDuplicateKey
		}
	}
	m.seq++
	year.ID = fmt.Sprintf("ay-%d", m.seq)
	m.years[year.ID] = *year
	return nil
}

func (m *mockCalendarRepo) UpdateYear(ctx context.Context, year *models.AcademicYear) error {
	if _, ok := m.years[year.ID]; !ok {
		return sql.ErrNoRows
	}
	m.years[year.ID] = *year
	return nil
}

func (m *mockCalendarRepo) DeleteYear(ctx context.Context, id string) error {
	if _, ok := m.years[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.years, id)
	return nil
}

func (m *mockCalendarRepo) ActivateYear(ctx context.Context, id string) error {
	if _, ok := m.years[id]; !ok {
		return sql.ErrNoRows
	}
	for key, y := range m.years {
		y.IsActive = key == id
		m.years[key] = y
	}
	return nil
}

func (m *mockCalendarRepo) ListSemesters(ctx context.Context, filter models.SemesterFilter) ([]models.SemesterDetail, int, error) {
	out := make([]models.SemesterDetail, 0, len(m.semesters))
	for _, s := range m.semesters {
		out = append(out, models.SemesterDetail{Semester: s})
	}
	return out, len(out), nil
}

func (m *mockCalendarRepo) FindSemesterByID(ctx context.Context, id string) (*models.Semester, error) {
	if s, ok := m.semesters[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCalendarRepo) CreateSemester(ctx context.Context, semester *models.Semester) error {
	if _, ok := m.years[semester.AcademicYearID]; !ok {
		return sql.ErrNoRows
	}
	for _, existing := range m.semesters {
		if existing.AcademicYearID == semester.AcademicYearID && existing.SemesterType == semester.SemesterType {
			return repository.ErrDuplicateKey
		}
	}
	m.seq++
	semester.ID = fmt.Sprintf("sem-%d", m.seq)
	m.semesters[semester.ID] = *semester
	return nil
}

func (m *mockCalendarRepo) UpdateSemester(ctx context.Context, semester *models.Semester) error {
	if _, ok := m.semesters[semester.ID]; !ok {
		return sql.ErrNoRows
	}
	m.semesters[semester.ID] = *semester
	return nil
}

func (m *mockCalendarRepo) DeleteSemester(ctx context.Context, id string) error {
	if _, ok := m.semesters[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.semesters, id)
	return nil
}

func (m *mockCalendarRepo) ActivateSemester(ctx context.Context, id string) error {
	if _, ok := m.semesters[id]; !ok {
		return sql.ErrNoRows
	}
	for key, s := range m.semesters {
		s.IsActive = key == id
		m.semesters[key] = s
	}
	return nil
}

func (m *mockCalendarRepo) CurrentSemester(ctx context.Context, now time.Time) (*models.Semester, error) {
	for _, s := range m.semesters {
		if s.IsActive && s.EnrollmentOpenAt(now) {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func calendarFixture() (*CalendarService, *mockCalendarRepo) {
	repo := newMockCalendarRepo()
	svc := NewCalendarService(repo, nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 8, 15, 10, 0, 0, 0, time.UTC) }
	return svc, repo
}

func yearRequest(name string) CreateAcademicYearRequest {
	return CreateAcademicYearRequest{
		Name:      name,
		StartDate: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC),
	}
}

func semesterRequest(yearID string, semesterType string) CreateSemesterRequest {
	return CreateSemesterRequest{
		AcademicYearID:  yearID,
		SemesterType:    semesterType,
		StartDate:       time.Date(2025, 8, 11, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2025, 12, 19, 0, 0, 0, 0, time.UTC),
		EnrollmentStart: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		EnrollmentEnd:   time.Date(2025, 8, 22, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateYearInactiveByDefault(t *testing.T) {
	svc, _ := calendarFixture()

	year, err := svc.CreateYear(context.Background(), yearRequest("2025-2026"))
	require.NoError(t, err)
	assert.False(t, year.IsActive)
}

func TestCreateYearDatesInverted(t *testing.T) {
	svc, _ := calendarFixture()

	req := yearRequest("2025-2026")
	req.EndDate = req.StartDate
	_, err := svc.CreateYear(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
}

func TestCreateYearDuplicateName(t *testing.T) {
	svc, _ := calendarFixture()

	_, err := svc.CreateYear(context.Background(), yearRequest("2025-2026"))
	require.NoError(t, err)

	_, err = svc.CreateYear(context.Background(), yearRequest("2025-2026"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, errorCode(err))
}

func TestActivateYearClearsSiblings(t *testing.T) {
	svc, repo := calendarFixture()

	first, err := svc.CreateYear(context.Background(), yearRequest("2024-2025"))
	require.NoError(t, err)
	second, err := svc.CreateYear(context.Background(), yearRequest("2025-2026"))
	require.NoError(t, err)

	activated, err := svc.ActivateYear(context.Background(), first.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)

	activated, err = svc.ActivateYear(context.Background(), second.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)
	assert.False(t, repo.years[first.ID].IsActive)
}

func TestActivateYearNotFound(t *testing.T) {
	svc, _ := calendarFixture()

	_, err := svc.ActivateYear(context.Background(), "ay-missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(err))
}

func TestCreateSemesterNormalizesType(t *testing.T) {
	svc, _ := calendarFixture()

	year, err := svc.CreateYear(context.Background(), yearRequest("2025-2026"))
	require.NoError(t, err)

	semester, err := svc.CreateSemester(context.Background(), semesterRequest(year.ID, "1st"))
	require.NoError(t, err)
	assert.Equal(t, models.SemesterFirst, semester.SemesterType)
	assert.False(t, semester.IsActive)
}

func TestCreateSemesterUnknownType(t *testing.T) {
	svc, _ := calendarFixture()

	year, err := svc.CreateYear(context.Background(), yearRequest("2025-2026"))
	require.NoError(t, err)

	_, err = svc.CreateSemester(context.Background(), semesterRequest(year.ID, "3RD"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
}

func TestCreateSemesterDuplicateTypePerYear(t *testing.T) {
	svc, _ := calendarFixture()

	year, err := svc.CreateYear(context.Background(), yearRequest("2025-2026"))
	require.NoError(t, err)

	_, err = svc.CreateSemester(context.Background(), semesterRequest(year.ID, "1ST"))
	require.NoError(t, err)

	_, err = svc.CreateSemester(context.Background(), semesterRequest(year.ID, "1ST"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, errorCode(err))
}

func TestCreateSemesterEnrollmentWindowInverted(t *testing.T) {
	svc, _ := calendarFixture()

	year, err := svc.CreateYear(context.Background(), yearRequest("2025-2026"))
	require.NoError(t, err)

	req := semesterRequest(year.ID, "1ST")
	req.EnrollmentEnd = req.EnrollmentStart.Add(-24 * time.Hour)
	_, err = svc.CreateSemester(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
}

func TestActivateSemesterClearsSiblings(t *testing.T) {
	svc, repo := calendarFixture()

	year, err := svc.CreateYear(context.Background(), yearRequest("2025-2026"))
	require.NoError(t, err)

	first, err := svc.CreateSemester(context.Background(), semesterRequest(year.ID, "1ST"))
	require.NoError(t, err)
	second, err := svc.CreateSemester(context.Background(), semesterRequest(year.ID, "2ND"))
	require.NoError(t, err)

	_, err = svc.ActivateSemester(context.Background(), first.ID)
	require.NoError(t, err)

	activated, err := svc.ActivateSemester(context.Background(), second.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)
	assert.False(t, repo.semesters[first.ID].IsActive)
}

func TestCurrentSemesterInsideWindow(t *testing.T) {
	svc, _ := calendarFixture()

	year, err := svc.CreateYear(context.Background(), yearRequest("2025-2026"))
	require.NoError(t, err)
	semester, err := svc.CreateSemester(context.Background(), semesterRequest(year.ID, "1ST"))
	require.NoError(t, err)
	_, err = svc.ActivateSemester(context.Background(), semester.ID)
	require.NoError(t, err)

	current, err := svc.CurrentSemester(context.Background())
	require.NoError(t, err)
	assert.Equal(t, semester.ID, current.ID)
}

func TestCurrentSemesterWindowClosed(t *testing.T) {
	svc, _ := calendarFixture()

	year, err := svc.CreateYear(context.Background(), yearRequest("2025-2026"))
	require.NoError(t, err)
	semester, err := svc.CreateSemester(context.Background(), semesterRequest(year.ID, "1ST"))
	require.NoError(t, err)
	_, err = svc.ActivateSemester(context.Background(), semester.ID)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC) }
	_, err = svc.CurrentSemester(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(err))
}

func TestUpdateSemesterKeepsWindowConsistent(t *testing.T) {
	svc, _ := calendarFixture()

	year, err := svc.CreateYear(context.Background(), yearRequest("2025-2026"))
	require.NoError(t, err)
	semester, err := svc.CreateSemester(context.Background(), semesterRequest(year.ID, "1ST"))
	require.NoError(t, err)

	badEnd := semester.EnrollmentStart.Add(-time.Hour)
	_, err = svc.UpdateSemester(context.Background(), semester.ID, UpdateSemesterRequest{EnrollmentEnd: &badEnd})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))

	goodEnd := semester.EnrollmentEnd.Add(7 * 24 * time.Hour)
	updated, err := svc.UpdateSemester(context.Background(), semester.ID, UpdateSemesterRequest{EnrollmentEnd: &goodEnd})
	require.NoError(t, err)
	assert.True(t, updated.EnrollmentEnd.Equal(goodEnd))
}
