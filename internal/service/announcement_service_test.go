package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusregistry/registrar-api/internal/models"
	"github.com/campusregistry/registrar-api/pkg/jobs"
)

type mockAnnouncementRepo struct {
	announcements map[string]models.Announcement
}

func newMockAnnouncementRepo() *mockAnnouncementRepo {
	return &mockAnnouncementRepo{announcements: make(map[string]models.Announcement)}
}

func (m *mockAnnouncementRepo) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	out := make([]models.Announcement, 0, len(m.announcements))
	for _, a := range m.announcements {
		out = append(out, a)
	}
	return out, len(out), nil
}

func (m *mockAnnouncementRepo) FindByID(ctx context.Context, id string) (*models.Announcement, error) {
	if a, ok := m.announcements[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAnnouncementRepo) Create(ctx context.Context, announcement *models.Announcement) error {
	if announcement.ID == "" {
		announcement.ID = "ann-1"
	}
	m.announcements[announcement.ID] = *announcement
	return nil
}

func (m *mockAnnouncementRepo) Update(ctx context.Context, announcement *models.Announcement) error {
	m.announcements[announcement.ID] = *announcement
	return nil
}

func (m *mockAnnouncementRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.announcements[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.announcements, id)
	return nil
}

type mockRecipientLister struct {
	byRole    map[models.UserRole][]string
	lastRoles []models.UserRole
}

func (m *mockRecipientLister) ListIDsByRoles(ctx context.Context, roles []models.UserRole) ([]string, error) {
	m.lastRoles = roles
	var out []string
	for _, role := range roles {
		out = append(out, m.byRole[role]...)
	}
	return out, nil
}

type mockBatchWriter struct {
	batches [][]models.Notification
}

func (m *mockBatchWriter) CreateBatch(ctx context.Context, notifications []models.Notification) error {
	m.batches = append(m.batches, notifications)
	return nil
}

type captureQueue struct {
	jobs []jobs.Job
}

func (q *captureQueue) Enqueue(job jobs.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func announcementFixture() (*AnnouncementService, *mockRecipientLister, *mockBatchWriter, *captureQueue) {
	users := &mockRecipientLister{byRole: map[models.UserRole][]string{
		models.RoleStudent:   {"u-s1", "u-s2"},
		models.RoleFaculty:   {"u-f1"},
		models.RoleRegistrar: {"u-r1"},
		models.RoleAdmin:     {"u-a1"},
	}}
	writer := &mockBatchWriter{}
	queue := &captureQueue{}
	svc := NewAnnouncementService(newMockAnnouncementRepo(), users, writer, queue, nil, nil)
	return svc, users, writer, queue
}

func TestCreateAnnouncementEnqueuesFanout(t *testing.T) {
	svc, _, _, queue := announcementFixture()

	announcement, err := svc.Create(context.Background(), CreateAnnouncementRequest{
		Title:          "Enrollment extended",
		Content:        "Late enrollment runs through Friday.",
		TargetAudience: "students",
	}, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, models.PriorityNormal, announcement.Priority)
	assert.True(t, announcement.IsActive)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "announcement.fanout", queue.jobs[0].Type)
	payload, ok := queue.jobs[0].Payload.(announcementFanout)
	require.True(t, ok)
	assert.Equal(t, models.AudienceStudents, payload.TargetAudience)
}

func TestFanoutStudentsAudience(t *testing.T) {
	svc, users, writer, _ := announcementFixture()

	err := svc.HandleFanoutJob(context.Background(), jobs.Job{
		ID:      "job-1",
		Type:    "announcement.fanout",
		Payload: announcementFanout{AnnouncementID: "ann-1", Title: "Enrollment extended", TargetAudience: models.AudienceStudents},
	})
	require.NoError(t, err)

	assert.Equal(t, []models.UserRole{models.RoleStudent}, users.lastRoles)
	require.Len(t, writer.batches, 1)
	require.Len(t, writer.batches[0], 2)
	for _, n := range writer.batches[0] {
		assert.Equal(t, models.NotificationAnnouncement, n.Type)
		assert.Equal(t, "Enrollment extended", n.Title)
		assert.Equal(t, "/announcements/ann-1", n.Link)
	}
}

func TestFanoutAllAudienceSpansRoles(t *testing.T) {
	svc, _, writer, _ := announcementFixture()

	err := svc.HandleFanoutJob(context.Background(), jobs.Job{
		ID:      "job-2",
		Payload: announcementFanout{AnnouncementID: "ann-2", Title: "Holiday notice", TargetAudience: models.AudienceAll},
	})
	require.NoError(t, err)

	require.Len(t, writer.batches, 1)
	assert.Len(t, writer.batches[0], 5)
}

func TestFanoutUnexpectedPayload(t *testing.T) {
	svc, _, writer, _ := announcementFixture()

	err := svc.HandleFanoutJob(context.Background(), jobs.Job{ID: "job-3", Payload: "garbage"})
	require.Error(t, err)
	assert.Empty(t, writer.batches)
}

func TestUpdateAnnouncementDoesNotRenotify(t *testing.T) {
	svc, _, _, queue := announcementFixture()

	announcement, err := svc.Create(context.Background(), CreateAnnouncementRequest{
		Title:   "Exam schedule",
		Content: "Posted on the bulletin board.",
	}, "staff-1")
	require.NoError(t, err)
	require.Len(t, queue.jobs, 1)

	newTitle := "Exam schedule (updated)"
	_, err = svc.Update(context.Background(), announcement.ID, UpdateAnnouncementRequest{Title: newTitle})
	require.NoError(t, err)
	assert.Len(t, queue.jobs, 1)
}

func TestCreateAnnouncementNilQueue(t *testing.T) {
	users := &mockRecipientLister{}
	svc := NewAnnouncementService(newMockAnnouncementRepo(), users, &mockBatchWriter{}, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateAnnouncementRequest{
		Title:   "No fan-out",
		Content: "Queue disabled.",
	}, "staff-1")
	require.NoError(t, err)
}
