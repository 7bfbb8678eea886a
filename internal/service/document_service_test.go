package service

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusregistry/registrar-api/internal/models"
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
)

type mockDocumentRepo struct {
	requests map[string]models.DocumentRequest
	seq      int
}

func newMockDocumentRepo() *mockDocumentRepo {
	return &mockDocumentRepo{requests: make(map[string]models.DocumentRequest)}
}

func (m *mockDocumentRepo) Create(ctx context.Context, request *models.DocumentRequest) error {
	m.seq++
	if request.ID == "" {
		request.ID = "req-1"
	}
	m.requests[request.ID] = *request
	return nil
}

func (m *mockDocumentRepo) FindByID(ctx context.Context, id string) (*models.DocumentRequest, error) {
	if r, ok := m.requests[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDocumentRepo) List(ctx context.Context, filter models.DocumentRequestFilter) ([]models.DocumentRequest, int, error) {
	out := make([]models.DocumentRequest, 0, len(m.requests))
	for _, r := range m.requests {
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *mockDocumentRepo) UpdateStatus(ctx context.Context, request *models.DocumentRequest) error {
	if _, ok := m.requests[request.ID]; !ok {
		return sql.ErrNoRows
	}
	m.requests[request.ID] = *request
	return nil
}

type mockDocumentStorage struct {
	dir   string
	saved []string
}

func (m *mockDocumentStorage) Save(filename string, data []byte) (string, error) {
	full := filepath.Join(m.dir, filepath.FromSlash(filename))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", err
	}
	m.saved = append(m.saved, filename)
	return filename, nil
}

func (m *mockDocumentStorage) Open(filename string) (*os.File, error) {
	return os.Open(filepath.Join(m.dir, filepath.FromSlash(filename)))
}

type mockDocumentSigner struct{}

func (mockDocumentSigner) Generate(jobID, relPath string) (string, time.Time, error) {
	return jobID + "|" + relPath, time.Now().Add(time.Hour), nil
}

func (mockDocumentSigner) Parse(token string, allowExpired bool) (string, string, time.Time, error) {
	parts := strings.SplitN(token, "|", 2)
	if len(parts) != 2 {
		return "", "", time.Time{}, appErrors.ErrUnauthorized
	}
	return parts[0], parts[1], time.Now().Add(time.Hour), nil
}

type mockDocumentNotifier struct {
	sent []models.Notification
}

func (m *mockDocumentNotifier) Notify(ctx context.Context, notification *models.Notification) error {
	m.sent = append(m.sent, *notification)
	return nil
}

func documentFixture(t *testing.T) (*DocumentService, *mockDocumentRepo, *mockDocumentNotifier) {
	t.Helper()
	repo := newMockDocumentRepo()
	notifier := &mockDocumentNotifier{}
	students := &mockEnrollmentStudents{students: map[string]models.StudentDetail{
		"stu-1": {
			Student:  models.Student{ID: "stu-1", UserID: "user-stu-1", StudentID: "2025-0001", Status: models.StudentActive},
			FullName: "Reyes, Ana",
		},
	}}
	svc := NewDocumentService(repo, students, &mockDocumentStorage{dir: t.TempDir()}, mockDocumentSigner{}, notifier, nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC) }
	return svc, repo, notifier
}

func openRequest(t *testing.T, svc *DocumentService) *models.DocumentRequest {
	t.Helper()
	request, err := svc.Create(context.Background(), CreateDocumentRequestRequest{
		StudentID:    "stu-1",
		DocumentType: "TOR",
		Purpose:      "employment",
		Copies:       1,
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestPending, request.Status)
	return request
}

func TestDocumentRequestAdjacentSteps(t *testing.T) {
	svc, _, _ := documentFixture(t)
	request := openRequest(t, svc)

	for _, status := range []models.DocumentRequestStatus{models.RequestProcessing, models.RequestReady, models.RequestClaimed} {
		updated, err := svc.UpdateStatus(context.Background(), request.ID, UpdateDocumentRequestStatusRequest{Status: string(status)})
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
	}
}

func TestDocumentRequestSkipRejected(t *testing.T) {
	svc, _, _ := documentFixture(t)
	request := openRequest(t, svc)

	_, err := svc.UpdateStatus(context.Background(), request.ID, UpdateDocumentRequestStatusRequest{Status: string(models.RequestReady)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, errorCode(err))
}

func TestDocumentRequestReadyRendersAndNotifies(t *testing.T) {
	svc, _, notifier := documentFixture(t)
	request := openRequest(t, svc)

	_, err := svc.UpdateStatus(context.Background(), request.ID, UpdateDocumentRequestStatusRequest{Status: string(models.RequestProcessing)})
	require.NoError(t, err)
	ready, err := svc.UpdateStatus(context.Background(), request.ID, UpdateDocumentRequestStatusRequest{Status: string(models.RequestReady)})
	require.NoError(t, err)

	assert.NotEmpty(t, ready.FilePath)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "user-stu-1", notifier.sent[0].RecipientID)
	assert.Equal(t, models.NotificationDocument, notifier.sent[0].Type)
}

func TestDocumentRequestClaimedStampsDate(t *testing.T) {
	svc, _, _ := documentFixture(t)
	request := openRequest(t, svc)

	for _, status := range []models.DocumentRequestStatus{models.RequestProcessing, models.RequestReady} {
		_, err := svc.UpdateStatus(context.Background(), request.ID, UpdateDocumentRequestStatusRequest{Status: string(status)})
		require.NoError(t, err)
	}

	claimed, err := svc.UpdateStatus(context.Background(), request.ID, UpdateDocumentRequestStatusRequest{Status: string(models.RequestClaimed)})
	require.NoError(t, err)
	require.NotNil(t, claimed.ClaimedDate)
	assert.Equal(t, 2025, claimed.ClaimedDate.Year())
}

func TestDocumentRequestCancelFromProcessing(t *testing.T) {
	svc, _, _ := documentFixture(t)
	request := openRequest(t, svc)

	_, err := svc.UpdateStatus(context.Background(), request.ID, UpdateDocumentRequestStatusRequest{Status: string(models.RequestProcessing)})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestCancelled, cancelled.Status)

	// Terminal afterwards.
	_, err = svc.UpdateStatus(context.Background(), request.ID, UpdateDocumentRequestStatusRequest{Status: string(models.RequestProcessing)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTerminalState.Code, errorCode(err))
}

func TestDownloadTokenBeforeGeneration(t *testing.T) {
	svc, _, _ := documentFixture(t)
	request := openRequest(t, svc)

	_, _, err := svc.DownloadToken(context.Background(), request.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, errorCode(err))
}

func TestDownloadRoundTrip(t *testing.T) {
	svc, _, _ := documentFixture(t)
	request := openRequest(t, svc)

	for _, status := range []models.DocumentRequestStatus{models.RequestProcessing, models.RequestReady} {
		_, err := svc.UpdateStatus(context.Background(), request.ID, UpdateDocumentRequestStatusRequest{Status: string(status)})
		require.NoError(t, err)
	}

	token, _, err := svc.DownloadToken(context.Background(), request.ID)
	require.NoError(t, err)

	file, err := svc.OpenDownload(context.Background(), token)
	require.NoError(t, err)
	defer file.Close()

	info, err := file.Stat()
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestDownloadStaleTokenRejected(t *testing.T) {
	svc, repo, _ := documentFixture(t)
	request := openRequest(t, svc)

	for _, status := range []models.DocumentRequestStatus{models.RequestProcessing, models.RequestReady} {
		_, err := svc.UpdateStatus(context.Background(), request.ID, UpdateDocumentRequestStatusRequest{Status: string(status)})
		require.NoError(t, err)
	}

	token, _, err := svc.DownloadToken(context.Background(), request.ID)
	require.NoError(t, err)

	// A token naming a path the request no longer points at is refused.
	stored := repo.requests[request.ID]
	stored.FilePath = "documents/stu-1/replaced.pdf"
	repo.requests[request.ID] = stored

	_, err = svc.OpenDownload(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errorCode(err))
}

func TestCreateDocumentRequestUnknownType(t *testing.T) {
	svc, _, _ := documentFixture(t)

	_, err := svc.Create(context.Background(), CreateDocumentRequestRequest{
		StudentID:    "stu-1",
		DocumentType: "FORM137",
		Purpose:      "records",
		Copies:       1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(err))
}
