package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boardinghub/boardinghub-api/internal/models"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
)

type mockTrashRepo struct {
	entries map[string]*models.TrashLog
	created []*models.TrashLog
	purged  []string
}

func (m *mockTrashRepo) Create(ctx context.Context, entry *models.TrashLog) error {
	entry.ID = "entry-" + entry.ItemID
	if m.entries == nil {
		m.entries = make(map[string]*models.TrashLog)
	}
	m.entries[entry.ID] = entry
	m.created = append(m.created, entry)
	return nil
}

func (m *mockTrashRepo) FindByID(ctx context.Context, id string) (*models.TrashLog, error) {
	if e, ok := m.entries[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTrashRepo) List(ctx context.Context, filter models.TrashFilter) ([]models.TrashLog, int, error) {
	var out []models.TrashLog
	for _, e := range m.entries {
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (m *mockTrashRepo) ListOpenBySchool(ctx context.Context, schoolID string) ([]models.TrashLog, error) {
	var out []models.TrashLog
	for _, e := range m.entries {
		if e.SchoolID == schoolID && !e.IsPermanentlyDeleted && e.RestoredAt == nil {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockTrashRepo) ListExpired(ctx context.Context, now time.Time) ([]models.TrashLog, error) {
	var out []models.TrashLog
	for _, e := range m.entries {
		if !e.IsPermanentlyDeleted && e.RestoredAt == nil && !e.PermanentDeleteAt.After(now) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockTrashRepo) MarkRestored(ctx context.Context, id string, ts time.Time) error {
	if e, ok := m.entries[id]; ok {
		e.RestoredAt = &ts
	}
	return nil
}

func (m *mockTrashRepo) MarkPurged(ctx context.Context, id string) error {
	m.purged = append(m.purged, id)
	if e, ok := m.entries[id]; ok {
		e.IsPermanentlyDeleted = true
	}
	return nil
}

type mockTrashUsers struct {
	byID      map[string]*models.User
	byEmail   map[string]*models.User
	created   []*models.User
	createErr error
	deleted   []string
	auditLogs []*models.AuditLog
}

func (m *mockTrashUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTrashUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTrashUsers) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if user.ID == "" {
		user.ID = "restored-user"
	}
	if m.byEmail == nil {
		m.byEmail = make(map[string]*models.User)
	}
	m.byEmail[user.Email] = user
	m.created = append(m.created, user)
	return nil
}

func (m *mockTrashUsers) HardDelete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockTrashUsers) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type mockTrashStudents struct {
	byID      map[string]*models.StudentDetail
	created   []*models.Student
	createErr error
	deleted   []string
}

func (m *mockTrashStudents) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if d, ok := m.byID[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTrashStudents) Create(ctx context.Context, student *models.Student) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, student)
	return nil
}

func (m *mockTrashStudents) HardDelete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockTrashProperties struct {
	byID    map[string]*models.PropertyDetail
	created []*models.Property
	deleted []string
}

func (m *mockTrashProperties) FindByID(ctx context.Context, id string) (*models.PropertyDetail, error) {
	if d, ok := m.byID[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTrashProperties) Create(ctx context.Context, property *models.Property) error {
	m.created = append(m.created, property)
	return nil
}

func (m *mockTrashProperties) HardDelete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockTrashSurveys struct {
	surveys         map[string]*models.Survey
	responses       map[string]*models.SurveyResponse
	statusChanges   map[string]models.SurveyStatus
	responseCount   int
	deletedMarks    map[string]*time.Time
	hardDeleted     []string
	setStatusErr    error
	setResponseErrs map[string]error
}

func (m *mockTrashSurveys) FindByID(ctx context.Context, id string) (*models.Survey, error) {
	if s, ok := m.surveys[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTrashSurveys) SetStatus(ctx context.Context, id string, status models.SurveyStatus) error {
	if m.setStatusErr != nil {
		return m.setStatusErr
	}
	if m.statusChanges == nil {
		m.statusChanges = make(map[string]models.SurveyStatus)
	}
	m.statusChanges[id] = status
	return nil
}

func (m *mockTrashSurveys) CountResponses(ctx context.Context, surveyID string) (int, error) {
	return m.responseCount, nil
}

func (m *mockTrashSurveys) FindResponseByID(ctx context.Context, id string) (*models.SurveyResponse, error) {
	if r, ok := m.responses[id]; ok {
		return r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTrashSurveys) SetResponseDeleted(ctx context.Context, id string, deletedAt *time.Time) error {
	if err, ok := m.setResponseErrs[id]; ok {
		return err
	}
	if m.deletedMarks == nil {
		m.deletedMarks = make(map[string]*time.Time)
	}
	m.deletedMarks[id] = deletedAt
	return nil
}

func (m *mockTrashSurveys) HardDeleteResponse(ctx context.Context, id string) error {
	m.hardDeleted = append(m.hardDeleted, id)
	return nil
}

func newTrashFixture() (*TrashService, *mockTrashRepo, *mockTrashUsers, *mockTrashStudents, *mockTrashProperties, *mockTrashSurveys) {
	trash := &mockTrashRepo{entries: map[string]*models.TrashLog{}}
	users := &mockTrashUsers{byID: map[string]*models.User{}, byEmail: map[string]*models.User{}}
	students := &mockTrashStudents{byID: map[string]*models.StudentDetail{}}
	properties := &mockTrashProperties{byID: map[string]*models.PropertyDetail{}}
	surveys := &mockTrashSurveys{surveys: map[string]*models.Survey{}, responses: map[string]*models.SurveyResponse{}}
	svc := NewTrashService(trash, users, students, properties, surveys, 30, zap.NewNop())
	return svc, trash, users, students, properties, surveys
}

func TestDeleteSurveyClosesAndRecords(t *testing.T) {
	svc, trash, _, _, _, surveys := newTrashFixture()
	surveys.surveys["survey1"] = &models.Survey{ID: "survey1", SchoolID: "school1", Title: "Onboarding", Status: models.SurveyActive}
	surveys.responseCount = 7

	entry, err := svc.DeleteSurvey(context.Background(), "survey1", "school1", nil)
	require.NoError(t, err)

	assert.Equal(t, models.SurveyClosed, surveys.statusChanges["survey1"])
	require.Len(t, trash.created, 1)
	assert.Equal(t, models.TrashSurvey, entry.ItemType)

	var snapshot models.SurveySnapshot
	require.NoError(t, entry.DecodeSnapshot(&snapshot))
	assert.Equal(t, models.SurveyActive, snapshot.PreviousStatus)
	assert.Equal(t, 7, snapshot.ResponseCount)
	assert.WithinDuration(t, time.Now().UTC().Add(30*24*time.Hour), entry.PermanentDeleteAt, time.Minute)
}

func TestDeleteSurveyRefusesOtherSchool(t *testing.T) {
	svc, trash, _, _, _, surveys := newTrashFixture()
	surveys.surveys["survey1"] = &models.Survey{ID: "survey1", SchoolID: "school1", Title: "Onboarding", Status: models.SurveyActive}

	_, err := svc.DeleteSurvey(context.Background(), "survey1", "school2", nil)
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Empty(t, surveys.statusChanges)
	assert.Empty(t, trash.created)
}

func TestRestoreSurveyReopensPreviousStatus(t *testing.T) {
	svc, _, _, _, _, surveys := newTrashFixture()
	surveys.surveys["survey1"] = &models.Survey{ID: "survey1", SchoolID: "school1", Title: "Onboarding", Status: models.SurveyActive}

	entry, err := svc.DeleteSurvey(context.Background(), "survey1", "school1", nil)
	require.NoError(t, err)

	result, err := svc.Restore(context.Background(), entry.ID, nil)
	require.NoError(t, err)
	assert.True(t, result.Rebuilt)
	assert.Equal(t, models.SurveyActive, surveys.statusChanges["survey1"])
	assert.NotNil(t, entry.RestoredAt)
}

func TestRestoreMarksEntryEvenWhenRebuildFails(t *testing.T) {
	svc, trash, _, _, _, surveys := newTrashFixture()
	surveys.surveys["survey1"] = &models.Survey{ID: "survey1", SchoolID: "school1", Title: "Onboarding", Status: models.SurveyActive}

	entry, err := svc.DeleteSurvey(context.Background(), "survey1", "school1", nil)
	require.NoError(t, err)

	surveys.setStatusErr = errors.New("db down")
	result, err := svc.Restore(context.Background(), entry.ID, nil)
	require.NoError(t, err)

	assert.False(t, result.Rebuilt)
	assert.NotEmpty(t, result.Warning)
	// The entry still leaves the trash so the operator sees it was handled.
	assert.NotNil(t, trash.entries[entry.ID].RestoredAt)
}

func TestRestorePurgedEntryFails(t *testing.T) {
	svc, trash, _, _, _, _ := newTrashFixture()
	trash.entries["gone"] = &models.TrashLog{ID: "gone", ItemType: models.TrashUser, IsPermanentlyDeleted: true}

	_, err := svc.Restore(context.Background(), "gone", nil)
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrTrashUnrestorable.Code, appErr.Code)
}

func TestRestoreTwiceFails(t *testing.T) {
	svc, _, users, _, _, _ := newTrashFixture()
	users.byID["u1"] = &models.User{ID: "u1", Email: "gone@example.com", FullName: "Gone User", Role: models.RoleStudent}

	entry, err := svc.DeleteUser(context.Background(), "u1", "school1", nil)
	require.NoError(t, err)

	_, err = svc.Restore(context.Background(), entry.ID, nil)
	require.NoError(t, err)

	_, err = svc.Restore(context.Background(), entry.ID, nil)
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestDeleteUserKeepsSnapshotForRestore(t *testing.T) {
	svc, _, users, _, _, _ := newTrashFixture()
	users.byID["u1"] = &models.User{
		ID:           "u1",
		Username:     "maria",
		Email:        "maria@example.com",
		PasswordHash: "$2a$10$hash",
		FullName:     "Maria Santos",
		Role:         models.RoleStudent,
	}

	entry, err := svc.DeleteUser(context.Background(), "u1", "school1", nil)
	require.NoError(t, err)
	assert.Contains(t, users.deleted, "u1")

	result, err := svc.Restore(context.Background(), entry.ID, nil)
	require.NoError(t, err)
	assert.True(t, result.Rebuilt)

	require.Len(t, users.created, 1)
	restored := users.created[0]
	assert.Equal(t, "u1", restored.ID)
	assert.Equal(t, "maria@example.com", restored.Email)
	assert.Equal(t, "$2a$10$hash", restored.PasswordHash)
	assert.True(t, restored.Active)
}

func TestDeleteResponseSoftDeletes(t *testing.T) {
	svc, _, _, _, _, surveys := newTrashFixture()
	surveys.responses["resp1"] = &models.SurveyResponse{ID: "resp1", SurveyID: "survey1", StudentName: "Juan"}

	entry, err := svc.DeleteResponse(context.Background(), "resp1", "school1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.TrashResponse, entry.ItemType)
	require.Contains(t, surveys.deletedMarks, "resp1")
	assert.NotNil(t, surveys.deletedMarks["resp1"])
}

func TestDeleteResponseAlreadyTrashed(t *testing.T) {
	svc, _, _, _, _, surveys := newTrashFixture()
	now := time.Now().UTC()
	surveys.responses["resp1"] = &models.SurveyResponse{ID: "resp1", DeletedAt: &now}

	_, err := svc.DeleteResponse(context.Background(), "resp1", "school1", nil)
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestPurgeExpiredHardDeletesResponses(t *testing.T) {
	svc, trash, _, _, _, surveys := newTrashFixture()
	surveys.responses["resp1"] = &models.SurveyResponse{ID: "resp1", SurveyID: "survey1", StudentName: "Juan"}

	entry, err := svc.DeleteResponse(context.Background(), "resp1", "school1", nil)
	require.NoError(t, err)

	// Push the deadline into the past.
	entry.PermanentDeleteAt = time.Now().UTC().Add(-time.Hour)

	purged, err := svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
	assert.Contains(t, surveys.hardDeleted, "resp1")
	assert.Contains(t, trash.purged, entry.ID)
	assert.True(t, trash.entries[entry.ID].IsPermanentlyDeleted)
}

func TestRestoreStudentRebuildsAccountToo(t *testing.T) {
	svc, _, users, students, _, _ := newTrashFixture()
	dob := time.Date(2002, 5, 14, 0, 0, 0, 0, time.UTC)
	users.byID["u1"] = &models.User{ID: "u1", Email: "juan@example.com", FullName: "Juan Dela Cruz", Role: models.RoleStudent}
	students.byID["st1"] = &models.StudentDetail{
		Student: models.Student{ID: "st1", UserID: "u1", StudentID: "S-1A2B", DateOfBirth: &dob},
	}

	entry, err := svc.DeleteStudent(context.Background(), "st1", "school1", nil)
	require.NoError(t, err)
	assert.Contains(t, students.deleted, "st1")
	assert.Contains(t, users.deleted, "u1")

	result, err := svc.Restore(context.Background(), entry.ID, nil)
	require.NoError(t, err)
	assert.True(t, result.Rebuilt)

	require.Len(t, users.created, 1)
	require.Len(t, students.created, 1)
	assert.Equal(t, "st1", students.created[0].ID)
	assert.Equal(t, "S-1A2B", students.created[0].StudentID)
	require.NotNil(t, students.created[0].DateOfBirth)
	assert.True(t, students.created[0].DateOfBirth.Equal(dob))
}
