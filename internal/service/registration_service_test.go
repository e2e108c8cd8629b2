package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boardinghub/boardinghub-api/internal/models"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
	"github.com/boardinghub/boardinghub-api/pkg/mailer"
)

type mockRegUsers struct {
	byEmail        map[string]*models.User
	created        []*models.User
	updated        []*models.User
	passwordResets map[string]string
	auditLogs      []*models.AuditLog
}

func (m *mockRegUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegUsers) Create(ctx context.Context, user *models.User) error {
	user.ID = "new-user"
	m.created = append(m.created, user)
	return nil
}

func (m *mockRegUsers) Update(ctx context.Context, user *models.User) error {
	m.updated = append(m.updated, user)
	return nil
}

func (m *mockRegUsers) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.passwordResets == nil {
		m.passwordResets = make(map[string]string)
	}
	m.passwordResets[id] = passwordHash
	return nil
}

func (m *mockRegUsers) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type mockRegMailer struct {
	sent []mailer.Message
	err  error
}

func (m *mockRegMailer) Send(ctx context.Context, msg mailer.Message) (mailer.Result, error) {
	if m.err != nil {
		return mailer.Result{}, m.err
	}
	m.sent = append(m.sent, msg)
	return mailer.Result{}, nil
}

type mockRegStudents struct {
	byUserID     map[string]*models.StudentDetail
	takenNumbers map[string]bool
	created      []*models.Student
	createErr    error
	assignments  []*models.BoardingAssignment
}

func (m *mockRegStudents) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	if d, ok := m.byUserID[userID]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegStudents) ExistsByStudentID(ctx context.Context, studentID string, excludeID string) (bool, error) {
	return m.takenNumbers[studentID], nil
}

func (m *mockRegStudents) Create(ctx context.Context, student *models.Student) error {
	if m.createErr != nil {
		return m.createErr
	}
	student.ID = "new-student"
	m.created = append(m.created, student)
	return nil
}

func (m *mockRegStudents) FindAssignment(ctx context.Context, studentID, propertyID string, status models.AssignmentStatus) (*models.BoardingAssignment, error) {
	for _, a := range m.assignments {
		if a.StudentID == studentID && a.PropertyID == propertyID && a.Status == status {
			return a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegStudents) CreateAssignment(ctx context.Context, assignment *models.BoardingAssignment) error {
	assignment.ID = "new-assignment"
	m.assignments = append(m.assignments, assignment)
	return nil
}

type mockRegSurveys struct {
	surveys       map[string]*models.Survey
	responses     map[string]*models.SurveyResponse
	statusUpdates map[string]models.ResponseStatus
	linked        map[string]string
	linkErr       error
}

func (m *mockRegSurveys) FindByID(ctx context.Context, id string) (*models.Survey, error) {
	if s, ok := m.surveys[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegSurveys) FindResponseByID(ctx context.Context, id string) (*models.SurveyResponse, error) {
	if r, ok := m.responses[id]; ok {
		return r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegSurveys) UpdateResponseStatus(ctx context.Context, id string, status models.ResponseStatus, reviewerID *string, notes string) error {
	if m.statusUpdates == nil {
		m.statusUpdates = make(map[string]models.ResponseStatus)
	}
	m.statusUpdates[id] = status
	return nil
}

func (m *mockRegSurveys) LinkStudentRecord(ctx context.Context, id, studentID string) error {
	if m.linkErr != nil {
		return m.linkErr
	}
	if m.linked == nil {
		m.linked = make(map[string]string)
	}
	m.linked[id] = studentID
	return nil
}

type mockRegSchools struct {
	departments map[string]*models.Department
	programs    map[string]*models.Program
}

func (m *mockRegSchools) FindDepartmentByID(ctx context.Context, id string) (*models.Department, error) {
	if d, ok := m.departments[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegSchools) FindDepartmentByName(ctx context.Context, schoolID, name string) (*models.Department, error) {
	for _, d := range m.departments {
		if d.SchoolID == schoolID && d.Name == name {
			return d, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegSchools) FindProgramByID(ctx context.Context, id string) (*models.Program, error) {
	if p, ok := m.programs[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegSchools) FindProgramByName(ctx context.Context, departmentID, name string) (*models.Program, error) {
	for _, p := range m.programs {
		if p.DepartmentID == departmentID && p.Name == name {
			return p, nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockRegProperties struct {
	byOwnerEmail map[string]*models.Property
	byName       map[string]*models.Property
	occupancy    map[string]int
}

func (m *mockRegProperties) FindByOwnerEmail(ctx context.Context, email string) (*models.Property, error) {
	if p, ok := m.byOwnerEmail[email]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegProperties) SearchByName(ctx context.Context, fragment string) (*models.Property, error) {
	if p, ok := m.byName[fragment]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegProperties) AdjustOccupancy(ctx context.Context, id string, delta int) error {
	if m.occupancy == nil {
		m.occupancy = make(map[string]int)
	}
	m.occupancy[id] += delta
	return nil
}

func pendingResponse(additional string) *models.SurveyResponse {
	return &models.SurveyResponse{
		ID:             "resp1",
		SurveyID:       "survey1",
		StudentName:    "Maria Santos",
		StudentEmail:   "Maria.Santos@Example.com",
		StudentPhone:   "+63 917 123 4567",
		Status:         models.ResponsePending,
		AdditionalData: []byte(additional),
	}
}

func newRegFixture(resp *models.SurveyResponse) (*RegistrationService, *mockRegUsers, *mockRegStudents, *mockRegSurveys, *mockRegProperties) {
	users := &mockRegUsers{byEmail: map[string]*models.User{}}
	students := &mockRegStudents{takenNumbers: map[string]bool{}}
	surveys := &mockRegSurveys{
		surveys:   map[string]*models.Survey{"survey1": {ID: "survey1", SchoolID: "school1", Title: "Onboarding"}},
		responses: map[string]*models.SurveyResponse{resp.ID: resp},
	}
	schools := &mockRegSchools{departments: map[string]*models.Department{}, programs: map[string]*models.Program{}}
	properties := &mockRegProperties{byOwnerEmail: map[string]*models.Property{}, byName: map[string]*models.Property{}}
	svc := NewRegistrationService(users, students, surveys, schools, properties, nil, zap.NewNop())
	return svc, users, students, surveys, properties
}

func TestApproveAndRegisterCreatesAccountAndStudent(t *testing.T) {
	resp := pendingResponse(`{}`)
	svc, users, students, surveys, _ := newRegFixture(resp)

	result, err := svc.ApproveAndRegister(context.Background(), "resp1", "admin1", "school1")
	require.NoError(t, err)

	require.Len(t, users.created, 1)
	assert.Equal(t, "maria.santos@example.com", users.created[0].Email)
	assert.Equal(t, "09171234567", users.created[0].Phone)
	assert.True(t, result.UserCreated)

	require.Len(t, students.created, 1)
	assert.NotEmpty(t, result.StudentNumber)
	assert.Equal(t, models.ResponseRegistered, surveys.statusUpdates["resp1"])
	assert.Equal(t, "new-student", surveys.linked["resp1"])

	// No mailer is configured, so the only warning is about credentials.
	require.Len(t, result.Warnings, 1)
	assert.False(t, result.CredentialsEmail)
}

func TestApproveExistingAccountResetsPasswordAndEmails(t *testing.T) {
	resp := pendingResponse(`{}`)
	users := &mockRegUsers{byEmail: map[string]*models.User{
		"maria.santos@example.com": {ID: "u9", Email: "maria.santos@example.com", PasswordHash: "OLDHASH", Role: models.RoleStudent, Active: true},
	}}
	students := &mockRegStudents{takenNumbers: map[string]bool{}}
	surveys := &mockRegSurveys{
		surveys:   map[string]*models.Survey{"survey1": {ID: "survey1", SchoolID: "school1", Title: "Onboarding"}},
		responses: map[string]*models.SurveyResponse{resp.ID: resp},
	}
	schools := &mockRegSchools{departments: map[string]*models.Department{}, programs: map[string]*models.Program{}}
	properties := &mockRegProperties{byOwnerEmail: map[string]*models.Property{}, byName: map[string]*models.Property{}}
	mail := &mockRegMailer{}
	svc := NewRegistrationService(users, students, surveys, schools, properties, mail, zap.NewNop())

	result, err := svc.ApproveAndRegister(context.Background(), "resp1", "admin1", "school1")
	require.NoError(t, err)

	assert.False(t, result.UserCreated)
	assert.Empty(t, users.created)

	// Approving always overwrites the password and mails new credentials,
	// even for accounts that already existed.
	newHash, reset := users.passwordResets["u9"]
	require.True(t, reset)
	assert.NotEqual(t, "OLDHASH", newHash)
	require.Len(t, mail.sent, 1)
	assert.Equal(t, []string{"maria.santos@example.com"}, mail.sent[0].To)
	assert.True(t, result.CredentialsEmail)

	// The account is forced onto a student profile in the survey's school.
	require.Len(t, users.updated, 1)
	assert.Equal(t, models.RoleStudent, users.updated[0].Role)
	require.NotNil(t, users.updated[0].SchoolID)
	assert.Equal(t, "school1", *users.updated[0].SchoolID)

	assert.Equal(t, models.ResponseRegistered, surveys.statusUpdates["resp1"])
}

func TestApproveRefusesAdministratorEmail(t *testing.T) {
	resp := pendingResponse(`{}`)
	svc, users, _, surveys, _ := newRegFixture(resp)
	users.byEmail["maria.santos@example.com"] = &models.User{ID: "a1", Email: "maria.santos@example.com", Role: models.RoleSchoolAdmin, Active: true}

	_, err := svc.ApproveAndRegister(context.Background(), "resp1", "admin1", "school1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Empty(t, users.passwordResets)
	assert.Empty(t, surveys.statusUpdates)
}

func TestApproveRejectsForeignSchoolResponse(t *testing.T) {
	resp := pendingResponse(`{}`)
	svc, _, _, surveys, _ := newRegFixture(resp)

	_, err := svc.ApproveAndRegister(context.Background(), "resp1", "admin1", "other-school")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Empty(t, surveys.statusUpdates)

	err = svc.Reject(context.Background(), "resp1", "admin1", "other-school", "nope")
	require.Error(t, err)
	appErr, ok = err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestApproveAndRegisterContinuesPastStudentFailure(t *testing.T) {
	resp := pendingResponse(`{}`)
	svc, _, students, surveys, _ := newRegFixture(resp)
	students.createErr = errors.New("constraint violation")

	result, err := svc.ApproveAndRegister(context.Background(), "resp1", "admin1", "school1")
	require.NoError(t, err)

	assert.Empty(t, result.StudentRecordID)
	assert.Contains(t, result.Warnings, "student profile could not be created")
	// The response is still marked registered despite the failed step.
	assert.Equal(t, models.ResponseRegistered, surveys.statusUpdates["resp1"])
}

func TestApproveAndRegisterLinksBoardingByOwnerEmail(t *testing.T) {
	resp := pendingResponse(`{"property_owner_email":"owner@example.com"}`)
	svc, _, students, _, properties := newRegFixture(resp)
	properties.byOwnerEmail["owner@example.com"] = &models.Property{ID: "prop1", OwnerID: "owner1", Status: models.PropertyVerified, Capacity: 4}

	result, err := svc.ApproveAndRegister(context.Background(), "resp1", "admin1", "school1")
	require.NoError(t, err)

	require.NotNil(t, result.AssignedProperty)
	assert.Equal(t, "prop1", *result.AssignedProperty)
	require.Len(t, students.assignments, 1)
	assert.Equal(t, models.AssignmentActive, students.assignments[0].Status)
	assert.Equal(t, 1, properties.occupancy["prop1"])
}

func TestApproveAndRegisterPendsAssignmentWhenPropertyFull(t *testing.T) {
	resp := pendingResponse(`{"property_owner_email":"owner@example.com"}`)
	svc, _, students, _, properties := newRegFixture(resp)
	properties.byOwnerEmail["owner@example.com"] = &models.Property{ID: "prop1", OwnerID: "owner1", Status: models.PropertyVerified, Capacity: 2, CurrentOccupancy: 2}

	result, err := svc.ApproveAndRegister(context.Background(), "resp1", "admin1", "school1")
	require.NoError(t, err)

	require.NotNil(t, result.AssignedProperty)
	require.Len(t, students.assignments, 1)
	// A full house takes the student as pending and keeps its occupancy.
	assert.Equal(t, models.AssignmentPending, students.assignments[0].Status)
	assert.Zero(t, properties.occupancy["prop1"])
}

func TestGeneratedStudentNumberFormat(t *testing.T) {
	for i := 0; i < 20; i++ {
		number, err := generateStudentNumber()
		require.NoError(t, err)
		require.Len(t, number, 10)
		assert.True(t, strings.HasPrefix(number, "S-"))
		for _, r := range number[2:] {
			assert.Contains(t, "0123456789ABCDEF", string(r))
		}
	}
}

func TestApproveAndRegisterWarnsOnUnmatchedProperty(t *testing.T) {
	resp := pendingResponse(`{"property_name":"Nonexistent Lodge"}`)
	svc, _, students, _, _ := newRegFixture(resp)

	result, err := svc.ApproveAndRegister(context.Background(), "resp1", "admin1", "school1")
	require.NoError(t, err)

	assert.Nil(t, result.AssignedProperty)
	assert.Contains(t, result.Warnings, "boarding house could not be matched")
	assert.Empty(t, students.assignments)
}

func TestApproveAndRegisterRejectsRegisteredResponse(t *testing.T) {
	resp := pendingResponse(`{}`)
	resp.Status = models.ResponseRegistered
	svc, _, _, _, _ := newRegFixture(resp)

	_, err := svc.ApproveAndRegister(context.Background(), "resp1", "admin1", "school1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrAlreadyRegistered.Code, appErr.Code)
}

func TestRejectRegisteredResponseFails(t *testing.T) {
	resp := pendingResponse(`{}`)
	resp.Status = models.ResponseRegistered
	svc, _, _, _, _ := newRegFixture(resp)

	err := svc.Reject(context.Background(), "resp1", "admin1", "school1", "incomplete")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestRejectMarksResponse(t *testing.T) {
	resp := pendingResponse(`{}`)
	svc, users, _, surveys, _ := newRegFixture(resp)

	err := svc.Reject(context.Background(), "resp1", "admin1", "school1", "incomplete details")
	require.NoError(t, err)
	assert.Equal(t, models.ResponseRejected, surveys.statusUpdates["resp1"])
	require.Len(t, users.auditLogs, 1)
	assert.Equal(t, models.AuditActionSurveyReject, users.auditLogs[0].Action)
}
