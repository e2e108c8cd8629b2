package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/boardinghub/boardinghub-api/internal/models"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
)

type mockAuthRepo struct {
	usersByEmail    map[string]*models.User
	usersByUsername map[string]*models.User
	usersByPhone    map[string]*models.User
	usersByID       map[string]*models.User
	refreshTokens   map[string]*models.RefreshToken
	resetSessions   map[string]*models.PasswordResetSession
	auditLogs       []*models.AuditLog
	lastLoginSet    bool
	passwordUpdates int
	revokedAllFor   []string
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if u, ok := m.usersByUsername[username]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByPhoneAndRole(ctx context.Context, phone string, role models.UserRole) (*models.User, error) {
	if u, ok := m.usersByPhone[phone]; ok && u.Role == role {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.usersByID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginSet = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwordUpdates++
	if u, ok := m.usersByID[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAllFor = append(m.revokedAllFor, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if rt, ok := m.refreshTokens[token]; ok {
		return rt, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, rt := range m.refreshTokens {
		if rt.ID == id {
			rt.Revoked = true
			rt.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateResetSession(ctx context.Context, session *models.PasswordResetSession) error {
	if m.resetSessions == nil {
		m.resetSessions = make(map[string]*models.PasswordResetSession)
	}
	m.resetSessions[session.RequestID] = session
	return nil
}

func (m *mockAuthRepo) FindResetSession(ctx context.Context, requestID string) (*models.PasswordResetSession, error) {
	if s, ok := m.resetSessions[requestID]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) IncrementResetAttempts(ctx context.Context, id string) error {
	for _, s := range m.resetSessions {
		if s.ID == id {
			s.Attempts++
		}
	}
	return nil
}

func (m *mockAuthRepo) MarkResetVerified(ctx context.Context, id string, ts time.Time) error {
	for _, s := range m.resetSessions {
		if s.ID == id {
			s.VerifiedAt = &ts
		}
	}
	return nil
}

func (m *mockAuthRepo) MarkResetUsed(ctx context.Context, id string, ts time.Time) error {
	for _, s := range m.resetSessions {
		if s.ID == id {
			s.UsedAt = &ts
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type mockAuthStudents struct {
	byStudentID map[string]*models.StudentDetail
}

func (m *mockAuthStudents) FindByStudentID(ctx context.Context, studentID string) (*models.StudentDetail, error) {
	if d, ok := m.byStudentID[studentID]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

type mockAuthProperties struct {
	byPropertyID map[string]*models.Property
}

func (m *mockAuthProperties) FindByPropertyID(ctx context.Context, propertyID string) (*models.Property, error) {
	if p, ok := m.byPropertyID[propertyID]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func hashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestAuthService(repo *mockAuthRepo, students *mockAuthStudents, properties *mockAuthProperties) *AuthService {
	if students == nil {
		students = &mockAuthStudents{}
	}
	if properties == nil {
		properties = &mockAuthProperties{}
	}
	return NewAuthService(repo, students, properties, nil, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "boardinghub-test",
	})
}

func TestResolveIdentifierEmail(t *testing.T) {
	user := &models.User{ID: "u1", Email: "student@example.com", Role: models.RoleStudent}
	repo := &mockAuthRepo{usersByEmail: map[string]*models.User{"student@example.com": user}}
	svc := newTestAuthService(repo, nil, nil)

	resolved, err := svc.ResolveIdentifier(context.Background(), "student@example.com", models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, "u1", resolved.ID)
}

func TestResolveIdentifierStudentNumber(t *testing.T) {
	user := &models.User{ID: "u1", Role: models.RoleStudent}
	repo := &mockAuthRepo{usersByID: map[string]*models.User{"u1": user}}
	students := &mockAuthStudents{byStudentID: map[string]*models.StudentDetail{
		"2021-00123": {Student: models.Student{UserID: "u1", StudentID: "2021-00123"}},
	}}
	svc := newTestAuthService(repo, students, nil)

	resolved, err := svc.ResolveIdentifier(context.Background(), "2021-00123", models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, "u1", resolved.ID)
}

func TestResolveIdentifierStudentPhone(t *testing.T) {
	user := &models.User{ID: "u2", Role: models.RoleStudent, Phone: "09171234567"}
	repo := &mockAuthRepo{usersByPhone: map[string]*models.User{"09171234567": user}}
	svc := newTestAuthService(repo, nil, nil)

	// Country-code form should normalize before lookup.
	resolved, err := svc.ResolveIdentifier(context.Background(), "+63 917 123 4567", models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, "u2", resolved.ID)
}

func TestResolveIdentifierPropertyCode(t *testing.T) {
	owner := &models.User{ID: "owner1", Role: models.RolePropertyOwner}
	repo := &mockAuthRepo{usersByID: map[string]*models.User{"owner1": owner}}
	properties := &mockAuthProperties{byPropertyID: map[string]*models.Property{
		"P-4A2B1C": {ID: "prop1", PropertyID: "P-4A2B1C", OwnerID: "owner1"},
	}}
	svc := newTestAuthService(repo, nil, properties)

	resolved, err := svc.ResolveIdentifier(context.Background(), "P-4A2B1C", models.RolePropertyOwner)
	require.NoError(t, err)
	assert.Equal(t, "owner1", resolved.ID)
}

func TestResolveIdentifierUsernameFallback(t *testing.T) {
	user := &models.User{ID: "u3", Username: "admin01", Role: models.RoleSchoolAdmin}
	repo := &mockAuthRepo{usersByUsername: map[string]*models.User{"admin01": user}}
	svc := newTestAuthService(repo, nil, nil)

	resolved, err := svc.ResolveIdentifier(context.Background(), "admin01", models.RoleSchoolAdmin)
	require.NoError(t, err)
	assert.Equal(t, "u3", resolved.ID)
}

func TestLoginRejectsRoleMismatch(t *testing.T) {
	user := &models.User{
		ID:           "u1",
		Email:        "owner@example.com",
		Role:         models.RolePropertyOwner,
		Active:       true,
		PasswordHash: hashPassword(t, "secret123"),
	}
	repo := &mockAuthRepo{usersByEmail: map[string]*models.User{"owner@example.com": user}}
	svc := newTestAuthService(repo, nil, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Identifier: "owner@example.com",
		Password:   "secret123",
		Role:       models.RoleStudent,
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestLoginSuccess(t *testing.T) {
	user := &models.User{
		ID:           "u1",
		Email:        "student@example.com",
		FullName:     "Juan Dela Cruz",
		Role:         models.RoleStudent,
		Active:       true,
		PasswordHash: hashPassword(t, "secret123"),
	}
	repo := &mockAuthRepo{usersByEmail: map[string]*models.User{"student@example.com": user}}
	svc := newTestAuthService(repo, nil, nil)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Identifier: "student@example.com",
		Password:   "secret123",
		Role:       models.RoleStudent,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.True(t, repo.lastLoginSet)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestLoginInactiveAccount(t *testing.T) {
	user := &models.User{
		ID:           "u1",
		Email:        "student@example.com",
		Role:         models.RoleStudent,
		Active:       false,
		PasswordHash: hashPassword(t, "secret123"),
	}
	repo := &mockAuthRepo{usersByEmail: map[string]*models.User{"student@example.com": user}}
	svc := newTestAuthService(repo, nil, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Identifier: "student@example.com",
		Password:   "secret123",
		Role:       models.RoleStudent,
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestVerifyResetCodeCountsAttempts(t *testing.T) {
	codeHash := hashPassword(t, "123456")
	session := &models.PasswordResetSession{
		ID:        "s1",
		RequestID: "req1",
		UserID:    "u1",
		CodeHash:  codeHash,
		ExpiresAt: time.Now().UTC().Add(10 * time.Minute),
	}
	repo := &mockAuthRepo{resetSessions: map[string]*models.PasswordResetSession{"req1": session}}
	svc := newTestAuthService(repo, nil, nil)

	err := svc.VerifyResetCode(context.Background(), models.VerifyResetCodeRequest{RequestID: "req1", Code: "000000"})
	require.Error(t, err)
	assert.Equal(t, 1, session.Attempts)

	err = svc.VerifyResetCode(context.Background(), models.VerifyResetCodeRequest{RequestID: "req1", Code: "123456"})
	require.NoError(t, err)
	assert.NotNil(t, session.VerifiedAt)
}

func TestVerifyResetCodeLocksAfterMaxAttempts(t *testing.T) {
	session := &models.PasswordResetSession{
		ID:        "s1",
		RequestID: "req1",
		UserID:    "u1",
		CodeHash:  hashPassword(t, "123456"),
		Attempts:  5,
		ExpiresAt: time.Now().UTC().Add(10 * time.Minute),
	}
	repo := &mockAuthRepo{resetSessions: map[string]*models.PasswordResetSession{"req1": session}}
	svc := newTestAuthService(repo, nil, nil)

	// Even the correct code is refused once the attempt budget is spent.
	err := svc.VerifyResetCode(context.Background(), models.VerifyResetCodeRequest{RequestID: "req1", Code: "123456"})
	require.Error(t, err)
	assert.Nil(t, session.VerifiedAt)
}

func TestCompleteResetRequiresVerification(t *testing.T) {
	session := &models.PasswordResetSession{
		ID:        "s1",
		RequestID: "req1",
		UserID:    "u1",
		CodeHash:  hashPassword(t, "123456"),
		ExpiresAt: time.Now().UTC().Add(10 * time.Minute),
	}
	repo := &mockAuthRepo{
		resetSessions: map[string]*models.PasswordResetSession{"req1": session},
		usersByID:     map[string]*models.User{"u1": {ID: "u1"}},
	}
	svc := newTestAuthService(repo, nil, nil)

	err := svc.CompleteReset(context.Background(), models.CompleteResetRequest{RequestID: "req1", NewPassword: "newsecret1"})
	require.Error(t, err)

	now := time.Now().UTC()
	session.VerifiedAt = &now
	err = svc.CompleteReset(context.Background(), models.CompleteResetRequest{RequestID: "req1", NewPassword: "newsecret1"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.passwordUpdates)
	assert.Contains(t, repo.revokedAllFor, "u1")
	assert.NotNil(t, session.UsedAt)
}
