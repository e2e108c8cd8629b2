package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardinghub/boardinghub-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func userRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "full_name", "role", "school_id", "phone", "is_outsider", "active", "last_login", "boarding_region", "boarding_province", "boarding_city", "boarding_barangay", "boarding_address", "created_at", "updated_at"})
}

func TestFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := userRows(now).
		AddRow("1", "student1", "user@example.com", "hash", "User", string(models.RoleStudent), nil, "09171234567", false, true, now, "", "", "", "", "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("user@example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByPhoneAndRole(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := userRows(now).
		AddRow("1", "student1", "user@example.com", "hash", "User", string(models.RoleStudent), nil, "09171234567", false, true, now, "", "", "", "", "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE phone = $1 AND role = $2 ORDER BY created_at LIMIT 1")).
		WithArgs("09171234567", models.RoleStudent).
		WillReturnRows(rows)

	user, err := repo.FindByPhoneAndRole(context.Background(), "09171234567", models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, "09171234567", user.Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{ID: "1", UserID: "u1", Token: "token", ExpiresAt: time.Now(), CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	listRows := userRows(now).
		AddRow("1", "owner1", "a@example.com", "hash", "A", string(models.RolePropertyOwner), nil, "", false, true, now, "", "", "", "", "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE 1=1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1")).WillReturnRows(countRows)

	users, total, err := repo.List(context.Background(), models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateResetSession(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO password_reset_sessions").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateResetSession(context.Background(), &models.PasswordResetSession{
		RequestID: "req-1",
		UserID:    "u1",
		CodeHash:  "hash",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
