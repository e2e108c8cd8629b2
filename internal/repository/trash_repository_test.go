package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardinghub/boardinghub-api/internal/models"
)

func trashRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "school_id", "item_type", "item_id", "item_name", "item_data", "deleted_by", "deleted_at", "permanent_delete_at", "is_permanently_deleted", "restored_at"})
}

func TestListTrash(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrashRepository(db)

	now := time.Now()
	rows := trashRows(now).
		AddRow("t1", "sc1", string(models.TrashStudent), "st1", "Juan Dela Cruz", []byte(`{"student_id":"S-AB12"}`), nil, now, now.Add(30*24*time.Hour), false, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM trash_logs WHERE school_id = $1 AND is_permanently_deleted = FALSE AND restored_at IS NULL ORDER BY deleted_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("sc1").
		WillReturnRows(rows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM trash_logs WHERE school_id = $1")).
		WithArgs("sc1").
		WillReturnRows(countRows)

	entries, total, err := repo.List(context.Background(), models.TrashFilter{SchoolID: "sc1"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.TrashStudent, entries[0].ItemType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListExpiredTrash(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrashRepository(db)

	now := time.Now()
	rows := trashRows(now).
		AddRow("t1", "sc1", string(models.TrashResponse), "r1", "resp", []byte(`{}`), nil, now.Add(-31*24*time.Hour), now.Add(-24*time.Hour), false, nil)
	mock.ExpectQuery(regexp.QuoteMeta("permanent_delete_at <= $1")).
		WillReturnRows(rows)

	entries, err := repo.ListExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRestored(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrashRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE trash_logs SET restored_at = $2 WHERE id = $1")).
		WithArgs("t1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkRestored(context.Background(), "t1", time.Now())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
