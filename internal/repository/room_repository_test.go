package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roomRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "property_id", "name", "room_type", "capacity", "monthly_rate", "description", "available", "boarding_key", "trashed", "created_at", "updated_at"})
}

func TestFindByBoardingKeyUppercases(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	now := time.Now()
	key := "BH-7F3A"
	rows := roomRows(now).
		AddRow("rm1", "p1", "Room 1", "single", 1, nil, "", true, key, false, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM rooms WHERE boarding_key = $1 AND trashed = FALSE LIMIT 1")).
		WithArgs("BH-7F3A").
		WillReturnRows(rows)

	room, err := repo.FindByBoardingKey(context.Background(), "bh-7f3a")
	require.NoError(t, err)
	require.NotNil(t, room.BoardingKey)
	assert.Equal(t, key, *room.BoardingKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetTrashed(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE rooms SET trashed = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("rm1", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetTrashed(context.Background(), "rm1", true)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByPropertyExcludesTrashed(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	now := time.Now()
	rows := roomRows(now).
		AddRow("rm1", "p1", "Room 1", "single", 1, nil, "", true, nil, false, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM rooms WHERE property_id = $1 AND trashed = FALSE ORDER BY name")).
		WithArgs("p1").
		WillReturnRows(rows)

	rooms, err := repo.ListByProperty(context.Background(), "p1", false)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
