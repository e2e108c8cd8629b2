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

func TestFindByPairCanonicalizesOrder(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewConversationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_low_id", "user_high_id", "created_at", "updated_at"}).
		AddRow("c1", "a1", "b2", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM conversations WHERE user_low_id = $1 AND user_high_id = $2 LIMIT 1")).
		WithArgs("a1", "b2").
		WillReturnRows(rows)

	// Arguments given high-first still hit the same canonical row.
	conv, err := repo.FindByPair(context.Background(), "b2", "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", conv.UserLowID)
	assert.Equal(t, "b2", conv.UserHighID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRead(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewConversationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE messages SET is_read = TRUE WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = FALSE")).
		WithArgs("c1", "a1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	err := repo.MarkRead(context.Background(), "c1", "a1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnreadTotal(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewConversationRepository(db)

	rows := sqlmock.NewRows([]string{"count"}).AddRow(4)
	mock.ExpectQuery("SELECT COUNT").WithArgs("a1").WillReturnRows(rows)

	total, err := repo.UnreadTotal(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
