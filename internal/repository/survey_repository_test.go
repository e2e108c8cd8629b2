package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardinghub/boardinghub-api/internal/models"
)

func TestFindSurveyByCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSurveyRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "school_id", "title", "description", "category", "status", "unique_code", "email_validation", "require_property_info", "created_by", "created_at", "updated_at"}).
		AddRow("s1", "sc1", "Boarding Intake", "", "", string(models.SurveyActive), "AB12CD34", string(models.EmailValidationNone), true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM surveys WHERE unique_code = $1 LIMIT 1")).
		WithArgs("AB12CD34").
		WillReturnRows(rows)

	survey, err := repo.FindByCode(context.Background(), "AB12CD34")
	require.NoError(t, err)
	assert.Equal(t, models.SurveyActive, survey.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateResponseDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSurveyRepository(db)

	mock.ExpectExec("INSERT INTO survey_responses").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.CreateResponse(context.Background(), &models.SurveyResponse{
		SurveyID:     "s1",
		StudentName:  "Juan Dela Cruz",
		StudentEmail: "juan@example.com",
		Status:       models.ResponsePending,
	})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListResponsesExcludesDeleted(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSurveyRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "survey_id", "student_name", "student_email", "student_phone", "provided_student_id", "additional_data", "status", "reviewed_by", "reviewed_at", "review_notes", "student_record_id", "deleted_at", "created_at", "updated_at"}).
		AddRow("r1", "s1", "Juan Dela Cruz", "juan@example.com", "", "", []byte(`{}`), string(models.ResponsePending), nil, nil, "", nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM survey_responses WHERE survey_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("s1").
		WillReturnRows(rows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM survey_responses WHERE survey_id = $1 AND deleted_at IS NULL")).
		WithArgs("s1").
		WillReturnRows(countRows)

	responses, total, err := repo.ListResponses(context.Background(), models.ResponseFilter{SurveyID: "s1"})
	require.NoError(t, err)
	assert.Len(t, responses, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetResponseDeleted(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSurveyRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE survey_responses SET deleted_at = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("r1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now()
	err := repo.SetResponseDeleted(context.Background(), "r1", &now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
