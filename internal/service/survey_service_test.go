package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boardinghub/boardinghub-api/internal/models"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
)

type mockSurveyRepo struct {
	surveys           map[string]*models.Survey
	surveysByCode     map[string]*models.Survey
	takenCodes        map[string]bool
	sections          map[string]*models.SurveySection
	questions         []models.SurveyQuestion
	responses         map[string]*models.SurveyResponse
	createdResponses  []*models.SurveyResponse
	createResponseErr error
	createdAnswers    []models.SurveyAnswer
	statusChanges     map[string]models.SurveyStatus
}

func (m *mockSurveyRepo) Create(ctx context.Context, survey *models.Survey) error {
	survey.ID = "survey-new"
	if m.surveys == nil {
		m.surveys = make(map[string]*models.Survey)
	}
	m.surveys[survey.ID] = survey
	return nil
}

func (m *mockSurveyRepo) Update(ctx context.Context, survey *models.Survey) error {
	return nil
}

func (m *mockSurveyRepo) FindByID(ctx context.Context, id string) (*models.Survey, error) {
	if s, ok := m.surveys[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSurveyRepo) FindByCode(ctx context.Context, code string) (*models.Survey, error) {
	if s, ok := m.surveysByCode[code]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSurveyRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	return m.takenCodes[code], nil
}

func (m *mockSurveyRepo) List(ctx context.Context, filter models.SurveyFilter) ([]models.Survey, int, error) {
	return nil, 0, nil
}

func (m *mockSurveyRepo) SetStatus(ctx context.Context, id string, status models.SurveyStatus) error {
	if m.statusChanges == nil {
		m.statusChanges = make(map[string]models.SurveyStatus)
	}
	m.statusChanges[id] = status
	return nil
}

func (m *mockSurveyRepo) CountResponses(ctx context.Context, surveyID string) (int, error) {
	return 0, nil
}

func (m *mockSurveyRepo) CreateSection(ctx context.Context, section *models.SurveySection) error {
	section.ID = "section-new"
	return nil
}

func (m *mockSurveyRepo) UpdateSection(ctx context.Context, section *models.SurveySection) error {
	return nil
}

func (m *mockSurveyRepo) DeleteSection(ctx context.Context, id string) error {
	return nil
}

func (m *mockSurveyRepo) ListSections(ctx context.Context, surveyID string) ([]models.SurveySection, error) {
	return nil, nil
}

func (m *mockSurveyRepo) FindSectionByID(ctx context.Context, id string) (*models.SurveySection, error) {
	if s, ok := m.sections[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSurveyRepo) CreateQuestion(ctx context.Context, question *models.SurveyQuestion) error {
	question.ID = "question-new"
	return nil
}

func (m *mockSurveyRepo) UpdateQuestion(ctx context.Context, question *models.SurveyQuestion) error {
	return nil
}

func (m *mockSurveyRepo) DeleteQuestion(ctx context.Context, id string) error {
	return nil
}

func (m *mockSurveyRepo) ListQuestionsBySurvey(ctx context.Context, surveyID string) ([]models.SurveyQuestion, error) {
	return m.questions, nil
}

func (m *mockSurveyRepo) CreateResponse(ctx context.Context, resp *models.SurveyResponse) error {
	if m.createResponseErr != nil {
		return m.createResponseErr
	}
	resp.ID = "resp-new"
	m.createdResponses = append(m.createdResponses, resp)
	return nil
}

func (m *mockSurveyRepo) CreateAnswers(ctx context.Context, answers []models.SurveyAnswer) error {
	m.createdAnswers = append(m.createdAnswers, answers...)
	return nil
}

func (m *mockSurveyRepo) ListAnswers(ctx context.Context, responseID string) ([]models.SurveyAnswer, error) {
	return nil, nil
}

func (m *mockSurveyRepo) FindResponseByID(ctx context.Context, id string) (*models.SurveyResponse, error) {
	if r, ok := m.responses[id]; ok {
		return r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSurveyRepo) ListResponses(ctx context.Context, filter models.ResponseFilter) ([]models.SurveyResponse, int, error) {
	return nil, 0, nil
}

type mockSurveySchools struct {
	schools map[string]*models.School
}

func (m *mockSurveySchools) FindSchoolByID(ctx context.Context, id string) (*models.School, error) {
	if s, ok := m.schools[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func activeSurvey(policy models.EmailValidation) *models.Survey {
	return &models.Survey{
		ID:              "survey1",
		SchoolID:        "school1",
		Title:           "Onboarding",
		Status:          models.SurveyActive,
		UniqueCode:      "AB12CD34",
		EmailValidation: policy,
	}
}

func newSurveyFixture(survey *models.Survey) (*SurveyService, *mockSurveyRepo) {
	repo := &mockSurveyRepo{
		surveys:       map[string]*models.Survey{},
		surveysByCode: map[string]*models.Survey{},
		takenCodes:    map[string]bool{},
		sections:      map[string]*models.SurveySection{},
		responses:     map[string]*models.SurveyResponse{},
	}
	if survey != nil {
		repo.surveys[survey.ID] = survey
		repo.surveysByCode[survey.UniqueCode] = survey
	}
	schools := &mockSurveySchools{schools: map[string]*models.School{
		"school1": {ID: "school1", Name: "Caraga State University", EmailDomain: "carsu.edu.ph"},
	}}
	return NewSurveyService(repo, schools, validator.New(), zap.NewNop()), repo
}

func submission() SubmitResponseRequest {
	return SubmitResponseRequest{
		StudentName:  "Maria Santos",
		StudentEmail: "maria@gmail.com",
	}
}

func TestSubmitStoresResponseAndAnswers(t *testing.T) {
	survey := activeSurvey(models.EmailValidationNone)
	svc, repo := newSurveyFixture(survey)
	repo.questions = []models.SurveyQuestion{
		{ID: "q1", SectionID: "sec1", Text: "Why here?", QuestionType: models.QuestionTextShort},
	}

	req := submission()
	req.StudentEmail = "Maria@Example.com"
	req.StudentPhone = "+63 917 123 4567"
	req.Answers = []AnswerInput{{QuestionID: "q1", Text: "close to campus"}}

	resp, err := svc.Submit(context.Background(), "AB12CD34", req)
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", resp.StudentEmail)
	assert.Equal(t, "09171234567", resp.StudentPhone)
	assert.Equal(t, models.ResponsePending, resp.Status)

	require.Len(t, repo.createdAnswers, 1)
	assert.Equal(t, "resp-new", repo.createdAnswers[0].ResponseID)
	assert.Equal(t, "close to campus", repo.createdAnswers[0].AnswerText)
}

func TestSubmitDuplicateEmailConflicts(t *testing.T) {
	survey := activeSurvey(models.EmailValidationNone)
	svc, repo := newSurveyFixture(survey)
	repo.createResponseErr = &pq.Error{Code: "23505"}

	_, err := svc.Submit(context.Background(), "AB12CD34", submission())
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrDuplicateResponse.Code, appErr.Code)
}

func TestSubmitClosedSurveyIsGone(t *testing.T) {
	survey := activeSurvey(models.EmailValidationNone)
	survey.Status = models.SurveyClosed
	svc, _ := newSurveyFixture(survey)

	_, err := svc.Submit(context.Background(), "AB12CD34", submission())
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrSurveyClosed.Code, appErr.Code)
}

func TestSubmitDraftSurveyIsHidden(t *testing.T) {
	survey := activeSurvey(models.EmailValidationNone)
	survey.Status = models.SurveyDraft
	svc, _ := newSurveyFixture(survey)

	_, err := svc.Submit(context.Background(), "AB12CD34", submission())
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestSubmitEmailPolicies(t *testing.T) {
	tests := []struct {
		name   string
		policy models.EmailValidation
		email  string
		ok     bool
	}{
		{"none accepts anything", models.EmailValidationNone, "who@anywhere.org", true},
		{"gmail accepts gmail", models.EmailValidationGmail, "maria@gmail.com", true},
		{"gmail rejects others", models.EmailValidationGmail, "maria@yahoo.com", false},
		{"university accepts school domain", models.EmailValidationUniversity, "maria@carsu.edu.ph", true},
		{"university rejects gmail", models.EmailValidationUniversity, "maria@gmail.com", false},
		{"both accepts gmail", models.EmailValidationBoth, "maria@gmail.com", true},
		{"both accepts school domain", models.EmailValidationBoth, "maria@carsu.edu.ph", true},
		{"both rejects others", models.EmailValidationBoth, "maria@yahoo.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newSurveyFixture(activeSurvey(tt.policy))
			req := submission()
			req.StudentEmail = tt.email
			_, err := svc.Submit(context.Background(), "AB12CD34", req)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestSubmitRequiredQuestionMustBeAnswered(t *testing.T) {
	survey := activeSurvey(models.EmailValidationNone)
	svc, repo := newSurveyFixture(survey)
	repo.questions = []models.SurveyQuestion{
		{ID: "q1", SectionID: "sec1", Text: "Full name", QuestionType: models.QuestionTextShort, Required: true},
	}

	_, err := svc.Submit(context.Background(), "AB12CD34", submission())
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestSubmitRejectsUnknownQuestion(t *testing.T) {
	survey := activeSurvey(models.EmailValidationNone)
	svc, _ := newSurveyFixture(survey)

	req := submission()
	req.Answers = []AnswerInput{{QuestionID: "ghost", Text: "hello"}}
	_, err := svc.Submit(context.Background(), "AB12CD34", req)
	require.Error(t, err)
}

func TestCreateSurveyStartsDraftWithCode(t *testing.T) {
	svc, _ := newSurveyFixture(nil)

	survey, err := svc.Create(context.Background(), "school1", "admin1", CreateSurveyRequest{Title: "Intake 2026"})
	require.NoError(t, err)
	assert.Equal(t, models.SurveyDraft, survey.Status)
	assert.Len(t, survey.UniqueCode, 8)
	assert.Equal(t, models.EmailValidationNone, survey.EmailValidation)
}

func TestAddQuestionEncodesChoiceOptions(t *testing.T) {
	svc, repo := newSurveyFixture(nil)
	repo.sections["sec1"] = &models.SurveySection{ID: "sec1", SurveyID: "survey1"}

	question, err := svc.AddQuestion(context.Background(), "sec1", QuestionRequest{
		Text:         "Preferred room type",
		QuestionType: models.QuestionMultipleChoice,
		Options:      []string{"single", "shared"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"single", "shared"}, question.OptionList())

	// Choice questions without options are rejected.
	_, err = svc.AddQuestion(context.Background(), "sec1", QuestionRequest{
		Text:         "Broken",
		QuestionType: models.QuestionCheckbox,
	})
	require.Error(t, err)
}

func TestGetPublicOnlyServesActiveSurveys(t *testing.T) {
	survey := activeSurvey(models.EmailValidationNone)
	svc, _ := newSurveyFixture(survey)

	detail, err := svc.GetPublic(context.Background(), "AB12CD34")
	require.NoError(t, err)
	assert.Equal(t, "survey1", detail.Survey.ID)

	survey.Status = models.SurveyClosed
	_, err = svc.GetPublic(context.Background(), "AB12CD34")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrSurveyClosed.Code, appErr.Code)
}

func TestSurveyAccessIsScopedToSchool(t *testing.T) {
	survey := activeSurvey(models.EmailValidationNone)
	svc, repo := newSurveyFixture(survey)
	repo.responses["resp1"] = &models.SurveyResponse{ID: "resp1", SurveyID: "survey1", Status: models.ResponsePending}

	// Admins of the owning school see the survey and its responses.
	detail, err := svc.Get(context.Background(), "survey1", "school1")
	require.NoError(t, err)
	assert.Equal(t, "survey1", detail.Survey.ID)
	_, err = svc.GetResponse(context.Background(), "resp1", "school1")
	require.NoError(t, err)

	// Admins of another school get a 404, never someone else's data.
	_, err = svc.Get(context.Background(), "survey1", "school2")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)

	_, err = svc.Update(context.Background(), "survey1", "school2", UpdateSurveyRequest{Title: "Hijacked"})
	require.Error(t, err)

	err = svc.Close(context.Background(), "survey1", "school2")
	require.Error(t, err)
	assert.Empty(t, repo.statusChanges)

	_, _, err = svc.ListResponses(context.Background(), "school2", models.ResponseFilter{SurveyID: "survey1"})
	require.Error(t, err)

	_, err = svc.GetResponse(context.Background(), "resp1", "school2")
	require.Error(t, err)
	appErr, ok = err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
