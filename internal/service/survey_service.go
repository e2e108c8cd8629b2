package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/boardinghub/boardinghub-api/internal/models"
	"github.com/boardinghub/boardinghub-api/internal/repository"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
)

type surveyRepository interface {
	Create(ctx context.Context, survey *models.Survey) error
	Update(ctx context.Context, survey *models.Survey) error
	FindByID(ctx context.Context, id string) (*models.Survey, error)
	FindByCode(ctx context.Context, code string) (*models.Survey, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	List(ctx context.Context, filter models.SurveyFilter) ([]models.Survey, int, error)
	SetStatus(ctx context.Context, id string, status models.SurveyStatus) error
	CountResponses(ctx context.Context, surveyID string) (int, error)
	CreateSection(ctx context.Context, section *models.SurveySection) error
	UpdateSection(ctx context.Context, section *models.SurveySection) error
	DeleteSection(ctx context.Context, id string) error
	ListSections(ctx context.Context, surveyID string) ([]models.SurveySection, error)
	FindSectionByID(ctx context.Context, id string) (*models.SurveySection, error)
	CreateQuestion(ctx context.Context, question *models.SurveyQuestion) error
	UpdateQuestion(ctx context.Context, question *models.SurveyQuestion) error
	DeleteQuestion(ctx context.Context, id string) error
	ListQuestionsBySurvey(ctx context.Context, surveyID string) ([]models.SurveyQuestion, error)
	CreateResponse(ctx context.Context, resp *models.SurveyResponse) error
	CreateAnswers(ctx context.Context, answers []models.SurveyAnswer) error
	ListAnswers(ctx context.Context, responseID string) ([]models.SurveyAnswer, error)
	FindResponseByID(ctx context.Context, id string) (*models.SurveyResponse, error)
	ListResponses(ctx context.Context, filter models.ResponseFilter) ([]models.SurveyResponse, int, error)
}

type surveySchoolRepository interface {
	FindSchoolByID(ctx context.Context, id string) (*models.School, error)
}

// CreateSurveyRequest is the payload for authoring a survey.
type CreateSurveyRequest struct {
	Title               string                 `json:"title" validate:"required,max=200"`
	Description         string                 `json:"description" validate:"max=2000"`
	Category            string                 `json:"category" validate:"max=100"`
	EmailValidation     models.EmailValidation `json:"email_validation"`
	RequirePropertyInfo bool                   `json:"require_property_info"`
}

// UpdateSurveyRequest is the payload for editing survey metadata.
type UpdateSurveyRequest struct {
	Title               string                 `json:"title" validate:"required,max=200"`
	Description         string                 `json:"description" validate:"max=2000"`
	Category            string                 `json:"category" validate:"max=100"`
	EmailValidation     models.EmailValidation `json:"email_validation"`
	RequirePropertyInfo bool                   `json:"require_property_info"`
}

// SectionRequest is the payload for creating or editing a section.
type SectionRequest struct {
	Title string `json:"title" validate:"required,max=200"`
	Order int    `json:"order"`
	Color string `json:"color" validate:"max=20"`
}

// QuestionRequest is the payload for creating or editing a question.
type QuestionRequest struct {
	Text         string              `json:"text" validate:"required,max=1000"`
	QuestionType models.QuestionType `json:"question_type" validate:"required"`
	Options      []string            `json:"options"`
	Required     bool                `json:"required"`
	Order        int                 `json:"order"`
}

// AnswerInput is one answer in a public submission.
type AnswerInput struct {
	QuestionID string `json:"question_id" validate:"required"`
	Text       string `json:"text"`
	Choice     string `json:"choice"`
	Rating     *int   `json:"rating"`
	Date       string `json:"date"`
}

// SubmitResponseRequest is the public submission payload.
type SubmitResponseRequest struct {
	StudentName       string                 `json:"student_name" validate:"required,max=200"`
	StudentEmail      string                 `json:"student_email" validate:"required,email"`
	StudentPhone      string                 `json:"student_phone" validate:"max=30"`
	ProvidedStudentID string                 `json:"student_id" validate:"max=50"`
	AdditionalData    map[string]interface{} `json:"additional_data"`
	Answers           []AnswerInput          `json:"answers" validate:"dive"`
}

// SurveyService covers survey authoring, the public take flow and response
// listings.
type SurveyService struct {
	repo      surveyRepository
	schools   surveySchoolRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSurveyService constructs a SurveyService.
func NewSurveyService(repo surveyRepository, schools surveySchoolRepository, validate *validator.Validate, logger *zap.Logger) *SurveyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SurveyService{repo: repo, schools: schools, validator: validate, logger: logger}
}

// Create authors a new draft survey with a fresh unique code.
func (s *SurveyService) Create(ctx context.Context, schoolID, creatorID string, req CreateSurveyRequest) (*models.Survey, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid survey payload")
	}
	emailValidation := req.EmailValidation
	if emailValidation == "" {
		emailValidation = models.EmailValidationNone
	}

	code, err := s.generateUniqueCode(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate survey code")
	}

	survey := &models.Survey{
		SchoolID:            schoolID,
		Title:               req.Title,
		Description:         req.Description,
		Category:            req.Category,
		Status:              models.SurveyDraft,
		UniqueCode:          code,
		EmailValidation:     emailValidation,
		RequirePropertyInfo: req.RequirePropertyInfo,
		CreatedBy:           &creatorID,
	}
	if err := s.repo.Create(ctx, survey); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create survey")
	}
	return survey, nil
}

// Update edits survey metadata. Surveys outside the caller's school read
// as not found.
func (s *SurveyService) Update(ctx context.Context, id, schoolID string, req UpdateSurveyRequest) (*models.Survey, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid survey payload")
	}
	survey, err := s.loadSurveyScoped(ctx, id, schoolID)
	if err != nil {
		return nil, err
	}

	survey.Title = req.Title
	survey.Description = req.Description
	survey.Category = req.Category
	if req.EmailValidation != "" {
		survey.EmailValidation = req.EmailValidation
	}
	survey.RequirePropertyInfo = req.RequirePropertyInfo

	if err := s.repo.Update(ctx, survey); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update survey")
	}
	return survey, nil
}

// List returns surveys for the admin view.
func (s *SurveyService) List(ctx context.Context, filter models.SurveyFilter) ([]models.Survey, int, error) {
	surveys, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list surveys")
	}
	return surveys, total, nil
}

// Get returns a survey with its full section and question tree. Surveys
// outside the caller's school read as not found.
func (s *SurveyService) Get(ctx context.Context, id, schoolID string) (*models.SurveyDetail, error) {
	survey, err := s.loadSurveyScoped(ctx, id, schoolID)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(ctx, survey)
}

// GetPublic returns the survey tree for the public take page. Only active
// surveys are served; a closed survey reports 410 so the form can explain
// itself.
func (s *SurveyService) GetPublic(ctx context.Context, code string) (*models.SurveyDetail, error) {
	survey, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "survey not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load survey")
	}
	switch survey.Status {
	case models.SurveyActive:
	case models.SurveyClosed:
		return nil, appErrors.Clone(appErrors.ErrSurveyClosed, "survey is closed")
	default:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "survey not found")
	}
	return s.buildDetail(ctx, survey)
}

// Activate opens a survey for public submissions.
func (s *SurveyService) Activate(ctx context.Context, id, schoolID string) error {
	return s.transition(ctx, id, schoolID, models.SurveyActive)
}

// Close stops a survey from accepting submissions.
func (s *SurveyService) Close(ctx context.Context, id, schoolID string) error {
	return s.transition(ctx, id, schoolID, models.SurveyClosed)
}

func (s *SurveyService) transition(ctx context.Context, id, schoolID string, status models.SurveyStatus) error {
	if _, err := s.loadSurveyScoped(ctx, id, schoolID); err != nil {
		return err
	}
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change survey status")
	}
	return nil
}

// AddSection appends a section to a survey.
func (s *SurveyService) AddSection(ctx context.Context, surveyID string, req SectionRequest) (*models.SurveySection, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	if _, err := s.loadSurvey(ctx, surveyID); err != nil {
		return nil, err
	}
	section := &models.SurveySection{
		SurveyID: surveyID,
		Title:    req.Title,
		Order:    req.Order,
		Color:    req.Color,
	}
	if err := s.repo.CreateSection(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}
	return section, nil
}

// UpdateSection edits a section.
func (s *SurveyService) UpdateSection(ctx context.Context, sectionID string, req SectionRequest) (*models.SurveySection, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	section, err := s.repo.FindSectionByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	section.Title = req.Title
	section.Order = req.Order
	section.Color = req.Color
	if err := s.repo.UpdateSection(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update section")
	}
	return section, nil
}

// RemoveSection deletes a section and its questions.
func (s *SurveyService) RemoveSection(ctx context.Context, sectionID string) error {
	if _, err := s.repo.FindSectionByID(ctx, sectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if err := s.repo.DeleteSection(ctx, sectionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete section")
	}
	return nil
}

// AddQuestion appends a question to a section.
func (s *SurveyService) AddQuestion(ctx context.Context, sectionID string, req QuestionRequest) (*models.SurveyQuestion, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question payload")
	}
	if _, err := s.repo.FindSectionByID(ctx, sectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	options, err := encodeOptions(req.QuestionType, req.Options)
	if err != nil {
		return nil, err
	}
	question := &models.SurveyQuestion{
		SectionID:    sectionID,
		Text:         req.Text,
		QuestionType: req.QuestionType,
		Options:      options,
		Required:     req.Required,
		Order:        req.Order,
	}
	if err := s.repo.CreateQuestion(ctx, question); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create question")
	}
	return question, nil
}

// UpdateQuestion edits a question.
func (s *SurveyService) UpdateQuestion(ctx context.Context, questionID string, req QuestionRequest) (*models.SurveyQuestion, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question payload")
	}
	options, err := encodeOptions(req.QuestionType, req.Options)
	if err != nil {
		return nil, err
	}
	question := &models.SurveyQuestion{
		ID:           questionID,
		Text:         req.Text,
		QuestionType: req.QuestionType,
		Options:      options,
		Required:     req.Required,
		Order:        req.Order,
	}
	if err := s.repo.UpdateQuestion(ctx, question); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update question")
	}
	return question, nil
}

// RemoveQuestion deletes a question.
func (s *SurveyService) RemoveQuestion(ctx context.Context, questionID string) error {
	if err := s.repo.DeleteQuestion(ctx, questionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete question")
	}
	return nil
}

// Submit records a public response to an active survey. One response per
// student email per survey; a duplicate maps to 409.
func (s *SurveyService) Submit(ctx context.Context, code string, req SubmitResponseRequest) (*models.SurveyResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	survey, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "survey not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load survey")
	}
	switch survey.Status {
	case models.SurveyActive:
	case models.SurveyClosed:
		return nil, appErrors.Clone(appErrors.ErrSurveyClosed, "survey is closed")
	default:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "survey not found")
	}

	email := strings.ToLower(strings.TrimSpace(req.StudentEmail))
	if err := s.checkEmailPolicy(ctx, survey, email); err != nil {
		return nil, err
	}

	questions, err := s.repo.ListQuestionsBySurvey(ctx, survey.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	answers, err := buildAnswers(questions, req.Answers)
	if err != nil {
		return nil, err
	}

	var additional types.JSONText
	if len(req.AdditionalData) > 0 {
		raw, err := json.Marshal(req.AdditionalData)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid additional data")
		}
		additional = raw
	}

	resp := &models.SurveyResponse{
		SurveyID:          survey.ID,
		StudentName:       req.StudentName,
		StudentEmail:      email,
		StudentPhone:      NormalizePhone(req.StudentPhone),
		ProvidedStudentID: strings.TrimSpace(req.ProvidedStudentID),
		AdditionalData:    additional,
		Status:            models.ResponsePending,
	}
	if err := s.repo.CreateResponse(ctx, resp); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateResponse, "a response with this email already exists for this survey")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store response")
	}

	for i := range answers {
		answers[i].ResponseID = resp.ID
	}
	if err := s.repo.CreateAnswers(ctx, answers); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store answers")
	}
	return resp, nil
}

// ListResponses returns responses for the admin review queue. The survey
// must belong to the caller's school.
func (s *SurveyService) ListResponses(ctx context.Context, schoolID string, filter models.ResponseFilter) ([]models.SurveyResponse, int, error) {
	if _, err := s.loadSurveyScoped(ctx, filter.SurveyID, schoolID); err != nil {
		return nil, 0, err
	}
	responses, total, err := s.repo.ListResponses(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list responses")
	}
	return responses, total, nil
}

// ResponseDetail bundles a response with its answers.
type ResponseDetail struct {
	Response models.SurveyResponse `json:"response"`
	Answers  []models.SurveyAnswer `json:"answers"`
}

// GetResponse returns one response with answers. Responses to surveys
// outside the caller's school read as not found.
func (s *SurveyService) GetResponse(ctx context.Context, id, schoolID string) (*ResponseDetail, error) {
	resp, err := s.repo.FindResponseByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "response not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load response")
	}
	if _, err := s.loadSurveyScoped(ctx, resp.SurveyID, schoolID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "response not found")
	}
	answers, err := s.repo.ListAnswers(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load answers")
	}
	return &ResponseDetail{Response: *resp, Answers: answers}, nil
}

func (s *SurveyService) loadSurvey(ctx context.Context, id string) (*models.Survey, error) {
	survey, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "survey not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load survey")
	}
	return survey, nil
}

// loadSurveyScoped hides surveys of other schools behind a 404. An empty
// schoolID skips the check (superuser tooling).
func (s *SurveyService) loadSurveyScoped(ctx context.Context, id, schoolID string) (*models.Survey, error) {
	survey, err := s.loadSurvey(ctx, id)
	if err != nil {
		return nil, err
	}
	if schoolID != "" && survey.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "survey not found")
	}
	return survey, nil
}

func (s *SurveyService) buildDetail(ctx context.Context, survey *models.Survey) (*models.SurveyDetail, error) {
	sections, err := s.repo.ListSections(ctx, survey.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	questions, err := s.repo.ListQuestionsBySurvey(ctx, survey.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}

	bySection := make(map[string][]models.SurveyQuestion, len(sections))
	for _, q := range questions {
		bySection[q.SectionID] = append(bySection[q.SectionID], q)
	}

	detail := &models.SurveyDetail{Survey: *survey}
	for _, section := range sections {
		detail.Sections = append(detail.Sections, models.SectionDetail{
			Section:   section,
			Questions: bySection[section.ID],
		})
	}
	return detail, nil
}

// checkEmailPolicy enforces the survey's email validation setting against the
// school's configured domain.
func (s *SurveyService) checkEmailPolicy(ctx context.Context, survey *models.Survey, email string) error {
	policy := survey.EmailValidation
	if policy == "" || policy == models.EmailValidationNone {
		return nil
	}

	isGmail := strings.HasSuffix(email, "@gmail.com")
	isUniversity := false
	if policy == models.EmailValidationUniversity || policy == models.EmailValidationBoth {
		school, err := s.schools.FindSchoolByID(ctx, survey.SchoolID)
		if err == nil && school.EmailDomain != "" {
			isUniversity = strings.HasSuffix(email, "@"+strings.ToLower(school.EmailDomain))
		}
	}

	switch policy {
	case models.EmailValidationGmail:
		if !isGmail {
			return appErrors.Clone(appErrors.ErrValidation, "a Gmail address is required for this survey")
		}
	case models.EmailValidationUniversity:
		if !isUniversity {
			return appErrors.Clone(appErrors.ErrValidation, "a university email address is required for this survey")
		}
	case models.EmailValidationBoth:
		if !isGmail && !isUniversity {
			return appErrors.Clone(appErrors.ErrValidation, "a Gmail or university email address is required for this survey")
		}
	}
	return nil
}

func (s *SurveyService) generateUniqueCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		buf := make([]byte, 4)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		code := strings.ToUpper(hex.EncodeToString(buf))
		taken, err := s.repo.ExistsByCode(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("exhausted survey code attempts")
}

// buildAnswers validates submitted answers against the survey's questions
// and converts each into its typed column.
func buildAnswers(questions []models.SurveyQuestion, inputs []AnswerInput) ([]models.SurveyAnswer, error) {
	byID := make(map[string]models.SurveyQuestion, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	answered := make(map[string]bool, len(inputs))
	answers := make([]models.SurveyAnswer, 0, len(inputs))
	for _, in := range inputs {
		q, ok := byID[in.QuestionID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "answer references an unknown question")
		}
		if answered[q.ID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "question answered more than once")
		}
		answered[q.ID] = true

		answer := models.SurveyAnswer{QuestionID: q.ID}
		switch q.QuestionType {
		case models.QuestionTextShort, models.QuestionTextLong:
			answer.AnswerText = in.Text
		case models.QuestionMultipleChoice, models.QuestionCheckbox:
			answer.AnswerChoice = in.Choice
		case models.QuestionRating:
			if in.Rating == nil {
				return nil, appErrors.Clone(appErrors.ErrValidation, "rating answer is missing its value")
			}
			answer.AnswerRating = in.Rating
		case models.QuestionDate:
			if in.Date != "" {
				parsed, err := time.Parse("2006-01-02", in.Date)
				if err != nil {
					return nil, appErrors.Clone(appErrors.ErrValidation, "date answer must be YYYY-MM-DD")
				}
				answer.AnswerDate = &parsed
			}
		}
		answers = append(answers, answer)
	}

	for _, q := range questions {
		if q.Required && !answered[q.ID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a required question was not answered")
		}
	}
	return answers, nil
}

// encodeOptions stores the option list only for question types that have one.
func encodeOptions(qt models.QuestionType, options []string) (types.JSONText, error) {
	if qt != models.QuestionMultipleChoice && qt != models.QuestionCheckbox {
		return nil, nil
	}
	if len(options) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "choice questions need at least one option")
	}
	raw, err := json.Marshal(options)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to encode question options")
	}
	return types.JSONText(raw), nil
}
