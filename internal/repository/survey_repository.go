package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/boardinghub/boardinghub-api/internal/models"
)

const surveyColumns = `id, school_id, title, description, category, status, unique_code, email_validation, require_property_info, created_by, created_at, updated_at`

const responseColumns = `id, survey_id, student_name, student_email, student_phone, provided_student_id, additional_data, status, reviewed_by, reviewed_at, review_notes, student_record_id, deleted_at, created_at, updated_at`

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// SurveyRepository manages persistence for surveys, their question tree,
// responses and export jobs.
type SurveyRepository struct {
	db *sqlx.DB
}

// NewSurveyRepository constructs a SurveyRepository.
func NewSurveyRepository(db *sqlx.DB) *SurveyRepository {
	return &SurveyRepository{db: db}
}

// Create inserts a new survey.
func (r *SurveyRepository) Create(ctx context.Context, survey *models.Survey) error {
	if survey.ID == "" {
		survey.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if survey.CreatedAt.IsZero() {
		survey.CreatedAt = now
	}
	survey.UpdatedAt = now
	const query = `INSERT INTO surveys (id, school_id, title, description, category, status, unique_code, email_validation, require_property_info, created_by, created_at, updated_at)
        VALUES (:id, :school_id, :title, :description, :category, :status, :unique_code, :email_validation, :require_property_info, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, survey); err != nil {
		return fmt.Errorf("create survey: %w", err)
	}
	return nil
}

// Update modifies mutable survey fields.
func (r *SurveyRepository) Update(ctx context.Context, survey *models.Survey) error {
	survey.UpdatedAt = time.Now().UTC()
	const query = `UPDATE surveys SET title = :title, description = :description, category = :category, status = :status, email_validation = :email_validation, require_property_info = :require_property_info, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, survey); err != nil {
		return fmt.Errorf("update survey: %w", err)
	}
	return nil
}

// FindByID fetches a survey by identifier.
func (r *SurveyRepository) FindByID(ctx context.Context, id string) (*models.Survey, error) {
	query := fmt.Sprintf(`SELECT %s FROM surveys WHERE id = $1 LIMIT 1`, surveyColumns)
	var survey models.Survey
	if err := r.db.GetContext(ctx, &survey, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find survey by id: %w", err)
	}
	return &survey, nil
}

// FindByCode fetches a survey by its public unique code.
func (r *SurveyRepository) FindByCode(ctx context.Context, code string) (*models.Survey, error) {
	query := fmt.Sprintf(`SELECT %s FROM surveys WHERE unique_code = $1 LIMIT 1`, surveyColumns)
	var survey models.Survey
	if err := r.db.GetContext(ctx, &survey, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find survey by code: %w", err)
	}
	return &survey, nil
}

// ExistsByCode checks whether a unique code is taken.
func (r *SurveyRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	const query = `SELECT 1 FROM surveys WHERE unique_code = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check survey code: %w", err)
	}
	return true, nil
}

// List returns surveys matching the provided filters with total count.
func (r *SurveyRepository) List(ctx context.Context, filter models.SurveyFilter) ([]models.Survey, int, error) {
	base := `FROM surveys WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(category) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", surveyColumns, base, size, offset)
	var surveys []models.Survey
	if err := r.db.SelectContext(ctx, &surveys, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list surveys: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count surveys: %w", err)
	}
	return surveys, total, nil
}

// SetStatus transitions a survey's status.
func (r *SurveyRepository) SetStatus(ctx context.Context, id string, status models.SurveyStatus) error {
	const query = `UPDATE surveys SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set survey status: %w", err)
	}
	return nil
}

// CountResponses counts non-deleted responses for a survey.
func (r *SurveyRepository) CountResponses(ctx context.Context, surveyID string) (int, error) {
	const query = `SELECT COUNT(*) FROM survey_responses WHERE survey_id = $1 AND deleted_at IS NULL`
	var total int
	if err := r.db.GetContext(ctx, &total, query, surveyID); err != nil {
		return 0, fmt.Errorf("count responses: %w", err)
	}
	return total, nil
}

// CreateSection inserts a survey section.
func (r *SurveyRepository) CreateSection(ctx context.Context, section *models.SurveySection) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	if section.CreatedAt.IsZero() {
		section.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO survey_sections (id, survey_id, title, position, color, created_at) VALUES (:id, :survey_id, :title, :position, :color, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// UpdateSection modifies a section's title, order and color.
func (r *SurveyRepository) UpdateSection(ctx context.Context, section *models.SurveySection) error {
	const query = `UPDATE survey_sections SET title = :title, position = :position, color = :color WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	return nil
}

// DeleteSection removes a section and its questions.
func (r *SurveyRepository) DeleteSection(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM survey_questions WHERE section_id = $1`, id); err != nil {
		return fmt.Errorf("delete section questions: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM survey_sections WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	return nil
}

// ListSections returns a survey's sections in display order.
func (r *SurveyRepository) ListSections(ctx context.Context, surveyID string) ([]models.SurveySection, error) {
	const query = `SELECT id, survey_id, title, position, color, created_at FROM survey_sections WHERE survey_id = $1 ORDER BY position`
	var sections []models.SurveySection
	if err := r.db.SelectContext(ctx, &sections, query, surveyID); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

// FindSectionByID fetches one section.
func (r *SurveyRepository) FindSectionByID(ctx context.Context, id string) (*models.SurveySection, error) {
	const query = `SELECT id, survey_id, title, position, color, created_at FROM survey_sections WHERE id = $1 LIMIT 1`
	var section models.SurveySection
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find section by id: %w", err)
	}
	return &section, nil
}

// CreateQuestion inserts a question.
func (r *SurveyRepository) CreateQuestion(ctx context.Context, question *models.SurveyQuestion) error {
	if question.ID == "" {
		question.ID = uuid.NewString()
	}
	if question.CreatedAt.IsZero() {
		question.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO survey_questions (id, section_id, text, question_type, options, required, position, created_at) VALUES (:id, :section_id, :text, :question_type, :options, :required, :position, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, question); err != nil {
		return fmt.Errorf("create question: %w", err)
	}
	return nil
}

// UpdateQuestion modifies a question.
func (r *SurveyRepository) UpdateQuestion(ctx context.Context, question *models.SurveyQuestion) error {
	const query = `UPDATE survey_questions SET text = :text, question_type = :question_type, options = :options, required = :required, position = :position WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, question); err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	return nil
}

// DeleteQuestion removes one question.
func (r *SurveyRepository) DeleteQuestion(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM survey_questions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}

// ListQuestionsBySurvey returns all questions of a survey in section and
// question order.
func (r *SurveyRepository) ListQuestionsBySurvey(ctx context.Context, surveyID string) ([]models.SurveyQuestion, error) {
	const query = `SELECT q.id, q.section_id, q.text, q.question_type, q.options, q.required, q.position, q.created_at
        FROM survey_questions q
        JOIN survey_sections s ON s.id = q.section_id
        WHERE s.survey_id = $1
        ORDER BY s.position, q.position`
	var questions []models.SurveyQuestion
	if err := r.db.SelectContext(ctx, &questions, query, surveyID); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

// CreateResponse inserts a response row. A duplicate (survey, email) pair
// surfaces as a unique violation the caller can detect with
// IsUniqueViolation.
func (r *SurveyRepository) CreateResponse(ctx context.Context, resp *models.SurveyResponse) error {
	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = now
	}
	resp.UpdatedAt = now
	const query = `INSERT INTO survey_responses (id, survey_id, student_name, student_email, student_phone, provided_student_id, additional_data, status, reviewed_by, reviewed_at, review_notes, student_record_id, deleted_at, created_at, updated_at)
        VALUES (:id, :survey_id, :student_name, :student_email, :student_phone, :provided_student_id, :additional_data, :status, :reviewed_by, :reviewed_at, :review_notes, :student_record_id, :deleted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, resp); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create response: %w", err)
	}
	return nil
}

// CreateAnswers inserts answers for a response.
func (r *SurveyRepository) CreateAnswers(ctx context.Context, answers []models.SurveyAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range answers {
		if answers[i].ID == "" {
			answers[i].ID = uuid.NewString()
		}
		if answers[i].CreatedAt.IsZero() {
			answers[i].CreatedAt = now
		}
	}
	const query = `INSERT INTO survey_answers (id, response_id, question_id, answer_text, answer_choice, answer_rating, answer_date, created_at)
        VALUES (:id, :response_id, :question_id, :answer_text, :answer_choice, :answer_rating, :answer_date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, answers); err != nil {
		return fmt.Errorf("create answers: %w", err)
	}
	return nil
}

// ListAnswers returns the answers of a response.
func (r *SurveyRepository) ListAnswers(ctx context.Context, responseID string) ([]models.SurveyAnswer, error) {
	const query = `SELECT id, response_id, question_id, answer_text, answer_choice, answer_rating, answer_date, created_at FROM survey_answers WHERE response_id = $1`
	var answers []models.SurveyAnswer
	if err := r.db.SelectContext(ctx, &answers, query, responseID); err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return answers, nil
}

// FindResponseByID fetches a response by identifier.
func (r *SurveyRepository) FindResponseByID(ctx context.Context, id string) (*models.SurveyResponse, error) {
	query := fmt.Sprintf(`SELECT %s FROM survey_responses WHERE id = $1 LIMIT 1`, responseColumns)
	var resp models.SurveyResponse
	if err := r.db.GetContext(ctx, &resp, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find response by id: %w", err)
	}
	return &resp, nil
}

// ListResponses returns responses matching the provided filters. Trashed rows
// are excluded unless the filter asks for them.
func (r *SurveyRepository) ListResponses(ctx context.Context, filter models.ResponseFilter) ([]models.SurveyResponse, int, error) {
	base := `FROM survey_responses WHERE survey_id = $1`
	args := []interface{}{filter.SurveyID}

	if !filter.IncludeDeleted {
		base += " AND deleted_at IS NULL"
	}
	if filter.Status != nil {
		base += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND (LOWER(student_name) LIKE $%d OR LOWER(student_email) LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", responseColumns, base, size, offset)
	var responses []models.SurveyResponse
	if err := r.db.SelectContext(ctx, &responses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list responses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count responses: %w", err)
	}
	return responses, total, nil
}

// UpdateResponseStatus records a review decision.
func (r *SurveyRepository) UpdateResponseStatus(ctx context.Context, id string, status models.ResponseStatus, reviewerID *string, notes string) error {
	now := time.Now().UTC()
	const query = `UPDATE survey_responses SET status = $2, reviewed_by = $3, reviewed_at = $4, review_notes = $5, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, reviewerID, now, notes); err != nil {
		return fmt.Errorf("update response status: %w", err)
	}
	return nil
}

// LinkStudentRecord points an approved response at the student it produced.
func (r *SurveyRepository) LinkStudentRecord(ctx context.Context, id, studentID string) error {
	const query = `UPDATE survey_responses SET student_record_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("link student record: %w", err)
	}
	return nil
}

// SetResponseDeleted stamps or clears the soft-delete marker.
func (r *SurveyRepository) SetResponseDeleted(ctx context.Context, id string, deletedAt *time.Time) error {
	const query = `UPDATE survey_responses SET deleted_at = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, deletedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("set response deleted: %w", err)
	}
	return nil
}

// HardDeleteResponse removes a response and its answers permanently.
func (r *SurveyRepository) HardDeleteResponse(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM survey_answers WHERE response_id = $1`, id); err != nil {
		return fmt.Errorf("delete answers: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM survey_responses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("hard delete response: %w", err)
	}
	return nil
}

// CreateExportJob records a queued export.
func (r *SurveyRepository) CreateExportJob(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO export_jobs (id, survey_id, requested_by, format, status, file_path, error_note, created_at, completed_at)
        VALUES (:id, :survey_id, :requested_by, :format, :status, :file_path, :error_note, :created_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// FindExportJob fetches an export job by identifier.
func (r *SurveyRepository) FindExportJob(ctx context.Context, id string) (*models.ExportJob, error) {
	const query = `SELECT id, survey_id, requested_by, format, status, file_path, error_note, created_at, completed_at FROM export_jobs WHERE id = $1 LIMIT 1`
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find export job: %w", err)
	}
	return &job, nil
}

// UpdateExportJob records an export's progress or final state.
func (r *SurveyRepository) UpdateExportJob(ctx context.Context, id string, status models.ExportJobStatus, filePath, errorNote string, completedAt *time.Time) error {
	const query = `UPDATE export_jobs SET status = $2, file_path = $3, error_note = $4, completed_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, filePath, errorNote, completedAt); err != nil {
		return fmt.Errorf("update export job: %w", err)
	}
	return nil
}
