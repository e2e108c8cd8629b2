package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/boardinghub/boardinghub-api/internal/models"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
	"github.com/boardinghub/boardinghub-api/pkg/export"
	"github.com/boardinghub/boardinghub-api/pkg/jobs"
	"github.com/boardinghub/boardinghub-api/pkg/storage"
)

type exportSurveyRepository interface {
	FindByID(ctx context.Context, id string) (*models.Survey, error)
	ListQuestionsBySurvey(ctx context.Context, surveyID string) ([]models.SurveyQuestion, error)
	ListResponses(ctx context.Context, filter models.ResponseFilter) ([]models.SurveyResponse, int, error)
	ListAnswers(ctx context.Context, responseID string) ([]models.SurveyAnswer, error)
	CreateExportJob(ctx context.Context, job *models.ExportJob) error
	FindExportJob(ctx context.Context, id string) (*models.ExportJob, error)
	UpdateExportJob(ctx context.Context, id string, status models.ExportJobStatus, filePath, errorNote string, completedAt *time.Time) error
}

type exportQueue interface {
	Enqueue(job jobs.Job) error
}

// ExportResult is returned when an export is requested.
type ExportResult struct {
	JobID  string                 `json:"job_id"`
	Status models.ExportJobStatus `json:"status"`
}

// DownloadLink is a signed, expiring link to a finished export file.
type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportService renders survey responses to CSV or PDF in the background.
// Requesting an export records a job and queues it; the caller polls the job
// and fetches a signed download link once it completes.
type ExportService struct {
	surveys exportSurveyRepository
	queue   exportQueue
	files   *storage.LocalStorage
	signer  *storage.SignedURLSigner
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	logger  *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(surveys exportSurveyRepository, queue exportQueue, files *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		surveys: surveys,
		queue:   queue,
		files:   files,
		signer:  signer,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
	}
}

// Request records an export job for a survey and queues it for processing.
func (s *ExportService) Request(ctx context.Context, surveyID, requestedBy string, format models.ExportFormat) (*ExportResult, error) {
	if format != models.ExportCSV && format != models.ExportPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if _, err := s.surveys.FindByID(ctx, surveyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "survey not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load survey")
	}

	job := &models.ExportJob{
		ID:          uuid.NewString(),
		SurveyID:    surveyID,
		RequestedBy: requestedBy,
		Format:      format,
		Status:      models.ExportQueued,
	}
	if err := s.surveys.CreateExportJob(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "survey_export", Payload: job.ID}); err != nil {
		now := time.Now().UTC()
		if updateErr := s.surveys.UpdateExportJob(ctx, job.ID, models.ExportFailed, "", "queue full", &now); updateErr != nil {
			s.logger.Warn("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}
	return &ExportResult{JobID: job.ID, Status: models.ExportQueued}, nil
}

// Status returns the current state of an export job.
func (s *ExportService) Status(ctx context.Context, jobID string) (*models.ExportJob, error) {
	job, err := s.surveys.FindExportJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	return job, nil
}

// DownloadURL returns a signed link for a completed export.
func (s *ExportService) DownloadURL(ctx context.Context, jobID string) (*DownloadLink, error) {
	job, err := s.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.ExportCompleted || job.FilePath == "" {
		return nil, appErrors.Clone(appErrors.ErrConflict, "export is not finished yet")
	}
	token, expiresAt, err := s.signer.Generate(job.ID, job.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &DownloadLink{URL: token, ExpiresAt: expiresAt}, nil
}

// Handle is the queue handler; the job payload is the export job ID.
func (s *ExportService) Handle(ctx context.Context, job jobs.Job) error {
	jobID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected export payload %T", job.Payload)
	}
	return s.run(ctx, jobID)
}

func (s *ExportService) run(ctx context.Context, jobID string) error {
	job, err := s.surveys.FindExportJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export job: %w", err)
	}
	if err := s.surveys.UpdateExportJob(ctx, jobID, models.ExportRunning, "", "", nil); err != nil {
		s.logger.Warn("failed to mark export running", zap.String("job_id", jobID), zap.Error(err))
	}

	path, err := s.render(ctx, job)
	now := time.Now().UTC()
	if err != nil {
		if updateErr := s.surveys.UpdateExportJob(ctx, jobID, models.ExportFailed, "", err.Error(), &now); updateErr != nil {
			s.logger.Warn("failed to mark export failed", zap.String("job_id", jobID), zap.Error(updateErr))
		}
		return err
	}
	if err := s.surveys.UpdateExportJob(ctx, jobID, models.ExportCompleted, path, "", &now); err != nil {
		return fmt.Errorf("finalize export job: %w", err)
	}
	s.logger.Info("survey export completed", zap.String("job_id", jobID), zap.String("file", path))
	return nil
}

func (s *ExportService) render(ctx context.Context, job *models.ExportJob) (string, error) {
	survey, err := s.surveys.FindByID(ctx, job.SurveyID)
	if err != nil {
		return "", fmt.Errorf("load survey: %w", err)
	}
	dataset, err := s.buildDataset(ctx, survey)
	if err != nil {
		return "", err
	}

	var (
		raw []byte
		ext string
	)
	switch job.Format {
	case models.ExportPDF:
		raw, err = s.pdf.Render(*dataset, survey.Title)
		ext = "pdf"
	default:
		raw, err = s.csv.Render(*dataset)
		ext = "csv"
	}
	if err != nil {
		return "", fmt.Errorf("render export: %w", err)
	}

	filename := fmt.Sprintf("%s-%s.%s", survey.UniqueCode, job.ID, ext)
	return s.files.Save(filename, raw)
}

// buildDataset flattens responses into one row each, with a column per
// question in survey order.
func (s *ExportService) buildDataset(ctx context.Context, survey *models.Survey) (*export.Dataset, error) {
	questions, err := s.surveys.ListQuestionsBySurvey(ctx, survey.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	headers := []string{"Name", "Email", "Phone", "Student ID", "Status", "Submitted At"}
	byQuestionID := make(map[string]string, len(questions))
	for _, q := range questions {
		headers = append(headers, q.Text)
		byQuestionID[q.ID] = q.Text
	}

	filter := models.ResponseFilter{SurveyID: survey.ID, Page: 1, PageSize: exportPageSize}
	dataset := &export.Dataset{Headers: headers}
	for {
		responses, total, err := s.surveys.ListResponses(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list responses: %w", err)
		}
		for _, resp := range responses {
			row := map[string]string{
				"Name":         resp.StudentName,
				"Email":        resp.StudentEmail,
				"Phone":        resp.StudentPhone,
				"Student ID":   resp.ProvidedStudentID,
				"Status":       string(resp.Status),
				"Submitted At": resp.CreatedAt.Format(time.RFC3339),
			}
			answers, err := s.surveys.ListAnswers(ctx, resp.ID)
			if err != nil {
				return nil, fmt.Errorf("list answers: %w", err)
			}
			for _, a := range answers {
				header, ok := byQuestionID[a.QuestionID]
				if !ok {
					continue
				}
				row[header] = answerValue(a)
			}
			dataset.Rows = append(dataset.Rows, row)
		}
		if len(dataset.Rows) >= total || len(responses) == 0 {
			break
		}
		filter.Page++
	}
	return dataset, nil
}

const exportPageSize = 100

func answerValue(a models.SurveyAnswer) string {
	switch {
	case a.AnswerRating != nil:
		return strconv.Itoa(*a.AnswerRating)
	case a.AnswerDate != nil:
		return a.AnswerDate.Format("2006-01-02")
	case a.AnswerChoice != "":
		return a.AnswerChoice
	default:
		return a.AnswerText
	}
}
