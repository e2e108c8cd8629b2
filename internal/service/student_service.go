package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/boardinghub/boardinghub-api/internal/models"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
	ExistsByStudentID(ctx context.Context, studentID string, excludeID string) (bool, error)
	Update(ctx context.Context, student *models.Student) error
	ListAssignmentsByStudent(ctx context.Context, studentID string) ([]models.BoardingAssignment, error)
	UpdateAssignmentStatus(ctx context.Context, id string, status models.AssignmentStatus) error
	FindAssignment(ctx context.Context, studentID, propertyID string, status models.AssignmentStatus) (*models.BoardingAssignment, error)
}

type studentPropertyRepository interface {
	AdjustOccupancy(ctx context.Context, id string, delta int) error
}

// UpdateStudentRequest edits the academic profile of a student record.
type UpdateStudentRequest struct {
	StudentID             string `json:"student_id" validate:"required,max=50"`
	DepartmentID          string `json:"department_id"`
	ProgramID             string `json:"program_id"`
	YearLevel             string `json:"year_level" validate:"max=20"`
	DateOfBirth           string `json:"date_of_birth"`
	EmergencyContactName  string `json:"emergency_contact_name" validate:"max=200"`
	EmergencyContactPhone string `json:"emergency_contact_phone" validate:"max=20"`
}

// StudentService manages student records and their boarding assignments.
type StudentService struct {
	repo       studentRepository
	properties studentPropertyRepository
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentRepository, properties studentPropertyRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{repo: repo, properties: properties, validator: validate, logger: logger}
}

// List returns student records matching the filter.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, total, nil
}

// Get returns one student record.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return detail, nil
}

// GetByUser returns the student record attached to a user account.
func (s *StudentService) GetByUser(ctx context.Context, userID string) (*models.StudentDetail, error) {
	detail, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return detail, nil
}

// Update edits a student's academic profile. The student number must stay
// unique across the school.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.StudentID != detail.StudentID {
		taken, err := s.repo.ExistsByStudentID(ctx, req.StudentID, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student number")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "this student number is already in use")
		}
	}

	student := detail.Student
	student.StudentID = req.StudentID
	student.YearLevel = req.YearLevel
	student.EmergencyContactName = req.EmergencyContactName
	student.EmergencyContactPhone = req.EmergencyContactPhone
	if req.EmergencyContactPhone != "" {
		student.EmergencyContactPhone = NormalizePhone(req.EmergencyContactPhone)
	}
	student.DepartmentID = optionalID(req.DepartmentID)
	student.ProgramID = optionalID(req.ProgramID)
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date of birth must be YYYY-MM-DD")
		}
		student.DateOfBirth = &dob
	} else {
		student.DateOfBirth = nil
	}

	if err := s.repo.Update(ctx, &student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return &student, nil
}

// ListAssignments returns a student's boarding history, newest first.
func (s *StudentService) ListAssignments(ctx context.Context, studentID string) ([]models.BoardingAssignment, error) {
	if _, err := s.Get(ctx, studentID); err != nil {
		return nil, err
	}
	assignments, err := s.repo.ListAssignmentsByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// EndAssignment closes an active boarding assignment and frees the slot on
// the property.
func (s *StudentService) EndAssignment(ctx context.Context, studentID, propertyID string) error {
	assignment, err := s.repo.FindAssignment(ctx, studentID, propertyID, models.AssignmentActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "no active assignment for this property")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if err := s.repo.UpdateAssignmentStatus(ctx, assignment.ID, models.AssignmentCompleted); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to end assignment")
	}
	if err := s.properties.AdjustOccupancy(ctx, propertyID, -1); err != nil {
		s.logger.Warn("failed to release property slot", zap.String("property_id", propertyID), zap.Error(err))
	}
	return nil
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
