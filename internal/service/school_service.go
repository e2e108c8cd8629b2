package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/boardinghub/boardinghub-api/internal/models"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
)

type schoolRepository interface {
	ListSchools(ctx context.Context) ([]models.School, error)
	FindSchoolByID(ctx context.Context, id string) (*models.School, error)
	FindSchoolByName(ctx context.Context, name string) (*models.School, error)
	CreateSchool(ctx context.Context, school *models.School) error
	UpdateSchool(ctx context.Context, school *models.School) error
	ListDepartments(ctx context.Context, schoolID string) ([]models.Department, error)
	FindDepartmentByID(ctx context.Context, id string) (*models.Department, error)
	FindDepartmentByName(ctx context.Context, schoolID, name string) (*models.Department, error)
	CreateDepartment(ctx context.Context, department *models.Department) error
	UpdateDepartment(ctx context.Context, department *models.Department) error
	ListPrograms(ctx context.Context, departmentID string) ([]models.Program, error)
	FindProgramByID(ctx context.Context, id string) (*models.Program, error)
	FindProgramByName(ctx context.Context, departmentID, name string) (*models.Program, error)
	CreateProgram(ctx context.Context, program *models.Program) error
	UpdateProgram(ctx context.Context, program *models.Program) error
}

// SchoolRequest is the payload for creating or editing a school.
type SchoolRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	EmailDomain string `json:"email_domain" validate:"max=100"`
	Address     string `json:"address" validate:"max=300"`
	Phone       string `json:"phone" validate:"max=20"`
	FacebookURL string `json:"facebook_url" validate:"omitempty,url"`
}

// CatalogEntryRequest covers both departments and programs.
type CatalogEntryRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Code        string `json:"code" validate:"max=20"`
	Description string `json:"description" validate:"max=1000"`
}

// SchoolService manages the school, department, and program catalog.
type SchoolService struct {
	repo      schoolRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSchoolService constructs a SchoolService.
func NewSchoolService(repo schoolRepository, validate *validator.Validate, logger *zap.Logger) *SchoolService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SchoolService{repo: repo, validator: validate, logger: logger}
}

// ListSchools returns active schools ordered by name.
func (s *SchoolService) ListSchools(ctx context.Context) ([]models.School, error) {
	schools, err := s.repo.ListSchools(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schools")
	}
	return schools, nil
}

// GetSchool returns one school.
func (s *SchoolService) GetSchool(ctx context.Context, id string) (*models.School, error) {
	school, err := s.repo.FindSchoolByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	return school, nil
}

// CreateSchool adds a school. The email domain is stored lowercase since it
// drives survey email policy checks.
func (s *SchoolService) CreateSchool(ctx context.Context, req SchoolRequest) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}
	if _, err := s.repo.FindSchoolByName(ctx, req.Name); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a school with this name already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check school name")
	}

	school := &models.School{
		Name:        strings.TrimSpace(req.Name),
		EmailDomain: strings.ToLower(strings.TrimSpace(req.EmailDomain)),
		Address:     req.Address,
		Phone:       req.Phone,
		FacebookURL: req.FacebookURL,
		Active:      true,
	}
	if err := s.repo.CreateSchool(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create school")
	}
	return school, nil
}

// UpdateSchool edits a school.
func (s *SchoolService) UpdateSchool(ctx context.Context, id string, req SchoolRequest) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}
	school, err := s.GetSchool(ctx, id)
	if err != nil {
		return nil, err
	}
	school.Name = strings.TrimSpace(req.Name)
	school.EmailDomain = strings.ToLower(strings.TrimSpace(req.EmailDomain))
	school.Address = req.Address
	school.Phone = req.Phone
	school.FacebookURL = req.FacebookURL
	if err := s.repo.UpdateSchool(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update school")
	}
	return school, nil
}

// ListDepartments returns a school's departments.
func (s *SchoolService) ListDepartments(ctx context.Context, schoolID string) ([]models.Department, error) {
	if _, err := s.GetSchool(ctx, schoolID); err != nil {
		return nil, err
	}
	departments, err := s.repo.ListDepartments(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return departments, nil
}

// CreateDepartment adds a department to a school. Names are unique per school.
func (s *SchoolService) CreateDepartment(ctx context.Context, schoolID string, req CatalogEntryRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	if _, err := s.GetSchool(ctx, schoolID); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindDepartmentByName(ctx, schoolID, req.Name); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a department with this name already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check department name")
	}

	department := &models.Department{
		SchoolID:    schoolID,
		Name:        strings.TrimSpace(req.Name),
		Code:        req.Code,
		Description: req.Description,
		Active:      true,
	}
	if err := s.repo.CreateDepartment(ctx, department); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create department")
	}
	return department, nil
}

// UpdateDepartment edits a department.
func (s *SchoolService) UpdateDepartment(ctx context.Context, id string, req CatalogEntryRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	department, err := s.repo.FindDepartmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	department.Name = strings.TrimSpace(req.Name)
	department.Code = req.Code
	department.Description = req.Description
	if err := s.repo.UpdateDepartment(ctx, department); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update department")
	}
	return department, nil
}

// ListPrograms returns a department's programs.
func (s *SchoolService) ListPrograms(ctx context.Context, departmentID string) ([]models.Program, error) {
	programs, err := s.repo.ListPrograms(ctx, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list programs")
	}
	return programs, nil
}

// CreateProgram adds a program under a department. Names are unique per
// department.
func (s *SchoolService) CreateProgram(ctx context.Context, departmentID string, req CatalogEntryRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	if _, err := s.repo.FindDepartmentByID(ctx, departmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if _, err := s.repo.FindProgramByName(ctx, departmentID, req.Name); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a program with this name already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check program name")
	}

	program := &models.Program{
		DepartmentID: departmentID,
		Name:         strings.TrimSpace(req.Name),
		Code:         req.Code,
		Description:  req.Description,
		Active:       true,
	}
	if err := s.repo.CreateProgram(ctx, program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create program")
	}
	return program, nil
}

// UpdateProgram edits a program.
func (s *SchoolService) UpdateProgram(ctx context.Context, id string, req CatalogEntryRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	program, err := s.repo.FindProgramByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	program.Name = strings.TrimSpace(req.Name)
	program.Code = req.Code
	program.Description = req.Description
	if err := s.repo.UpdateProgram(ctx, program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update program")
	}
	return program, nil
}
