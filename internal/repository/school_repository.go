package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/boardinghub/boardinghub-api/internal/models"
)

// SchoolRepository manages persistence for schools, departments and programs.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs a SchoolRepository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// ListSchools returns all active schools ordered by name.
func (r *SchoolRepository) ListSchools(ctx context.Context) ([]models.School, error) {
	const query = `SELECT id, name, email_domain, address, phone, facebook_url, active, created_at FROM schools WHERE active = TRUE ORDER BY name`
	var schools []models.School
	if err := r.db.SelectContext(ctx, &schools, query); err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	return schools, nil
}

// FindSchoolByID fetches a school by identifier.
func (r *SchoolRepository) FindSchoolByID(ctx context.Context, id string) (*models.School, error) {
	const query = `SELECT id, name, email_domain, address, phone, facebook_url, active, created_at FROM schools WHERE id = $1 LIMIT 1`
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find school by id: %w", err)
	}
	return &school, nil
}

// FindSchoolByName fetches a school by exact name.
func (r *SchoolRepository) FindSchoolByName(ctx context.Context, name string) (*models.School, error) {
	const query = `SELECT id, name, email_domain, address, phone, facebook_url, active, created_at FROM schools WHERE LOWER(name) = LOWER($1) LIMIT 1`
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find school by name: %w", err)
	}
	return &school, nil
}

// CreateSchool inserts a new school.
func (r *SchoolRepository) CreateSchool(ctx context.Context, school *models.School) error {
	if school.ID == "" {
		school.ID = uuid.NewString()
	}
	if school.CreatedAt.IsZero() {
		school.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO schools (id, name, email_domain, address, phone, facebook_url, active, created_at) VALUES (:id, :name, :email_domain, :address, :phone, :facebook_url, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("create school: %w", err)
	}
	return nil
}

// UpdateSchool updates mutable school fields.
func (r *SchoolRepository) UpdateSchool(ctx context.Context, school *models.School) error {
	const query = `UPDATE schools SET name = :name, email_domain = :email_domain, address = :address, phone = :phone, facebook_url = :facebook_url, active = :active WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("update school: %w", err)
	}
	return nil
}

// ListDepartments returns active departments for a school ordered by name.
func (r *SchoolRepository) ListDepartments(ctx context.Context, schoolID string) ([]models.Department, error) {
	const query = `SELECT id, school_id, name, code, description, active, created_at, updated_at FROM departments WHERE school_id = $1 AND active = TRUE ORDER BY name`
	var departments []models.Department
	if err := r.db.SelectContext(ctx, &departments, query, schoolID); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

// FindDepartmentByID fetches a department by identifier.
func (r *SchoolRepository) FindDepartmentByID(ctx context.Context, id string) (*models.Department, error) {
	const query = `SELECT id, school_id, name, code, description, active, created_at, updated_at FROM departments WHERE id = $1 LIMIT 1`
	var department models.Department
	if err := r.db.GetContext(ctx, &department, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find department by id: %w", err)
	}
	return &department, nil
}

// FindDepartmentByName fetches a department by name within a school.
func (r *SchoolRepository) FindDepartmentByName(ctx context.Context, schoolID, name string) (*models.Department, error) {
	const query = `SELECT id, school_id, name, code, description, active, created_at, updated_at FROM departments WHERE school_id = $1 AND LOWER(name) = LOWER($2) LIMIT 1`
	var department models.Department
	if err := r.db.GetContext(ctx, &department, query, schoolID, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find department by name: %w", err)
	}
	return &department, nil
}

// CreateDepartment inserts a new department.
func (r *SchoolRepository) CreateDepartment(ctx context.Context, department *models.Department) error {
	if department.ID == "" {
		department.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if department.CreatedAt.IsZero() {
		department.CreatedAt = now
	}
	department.UpdatedAt = now
	const query = `INSERT INTO departments (id, school_id, name, code, description, active, created_at, updated_at) VALUES (:id, :school_id, :name, :code, :description, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// UpdateDepartment updates mutable department fields.
func (r *SchoolRepository) UpdateDepartment(ctx context.Context, department *models.Department) error {
	department.UpdatedAt = time.Now().UTC()
	const query = `UPDATE departments SET name = :name, code = :code, description = :description, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("update department: %w", err)
	}
	return nil
}

// ListPrograms returns active programs for a department ordered by name.
func (r *SchoolRepository) ListPrograms(ctx context.Context, departmentID string) ([]models.Program, error) {
	const query = `SELECT id, department_id, name, code, description, active, created_at, updated_at FROM programs WHERE department_id = $1 AND active = TRUE ORDER BY name`
	var programs []models.Program
	if err := r.db.SelectContext(ctx, &programs, query, departmentID); err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	return programs, nil
}

// FindProgramByID fetches a program by identifier.
func (r *SchoolRepository) FindProgramByID(ctx context.Context, id string) (*models.Program, error) {
	const query = `SELECT id, department_id, name, code, description, active, created_at, updated_at FROM programs WHERE id = $1 LIMIT 1`
	var program models.Program
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find program by id: %w", err)
	}
	return &program, nil
}

// FindProgramByName fetches a program by name within a department.
func (r *SchoolRepository) FindProgramByName(ctx context.Context, departmentID, name string) (*models.Program, error) {
	const query = `SELECT id, department_id, name, code, description, active, created_at, updated_at FROM programs WHERE department_id = $1 AND LOWER(name) = LOWER($2) LIMIT 1`
	var program models.Program
	if err := r.db.GetContext(ctx, &program, query, departmentID, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find program by name: %w", err)
	}
	return &program, nil
}

// CreateProgram inserts a new program.
func (r *SchoolRepository) CreateProgram(ctx context.Context, program *models.Program) error {
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if program.CreatedAt.IsZero() {
		program.CreatedAt = now
	}
	program.UpdatedAt = now
	const query = `INSERT INTO programs (id, department_id, name, code, description, active, created_at, updated_at) VALUES (:id, :department_id, :name, :code, :description, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("create program: %w", err)
	}
	return nil
}

// UpdateProgram updates mutable program fields.
func (r *SchoolRepository) UpdateProgram(ctx context.Context, program *models.Program) error {
	program.UpdatedAt = time.Now().UTC()
	const query = `UPDATE programs SET name = :name, code = :code, description = :description, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("update program: %w", err)
	}
	return nil
}
