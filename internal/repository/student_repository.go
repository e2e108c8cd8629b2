package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/boardinghub/boardinghub-api/internal/models"
)

// StudentRepository manages persistence for student academic profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentDetailSelect = `SELECT st.id, st.user_id, st.student_id, st.school_id, st.department_id, st.program_id, st.year_level, st.date_of_birth, st.emergency_contact_name, st.emergency_contact_phone, st.created_at, st.updated_at,
        u.full_name, u.email, u.phone, d.name AS department_name, p.name AS program_name`

const studentDetailJoins = `FROM students st
        JOIN users u ON u.id = st.user_id
        LEFT JOIN departments d ON d.id = st.department_id
        LEFT JOIN programs p ON p.id = st.program_id`

// List returns student details matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := studentDetailJoins
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("st.school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("st.department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(u.full_name) LIKE $%d OR LOWER(u.email) LIKE $%d OR LOWER(st.student_id) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"full_name":  "u.full_name",
		"student_id": "st.student_id",
		"created_at": "st.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "st.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf("%s %s ORDER BY %s %s LIMIT %d OFFSET %d", studentDetailSelect, base, column, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student detail by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := fmt.Sprintf("%s %s WHERE st.id = $1", studentDetailSelect, studentDetailJoins)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByUserID fetches the student profile attached to an account.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	query := fmt.Sprintf("%s %s WHERE st.user_id = $1", studentDetailSelect, studentDetailJoins)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, userID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByStudentID fetches a student by school-issued student number.
func (r *StudentRepository) FindByStudentID(ctx context.Context, studentID string) (*models.StudentDetail, error) {
	query := fmt.Sprintf("%s %s WHERE st.student_id = $1", studentDetailSelect, studentDetailJoins)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, studentID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsByStudentID checks if a student number is taken, optionally excluding
// an existing row.
func (r *StudentRepository) ExistsByStudentID(ctx context.Context, studentID string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE student_id = $1"
	args := []interface{}{studentID}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student id: %w", err)
	}
	return true, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, user_id, student_id, school_id, department_id, program_id, year_level, date_of_birth, emergency_contact_name, emergency_contact_phone, created_at, updated_at)
        VALUES (:id, :user_id, :student_id, :school_id, :department_id, :program_id, :year_level, :date_of_birth, :emergency_contact_name, :emergency_contact_phone, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET student_id = :student_id, school_id = :school_id, department_id = :department_id, program_id = :program_id, year_level = :year_level, date_of_birth = :date_of_birth, emergency_contact_name = :emergency_contact_name, emergency_contact_phone = :emergency_contact_phone, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// HardDelete removes a student row. Callers snapshot the record into trash
// beforehand.
func (r *StudentRepository) HardDelete(ctx context.Context, id string) error {
	const query = `DELETE FROM students WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("hard delete student: %w", err)
	}
	return nil
}

// CreateAssignment inserts a boarding assignment.
func (r *StudentRepository) CreateAssignment(ctx context.Context, assignment *models.BoardingAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now
	const query = `INSERT INTO boarding_assignments (id, student_id, property_id, room_id, status, start_date, end_date, agreement_signed, agreement_signed_at, created_at, updated_at)
        VALUES (:id, :student_id, :property_id, :room_id, :status, :start_date, :end_date, :agreement_signed, :agreement_signed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// FindAssignment returns the assignment for a student, property and status.
func (r *StudentRepository) FindAssignment(ctx context.Context, studentID, propertyID string, status models.AssignmentStatus) (*models.BoardingAssignment, error) {
	const query = `SELECT id, student_id, property_id, room_id, status, start_date, end_date, agreement_signed, agreement_signed_at, created_at, updated_at FROM boarding_assignments WHERE student_id = $1 AND property_id = $2 AND status = $3 LIMIT 1`
	var assignment models.BoardingAssignment
	if err := r.db.GetContext(ctx, &assignment, query, studentID, propertyID, status); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &assignment, nil
}

// ListAssignmentsByStudent returns all assignments for a student, newest first.
func (r *StudentRepository) ListAssignmentsByStudent(ctx context.Context, studentID string) ([]models.BoardingAssignment, error) {
	const query = `SELECT id, student_id, property_id, room_id, status, start_date, end_date, agreement_signed, agreement_signed_at, created_at, updated_at FROM boarding_assignments WHERE student_id = $1 ORDER BY created_at DESC`
	var assignments []models.BoardingAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, studentID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// UpdateAssignmentStatus transitions an assignment to a new status.
func (r *StudentRepository) UpdateAssignmentStatus(ctx context.Context, id string, status models.AssignmentStatus) error {
	const query = `UPDATE boarding_assignments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update assignment status: %w", err)
	}
	return nil
}
