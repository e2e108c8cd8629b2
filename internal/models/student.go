package models

import "time"

// Student is the academic profile attached to a STUDENT user.
type Student struct {
	ID                    string     `db:"id" json:"id"`
	UserID                string     `db:"user_id" json:"user_id"`
	StudentID             string     `db:"student_id" json:"student_id"`
	SchoolID              *string    `db:"school_id" json:"school_id,omitempty"`
	DepartmentID          *string    `db:"department_id" json:"department_id,omitempty"`
	ProgramID             *string    `db:"program_id" json:"program_id,omitempty"`
	YearLevel             string     `db:"year_level" json:"year_level,omitempty"`
	DateOfBirth           *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	EmergencyContactName  string     `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone string     `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentDetail joins account and catalog context onto a student row.
type StudentDetail struct {
	Student
	FullName       string  `db:"full_name" json:"full_name"`
	Email          string  `db:"email" json:"email"`
	Phone          string  `db:"phone" json:"phone,omitempty"`
	DepartmentName *string `db:"department_name" json:"department_name,omitempty"`
	ProgramName    *string `db:"program_name" json:"program_name,omitempty"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	SchoolID     string
	DepartmentID string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
