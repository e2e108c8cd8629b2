package models

import "time"

// School represents a university or college institution.
type School struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	EmailDomain string    `db:"email_domain" json:"email_domain,omitempty"`
	Address     string    `db:"address" json:"address,omitempty"`
	Phone       string    `db:"phone" json:"phone,omitempty"`
	FacebookURL string    `db:"facebook_url" json:"facebook_url,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Department is an academic department within a school. Names are unique per
// school.
type Department struct {
	ID          string    `db:"id" json:"id"`
	SchoolID    string    `db:"school_id" json:"school_id"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code,omitempty"`
	Description string    `db:"description" json:"description,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Program is an academic program offered by a department. Names are unique
// per department.
type Program struct {
	ID           string    `db:"id" json:"id"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	Name         string    `db:"name" json:"name"`
	Code         string    `db:"code" json:"code,omitempty"`
	Description  string    `db:"description" json:"description,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
