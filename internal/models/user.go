package models

import "time"

// UserRole represents the three account roles in the system.
type UserRole string

const (
	RoleSchoolAdmin   UserRole = "SCHOOL_ADMIN"
	RoleStudent       UserRole = "STUDENT"
	RolePropertyOwner UserRole = "PROPERTY_OWNER"
)

// Valid reports whether the role is one of the known values.
func (r UserRole) Valid() bool {
	switch r {
	case RoleSchoolAdmin, RoleStudent, RolePropertyOwner:
		return true
	}
	return false
}

// User represents an application account stored in the users table. Profile
// fields (role, school, phone, boarding location) live on the same row.
type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	SchoolID     *string    `db:"school_id" json:"school_id,omitempty"`
	Phone        string     `db:"phone" json:"phone"`
	IsOutsider   bool       `db:"is_outsider" json:"is_outsider"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`

	// Boarding location, set by property owners only.
	BoardingRegion   string `db:"boarding_region" json:"boarding_region,omitempty"`
	BoardingProvince string `db:"boarding_province" json:"boarding_province,omitempty"`
	BoardingCity     string `db:"boarding_city" json:"boarding_city,omitempty"`
	BoardingBarangay string `db:"boarding_barangay" json:"boarding_barangay,omitempty"`
	BoardingAddress  string `db:"boarding_address" json:"boarding_address,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	SchoolID  string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
