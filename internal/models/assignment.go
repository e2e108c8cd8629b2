package models

import "time"

// AssignmentStatus tracks a boarding assignment lifecycle.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentActive    AssignmentStatus = "active"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

// BoardingAssignment links a student to a property and optionally a room.
// Uniqueness is on (student, property, status): historical rows per pair are
// allowed as the status changes.
type BoardingAssignment struct {
	ID                string           `db:"id" json:"id"`
	StudentID         string           `db:"student_id" json:"student_id"`
	PropertyID        string           `db:"property_id" json:"property_id"`
	RoomID            *string          `db:"room_id" json:"room_id,omitempty"`
	Status            AssignmentStatus `db:"status" json:"status"`
	StartDate         *time.Time       `db:"start_date" json:"start_date,omitempty"`
	EndDate           *time.Time       `db:"end_date" json:"end_date,omitempty"`
	AgreementSigned   bool             `db:"agreement_signed" json:"agreement_signed"`
	AgreementSignedAt *time.Time       `db:"agreement_signed_at" json:"agreement_signed_at,omitempty"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}
