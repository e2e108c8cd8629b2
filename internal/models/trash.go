package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TrashItemType names the kinds of records the trash can hold.
type TrashItemType string

const (
	TrashSurvey   TrashItemType = "survey"
	TrashUser     TrashItemType = "user"
	TrashProperty TrashItemType = "property"
	TrashStudent  TrashItemType = "student"
	TrashResponse TrashItemType = "response"
)

// Valid reports whether t is a known trash item type.
func (t TrashItemType) Valid() bool {
	switch t {
	case TrashSurvey, TrashUser, TrashProperty, TrashStudent, TrashResponse:
		return true
	}
	return false
}

// TrashLog is one soft-deleted record awaiting restore or permanent purge.
// ItemData holds a typed snapshot of the deleted record, selected by ItemType.
type TrashLog struct {
	ID                   string          `db:"id" json:"id"`
	SchoolID             string          `db:"school_id" json:"school_id"`
	ItemType             TrashItemType   `db:"item_type" json:"item_type"`
	ItemID               string          `db:"item_id" json:"item_id"`
	ItemName             string          `db:"item_name" json:"item_name"`
	ItemData             json.RawMessage `db:"item_data" json:"item_data,omitempty"`
	DeletedBy            *string         `db:"deleted_by" json:"deleted_by,omitempty"`
	DeletedAt            time.Time       `db:"deleted_at" json:"deleted_at"`
	PermanentDeleteAt    time.Time       `db:"permanent_delete_at" json:"permanent_delete_at"`
	IsPermanentlyDeleted bool            `db:"is_permanently_deleted" json:"is_permanently_deleted"`
	RestoredAt           *time.Time      `db:"restored_at" json:"restored_at,omitempty"`
}

// DaysUntilPurge returns whole days remaining before the permanent purge
// deadline, never negative.
func (t *TrashLog) DaysUntilPurge(now time.Time) int {
	d := int(t.PermanentDeleteAt.Sub(now).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// SurveySnapshot captures the state a survey had when it was trashed. Surveys
// are closed rather than dropped, so restore only reopens them.
type SurveySnapshot struct {
	SurveyID       string       `json:"survey_id"`
	Title          string       `json:"title"`
	PreviousStatus SurveyStatus `json:"previous_status"`
	ResponseCount  int          `json:"response_count"`
}

// UserSnapshot captures enough of a hard-deleted account to rebuild it.
type UserSnapshot struct {
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	PasswordHash string   `json:"password_hash"`
	FullName     string   `json:"full_name"`
	Role         UserRole `json:"role"`
	SchoolID     *string  `json:"school_id,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	IsOutsider   bool     `json:"is_outsider"`
}

// StudentSnapshot captures a hard-deleted student profile together with its
// account, so a restore rebuilds both.
type StudentSnapshot struct {
	User                  UserSnapshot `json:"user"`
	StudentID             string       `json:"student_id"`
	DepartmentID          *string      `json:"department_id,omitempty"`
	ProgramID             *string      `json:"program_id,omitempty"`
	YearLevel             string       `json:"year_level,omitempty"`
	DateOfBirth           *time.Time   `json:"date_of_birth,omitempty"`
	EmergencyContactName  string       `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone string       `json:"emergency_contact_phone,omitempty"`
}

// PropertySnapshot captures a hard-deleted property listing.
type PropertySnapshot struct {
	PropertyID  string         `json:"property_id"`
	OwnerID     string         `json:"owner_id"`
	Name        string         `json:"name,omitempty"`
	Address     string         `json:"address"`
	City        string         `json:"city,omitempty"`
	Capacity    int            `json:"capacity"`
	MonthlyRent *float64       `json:"monthly_rent,omitempty"`
	Status      PropertyStatus `json:"status"`
}

// ResponseSnapshot records which survey response was trashed. Responses keep
// their row and are flagged, so restore just clears the flag.
type ResponseSnapshot struct {
	ResponseID   string `json:"response_id"`
	SurveyID     string `json:"survey_id"`
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email"`
}

// EncodeSnapshot marshals a typed snapshot for storage in ItemData.
func EncodeSnapshot(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode trash snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot unmarshals ItemData into the typed snapshot for the entry's
// item type.
func (t *TrashLog) DecodeSnapshot(v any) error {
	if len(t.ItemData) == 0 {
		return fmt.Errorf("trash entry %s has no snapshot", t.ID)
	}
	if err := json.Unmarshal(t.ItemData, v); err != nil {
		return fmt.Errorf("decode %s snapshot: %w", t.ItemType, err)
	}
	return nil
}

// TrashFilter captures listing parameters for the trash view.
type TrashFilter struct {
	SchoolID string
	ItemType *TrashItemType
	Page     int
	PageSize int
}

// RestoreResult reports the outcome of restoring one trash entry. The entry
// is always marked restored; Rebuilt is false when the underlying record
// could not be reconstructed, with Warning explaining why.
type RestoreResult struct {
	EntryID  string `json:"entry_id"`
	ItemType string `json:"item_type"`
	ItemName string `json:"item_name"`
	Rebuilt  bool   `json:"rebuilt"`
	Warning  string `json:"warning,omitempty"`
}

// BulkTrashResult summarizes a restore-all or purge-all run.
type BulkTrashResult struct {
	Processed int             `json:"processed"`
	Succeeded int             `json:"succeeded"`
	Results   []RestoreResult `json:"results,omitempty"`
}
