package models

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// SurveyStatus is the publication state of a survey.
type SurveyStatus string

const (
	SurveyDraft  SurveyStatus = "draft"
	SurveyActive SurveyStatus = "active"
	SurveyClosed SurveyStatus = "closed"
)

// EmailValidation controls which student email domains a survey accepts.
type EmailValidation string

const (
	EmailValidationNone       EmailValidation = "none"
	EmailValidationGmail      EmailValidation = "gmail"
	EmailValidationUniversity EmailValidation = "university"
	EmailValidationBoth       EmailValidation = "both"
)

// Survey is an admin-authored student registration form, shared publicly via
// its unique code.
type Survey struct {
	ID                  string          `db:"id" json:"id"`
	SchoolID            string          `db:"school_id" json:"school_id"`
	Title               string          `db:"title" json:"title"`
	Description         string          `db:"description" json:"description,omitempty"`
	Category            string          `db:"category" json:"category,omitempty"`
	Status              SurveyStatus    `db:"status" json:"status"`
	UniqueCode          string          `db:"unique_code" json:"unique_code"`
	EmailValidation     EmailValidation `db:"email_validation" json:"email_validation"`
	RequirePropertyInfo bool            `db:"require_property_info" json:"require_property_info"`
	CreatedBy           *string         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// SurveySection groups questions within a survey.
type SurveySection struct {
	ID        string    `db:"id" json:"id"`
	SurveyID  string    `db:"survey_id" json:"survey_id"`
	Title     string    `db:"title" json:"title"`
	Order     int       `db:"position" json:"order"`
	Color     string    `db:"color" json:"color"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// QuestionType enumerates supported answer widgets.
type QuestionType string

const (
	QuestionTextShort      QuestionType = "text_short"
	QuestionTextLong       QuestionType = "text_long"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionCheckbox       QuestionType = "checkbox"
	QuestionRating         QuestionType = "rating"
	QuestionDate           QuestionType = "date"
)

// SurveyQuestion belongs to a section. Options is a JSON array of strings for
// choice questions.
type SurveyQuestion struct {
	ID           string         `db:"id" json:"id"`
	SectionID    string         `db:"section_id" json:"section_id"`
	Text         string         `db:"text" json:"text"`
	QuestionType QuestionType   `db:"question_type" json:"question_type"`
	Options      types.JSONText `db:"options" json:"options,omitempty"`
	Required     bool           `db:"required" json:"required"`
	Order        int            `db:"position" json:"order"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// OptionList decodes the JSON options column.
func (q *SurveyQuestion) OptionList() []string {
	if len(q.Options) == 0 {
		return nil
	}
	var opts []string
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return nil
	}
	return opts
}

// ResponseStatus is the review state of a survey response.
type ResponseStatus string

const (
	ResponsePending    ResponseStatus = "pending"
	ResponseApproved   ResponseStatus = "approved"
	ResponseRejected   ResponseStatus = "rejected"
	ResponseRegistered ResponseStatus = "registered"
)

// SurveyResponse stores a submission together with denormalized contact
// fields captured before any account exists. AdditionalData is a loosely
// structured JSON bag filled from the public form.
type SurveyResponse struct {
	ID                string         `db:"id" json:"id"`
	SurveyID          string         `db:"survey_id" json:"survey_id"`
	StudentName       string         `db:"student_name" json:"student_name"`
	StudentEmail      string         `db:"student_email" json:"student_email"`
	StudentPhone      string         `db:"student_phone" json:"student_phone,omitempty"`
	ProvidedStudentID string         `db:"provided_student_id" json:"provided_student_id,omitempty"`
	AdditionalData    types.JSONText `db:"additional_data" json:"additional_data,omitempty"`
	Status            ResponseStatus `db:"status" json:"status"`
	ReviewedBy        *string        `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time     `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewNotes       string         `db:"review_notes" json:"review_notes,omitempty"`
	StudentRecordID   *string        `db:"student_record_id" json:"student_record_id,omitempty"`
	DeletedAt         *time.Time     `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// IsDeleted reports whether the response sits in trash.
func (r *SurveyResponse) IsDeleted() bool {
	return r.DeletedAt != nil
}

// ResponseExtras is the known shape inside AdditionalData. Unknown keys are
// preserved in the raw JSON but ignored here.
type ResponseExtras struct {
	DepartmentID          string `json:"department_id,omitempty"`
	ProgramID             string `json:"program_id,omitempty"`
	YearLevel             string `json:"year_level,omitempty"`
	DateOfBirth           string `json:"date_of_birth,omitempty"`
	EmergencyContactName  string `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone string `json:"emergency_contact_phone,omitempty"`
	PropertyOwnerEmail    string `json:"property_owner_email,omitempty"`
	PropertyName          string `json:"property_name,omitempty"`
}

// UnmarshalJSON accepts both string and numeric values for the identifier
// fields. Public forms send department and program ids as numbers or strings
// depending on the widget, so both forms resolve to the same hint.
func (e *ResponseExtras) UnmarshalJSON(data []byte) error {
	type alias ResponseExtras
	aux := struct {
		DepartmentID json.RawMessage `json:"department_id,omitempty"`
		ProgramID    json.RawMessage `json:"program_id,omitempty"`
		YearLevel    json.RawMessage `json:"year_level,omitempty"`
		*alias
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.DepartmentID = flexString(aux.DepartmentID)
	e.ProgramID = flexString(aux.ProgramID)
	e.YearLevel = flexString(aux.YearLevel)
	return nil
}

// flexString reads a JSON value as a string whether it was sent quoted
// or as a bare number.
func flexString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// Extras decodes AdditionalData into its known fields. A malformed bag yields
// the zero value; the source treated these fields as best-effort hints.
func (r *SurveyResponse) Extras() ResponseExtras {
	var extras ResponseExtras
	if len(r.AdditionalData) == 0 {
		return extras
	}
	_ = json.Unmarshal(r.AdditionalData, &extras)
	return extras
}

// SurveyAnswer is an individual answer keyed by (response, question).
type SurveyAnswer struct {
	ID           string     `db:"id" json:"id"`
	ResponseID   string     `db:"response_id" json:"response_id"`
	QuestionID   string     `db:"question_id" json:"question_id"`
	AnswerText   string     `db:"answer_text" json:"answer_text,omitempty"`
	AnswerChoice string     `db:"answer_choice" json:"answer_choice,omitempty"`
	AnswerRating *int       `db:"answer_rating" json:"answer_rating,omitempty"`
	AnswerDate   *time.Time `db:"answer_date" json:"answer_date,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// SurveyDetail bundles a survey with its ordered sections and questions.
type SurveyDetail struct {
	Survey   Survey           `json:"survey"`
	Sections []SectionDetail  `json:"sections"`
}

// SectionDetail is a section with its ordered questions.
type SectionDetail struct {
	Section   SurveySection    `json:"section"`
	Questions []SurveyQuestion `json:"questions"`
}

// ResponseFilter captures admin listing parameters for responses.
type ResponseFilter struct {
	SurveyID       string
	Status         *ResponseStatus
	Search         string
	IncludeDeleted bool
	Page           int
	PageSize       int
}

// SurveyFilter captures admin listing parameters for surveys.
type SurveyFilter struct {
	SchoolID string
	Status   *SurveyStatus
	Search   string
	Page     int
	PageSize int
}

// ExportFormat selects the rendered output of a response export.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportJobStatus tracks an asynchronous export.
type ExportJobStatus string

const (
	ExportQueued    ExportJobStatus = "queued"
	ExportRunning   ExportJobStatus = "running"
	ExportCompleted ExportJobStatus = "completed"
	ExportFailed    ExportJobStatus = "failed"
)

// ExportJob records one requested survey response export.
type ExportJob struct {
	ID          string          `db:"id" json:"id"`
	SurveyID    string          `db:"survey_id" json:"survey_id"`
	RequestedBy string          `db:"requested_by" json:"requested_by"`
	Format      ExportFormat    `db:"format" json:"format"`
	Status      ExportJobStatus `db:"status" json:"status"`
	FilePath    string          `db:"file_path" json:"-"`
	ErrorNote   string          `db:"error_note" json:"error_note,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}
