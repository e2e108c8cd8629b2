package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/boardinghub/boardinghub-api/internal/models"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
	"github.com/boardinghub/boardinghub-api/pkg/mailer"
)

type registrationUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type registrationStudentRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
	ExistsByStudentID(ctx context.Context, studentID string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	FindAssignment(ctx context.Context, studentID, propertyID string, status models.AssignmentStatus) (*models.BoardingAssignment, error)
	CreateAssignment(ctx context.Context, assignment *models.BoardingAssignment) error
}

type registrationSurveyRepository interface {
	FindByID(ctx context.Context, id string) (*models.Survey, error)
	FindResponseByID(ctx context.Context, id string) (*models.SurveyResponse, error)
	UpdateResponseStatus(ctx context.Context, id string, status models.ResponseStatus, reviewerID *string, notes string) error
	LinkStudentRecord(ctx context.Context, id, studentID string) error
}

type registrationSchoolRepository interface {
	FindDepartmentByID(ctx context.Context, id string) (*models.Department, error)
	FindDepartmentByName(ctx context.Context, schoolID, name string) (*models.Department, error)
	FindProgramByID(ctx context.Context, id string) (*models.Program, error)
	FindProgramByName(ctx context.Context, departmentID, name string) (*models.Program, error)
}

type registrationPropertyRepository interface {
	FindByOwnerEmail(ctx context.Context, email string) (*models.Property, error)
	SearchByName(ctx context.Context, fragment string) (*models.Property, error)
	AdjustOccupancy(ctx context.Context, id string, delta int) error
}

// RegistrationResult reports what the approval flow managed to set up.
// Warnings carry the steps that failed without blocking registration.
type RegistrationResult struct {
	ResponseID       string   `json:"response_id"`
	UserID           string   `json:"user_id"`
	StudentRecordID  string   `json:"student_record_id"`
	StudentNumber    string   `json:"student_number"`
	UserCreated      bool     `json:"user_created"`
	CredentialsEmail bool     `json:"credentials_email"`
	AssignedProperty *string  `json:"assigned_property,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
}

// RegistrationService turns approved survey responses into student accounts.
// The flow is deliberately best-effort: each step that fails is recorded as a
// warning and the remaining steps still run, so a half-provisioned student is
// visible rather than silently lost.
type RegistrationService struct {
	users      registrationUserRepository
	students   registrationStudentRepository
	surveys    registrationSurveyRepository
	schools    registrationSchoolRepository
	properties registrationPropertyRepository
	mail       mailer.Service
	logger     *zap.Logger
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(users registrationUserRepository, students registrationStudentRepository, surveys registrationSurveyRepository, schools registrationSchoolRepository, properties registrationPropertyRepository, mail mailer.Service, logger *zap.Logger) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{users: users, students: students, surveys: surveys, schools: schools, properties: properties, mail: mail, logger: logger}
}

// ApproveAndRegister provisions an account and student profile from a pending
// response, opportunistically links a boarding assignment, emails the (always
// freshly reset) credentials and marks the response registered. The response
// must belong to a survey in the reviewer's school.
func (s *RegistrationService) ApproveAndRegister(ctx context.Context, responseID, reviewerID, schoolID string) (*RegistrationResult, error) {
	resp, err := s.surveys.FindResponseByID(ctx, responseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "response not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load response")
	}
	if resp.IsDeleted() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "response has been deleted")
	}
	if resp.Status == models.ResponseRegistered {
		return nil, appErrors.Clone(appErrors.ErrAlreadyRegistered, "response is already registered")
	}
	if resp.Status == models.ResponseRejected {
		return nil, appErrors.Clone(appErrors.ErrConflict, "response was rejected")
	}

	survey, err := s.surveys.FindByID(ctx, resp.SurveyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load survey")
	}
	if schoolID != "" && survey.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "response not found")
	}

	result := &RegistrationResult{ResponseID: resp.ID}
	extras := resp.Extras()

	user, tempPassword, err := s.ensureUser(ctx, resp, survey, result)
	if err != nil {
		return nil, err
	}
	result.UserID = user.ID

	student := s.ensureStudent(ctx, resp, survey, user, extras, result)
	if student != nil {
		result.StudentRecordID = student.ID
		result.StudentNumber = student.StudentID
	}

	if student != nil {
		s.linkBoarding(ctx, student, extras, result)
	}

	if tempPassword != "" {
		s.sendCredentials(ctx, user, tempPassword, result)
	}

	if err := s.surveys.UpdateResponseStatus(ctx, resp.ID, models.ResponseRegistered, &reviewerID, resp.ReviewNotes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark response registered")
	}
	if student != nil {
		if err := s.surveys.LinkStudentRecord(ctx, resp.ID, student.ID); err != nil {
			result.Warnings = append(result.Warnings, "could not link response to the student record")
			s.logger.Warn("failed to link student record", zap.String("response_id", resp.ID), zap.Error(err))
		}
	}

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &reviewerID,
		Action:     models.AuditActionStudentRegister,
		Resource:   "survey_response",
		ResourceID: &resp.ID,
		NewValues:  []byte(fmt.Sprintf(`{"user_id":%q,"warnings":%d}`, user.ID, len(result.Warnings))),
	}); err != nil {
		s.logger.Warn("failed to record registration audit log", zap.Error(err))
	}

	return result, nil
}

// Reject marks a response rejected with the reviewer's notes. The response
// must belong to a survey in the reviewer's school.
func (s *RegistrationService) Reject(ctx context.Context, responseID, reviewerID, schoolID, notes string) error {
	resp, err := s.surveys.FindResponseByID(ctx, responseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "response not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load response")
	}
	if schoolID != "" {
		survey, err := s.surveys.FindByID(ctx, resp.SurveyID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load survey")
		}
		if survey.SchoolID != schoolID {
			return appErrors.Clone(appErrors.ErrNotFound, "response not found")
		}
	}
	if resp.Status == models.ResponseRegistered {
		return appErrors.Clone(appErrors.ErrConflict, "response is already registered")
	}

	if err := s.surveys.UpdateResponseStatus(ctx, resp.ID, models.ResponseRejected, &reviewerID, notes); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject response")
	}

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &reviewerID,
		Action:     models.AuditActionSurveyReject,
		Resource:   "survey_response",
		ResourceID: &resp.ID,
	}); err != nil {
		s.logger.Warn("failed to record rejection audit log", zap.Error(err))
	}
	return nil
}

// ensureUser fetches or creates the account for the response email. Existing
// accounts get their password overwritten with a fresh temporary one and are
// forced onto a STUDENT profile in the survey's school, matching the intake
// desk's expectation that approving always yields working credentials.
// Administrator emails are refused outright.
func (s *RegistrationService) ensureUser(ctx context.Context, resp *models.SurveyResponse, survey *models.Survey, result *RegistrationResult) (*models.User, string, error) {
	email := strings.ToLower(strings.TrimSpace(resp.StudentEmail))

	tempPassword, err := generateTempPassword()
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		if user.Role == models.RoleSchoolAdmin {
			return nil, "", appErrors.Clone(appErrors.ErrConflict, "email belongs to an administrator account")
		}
		if err := s.users.UpdatePassword(ctx, user.ID, string(hash), time.Now().UTC()); err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset account password")
		}
		user.PasswordHash = string(hash)
		user.Role = models.RoleStudent
		user.SchoolID = &survey.SchoolID
		user.Active = true
		if err := s.users.Update(ctx, user); err != nil {
			result.Warnings = append(result.Warnings, "account role and school could not be updated")
			s.logger.Warn("account update failed", zap.String("user_id", user.ID), zap.Error(err))
		}
		return user, tempPassword, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up account")
	}

	user = &models.User{
		Username:     email,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     resp.StudentName,
		Role:         models.RoleStudent,
		SchoolID:     &survey.SchoolID,
		Phone:        NormalizePhone(resp.StudentPhone),
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}
	result.UserCreated = true
	return user, tempPassword, nil
}

// ensureStudent returns the existing student profile for the account or
// builds one from the response. Failures downgrade to warnings.
func (s *RegistrationService) ensureStudent(ctx context.Context, resp *models.SurveyResponse, survey *models.Survey, user *models.User, extras models.ResponseExtras, result *RegistrationResult) *models.Student {
	if detail, err := s.students.FindByUserID(ctx, user.ID); err == nil {
		return &detail.Student
	} else if !errors.Is(err, sql.ErrNoRows) {
		result.Warnings = append(result.Warnings, "could not check for an existing student profile")
		s.logger.Warn("student lookup failed", zap.String("user_id", user.ID), zap.Error(err))
		return nil
	}

	studentNumber, err := s.resolveStudentNumber(ctx, resp.ProvidedStudentID)
	if err != nil {
		result.Warnings = append(result.Warnings, "could not allocate a student number")
		s.logger.Warn("student number allocation failed", zap.Error(err))
		return nil
	}

	student := &models.Student{
		UserID:    user.ID,
		StudentID: studentNumber,
		SchoolID:  &survey.SchoolID,
		YearLevel: extras.YearLevel,
	}

	if extras.DepartmentID != "" {
		dept, err := s.schools.FindDepartmentByID(ctx, extras.DepartmentID)
		if err != nil {
			dept, err = s.schools.FindDepartmentByName(ctx, survey.SchoolID, extras.DepartmentID)
		}
		if err == nil {
			student.DepartmentID = &dept.ID
			if extras.ProgramID != "" {
				prog, err := s.schools.FindProgramByID(ctx, extras.ProgramID)
				if err != nil {
					prog, err = s.schools.FindProgramByName(ctx, dept.ID, extras.ProgramID)
				}
				if err == nil {
					student.ProgramID = &prog.ID
				} else {
					result.Warnings = append(result.Warnings, "program could not be resolved")
				}
			}
		} else {
			result.Warnings = append(result.Warnings, "department could not be resolved")
		}
	}

	if extras.DateOfBirth != "" {
		if dob, err := time.Parse("2006-01-02", extras.DateOfBirth); err == nil {
			student.DateOfBirth = &dob
		} else {
			result.Warnings = append(result.Warnings, "date of birth was not in YYYY-MM-DD form")
		}
	}
	student.EmergencyContactName = extras.EmergencyContactName
	student.EmergencyContactPhone = NormalizePhone(extras.EmergencyContactPhone)

	if err := s.students.Create(ctx, student); err != nil {
		result.Warnings = append(result.Warnings, "student profile could not be created")
		s.logger.Warn("student create failed", zap.String("user_id", user.ID), zap.Error(err))
		return nil
	}
	return student
}

// linkBoarding tries to attach an active boarding assignment using the
// owner email or property name hints from the response.
func (s *RegistrationService) linkBoarding(ctx context.Context, student *models.Student, extras models.ResponseExtras, result *RegistrationResult) {
	var property *models.Property
	var err error

	switch {
	case extras.PropertyOwnerEmail != "":
		property, err = s.properties.FindByOwnerEmail(ctx, extras.PropertyOwnerEmail)
	case extras.PropertyName != "":
		property, err = s.properties.SearchByName(ctx, extras.PropertyName)
	default:
		return
	}
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("property lookup failed", zap.Error(err))
		}
		result.Warnings = append(result.Warnings, "boarding house could not be matched")
		return
	}

	if _, err := s.students.FindAssignment(ctx, student.ID, property.ID, models.AssignmentActive); err == nil {
		result.AssignedProperty = &property.ID
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		result.Warnings = append(result.Warnings, "could not check existing boarding assignment")
		return
	}

	// A full or unverified property takes the student as pending; only
	// active assignments consume capacity.
	status := models.AssignmentPending
	if property.IsAvailable() {
		status = models.AssignmentActive
	}
	now := time.Now().UTC()
	assignment := &models.BoardingAssignment{
		StudentID:  student.ID,
		PropertyID: property.ID,
		Status:     status,
		StartDate:  &now,
	}
	if err := s.students.CreateAssignment(ctx, assignment); err != nil {
		result.Warnings = append(result.Warnings, "boarding assignment could not be created")
		s.logger.Warn("assignment create failed", zap.Error(err))
		return
	}
	if status == models.AssignmentActive {
		if err := s.properties.AdjustOccupancy(ctx, property.ID, 1); err != nil {
			result.Warnings = append(result.Warnings, "property occupancy was not updated")
			s.logger.Warn("occupancy update failed", zap.Error(err))
		}
	}
	result.AssignedProperty = &property.ID
}

func (s *RegistrationService) sendCredentials(ctx context.Context, user *models.User, tempPassword string, result *RegistrationResult) {
	if s.mail == nil {
		result.Warnings = append(result.Warnings, "mailer is not configured, credentials were not sent")
		return
	}
	mailResult, err := s.mail.Send(ctx, mailer.Message{
		To:      []string{user.Email},
		Subject: "Your Boarding Hub Account",
		Body:    fmt.Sprintf("Hi %s,\n\nYour student account has been created.\n\nUsername: %s\nTemporary password: %s\n\nPlease sign in and change your password.\n", user.FullName, user.Username, tempPassword),
	})
	if err != nil {
		result.Warnings = append(result.Warnings, "credentials email could not be sent")
		s.logger.Warn("credentials email failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	result.CredentialsEmail = true
	if mailResult.UsedFallback {
		result.Warnings = append(result.Warnings, "credentials email was saved to the mail fallback directory")
	}
}

// resolveStudentNumber keeps a provided number or mints an S-XXXXXXXX one,
// retrying on collision.
func (s *RegistrationService) resolveStudentNumber(ctx context.Context, provided string) (string, error) {
	provided = strings.TrimSpace(provided)
	if provided != "" {
		taken, err := s.students.ExistsByStudentID(ctx, provided, "")
		if err != nil {
			return "", err
		}
		if !taken {
			return provided, nil
		}
	}

	for attempt := 0; attempt < 10; attempt++ {
		candidate, err := generateStudentNumber()
		if err != nil {
			return "", err
		}
		taken, err := s.students.ExistsByStudentID(ctx, candidate, "")
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("exhausted student number attempts")
}

func generateStudentNumber() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "S-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}

func generateTempPassword() (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, 8)
	for i, b := range buf {
		out[i] = letters[int(b)%len(letters)]
	}
	return string(out), nil
}
