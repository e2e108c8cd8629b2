package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/boardinghub/boardinghub-api/internal/models"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
)

type trashRepository interface {
	Create(ctx context.Context, entry *models.TrashLog) error
	FindByID(ctx context.Context, id string) (*models.TrashLog, error)
	List(ctx context.Context, filter models.TrashFilter) ([]models.TrashLog, int, error)
	ListOpenBySchool(ctx context.Context, schoolID string) ([]models.TrashLog, error)
	ListExpired(ctx context.Context, now time.Time) ([]models.TrashLog, error)
	MarkRestored(ctx context.Context, id string, ts time.Time) error
	MarkPurged(ctx context.Context, id string) error
}

type trashUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	HardDelete(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type trashStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	Create(ctx context.Context, student *models.Student) error
	HardDelete(ctx context.Context, id string) error
}

type trashPropertyRepository interface {
	FindByID(ctx context.Context, id string) (*models.PropertyDetail, error)
	Create(ctx context.Context, property *models.Property) error
	HardDelete(ctx context.Context, id string) error
}

type trashSurveyRepository interface {
	FindByID(ctx context.Context, id string) (*models.Survey, error)
	SetStatus(ctx context.Context, id string, status models.SurveyStatus) error
	CountResponses(ctx context.Context, surveyID string) (int, error)
	FindResponseByID(ctx context.Context, id string) (*models.SurveyResponse, error)
	SetResponseDeleted(ctx context.Context, id string, deletedAt *time.Time) error
	HardDeleteResponse(ctx context.Context, id string) error
}

// TrashService moves records into the trash, restores them and purges entries
// past their retention deadline. Deleting closes or removes the record while
// keeping a typed snapshot in the trash log for the retention window.
type TrashService struct {
	trash      trashRepository
	users      trashUserRepository
	students   trashStudentRepository
	properties trashPropertyRepository
	surveys    trashSurveyRepository
	retention  time.Duration
	logger     *zap.Logger
}

// NewTrashService constructs a TrashService. retentionDays bounds how long
// trashed records stay restorable.
func NewTrashService(trash trashRepository, users trashUserRepository, students trashStudentRepository, properties trashPropertyRepository, surveys trashSurveyRepository, retentionDays int, logger *zap.Logger) *TrashService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &TrashService{
		trash:      trash,
		users:      users,
		students:   students,
		properties: properties,
		surveys:    surveys,
		retention:  time.Duration(retentionDays) * 24 * time.Hour,
		logger:     logger,
	}
}

// List returns open trash entries for a school.
func (s *TrashService) List(ctx context.Context, filter models.TrashFilter) ([]models.TrashLog, int, error) {
	entries, total, err := s.trash.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trash")
	}
	return entries, total, nil
}

// DeleteSurvey closes a survey and records it in the trash. The survey row
// survives so responses keep their parent; restore reopens it.
func (s *TrashService) DeleteSurvey(ctx context.Context, surveyID, schoolID string, deletedBy *string) (*models.TrashLog, error) {
	survey, err := s.surveys.FindByID(ctx, surveyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "survey not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load survey")
	}
	if schoolID != "" && survey.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "survey not found")
	}

	count, err := s.surveys.CountResponses(ctx, surveyID)
	if err != nil {
		s.logger.Warn("failed to count responses for trash snapshot", zap.Error(err))
	}
	snapshot, err := models.EncodeSnapshot(models.SurveySnapshot{
		SurveyID:       survey.ID,
		Title:          survey.Title,
		PreviousStatus: survey.Status,
		ResponseCount:  count,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to snapshot survey")
	}

	if err := s.surveys.SetStatus(ctx, surveyID, models.SurveyClosed); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close survey")
	}

	return s.record(ctx, schoolID, models.TrashSurvey, survey.ID, survey.Title, snapshot, deletedBy)
}

// DeleteStudent removes a student profile together with its account, keeping
// a combined snapshot so restore can rebuild both.
func (s *TrashService) DeleteStudent(ctx context.Context, studentID, schoolID string, deletedBy *string) (*models.TrashLog, error) {
	detail, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	user, err := s.users.FindByID(ctx, detail.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	snapshot, err := models.EncodeSnapshot(models.StudentSnapshot{
		User:                  userSnapshot(user),
		StudentID:             detail.StudentID,
		DepartmentID:          detail.DepartmentID,
		ProgramID:             detail.ProgramID,
		YearLevel:             detail.YearLevel,
		DateOfBirth:           detail.DateOfBirth,
		EmergencyContactName:  detail.EmergencyContactName,
		EmergencyContactPhone: detail.EmergencyContactPhone,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to snapshot student")
	}

	if err := s.students.HardDelete(ctx, detail.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	if err := s.users.HardDelete(ctx, user.ID); err != nil {
		s.logger.Warn("student deleted but account removal failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	return s.record(ctx, schoolID, models.TrashStudent, detail.ID, detail.FullName, snapshot, deletedBy)
}

// DeleteUser removes an account, keeping a snapshot for restore.
func (s *TrashService) DeleteUser(ctx context.Context, userID, schoolID string, deletedBy *string) (*models.TrashLog, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	snapshot, err := models.EncodeSnapshot(userSnapshot(user))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to snapshot user")
	}

	if err := s.users.HardDelete(ctx, user.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	return s.record(ctx, schoolID, models.TrashUser, user.ID, user.FullName, snapshot, deletedBy)
}

// DeleteProperty removes a listing, keeping a snapshot for restore.
func (s *TrashService) DeleteProperty(ctx context.Context, propertyID, schoolID string, deletedBy *string) (*models.TrashLog, error) {
	detail, err := s.properties.FindByID(ctx, propertyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "property not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load property")
	}

	snapshot, err := models.EncodeSnapshot(models.PropertySnapshot{
		PropertyID:  detail.PropertyID,
		OwnerID:     detail.OwnerID,
		Name:        detail.Name,
		Address:     detail.Address,
		City:        detail.City,
		Capacity:    detail.Capacity,
		MonthlyRent: detail.MonthlyRent,
		Status:      detail.Status,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to snapshot property")
	}

	if err := s.properties.HardDelete(ctx, detail.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete property")
	}

	name := detail.Name
	if name == "" {
		name = detail.Address
	}
	return s.record(ctx, schoolID, models.TrashProperty, detail.ID, name, snapshot, deletedBy)
}

// DeleteResponse soft-deletes a survey response. The row keeps its answers;
// only the deleted_at marker hides it.
func (s *TrashService) DeleteResponse(ctx context.Context, responseID, schoolID string, deletedBy *string) (*models.TrashLog, error) {
	resp, err := s.surveys.FindResponseByID(ctx, responseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "response not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load response")
	}
	if resp.IsDeleted() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "response is already in trash")
	}

	snapshot, err := models.EncodeSnapshot(models.ResponseSnapshot{
		ResponseID:   resp.ID,
		SurveyID:     resp.SurveyID,
		StudentName:  resp.StudentName,
		StudentEmail: resp.StudentEmail,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to snapshot response")
	}

	now := time.Now().UTC()
	if err := s.surveys.SetResponseDeleted(ctx, resp.ID, &now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete response")
	}

	return s.record(ctx, schoolID, models.TrashResponse, resp.ID, resp.StudentName, snapshot, deletedBy)
}

// Restore brings a trashed record back. The entry is always marked restored;
// when the underlying record cannot be rebuilt the result carries a warning
// and Rebuilt is false, so the operator sees what needs manual repair.
func (s *TrashService) Restore(ctx context.Context, entryID string, restoredBy *string) (*models.RestoreResult, error) {
	entry, err := s.trash.FindByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "trash entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trash entry")
	}
	if entry.IsPermanentlyDeleted {
		return nil, appErrors.Clone(appErrors.ErrTrashUnrestorable, "entry has been permanently deleted")
	}
	if entry.RestoredAt != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "entry was already restored")
	}

	result := s.rebuild(ctx, entry)

	if err := s.trash.MarkRestored(ctx, entry.ID, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark entry restored")
	}

	if restoredBy != nil {
		if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     restoredBy,
			Action:     models.AuditActionTrashRestore,
			Resource:   string(entry.ItemType),
			ResourceID: &entry.ItemID,
		}); err != nil {
			s.logger.Warn("failed to record restore audit log", zap.Error(err))
		}
	}
	return result, nil
}

// RestoreAll restores every open entry for a school, collecting per-entry
// outcomes.
func (s *TrashService) RestoreAll(ctx context.Context, schoolID string, restoredBy *string) (*models.BulkTrashResult, error) {
	entries, err := s.trash.ListOpenBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trash")
	}

	bulk := &models.BulkTrashResult{}
	for i := range entries {
		entry := &entries[i]
		bulk.Processed++
		result := s.rebuild(ctx, entry)
		if err := s.trash.MarkRestored(ctx, entry.ID, time.Now().UTC()); err != nil {
			s.logger.Warn("failed to mark entry restored", zap.String("entry_id", entry.ID), zap.Error(err))
			continue
		}
		if result.Rebuilt {
			bulk.Succeeded++
		}
		bulk.Results = append(bulk.Results, *result)
	}
	return bulk, nil
}

// Purge permanently deletes a single trash entry before its deadline.
func (s *TrashService) Purge(ctx context.Context, entryID string, purgedBy *string) error {
	entry, err := s.trash.FindByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "trash entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trash entry")
	}
	if entry.IsPermanentlyDeleted {
		return nil
	}

	s.purgeEntry(ctx, entry)

	if purgedBy != nil {
		if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     purgedBy,
			Action:     models.AuditActionTrashPurge,
			Resource:   string(entry.ItemType),
			ResourceID: &entry.ItemID,
		}); err != nil {
			s.logger.Warn("failed to record purge audit log", zap.Error(err))
		}
	}
	return nil
}

// PurgeAll permanently deletes every open entry for a school.
func (s *TrashService) PurgeAll(ctx context.Context, schoolID string, purgedBy *string) (*models.BulkTrashResult, error) {
	entries, err := s.trash.ListOpenBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trash")
	}
	bulk := &models.BulkTrashResult{}
	for i := range entries {
		bulk.Processed++
		s.purgeEntry(ctx, &entries[i])
		bulk.Succeeded++
	}
	return bulk, nil
}

// PurgeExpired removes entries past their retention deadline. Run from a
// background ticker.
func (s *TrashService) PurgeExpired(ctx context.Context) (int, error) {
	entries, err := s.trash.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("list expired trash: %w", err)
	}
	for i := range entries {
		s.purgeEntry(ctx, &entries[i])
	}
	return len(entries), nil
}

// rebuild reconstructs the underlying record from the entry's typed snapshot.
func (s *TrashService) rebuild(ctx context.Context, entry *models.TrashLog) *models.RestoreResult {
	result := &models.RestoreResult{
		EntryID:  entry.ID,
		ItemType: string(entry.ItemType),
		ItemName: entry.ItemName,
	}

	var err error
	switch entry.ItemType {
	case models.TrashSurvey:
		err = s.rebuildSurvey(ctx, entry)
	case models.TrashResponse:
		err = s.surveys.SetResponseDeleted(ctx, entry.ItemID, nil)
	case models.TrashUser:
		err = s.rebuildUser(ctx, entry)
	case models.TrashStudent:
		err = s.rebuildStudent(ctx, entry)
	case models.TrashProperty:
		err = s.rebuildProperty(ctx, entry)
	default:
		err = fmt.Errorf("unknown trash item type %q", entry.ItemType)
	}

	if err != nil {
		result.Warning = err.Error()
		s.logger.Warn("trash restore could not rebuild record",
			zap.String("entry_id", entry.ID),
			zap.String("item_type", string(entry.ItemType)),
			zap.Error(err))
		return result
	}
	result.Rebuilt = true
	return result
}

func (s *TrashService) rebuildSurvey(ctx context.Context, entry *models.TrashLog) error {
	var snapshot models.SurveySnapshot
	if err := entry.DecodeSnapshot(&snapshot); err != nil {
		return err
	}
	status := snapshot.PreviousStatus
	if status == "" || status == models.SurveyClosed {
		status = models.SurveyActive
	}
	return s.surveys.SetStatus(ctx, entry.ItemID, status)
}

func (s *TrashService) rebuildUser(ctx context.Context, entry *models.TrashLog) error {
	var snapshot models.UserSnapshot
	if err := entry.DecodeSnapshot(&snapshot); err != nil {
		return err
	}
	return s.createUserFromSnapshot(ctx, entry.ItemID, snapshot)
}

func (s *TrashService) rebuildStudent(ctx context.Context, entry *models.TrashLog) error {
	var snapshot models.StudentSnapshot
	if err := entry.DecodeSnapshot(&snapshot); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, snapshot.User.Email)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("look up account: %w", err)
		}
		if err := s.createUserFromSnapshot(ctx, "", snapshot.User); err != nil {
			return err
		}
		user, err = s.users.FindByEmail(ctx, snapshot.User.Email)
		if err != nil {
			return fmt.Errorf("reload restored account: %w", err)
		}
	}

	student := &models.Student{
		ID:                    entry.ItemID,
		UserID:                user.ID,
		StudentID:             snapshot.StudentID,
		SchoolID:              snapshot.User.SchoolID,
		DepartmentID:          snapshot.DepartmentID,
		ProgramID:             snapshot.ProgramID,
		YearLevel:             snapshot.YearLevel,
		DateOfBirth:           snapshot.DateOfBirth,
		EmergencyContactName:  snapshot.EmergencyContactName,
		EmergencyContactPhone: snapshot.EmergencyContactPhone,
	}
	if err := s.students.Create(ctx, student); err != nil {
		return fmt.Errorf("recreate student: %w", err)
	}
	return nil
}

func (s *TrashService) rebuildProperty(ctx context.Context, entry *models.TrashLog) error {
	var snapshot models.PropertySnapshot
	if err := entry.DecodeSnapshot(&snapshot); err != nil {
		return err
	}
	property := &models.Property{
		ID:          entry.ItemID,
		PropertyID:  snapshot.PropertyID,
		OwnerID:     snapshot.OwnerID,
		SchoolID:    entry.SchoolID,
		Name:        snapshot.Name,
		Address:     snapshot.Address,
		City:        snapshot.City,
		Capacity:    snapshot.Capacity,
		MonthlyRent: snapshot.MonthlyRent,
		Status:      snapshot.Status,
	}
	if err := s.properties.Create(ctx, property); err != nil {
		return fmt.Errorf("recreate property: %w", err)
	}
	return nil
}

func (s *TrashService) createUserFromSnapshot(ctx context.Context, id string, snapshot models.UserSnapshot) error {
	user := &models.User{
		ID:           id,
		Username:     snapshot.Username,
		Email:        snapshot.Email,
		PasswordHash: snapshot.PasswordHash,
		FullName:     snapshot.FullName,
		Role:         snapshot.Role,
		SchoolID:     snapshot.SchoolID,
		Phone:        snapshot.Phone,
		IsOutsider:   snapshot.IsOutsider,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return fmt.Errorf("recreate account: %w", err)
	}
	return nil
}

// purgeEntry finalizes a single entry. Responses are the only type whose row
// still exists at purge time; the other types were hard-deleted on trashing.
func (s *TrashService) purgeEntry(ctx context.Context, entry *models.TrashLog) {
	if entry.ItemType == models.TrashResponse {
		if err := s.surveys.HardDeleteResponse(ctx, entry.ItemID); err != nil {
			s.logger.Warn("failed to hard delete response during purge",
				zap.String("entry_id", entry.ID), zap.Error(err))
		}
	}
	if err := s.trash.MarkPurged(ctx, entry.ID); err != nil {
		s.logger.Warn("failed to mark trash entry purged",
			zap.String("entry_id", entry.ID), zap.Error(err))
	}
}

func (s *TrashService) record(ctx context.Context, schoolID string, itemType models.TrashItemType, itemID, itemName string, snapshot []byte, deletedBy *string) (*models.TrashLog, error) {
	now := time.Now().UTC()
	entry := &models.TrashLog{
		SchoolID:          schoolID,
		ItemType:          itemType,
		ItemID:            itemID,
		ItemName:          itemName,
		ItemData:          snapshot,
		DeletedBy:         deletedBy,
		DeletedAt:         now,
		PermanentDeleteAt: now.Add(s.retention),
	}
	if err := s.trash.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record trash entry")
	}

	if deletedBy != nil {
		if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     deletedBy,
			Action:     models.AuditActionTrashDelete,
			Resource:   string(itemType),
			ResourceID: &itemID,
		}); err != nil {
			s.logger.Warn("failed to record trash audit log", zap.Error(err))
		}
	}
	return entry, nil
}

func userSnapshot(user *models.User) models.UserSnapshot {
	return models.UserSnapshot{
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		FullName:     user.FullName,
		Role:         user.Role,
		SchoolID:     user.SchoolID,
		Phone:        user.Phone,
		IsOutsider:   user.IsOutsider,
	}
}
