package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/boardinghub/boardinghub-api/internal/models"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UpdateProfileRequest is the self-service profile edit payload. Boarding
// location fields only stick for property owners.
type UpdateProfileRequest struct {
	FullName string `json:"full_name" validate:"required,max=200"`
	Phone    string `json:"phone" validate:"max=20"`

	BoardingRegion   string `json:"boarding_region" validate:"max=100"`
	BoardingProvince string `json:"boarding_province" validate:"max=100"`
	BoardingCity     string `json:"boarding_city" validate:"max=100"`
	BoardingBarangay string `json:"boarding_barangay" validate:"max=100"`
	BoardingAddress  string `json:"boarding_address" validate:"max=300"`
}

// UserService covers account listing and profile management.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns accounts matching the filter.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, total, nil
}

// Get returns one account.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// UpdateProfile applies a profile edit to the caller's own account.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.FullName = strings.TrimSpace(req.FullName)
	if req.Phone != "" {
		user.Phone = NormalizePhone(req.Phone)
	}
	if user.Role == models.RolePropertyOwner {
		user.BoardingRegion = req.BoardingRegion
		user.BoardingProvince = req.BoardingProvince
		user.BoardingCity = req.BoardingCity
		user.BoardingBarangay = req.BoardingBarangay
		user.BoardingAddress = req.BoardingAddress
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	return user, nil
}

// Deactivate disables an account so it can no longer sign in.
func (s *UserService) Deactivate(ctx context.Context, id, actorID string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !user.Active {
		return appErrors.Clone(appErrors.ErrConflict, "user is already deactivated")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate user")
	}
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionUserDeactivate,
		Resource:   "user",
		ResourceID: &id,
	}); err != nil {
		s.logger.Warn("failed to record user deactivation audit log", zap.Error(err))
	}
	return nil
}
