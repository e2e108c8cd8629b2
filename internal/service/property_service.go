package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/boardinghub/boardinghub-api/internal/models"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
)

type propertyRepository interface {
	List(ctx context.Context, filter models.PropertyFilter) ([]models.PropertyDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.PropertyDetail, error)
	FindByPropertyID(ctx context.Context, propertyID string) (*models.Property, error)
	Create(ctx context.Context, property *models.Property) error
	Update(ctx context.Context, property *models.Property) error
	UpdateStatus(ctx context.Context, id string, status models.PropertyStatus, reviewerID *string) error
	AdjustOccupancy(ctx context.Context, id string, delta int) error
}

type propertyAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// PropertyRequest is the payload for creating or editing a listing.
type PropertyRequest struct {
	Name        string   `json:"name" validate:"max=200"`
	Address     string   `json:"address" validate:"required,max=300"`
	City        string   `json:"city" validate:"max=100"`
	State       string   `json:"state" validate:"max=100"`
	ZipCode     string   `json:"zip_code" validate:"max=20"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Description string   `json:"description" validate:"max=2000"`
	Capacity    int      `json:"capacity" validate:"required,min=1"`
	MonthlyRent *float64 `json:"monthly_rent"`
	HasWifi     bool     `json:"has_wifi"`
	HasKitchen  bool     `json:"has_kitchen"`
	HasLaundry  bool     `json:"has_laundry"`
	HasParking  bool     `json:"has_parking"`
	HasSecurity bool     `json:"has_security"`
}

// PropertyService covers listing management and the admin verification flow.
type PropertyService struct {
	repo      propertyRepository
	audits    propertyAuditRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPropertyService constructs a PropertyService.
func NewPropertyService(repo propertyRepository, audits propertyAuditRepository, validate *validator.Validate, logger *zap.Logger) *PropertyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PropertyService{repo: repo, audits: audits, validator: validate, logger: logger}
}

// List returns listings for admin review or owner dashboards.
func (s *PropertyService) List(ctx context.Context, filter models.PropertyFilter) ([]models.PropertyDetail, int, error) {
	properties, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list properties")
	}
	return properties, total, nil
}

// Get returns one listing with owner context.
func (s *PropertyService) Get(ctx context.Context, id string) (*models.PropertyDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "property not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load property")
	}
	return detail, nil
}

// Create registers a new listing for the owner. New listings start pending
// until an admin verifies them.
func (s *PropertyService) Create(ctx context.Context, ownerID, schoolID string, req PropertyRequest) (*models.Property, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid property payload")
	}

	code, err := s.generatePropertyCode(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate property code")
	}

	property := &models.Property{
		PropertyID:  code,
		OwnerID:     ownerID,
		SchoolID:    schoolID,
		Name:        req.Name,
		Address:     req.Address,
		City:        req.City,
		State:       req.State,
		ZipCode:     req.ZipCode,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Description: req.Description,
		Capacity:    req.Capacity,
		MonthlyRent: req.MonthlyRent,
		HasWifi:     req.HasWifi,
		HasKitchen:  req.HasKitchen,
		HasLaundry:  req.HasLaundry,
		HasParking:  req.HasParking,
		HasSecurity: req.HasSecurity,
		Status:      models.PropertyPending,
	}
	if err := s.repo.Create(ctx, property); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create property")
	}
	return property, nil
}

// Update edits a listing. Owners may only touch their own listings; capacity
// cannot drop below the current occupancy.
func (s *PropertyService) Update(ctx context.Context, id, actorID string, actorRole models.UserRole, req PropertyRequest) (*models.Property, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid property payload")
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleSchoolAdmin && detail.OwnerID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the owner of this property")
	}
	if req.Capacity < detail.CurrentOccupancy {
		return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "capacity cannot be lower than current occupancy")
	}

	property := detail.Property
	property.Name = req.Name
	property.Address = req.Address
	property.City = req.City
	property.State = req.State
	property.ZipCode = req.ZipCode
	property.Latitude = req.Latitude
	property.Longitude = req.Longitude
	property.Description = req.Description
	property.Capacity = req.Capacity
	property.MonthlyRent = req.MonthlyRent
	property.HasWifi = req.HasWifi
	property.HasKitchen = req.HasKitchen
	property.HasLaundry = req.HasLaundry
	property.HasParking = req.HasParking
	property.HasSecurity = req.HasSecurity

	if err := s.repo.Update(ctx, &property); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update property")
	}
	return &property, nil
}

// Verify approves a pending listing.
func (s *PropertyService) Verify(ctx context.Context, id string, reviewerID string) error {
	return s.transition(ctx, id, models.PropertyVerified, reviewerID)
}

// Reject declines a pending listing.
func (s *PropertyService) Reject(ctx context.Context, id string, reviewerID string) error {
	return s.transition(ctx, id, models.PropertyRejected, reviewerID)
}

// Suspend takes a verified listing out of circulation.
func (s *PropertyService) Suspend(ctx context.Context, id string, reviewerID string) error {
	return s.transition(ctx, id, models.PropertySuspended, reviewerID)
}

func (s *PropertyService) transition(ctx context.Context, id string, status models.PropertyStatus, reviewerID string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, id, status, &reviewerID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change property status")
	}
	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &reviewerID,
		Action:     models.AuditActionPropertyVerify,
		Resource:   "property",
		ResourceID: &id,
		NewValues:  []byte(fmt.Sprintf(`{"status":%q}`, status)),
	}); err != nil {
		s.logger.Warn("failed to record property status audit log", zap.Error(err))
	}
	return nil
}

func (s *PropertyService) generatePropertyCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		buf := make([]byte, 3)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		code := "P-" + strings.ToUpper(hex.EncodeToString(buf))
		if _, err := s.repo.FindByPropertyID(ctx, code); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return code, nil
			}
			return "", err
		}
	}
	return "", fmt.Errorf("exhausted property code attempts")
}
