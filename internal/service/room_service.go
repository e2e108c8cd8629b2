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

type roomRepository interface {
	ListByProperty(ctx context.Context, propertyID string, includeTrashed bool) ([]models.Room, error)
	FindByID(ctx context.Context, id string) (*models.Room, error)
	FindByBoardingKey(ctx context.Context, key string) (*models.Room, error)
	ExistsByName(ctx context.Context, propertyID, name string, excludeID string) (bool, error)
	ExistsByBoardingKey(ctx context.Context, key string) (bool, error)
	Create(ctx context.Context, room *models.Room) error
	Update(ctx context.Context, room *models.Room) error
	SetTrashed(ctx context.Context, id string, trashed bool) error
	ListImages(ctx context.Context, roomID string) ([]models.RoomImage, error)
	AddImage(ctx context.Context, image *models.RoomImage) error
	RemoveImage(ctx context.Context, id string) error
}

type roomPropertyRepository interface {
	FindByID(ctx context.Context, id string) (*models.PropertyDetail, error)
}

// RoomRequest is the payload for creating or editing a room.
type RoomRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	RoomType    string   `json:"room_type" validate:"required"`
	Capacity    int      `json:"capacity" validate:"required,min=1"`
	MonthlyRate *float64 `json:"monthly_rate"`
	Description string   `json:"description" validate:"max=1000"`
	Available   *bool    `json:"available"`
}

// RoomService manages room inventory under a property. Every room gets a
// shareable boarding key; students use it to look up the room without an
// account.
type RoomService struct {
	rooms      roomRepository
	properties roomPropertyRepository
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewRoomService constructs a RoomService.
func NewRoomService(rooms roomRepository, properties roomPropertyRepository, validate *validator.Validate, logger *zap.Logger) *RoomService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RoomService{rooms: rooms, properties: properties, validator: validate, logger: logger}
}

// List returns the rooms of a property. Owners see their trashed rooms too.
func (s *RoomService) List(ctx context.Context, propertyID, actorID string, actorRole models.UserRole) ([]models.Room, error) {
	property, err := s.loadProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	isOwner := property.OwnerID == actorID
	if actorRole != models.RoleSchoolAdmin && !isOwner && actorRole != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no access to this property")
	}
	includeTrashed := isOwner || actorRole == models.RoleSchoolAdmin
	rooms, err := s.rooms.ListByProperty(ctx, propertyID, includeTrashed)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}
	return rooms, nil
}

// Create adds a room to the owner's property and issues its boarding key.
// Room names must be unique within the property.
func (s *RoomService) Create(ctx context.Context, propertyID, actorID string, actorRole models.UserRole, req RoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}
	property, err := s.loadProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleSchoolAdmin && property.OwnerID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the owner of this property")
	}

	taken, err := s.rooms.ExistsByName(ctx, propertyID, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a room with this name already exists")
	}

	key, err := s.generateBoardingKey(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate boarding key")
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}
	room := &models.Room{
		PropertyID:  propertyID,
		Name:        req.Name,
		RoomType:    models.RoomType(req.RoomType),
		Capacity:    req.Capacity,
		MonthlyRate: req.MonthlyRate,
		Description: req.Description,
		Available:   available,
		BoardingKey: &key,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create room")
	}
	return room, nil
}

// Update edits a room's details. The boarding key never changes here.
func (s *RoomService) Update(ctx context.Context, roomID, actorID string, actorRole models.UserRole, req RoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}
	room, err := s.authorize(ctx, roomID, actorID, actorRole)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(room.Name, req.Name) {
		taken, err := s.rooms.ExistsByName(ctx, room.PropertyID, req.Name, room.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room name")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a room with this name already exists")
		}
	}

	room.Name = req.Name
	room.RoomType = models.RoomType(req.RoomType)
	room.Capacity = req.Capacity
	room.MonthlyRate = req.MonthlyRate
	room.Description = req.Description
	if req.Available != nil {
		room.Available = *req.Available
	}
	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update room")
	}
	return room, nil
}

// Trash soft-deletes a room. The boarding key stops resolving until restore.
func (s *RoomService) Trash(ctx context.Context, roomID, actorID string, actorRole models.UserRole) error {
	if _, err := s.authorize(ctx, roomID, actorID, actorRole); err != nil {
		return err
	}
	if err := s.rooms.SetTrashed(ctx, roomID, true); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to trash room")
	}
	return nil
}

// Restore brings a trashed room back.
func (s *RoomService) Restore(ctx context.Context, roomID, actorID string, actorRole models.UserRole) error {
	if _, err := s.authorize(ctx, roomID, actorID, actorRole); err != nil {
		return err
	}
	if err := s.rooms.SetTrashed(ctx, roomID, false); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore room")
	}
	return nil
}

// LookupBoardingKey resolves a shared boarding key into a room summary with
// the property address and the owner's contact details. Keys of trashed rooms
// do not resolve.
func (s *RoomService) LookupBoardingKey(ctx context.Context, key string) (*models.BoardingKeyResult, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidBoardingKey, "boarding key is required")
	}
	room, err := s.rooms.FindByBoardingKey(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidBoardingKey
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve boarding key")
	}
	property, err := s.loadProperty(ctx, room.PropertyID)
	if err != nil {
		return nil, err
	}

	result := &models.BoardingKeyResult{Room: *room}
	result.Property.Address = property.Address
	result.Property.City = property.City
	result.Property.State = property.State
	result.Property.ZipCode = property.ZipCode
	result.Owner.ID = property.OwnerID
	result.Owner.FullName = property.OwnerName
	result.Owner.Email = property.OwnerEmail
	result.Owner.Phone = property.OwnerPhone

	images, err := s.rooms.ListImages(ctx, room.ID)
	if err != nil {
		s.logger.Warn("failed to list room images", zap.String("room_id", room.ID), zap.Error(err))
	}
	for _, img := range images {
		result.Images = append(result.Images, img.URL)
	}
	return result, nil
}

// AddImage attaches an image reference to a room.
func (s *RoomService) AddImage(ctx context.Context, roomID, actorID string, actorRole models.UserRole, url string, order int) (*models.RoomImage, error) {
	if strings.TrimSpace(url) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "image url is required")
	}
	if _, err := s.authorize(ctx, roomID, actorID, actorRole); err != nil {
		return nil, err
	}
	image := &models.RoomImage{RoomID: roomID, URL: url, DisplayOrder: order}
	if err := s.rooms.AddImage(ctx, image); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add room image")
	}
	return image, nil
}

// RemoveImage detaches an image from a room.
func (s *RoomService) RemoveImage(ctx context.Context, roomID, imageID, actorID string, actorRole models.UserRole) error {
	if _, err := s.authorize(ctx, roomID, actorID, actorRole); err != nil {
		return err
	}
	if err := s.rooms.RemoveImage(ctx, imageID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove room image")
	}
	return nil
}

// authorize loads a room and checks the actor owns its property.
func (s *RoomService) authorize(ctx context.Context, roomID, actorID string, actorRole models.UserRole) (*models.Room, error) {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	if actorRole == models.RoleSchoolAdmin {
		return room, nil
	}
	property, err := s.loadProperty(ctx, room.PropertyID)
	if err != nil {
		return nil, err
	}
	if property.OwnerID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the owner of this property")
	}
	return room, nil
}

func (s *RoomService) loadProperty(ctx context.Context, propertyID string) (*models.PropertyDetail, error) {
	property, err := s.properties.FindByID(ctx, propertyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "property not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load property")
	}
	return property, nil
}

// generateBoardingKey allocates a fresh BH-XXXXXX key, retrying on the rare
// collision.
func (s *RoomService) generateBoardingKey(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		buf := make([]byte, 3)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		key := "BH-" + strings.ToUpper(hex.EncodeToString(buf))
		exists, err := s.rooms.ExistsByBoardingKey(ctx, key)
		if err != nil {
			return "", err
		}
		if !exists {
			return key, nil
		}
	}
	return "", fmt.Errorf("exhausted boarding key attempts")
}
