package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/boardinghub/boardinghub-api/internal/models"
)

const roomColumns = `id, property_id, name, room_type, capacity, monthly_rate, description, available, boarding_key, trashed, created_at, updated_at`

// RoomRepository manages persistence for rooms and their images.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs a RoomRepository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// ListByProperty returns rooms for a property. Trashed rooms are excluded
// unless includeTrashed is set.
func (r *RoomRepository) ListByProperty(ctx context.Context, propertyID string, includeTrashed bool) ([]models.Room, error) {
	query := fmt.Sprintf(`SELECT %s FROM rooms WHERE property_id = $1`, roomColumns)
	if !includeTrashed {
		query += " AND trashed = FALSE"
	}
	query += " ORDER BY name"
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, propertyID); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// FindByID fetches a room by identifier.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	query := fmt.Sprintf(`SELECT %s FROM rooms WHERE id = $1 LIMIT 1`, roomColumns)
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find room by id: %w", err)
	}
	return &room, nil
}

// FindByBoardingKey fetches a non-trashed room by its boarding key. Keys are
// stored uppercase.
func (r *RoomRepository) FindByBoardingKey(ctx context.Context, key string) (*models.Room, error) {
	query := fmt.Sprintf(`SELECT %s FROM rooms WHERE boarding_key = $1 AND trashed = FALSE LIMIT 1`, roomColumns)
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, strings.ToUpper(key)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find room by boarding key: %w", err)
	}
	return &room, nil
}

// ExistsByName checks if a room name is taken within a property, optionally
// excluding an existing row.
func (r *RoomRepository) ExistsByName(ctx context.Context, propertyID, name string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM rooms WHERE property_id = $1 AND LOWER(name) = LOWER($2)"
	args := []interface{}{propertyID, name}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check room name: %w", err)
	}
	return true, nil
}

// ExistsByBoardingKey checks whether any room already holds the given key.
func (r *RoomRepository) ExistsByBoardingKey(ctx context.Context, key string) (bool, error) {
	const query = `SELECT 1 FROM rooms WHERE boarding_key = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, strings.ToUpper(key)); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check boarding key: %w", err)
	}
	return true, nil
}

// Create inserts a new room.
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now
	const query = `INSERT INTO rooms (id, property_id, name, room_type, capacity, monthly_rate, description, available, boarding_key, trashed, created_at, updated_at)
        VALUES (:id, :property_id, :name, :room_type, :capacity, :monthly_rate, :description, :available, :boarding_key, :trashed, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

// Update modifies mutable room fields.
func (r *RoomRepository) Update(ctx context.Context, room *models.Room) error {
	room.UpdatedAt = time.Now().UTC()
	const query = `UPDATE rooms SET name = :name, room_type = :room_type, capacity = :capacity, monthly_rate = :monthly_rate, description = :description, available = :available, boarding_key = :boarding_key, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	return nil
}

// SetTrashed flips the room's soft-delete flag.
func (r *RoomRepository) SetTrashed(ctx context.Context, id string, trashed bool) error {
	const query = `UPDATE rooms SET trashed = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, trashed, time.Now().UTC()); err != nil {
		return fmt.Errorf("set room trashed: %w", err)
	}
	return nil
}

// HardDelete removes a room row and its images.
func (r *RoomRepository) HardDelete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM room_images WHERE room_id = $1`, id); err != nil {
		return fmt.Errorf("delete room images: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("hard delete room: %w", err)
	}
	return nil
}

// ListImages returns a room's images in display order.
func (r *RoomRepository) ListImages(ctx context.Context, roomID string) ([]models.RoomImage, error) {
	const query = `SELECT id, room_id, url, display_order, uploaded_at FROM room_images WHERE room_id = $1 ORDER BY display_order`
	var images []models.RoomImage
	if err := r.db.SelectContext(ctx, &images, query, roomID); err != nil {
		return nil, fmt.Errorf("list room images: %w", err)
	}
	return images, nil
}

// AddImage stores an image reference for a room.
func (r *RoomRepository) AddImage(ctx context.Context, image *models.RoomImage) error {
	if image.ID == "" {
		image.ID = uuid.NewString()
	}
	if image.UploadedAt.IsZero() {
		image.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO room_images (id, room_id, url, display_order, uploaded_at) VALUES (:id, :room_id, :url, :display_order, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, image); err != nil {
		return fmt.Errorf("add room image: %w", err)
	}
	return nil
}

// RemoveImage deletes one image reference.
func (r *RoomRepository) RemoveImage(ctx context.Context, id string) error {
	const query = `DELETE FROM room_images WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("remove room image: %w", err)
	}
	return nil
}
