package models

import "time"

// RoomType enumerates the supported room layouts.
type RoomType string

const (
	RoomSingle    RoomType = "single"
	RoomDouble    RoomType = "double"
	RoomTwin      RoomType = "twin"
	RoomDeluxe    RoomType = "deluxe"
	RoomFamily    RoomType = "family"
	RoomApartment RoomType = "apartment"
)

// Room belongs to a property. Names are unique per property; the boarding key
// is globally unique and stored uppercase. Deletion is a soft flag so trashed
// rooms can be restored by their owner.
type Room struct {
	ID          string   `db:"id" json:"id"`
	PropertyID  string   `db:"property_id" json:"property_id"`
	Name        string   `db:"name" json:"name"`
	RoomType    RoomType `db:"room_type" json:"room_type"`
	Capacity    int      `db:"capacity" json:"capacity"`
	MonthlyRate *float64 `db:"monthly_rate" json:"monthly_rate,omitempty"`
	Description string   `db:"description" json:"description,omitempty"`
	Available   bool     `db:"available" json:"available"`
	BoardingKey *string  `db:"boarding_key" json:"boarding_key,omitempty"`
	Trashed     bool     `db:"trashed" json:"trashed"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RoomImage is a stored image reference for a room.
type RoomImage struct {
	ID           string    `db:"id" json:"id"`
	RoomID       string    `db:"room_id" json:"room_id"`
	URL          string    `db:"url" json:"url"`
	DisplayOrder int       `db:"display_order" json:"display_order"`
	UploadedAt   time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// BoardingKeyResult is the payload returned for a boarding key lookup.
type BoardingKeyResult struct {
	Room     Room     `json:"room"`
	Images   []string `json:"images"`
	Property struct {
		Address string `json:"address"`
		City    string `json:"city"`
		State   string `json:"state"`
		ZipCode string `json:"zip_code"`
	} `json:"property"`
	Owner struct {
		ID       string `json:"id"`
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
	} `json:"owner"`
}
