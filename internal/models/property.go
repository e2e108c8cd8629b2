package models

import "time"

// PropertyStatus is the verification state of a boarding house.
type PropertyStatus string

const (
	PropertyPending   PropertyStatus = "pending"
	PropertyVerified  PropertyStatus = "verified"
	PropertyRejected  PropertyStatus = "rejected"
	PropertySuspended PropertyStatus = "suspended"
)

// Property is a boarding house owned by a PROPERTY_OWNER user and attached to
// a school.
type Property struct {
	ID         string  `db:"id" json:"id"`
	PropertyID string  `db:"property_id" json:"property_id"`
	OwnerID    string  `db:"owner_id" json:"owner_id"`
	SchoolID   string  `db:"school_id" json:"school_id"`
	Name       string  `db:"name" json:"name,omitempty"`
	Address    string  `db:"address" json:"address"`
	City       string  `db:"city" json:"city,omitempty"`
	State      string  `db:"state" json:"state,omitempty"`
	ZipCode    string  `db:"zip_code" json:"zip_code,omitempty"`
	Latitude   *float64 `db:"latitude" json:"latitude,omitempty"`
	Longitude  *float64 `db:"longitude" json:"longitude,omitempty"`

	Description      string   `db:"description" json:"description,omitempty"`
	Capacity         int      `db:"capacity" json:"capacity"`
	CurrentOccupancy int      `db:"current_occupancy" json:"current_occupancy"`
	MonthlyRent      *float64 `db:"monthly_rent" json:"monthly_rent,omitempty"`

	HasWifi     bool `db:"has_wifi" json:"has_wifi"`
	HasKitchen  bool `db:"has_kitchen" json:"has_kitchen"`
	HasLaundry  bool `db:"has_laundry" json:"has_laundry"`
	HasParking  bool `db:"has_parking" json:"has_parking"`
	HasSecurity bool `db:"has_security" json:"has_security"`

	Status       PropertyStatus `db:"status" json:"status"`
	VerifiedAt   *time.Time     `db:"verified_at" json:"verified_at,omitempty"`
	VerifiedBy   *string        `db:"verified_by" json:"verified_by,omitempty"`
	SafetyRating float64        `db:"safety_rating" json:"safety_rating"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsAvailable reports whether the property is verified with free capacity.
func (p *Property) IsAvailable() bool {
	return p.Status == PropertyVerified && p.CurrentOccupancy < p.Capacity
}

// AvailabilityCount returns the remaining capacity, never negative.
func (p *Property) AvailabilityCount() int {
	free := p.Capacity - p.CurrentOccupancy
	if free < 0 {
		return 0
	}
	return free
}

// PropertyFilter captures search parameters for property listings.
type PropertyFilter struct {
	SchoolID  string
	OwnerID   string
	Status    *PropertyStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// PropertyDetail adds owner context to a property row.
type PropertyDetail struct {
	Property
	OwnerName  string `db:"owner_name" json:"owner_name"`
	OwnerEmail string `db:"owner_email" json:"owner_email"`
	OwnerPhone string `db:"owner_phone" json:"owner_phone,omitempty"`
}
