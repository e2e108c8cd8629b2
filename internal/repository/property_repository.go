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

const propertyColumns = `id, property_id, owner_id, school_id, name, address, city, state, zip_code, latitude, longitude, description, capacity, current_occupancy, monthly_rent, has_wifi, has_kitchen, has_laundry, has_parking, has_security, status, verified_at, verified_by, safety_rating, created_at, updated_at`

// PropertyRepository manages persistence for boarding house listings.
type PropertyRepository struct {
	db *sqlx.DB
}

// NewPropertyRepository constructs a PropertyRepository.
func NewPropertyRepository(db *sqlx.DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

// List returns property details matching the provided filters.
func (r *PropertyRepository) List(ctx context.Context, filter models.PropertyFilter) ([]models.PropertyDetail, int, error) {
	base := `FROM properties pr JOIN users u ON u.id = pr.owner_id`
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("pr.school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.OwnerID != "" {
		conditions = append(conditions, fmt.Sprintf("pr.owner_id = $%d", len(args)+1))
		args = append(args, filter.OwnerID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("pr.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(pr.name) LIKE $%d OR LOWER(pr.address) LIKE $%d OR LOWER(u.full_name) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":          "pr.name",
		"monthly_rent":  "pr.monthly_rent",
		"safety_rating": "pr.safety_rating",
		"created_at":    "pr.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "pr.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	cols := prefixColumns("pr", propertyColumns)
	query := fmt.Sprintf("SELECT %s, u.full_name AS owner_name, u.email AS owner_email, u.phone AS owner_phone %s ORDER BY %s %s LIMIT %d OFFSET %d", cols, base, column, order, size, offset)

	var properties []models.PropertyDetail
	if err := r.db.SelectContext(ctx, &properties, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list properties: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count properties: %w", err)
	}
	return properties, total, nil
}

// FindByID fetches a property detail by identifier.
func (r *PropertyRepository) FindByID(ctx context.Context, id string) (*models.PropertyDetail, error) {
	query := fmt.Sprintf(`SELECT %s, u.full_name AS owner_name, u.email AS owner_email, u.phone AS owner_phone FROM properties pr JOIN users u ON u.id = pr.owner_id WHERE pr.id = $1`, prefixColumns("pr", propertyColumns))
	var detail models.PropertyDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByPropertyID fetches a property by its public property code.
func (r *PropertyRepository) FindByPropertyID(ctx context.Context, propertyID string) (*models.Property, error) {
	query := fmt.Sprintf(`SELECT %s FROM properties WHERE property_id = $1 LIMIT 1`, propertyColumns)
	var property models.Property
	if err := r.db.GetContext(ctx, &property, query, propertyID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find property by code: %w", err)
	}
	return &property, nil
}

// FindByOwnerEmail fetches the first property owned by the user with the
// given email.
func (r *PropertyRepository) FindByOwnerEmail(ctx context.Context, email string) (*models.Property, error) {
	query := fmt.Sprintf(`SELECT %s FROM properties pr WHERE pr.owner_id = (SELECT id FROM users WHERE LOWER(email) = LOWER($1) AND role = $2 LIMIT 1) ORDER BY pr.created_at LIMIT 1`, prefixColumns("pr", propertyColumns))
	var property models.Property
	if err := r.db.GetContext(ctx, &property, query, email, models.RolePropertyOwner); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find property by owner email: %w", err)
	}
	return &property, nil
}

// SearchByName fetches the first property whose name contains the given
// fragment, case-insensitively.
func (r *PropertyRepository) SearchByName(ctx context.Context, fragment string) (*models.Property, error) {
	query := fmt.Sprintf(`SELECT %s FROM properties WHERE LOWER(name) LIKE $1 ORDER BY created_at LIMIT 1`, propertyColumns)
	var property models.Property
	if err := r.db.GetContext(ctx, &property, query, "%"+strings.ToLower(fragment)+"%"); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("search property by name: %w", err)
	}
	return &property, nil
}

// Create inserts a new property.
func (r *PropertyRepository) Create(ctx context.Context, property *models.Property) error {
	if property.ID == "" {
		property.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if property.CreatedAt.IsZero() {
		property.CreatedAt = now
	}
	property.UpdatedAt = now
	const query = `INSERT INTO properties (id, property_id, owner_id, school_id, name, address, city, state, zip_code, latitude, longitude, description, capacity, current_occupancy, monthly_rent, has_wifi, has_kitchen, has_laundry, has_parking, has_security, status, verified_at, verified_by, safety_rating, created_at, updated_at)
        VALUES (:id, :property_id, :owner_id, :school_id, :name, :address, :city, :state, :zip_code, :latitude, :longitude, :description, :capacity, :current_occupancy, :monthly_rent, :has_wifi, :has_kitchen, :has_laundry, :has_parking, :has_security, :status, :verified_at, :verified_by, :safety_rating, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, property); err != nil {
		return fmt.Errorf("create property: %w", err)
	}
	return nil
}

// Update modifies mutable property fields.
func (r *PropertyRepository) Update(ctx context.Context, property *models.Property) error {
	property.UpdatedAt = time.Now().UTC()
	const query = `UPDATE properties SET name = :name, address = :address, city = :city, state = :state, zip_code = :zip_code, latitude = :latitude, longitude = :longitude, description = :description, capacity = :capacity, monthly_rent = :monthly_rent, has_wifi = :has_wifi, has_kitchen = :has_kitchen, has_laundry = :has_laundry, has_parking = :has_parking, has_security = :has_security, safety_rating = :safety_rating, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, property); err != nil {
		return fmt.Errorf("update property: %w", err)
	}
	return nil
}

// UpdateStatus transitions a property's verification status. VerifiedAt and
// VerifiedBy are set when the new status is verified and cleared otherwise.
func (r *PropertyRepository) UpdateStatus(ctx context.Context, id string, status models.PropertyStatus, reviewerID *string) error {
	now := time.Now().UTC()
	var verifiedAt *time.Time
	var verifiedBy *string
	if status == models.PropertyVerified {
		verifiedAt = &now
		verifiedBy = reviewerID
	}
	const query = `UPDATE properties SET status = $2, verified_at = $3, verified_by = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, verifiedAt, verifiedBy, now); err != nil {
		return fmt.Errorf("update property status: %w", err)
	}
	return nil
}

// AdjustOccupancy changes current_occupancy by delta, clamped to [0, capacity].
func (r *PropertyRepository) AdjustOccupancy(ctx context.Context, id string, delta int) error {
	const query = `UPDATE properties SET current_occupancy = GREATEST(0, LEAST(capacity, current_occupancy + $2)), updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, delta, time.Now().UTC()); err != nil {
		return fmt.Errorf("adjust occupancy: %w", err)
	}
	return nil
}

// HardDelete removes a property row. Callers snapshot the record into trash
// beforehand.
func (r *PropertyRepository) HardDelete(ctx context.Context, id string) error {
	const query = `DELETE FROM properties WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("hard delete property: %w", err)
	}
	return nil
}

// prefixColumns qualifies each column in a comma-separated list with a table
// alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}
