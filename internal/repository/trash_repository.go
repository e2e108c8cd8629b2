package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/boardinghub/boardinghub-api/internal/models"
)

const trashColumns = `id, school_id, item_type, item_id, item_name, item_data, deleted_by, deleted_at, permanent_delete_at, is_permanently_deleted, restored_at`

// TrashRepository manages persistence for trash log entries.
type TrashRepository struct {
	db *sqlx.DB
}

// NewTrashRepository constructs a TrashRepository.
func NewTrashRepository(db *sqlx.DB) *TrashRepository {
	return &TrashRepository{db: db}
}

// Create inserts a trash entry.
func (r *TrashRepository) Create(ctx context.Context, entry *models.TrashLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.DeletedAt.IsZero() {
		entry.DeletedAt = time.Now().UTC()
	}
	const query = `INSERT INTO trash_logs (id, school_id, item_type, item_id, item_name, item_data, deleted_by, deleted_at, permanent_delete_at, is_permanently_deleted, restored_at)
        VALUES (:id, :school_id, :item_type, :item_id, :item_name, :item_data, :deleted_by, :deleted_at, :permanent_delete_at, :is_permanently_deleted, :restored_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create trash entry: %w", err)
	}
	return nil
}

// FindByID fetches a trash entry by identifier.
func (r *TrashRepository) FindByID(ctx context.Context, id string) (*models.TrashLog, error) {
	query := fmt.Sprintf(`SELECT %s FROM trash_logs WHERE id = $1 LIMIT 1`, trashColumns)
	var entry models.TrashLog
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find trash entry: %w", err)
	}
	return &entry, nil
}

// List returns open trash entries for a school, newest deletions first.
// Restored and purged entries are excluded.
func (r *TrashRepository) List(ctx context.Context, filter models.TrashFilter) ([]models.TrashLog, int, error) {
	base := `FROM trash_logs WHERE school_id = $1 AND is_permanently_deleted = FALSE AND restored_at IS NULL`
	args := []interface{}{filter.SchoolID}

	if filter.ItemType != nil {
		base += fmt.Sprintf(" AND item_type = $%d", len(args)+1)
		args = append(args, *filter.ItemType)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY deleted_at DESC LIMIT %d OFFSET %d", trashColumns, base, size, offset)
	var entries []models.TrashLog
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list trash entries: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count trash entries: %w", err)
	}
	return entries, total, nil
}

// ListOpenBySchool returns every restorable entry for a school.
func (r *TrashRepository) ListOpenBySchool(ctx context.Context, schoolID string) ([]models.TrashLog, error) {
	query := fmt.Sprintf(`SELECT %s FROM trash_logs WHERE school_id = $1 AND is_permanently_deleted = FALSE AND restored_at IS NULL ORDER BY deleted_at DESC`, trashColumns)
	var entries []models.TrashLog
	if err := r.db.SelectContext(ctx, &entries, query, schoolID); err != nil {
		return nil, fmt.Errorf("list open trash entries: %w", err)
	}
	return entries, nil
}

// ListExpired returns open entries whose purge deadline has passed.
func (r *TrashRepository) ListExpired(ctx context.Context, now time.Time) ([]models.TrashLog, error) {
	query := fmt.Sprintf(`SELECT %s FROM trash_logs WHERE is_permanently_deleted = FALSE AND restored_at IS NULL AND permanent_delete_at <= $1`, trashColumns)
	var entries []models.TrashLog
	if err := r.db.SelectContext(ctx, &entries, query, now); err != nil {
		return nil, fmt.Errorf("list expired trash entries: %w", err)
	}
	return entries, nil
}

// MarkRestored stamps an entry as restored.
func (r *TrashRepository) MarkRestored(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE trash_logs SET restored_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("mark trash restored: %w", err)
	}
	return nil
}

// MarkPurged stamps an entry as permanently deleted.
func (r *TrashRepository) MarkPurged(ctx context.Context, id string) error {
	const query = `UPDATE trash_logs SET is_permanently_deleted = TRUE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark trash purged: %w", err)
	}
	return nil
}
