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

// PostRepository manages persistence for the two feed post tables. Student
// and owner posts live in separate tables and are merged at query time.
type PostRepository struct {
	db *sqlx.DB
}

// NewPostRepository constructs a PostRepository.
func NewPostRepository(db *sqlx.DB) *PostRepository {
	return &PostRepository{db: db}
}

const feedUnion = `FROM (
        SELECT sp.id, 'student' AS source, sp.author_id, NULL AS property_ref_id, sp.content, sp.image_url, sp.region, sp.province, sp.city, sp.barangay, sp.is_public, sp.created_at
        FROM student_posts sp
        UNION ALL
        SELECT op.id, 'property_owner' AS source, op.author_id, op.property_ref_id, op.content, op.image_url, op.region, op.province, op.city, op.barangay, op.is_public, op.created_at
        FROM owner_posts op
    ) posts
    JOIN users u ON u.id = posts.author_id`

// ListFeed returns all matching public posts from both tables merged newest
// first. Location filters narrow by exact match on each provided component.
// Pagination happens in the service after the stale tail is shuffled, so the
// full ordered set comes back here.
func (r *PostRepository) ListFeed(ctx context.Context, filter models.FeedFilter) ([]models.FeedItem, int, error) {
	base := feedUnion + " WHERE posts.is_public = TRUE"
	var args []interface{}

	if filter.Region != "" {
		base += fmt.Sprintf(" AND LOWER(posts.region) = LOWER($%d)", len(args)+1)
		args = append(args, filter.Region)
	}
	if filter.Province != "" {
		base += fmt.Sprintf(" AND LOWER(posts.province) = LOWER($%d)", len(args)+1)
		args = append(args, filter.Province)
	}
	if filter.City != "" {
		base += fmt.Sprintf(" AND LOWER(posts.city) = LOWER($%d)", len(args)+1)
		args = append(args, filter.City)
	}
	if filter.Barangay != "" {
		base += fmt.Sprintf(" AND LOWER(posts.barangay) = LOWER($%d)", len(args)+1)
		args = append(args, filter.Barangay)
	}

	query := fmt.Sprintf(`SELECT posts.id, posts.source, posts.author_id, u.full_name AS author_name, u.role AS author_role, posts.property_ref_id, posts.content, posts.image_url, posts.region, posts.province, posts.city, posts.barangay, posts.created_at
        %s ORDER BY posts.created_at DESC`, base)

	var items []models.FeedItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list feed: %w", err)
	}
	return items, len(items), nil
}

// CreateStudentPost inserts a student-authored post.
func (r *PostRepository) CreateStudentPost(ctx context.Context, post *models.StudentPost) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now
	const query = `INSERT INTO student_posts (id, author_id, content, image_url, region, province, city, barangay, is_public, created_at, updated_at)
        VALUES (:id, :author_id, :content, :image_url, :region, :province, :city, :barangay, :is_public, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, post); err != nil {
		return fmt.Errorf("create student post: %w", err)
	}
	return nil
}

// CreateOwnerPost inserts an owner-authored post.
func (r *PostRepository) CreateOwnerPost(ctx context.Context, post *models.OwnerPost) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now
	const query = `INSERT INTO owner_posts (id, author_id, property_ref_id, content, image_url, region, province, city, barangay, is_public, created_at, updated_at)
        VALUES (:id, :author_id, :property_ref_id, :content, :image_url, :region, :province, :city, :barangay, :is_public, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, post); err != nil {
		return fmt.Errorf("create owner post: %w", err)
	}
	return nil
}

// FindStudentPost fetches a student post by identifier.
func (r *PostRepository) FindStudentPost(ctx context.Context, id string) (*models.StudentPost, error) {
	const query = `SELECT id, author_id, content, image_url, region, province, city, barangay, is_public, created_at, updated_at FROM student_posts WHERE id = $1 LIMIT 1`
	var post models.StudentPost
	if err := r.db.GetContext(ctx, &post, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student post: %w", err)
	}
	return &post, nil
}

// FindOwnerPost fetches an owner post by identifier.
func (r *PostRepository) FindOwnerPost(ctx context.Context, id string) (*models.OwnerPost, error) {
	const query = `SELECT id, author_id, property_ref_id, content, image_url, region, province, city, barangay, is_public, created_at, updated_at FROM owner_posts WHERE id = $1 LIMIT 1`
	var post models.OwnerPost
	if err := r.db.GetContext(ctx, &post, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find owner post: %w", err)
	}
	return &post, nil
}

// UpdateStudentPost modifies a student post's content fields.
func (r *PostRepository) UpdateStudentPost(ctx context.Context, post *models.StudentPost) error {
	post.UpdatedAt = time.Now().UTC()
	const query = `UPDATE student_posts SET content = :content, image_url = :image_url, region = :region, province = :province, city = :city, barangay = :barangay, is_public = :is_public, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, post); err != nil {
		return fmt.Errorf("update student post: %w", err)
	}
	return nil
}

// UpdateOwnerPost modifies an owner post's content fields.
func (r *PostRepository) UpdateOwnerPost(ctx context.Context, post *models.OwnerPost) error {
	post.UpdatedAt = time.Now().UTC()
	const query = `UPDATE owner_posts SET property_ref_id = :property_ref_id, content = :content, image_url = :image_url, region = :region, province = :province, city = :city, barangay = :barangay, is_public = :is_public, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, post); err != nil {
		return fmt.Errorf("update owner post: %w", err)
	}
	return nil
}

// CreateComment inserts a comment.
func (r *PostRepository) CreateComment(ctx context.Context, comment *models.PostComment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO post_comments (id, post_source, post_id, author_id, content, created_at)
        VALUES (:id, :post_source, :post_id, :author_id, :content, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// ListComments returns a post's comments oldest first with author names.
func (r *PostRepository) ListComments(ctx context.Context, source models.PostSource, postID string) ([]models.PostComment, error) {
	const query = `SELECT pc.id, pc.post_source, pc.post_id, pc.author_id, u.full_name AS author_name, pc.content, pc.created_at
        FROM post_comments pc
        JOIN users u ON u.id = pc.author_id
        WHERE pc.post_source = $1 AND pc.post_id = $2
        ORDER BY pc.created_at`
	var comments []models.PostComment
	if err := r.db.SelectContext(ctx, &comments, query, source, postID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// ToggleLike removes the user's like if present, otherwise inserts it.
// Returns whether the post is liked after the call.
func (r *PostRepository) ToggleLike(ctx context.Context, source models.PostSource, postID, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM post_likes WHERE post_source = $1 AND post_id = $2 AND user_id = $3`, source, postID, userID)
	if err != nil {
		return false, fmt.Errorf("toggle like: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, nil
	}
	const query = `INSERT INTO post_likes (id, post_source, post_id, user_id, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), source, postID, userID, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("toggle like: %w", err)
	}
	return true, nil
}

// CountLikes returns a post's like count.
func (r *PostRepository) CountLikes(ctx context.Context, source models.PostSource, postID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM post_likes WHERE post_source = $1 AND post_id = $2`, source, postID); err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return total, nil
}

// DeleteStudentPost removes a student post along with its comments and likes.
func (r *PostRepository) DeleteStudentPost(ctx context.Context, id string) error {
	if err := r.deleteReactions(ctx, models.PostFromStudent, id); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM student_posts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete student post: %w", err)
	}
	return nil
}

// DeleteOwnerPost removes an owner post along with its comments and likes.
func (r *PostRepository) DeleteOwnerPost(ctx context.Context, id string) error {
	if err := r.deleteReactions(ctx, models.PostFromOwner, id); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM owner_posts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete owner post: %w", err)
	}
	return nil
}

func (r *PostRepository) deleteReactions(ctx context.Context, source models.PostSource, postID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM post_comments WHERE post_source = $1 AND post_id = $2`, source, postID); err != nil {
		return fmt.Errorf("delete post comments: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM post_likes WHERE post_source = $1 AND post_id = $2`, source, postID); err != nil {
		return fmt.Errorf("delete post likes: %w", err)
	}
	return nil
}
