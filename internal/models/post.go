package models

import "time"

// PostSource identifies which author table a feed item came from.
type PostSource string

const (
	PostFromStudent PostSource = "student"
	PostFromOwner   PostSource = "property_owner"
)

// StudentPost is a student-authored feed post.
type StudentPost struct {
	ID        string    `db:"id" json:"id"`
	AuthorID  string    `db:"author_id" json:"author_id"`
	Content   string    `db:"content" json:"content"`
	ImageURL  string    `db:"image_url" json:"image_url,omitempty"`
	Region    string    `db:"region" json:"region,omitempty"`
	Province  string    `db:"province" json:"province,omitempty"`
	City      string    `db:"city" json:"city,omitempty"`
	Barangay  string    `db:"barangay" json:"barangay,omitempty"`
	IsPublic  bool      `db:"is_public" json:"is_public"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OwnerPost is a property-owner-authored feed post, optionally advertising a
// specific property.
type OwnerPost struct {
	ID         string    `db:"id" json:"id"`
	AuthorID   string    `db:"author_id" json:"author_id"`
	PropertyID *string   `db:"property_ref_id" json:"property_id,omitempty"`
	Content    string    `db:"content" json:"content"`
	ImageURL   string    `db:"image_url" json:"image_url,omitempty"`
	Region     string    `db:"region" json:"region,omitempty"`
	Province   string    `db:"province" json:"province,omitempty"`
	City       string    `db:"city" json:"city,omitempty"`
	Barangay   string    `db:"barangay" json:"barangay,omitempty"`
	IsPublic   bool      `db:"is_public" json:"is_public"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// FeedItem is the merged shape both post tables project into for the public
// feed.
type FeedItem struct {
	ID         string     `db:"id" json:"id"`
	Source     PostSource `db:"source" json:"source"`
	AuthorID   string     `db:"author_id" json:"author_id"`
	AuthorName string     `db:"author_name" json:"author_name"`
	AuthorRole UserRole   `db:"author_role" json:"author_role"`
	PropertyID *string    `db:"property_ref_id" json:"property_id,omitempty"`
	Content    string     `db:"content" json:"content"`
	ImageURL   string     `db:"image_url" json:"image_url,omitempty"`
	Region     string     `db:"region" json:"region,omitempty"`
	Province   string     `db:"province" json:"province,omitempty"`
	City       string     `db:"city" json:"city,omitempty"`
	Barangay   string     `db:"barangay" json:"barangay,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// FeedFilter captures feed query parameters. Location filtering only applies
// within the supported region.
type FeedFilter struct {
	Region   string
	Province string
	City     string
	Barangay string
	Page     int
	PageSize int
}

// PostComment is a comment on either post table, keyed by (post_source,
// post_id) since the two tables share an id space of UUIDs.
type PostComment struct {
	ID         string     `db:"id" json:"id"`
	PostSource PostSource `db:"post_source" json:"post_source"`
	PostID     string     `db:"post_id" json:"post_id"`
	AuthorID   string     `db:"author_id" json:"author_id"`
	AuthorName string     `db:"author_name" json:"author_name,omitempty"`
	Content    string     `db:"content" json:"content"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// PostLike records one user's like on a post. A second like from the same
// user removes the row (toggle semantics).
type PostLike struct {
	ID         string     `db:"id" json:"id"`
	PostSource PostSource `db:"post_source" json:"post_source"`
	PostID     string     `db:"post_id" json:"post_id"`
	UserID     string     `db:"user_id" json:"user_id"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// LikeResult reports the outcome of a like toggle.
type LikeResult struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

// CreateCommentRequest is the payload for commenting on a post.
type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// CreatePostRequest is the payload for publishing a feed post.
type CreatePostRequest struct {
	Content    string  `json:"content" validate:"required,max=5000"`
	ImageURL   string  `json:"image_url" validate:"omitempty,url"`
	PropertyID *string `json:"property_id" validate:"omitempty,uuid"`
	Region     string  `json:"region" validate:"omitempty,max=100"`
	Province   string  `json:"province" validate:"omitempty,max=100"`
	City       string  `json:"city" validate:"omitempty,max=100"`
	Barangay   string  `json:"barangay" validate:"omitempty,max=100"`
	IsPublic   *bool   `json:"is_public"`
}
