package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/boardinghub/boardinghub-api/internal/models"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
)

// The feed only serves one region for now; location filters outside it are
// rejected rather than silently returning nothing.
const supportedRegion = "Caraga"

type postRepository interface {
	ListFeed(ctx context.Context, filter models.FeedFilter) ([]models.FeedItem, int, error)
	CreateStudentPost(ctx context.Context, post *models.StudentPost) error
	CreateOwnerPost(ctx context.Context, post *models.OwnerPost) error
	FindStudentPost(ctx context.Context, id string) (*models.StudentPost, error)
	FindOwnerPost(ctx context.Context, id string) (*models.OwnerPost, error)
	UpdateStudentPost(ctx context.Context, post *models.StudentPost) error
	UpdateOwnerPost(ctx context.Context, post *models.OwnerPost) error
	DeleteStudentPost(ctx context.Context, id string) error
	DeleteOwnerPost(ctx context.Context, id string) error
	CreateComment(ctx context.Context, comment *models.PostComment) error
	ListComments(ctx context.Context, source models.PostSource, postID string) ([]models.PostComment, error)
	ToggleLike(ctx context.Context, source models.PostSource, postID, userID string) (bool, error)
	CountLikes(ctx context.Context, source models.PostSource, postID string) (int, error)
}

type feedCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// FeedConfig tunes feed caching and ordering.
type FeedConfig struct {
	CacheTTL        time.Duration
	FreshWindow     time.Duration
	DefaultPageSize int
}

// FeedPage is one page of merged feed items.
type FeedPage struct {
	Items      []models.FeedItem `json:"items"`
	Pagination models.Pagination `json:"pagination"`
}

// FeedService merges the student and owner post tables into one public feed.
// Posts inside the fresh window stay strictly newest-first; older posts are
// shuffled so the tail rotates between visits. The unfiltered first page is
// cached in Redis and invalidated on any post mutation.
type FeedService struct {
	posts     postRepository
	cache     feedCache
	validator *validator.Validate
	logger    *zap.Logger
	config    FeedConfig

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewFeedService constructs a FeedService.
func NewFeedService(posts postRepository, cache feedCache, validate *validator.Validate, logger *zap.Logger, config FeedConfig) *FeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 2 * time.Minute
	}
	if config.FreshWindow <= 0 {
		config.FreshWindow = 24 * time.Hour
	}
	if config.DefaultPageSize <= 0 {
		config.DefaultPageSize = 10
	}
	return &FeedService{
		posts:     posts,
		cache:     cache,
		validator: validate,
		logger:    logger,
		config:    config,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GetFeed returns one page of the public feed.
func (s *FeedService) GetFeed(ctx context.Context, filter models.FeedFilter) (*FeedPage, error) {
	if filter.Region != "" && !strings.EqualFold(filter.Region, supportedRegion) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only the "+supportedRegion+" region is supported")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = s.config.DefaultPageSize
	}

	cacheable := s.cache != nil && filter.Page == 1 &&
		filter.Region == "" && filter.Province == "" && filter.City == "" && filter.Barangay == ""
	cacheKey := fmt.Sprintf("feed:first:%d", filter.PageSize)

	if cacheable {
		var cached FeedPage
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("feed cache read failed", zap.Error(err))
		}
	}

	items, total, err := s.posts.ListFeed(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feed")
	}

	// The whole tail is shuffled before slicing the page, so stale posts
	// rotate across pages instead of within one.
	s.shuffleTail(items)

	offset := (filter.Page - 1) * filter.PageSize
	if offset > len(items) {
		offset = len(items)
	}
	end := offset + filter.PageSize
	if end > len(items) {
		end = len(items)
	}

	page := &FeedPage{
		Items: items[offset:end],
		Pagination: models.Pagination{
			Page:       filter.Page,
			PageSize:   filter.PageSize,
			TotalCount: total,
		},
	}

	if cacheable {
		if err := s.cache.Set(ctx, cacheKey, page, s.config.CacheTTL); err != nil {
			s.logger.Warn("feed cache write failed", zap.Error(err))
		}
	}
	return page, nil
}

// shuffleTail keeps items within the fresh window in order and shuffles the
// rest in place.
func (s *FeedService) shuffleTail(items []models.FeedItem) {
	cutoff := time.Now().UTC().Add(-s.config.FreshWindow)
	tail := len(items)
	for i, item := range items {
		if item.CreatedAt.Before(cutoff) {
			tail = i
			break
		}
	}
	if tail >= len(items)-1 {
		return
	}
	old := items[tail:]
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	s.rng.Shuffle(len(old), func(i, j int) {
		old[i], old[j] = old[j], old[i]
	})
}

// CreatePost publishes a post for the author's role. Students and property
// owners write to their own tables; only owner posts may advertise a
// property.
func (s *FeedService) CreatePost(ctx context.Context, authorID string, role models.UserRole, req models.CreatePostRequest) (*models.FeedItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid post payload")
	}
	if req.Region != "" && !strings.EqualFold(req.Region, supportedRegion) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only the "+supportedRegion+" region is supported")
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	var item *models.FeedItem
	switch role {
	case models.RoleStudent:
		if req.PropertyID != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student posts cannot advertise a property")
		}
		post := &models.StudentPost{
			AuthorID: authorID,
			Content:  req.Content,
			ImageURL: req.ImageURL,
			Region:   req.Region,
			Province: req.Province,
			City:     req.City,
			Barangay: req.Barangay,
			IsPublic: isPublic,
		}
		if err := s.posts.CreateStudentPost(ctx, post); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create post")
		}
		item = &models.FeedItem{ID: post.ID, Source: models.PostFromStudent, AuthorID: authorID, Content: post.Content, CreatedAt: post.CreatedAt}
	case models.RolePropertyOwner:
		post := &models.OwnerPost{
			AuthorID:   authorID,
			PropertyID: req.PropertyID,
			Content:    req.Content,
			ImageURL:   req.ImageURL,
			Region:     req.Region,
			Province:   req.Province,
			City:       req.City,
			Barangay:   req.Barangay,
			IsPublic:   isPublic,
		}
		if err := s.posts.CreateOwnerPost(ctx, post); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create post")
		}
		item = &models.FeedItem{ID: post.ID, Source: models.PostFromOwner, AuthorID: authorID, PropertyID: post.PropertyID, Content: post.Content, CreatedAt: post.CreatedAt}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students and property owners can post")
	}

	s.invalidate(ctx)
	return item, nil
}

// UpdatePost edits an author's own post.
func (s *FeedService) UpdatePost(ctx context.Context, postID, authorID string, role models.UserRole, req models.CreatePostRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid post payload")
	}

	switch role {
	case models.RoleStudent:
		post, err := s.posts.FindStudentPost(ctx, postID)
		if err != nil {
			return s.postLoadError(err)
		}
		if post.AuthorID != authorID {
			return appErrors.Clone(appErrors.ErrForbidden, "not the author of this post")
		}
		post.Content = req.Content
		post.ImageURL = req.ImageURL
		post.Region = req.Region
		post.Province = req.Province
		post.City = req.City
		post.Barangay = req.Barangay
		if req.IsPublic != nil {
			post.IsPublic = *req.IsPublic
		}
		if err := s.posts.UpdateStudentPost(ctx, post); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update post")
		}
	case models.RolePropertyOwner:
		post, err := s.posts.FindOwnerPost(ctx, postID)
		if err != nil {
			return s.postLoadError(err)
		}
		if post.AuthorID != authorID {
			return appErrors.Clone(appErrors.ErrForbidden, "not the author of this post")
		}
		post.PropertyID = req.PropertyID
		post.Content = req.Content
		post.ImageURL = req.ImageURL
		post.Region = req.Region
		post.Province = req.Province
		post.City = req.City
		post.Barangay = req.Barangay
		if req.IsPublic != nil {
			post.IsPublic = *req.IsPublic
		}
		if err := s.posts.UpdateOwnerPost(ctx, post); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update post")
		}
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "only students and property owners can post")
	}

	s.invalidate(ctx)
	return nil
}

// DeletePost removes an author's own post.
func (s *FeedService) DeletePost(ctx context.Context, postID, authorID string, role models.UserRole) error {
	switch role {
	case models.RoleStudent:
		post, err := s.posts.FindStudentPost(ctx, postID)
		if err != nil {
			return s.postLoadError(err)
		}
		if post.AuthorID != authorID {
			return appErrors.Clone(appErrors.ErrForbidden, "not the author of this post")
		}
		if err := s.posts.DeleteStudentPost(ctx, postID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete post")
		}
	case models.RolePropertyOwner:
		post, err := s.posts.FindOwnerPost(ctx, postID)
		if err != nil {
			return s.postLoadError(err)
		}
		if post.AuthorID != authorID {
			return appErrors.Clone(appErrors.ErrForbidden, "not the author of this post")
		}
		if err := s.posts.DeleteOwnerPost(ctx, postID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete post")
		}
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "only students and property owners can post")
	}

	s.invalidate(ctx)
	return nil
}

// AddComment stores a comment on a post from either table.
func (s *FeedService) AddComment(ctx context.Context, source models.PostSource, postID, authorID string, req models.CreateCommentRequest) (*models.PostComment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}
	if err := s.ensurePost(ctx, source, postID); err != nil {
		return nil, err
	}

	comment := &models.PostComment{
		PostSource: source,
		PostID:     postID,
		AuthorID:   authorID,
		Content:    req.Content,
	}
	if err := s.posts.CreateComment(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create comment")
	}
	return comment, nil
}

// ListComments returns a post's comments oldest first.
func (s *FeedService) ListComments(ctx context.Context, source models.PostSource, postID string) ([]models.PostComment, error) {
	if err := s.ensurePost(ctx, source, postID); err != nil {
		return nil, err
	}
	comments, err := s.posts.ListComments(ctx, source, postID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	return comments, nil
}

// ToggleLike flips the user's like on a post and returns the new state with
// the total count.
func (s *FeedService) ToggleLike(ctx context.Context, source models.PostSource, postID, userID string) (*models.LikeResult, error) {
	if err := s.ensurePost(ctx, source, postID); err != nil {
		return nil, err
	}
	liked, err := s.posts.ToggleLike(ctx, source, postID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle like")
	}
	total, err := s.posts.CountLikes(ctx, source, postID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count likes")
	}
	return &models.LikeResult{Liked: liked, Likes: total}, nil
}

// ensurePost verifies the referenced post exists in the table the source
// names.
func (s *FeedService) ensurePost(ctx context.Context, source models.PostSource, postID string) error {
	switch source {
	case models.PostFromStudent:
		if _, err := s.posts.FindStudentPost(ctx, postID); err != nil {
			return s.postLoadError(err)
		}
	case models.PostFromOwner:
		if _, err := s.posts.FindOwnerPost(ctx, postID); err != nil {
			return s.postLoadError(err)
		}
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown post source")
	}
	return nil
}

func (s *FeedService) postLoadError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "post not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load post")
}

func (s *FeedService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "feed:*"); err != nil {
		s.logger.Warn("feed cache invalidation failed", zap.Error(err))
	}
}
