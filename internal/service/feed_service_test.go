package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boardinghub/boardinghub-api/internal/models"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
)

type mockPostRepo struct {
	mu           sync.Mutex
	feed         []models.FeedItem
	listCalls    int
	studentPosts map[string]*models.StudentPost
	ownerPosts   map[string]*models.OwnerPost
	deletedIDs   []string
	comments     []models.PostComment
	likes        map[string]bool
}

func (m *mockPostRepo) ListFeed(ctx context.Context, filter models.FeedFilter) ([]models.FeedItem, int, error) {
	m.mu.Lock()
	m.listCalls++
	m.mu.Unlock()
	out := make([]models.FeedItem, len(m.feed))
	copy(out, m.feed)
	return out, len(m.feed), nil
}

func (m *mockPostRepo) CreateStudentPost(ctx context.Context, post *models.StudentPost) error {
	post.ID = "sp1"
	post.CreatedAt = time.Now().UTC()
	if m.studentPosts == nil {
		m.studentPosts = make(map[string]*models.StudentPost)
	}
	m.studentPosts[post.ID] = post
	return nil
}

func (m *mockPostRepo) CreateOwnerPost(ctx context.Context, post *models.OwnerPost) error {
	post.ID = "op1"
	post.CreatedAt = time.Now().UTC()
	if m.ownerPosts == nil {
		m.ownerPosts = make(map[string]*models.OwnerPost)
	}
	m.ownerPosts[post.ID] = post
	return nil
}

func (m *mockPostRepo) FindStudentPost(ctx context.Context, id string) (*models.StudentPost, error) {
	if p, ok := m.studentPosts[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPostRepo) FindOwnerPost(ctx context.Context, id string) (*models.OwnerPost, error) {
	if p, ok := m.ownerPosts[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPostRepo) UpdateStudentPost(ctx context.Context, post *models.StudentPost) error {
	return nil
}

func (m *mockPostRepo) UpdateOwnerPost(ctx context.Context, post *models.OwnerPost) error {
	return nil
}

func (m *mockPostRepo) DeleteStudentPost(ctx context.Context, id string) error {
	m.deletedIDs = append(m.deletedIDs, id)
	delete(m.studentPosts, id)
	return nil
}

func (m *mockPostRepo) DeleteOwnerPost(ctx context.Context, id string) error {
	m.deletedIDs = append(m.deletedIDs, id)
	delete(m.ownerPosts, id)
	return nil
}

func (m *mockPostRepo) CreateComment(ctx context.Context, comment *models.PostComment) error {
	comment.ID = "c1"
	comment.CreatedAt = time.Now().UTC()
	m.comments = append(m.comments, *comment)
	return nil
}

func (m *mockPostRepo) ListComments(ctx context.Context, source models.PostSource, postID string) ([]models.PostComment, error) {
	var out []models.PostComment
	for _, c := range m.comments {
		if c.PostSource == source && c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockPostRepo) ToggleLike(ctx context.Context, source models.PostSource, postID, userID string) (bool, error) {
	key := string(source) + ":" + postID + ":" + userID
	if m.likes == nil {
		m.likes = make(map[string]bool)
	}
	if m.likes[key] {
		delete(m.likes, key)
		return false, nil
	}
	m.likes[key] = true
	return true, nil
}

func (m *mockPostRepo) CountLikes(ctx context.Context, source models.PostSource, postID string) (int, error) {
	prefix := string(source) + ":" + postID + ":"
	total := 0
	for key := range m.likes {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			total++
		}
	}
	return total, nil
}

type mockFeedCache struct {
	store       map[string]*FeedPage
	gets        int
	sets        int
	invalidated []string
}

func (m *mockFeedCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.gets++
	if page, ok := m.store[key]; ok {
		*(dest.(*FeedPage)) = *page
		return nil
	}
	return appErrors.ErrCacheMiss
}

func (m *mockFeedCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.sets++
	if m.store == nil {
		m.store = make(map[string]*FeedPage)
	}
	page := value.(*FeedPage)
	m.store[key] = page
	return nil
}

func (m *mockFeedCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.invalidated = append(m.invalidated, pattern)
	m.store = nil
	return nil
}

func feedItem(id string, age time.Duration) models.FeedItem {
	return models.FeedItem{ID: id, Source: models.PostFromStudent, CreatedAt: time.Now().UTC().Add(-age)}
}

func newFeedFixture(cache *mockFeedCache) (*FeedService, *mockPostRepo) {
	posts := &mockPostRepo{}
	var fc feedCache
	if cache != nil {
		fc = cache
	}
	svc := NewFeedService(posts, fc, validator.New(), zap.NewNop(), FeedConfig{FreshWindow: 24 * time.Hour})
	return svc, posts
}

func TestGetFeedKeepsFreshHeadOrdered(t *testing.T) {
	svc, posts := newFeedFixture(nil)
	posts.feed = []models.FeedItem{
		feedItem("a", 1*time.Hour),
		feedItem("b", 2*time.Hour),
		feedItem("c", 48*time.Hour),
		feedItem("d", 72*time.Hour),
		feedItem("e", 96*time.Hour),
	}

	page, err := svc.GetFeed(context.Background(), models.FeedFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 5)

	// Posts inside the fresh window keep their order no matter the shuffle.
	assert.Equal(t, "a", page.Items[0].ID)
	assert.Equal(t, "b", page.Items[1].ID)

	tail := []string{page.Items[2].ID, page.Items[3].ID, page.Items[4].ID}
	assert.ElementsMatch(t, []string{"c", "d", "e"}, tail)
}

func TestGetFeedPaginatesAfterShuffle(t *testing.T) {
	svc, posts := newFeedFixture(nil)
	posts.feed = []models.FeedItem{
		feedItem("a", 48 * time.Hour),
		feedItem("b", 72 * time.Hour),
		feedItem("c", 96 * time.Hour),
		feedItem("d", 120 * time.Hour),
		feedItem("e", 144 * time.Hour),
	}

	page, err := svc.GetFeed(context.Background(), models.FeedFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 5, page.Pagination.TotalCount)

	page, err = svc.GetFeed(context.Background(), models.FeedFilter{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	// Pages past the end come back empty rather than erroring.
	page, err = svc.GetFeed(context.Background(), models.FeedFilter{Page: 10, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestGetFeedHandlesConcurrentReads(t *testing.T) {
	svc, posts := newFeedFixture(nil)
	for i := 0; i < 30; i++ {
		posts.feed = append(posts.feed, feedItem(string(rune('a'+i)), time.Duration(48+i)*time.Hour))
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, err := svc.GetFeed(context.Background(), models.FeedFilter{PageSize: 5})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}

func TestGetFeedRejectsUnsupportedRegion(t *testing.T) {
	svc, _ := newFeedFixture(nil)

	_, err := svc.GetFeed(context.Background(), models.FeedFilter{Region: "NCR"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	// Case-insensitive match for the supported region passes.
	_, err = svc.GetFeed(context.Background(), models.FeedFilter{Region: "caraga"})
	require.NoError(t, err)
}

func TestGetFeedCachesUnfilteredFirstPage(t *testing.T) {
	cache := &mockFeedCache{}
	svc, posts := newFeedFixture(cache)
	posts.feed = []models.FeedItem{feedItem("a", time.Hour)}

	_, err := svc.GetFeed(context.Background(), models.FeedFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, posts.listCalls)
	assert.Equal(t, 1, cache.sets)

	// Second read is served from the cache.
	_, err = svc.GetFeed(context.Background(), models.FeedFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, posts.listCalls)
}

func TestGetFeedSkipsCacheForFilteredRequests(t *testing.T) {
	cache := &mockFeedCache{}
	svc, posts := newFeedFixture(cache)
	posts.feed = []models.FeedItem{feedItem("a", time.Hour)}

	_, err := svc.GetFeed(context.Background(), models.FeedFilter{City: "Butuan"})
	require.NoError(t, err)
	assert.Zero(t, cache.gets)
	assert.Zero(t, cache.sets)

	_, err = svc.GetFeed(context.Background(), models.FeedFilter{Page: 2})
	require.NoError(t, err)
	assert.Zero(t, cache.gets)
}

func TestCreatePostInvalidatesFeedCache(t *testing.T) {
	cache := &mockFeedCache{}
	svc, _ := newFeedFixture(cache)

	item, err := svc.CreatePost(context.Background(), "student1", models.RoleStudent, models.CreatePostRequest{
		Content: "Looking for a boarding house near campus",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PostFromStudent, item.Source)
	assert.Contains(t, cache.invalidated, "feed:*")
}

func TestStudentPostCannotAdvertiseProperty(t *testing.T) {
	svc, _ := newFeedFixture(nil)
	propertyID := "7f3f0a24-9f43-4a9f-8a10-1c1efb2b5b10"

	_, err := svc.CreatePost(context.Background(), "student1", models.RoleStudent, models.CreatePostRequest{
		Content:    "Check out my property",
		PropertyID: &propertyID,
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestOwnerPostMayAdvertiseProperty(t *testing.T) {
	svc, posts := newFeedFixture(nil)
	propertyID := "7f3f0a24-9f43-4a9f-8a10-1c1efb2b5b10"

	item, err := svc.CreatePost(context.Background(), "owner1", models.RolePropertyOwner, models.CreatePostRequest{
		Content:    "Rooms available this semester",
		PropertyID: &propertyID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PostFromOwner, item.Source)
	require.NotNil(t, posts.ownerPosts["op1"].PropertyID)
	assert.Equal(t, propertyID, *posts.ownerPosts["op1"].PropertyID)
}

func TestOwnerPostRejectsMalformedPropertyID(t *testing.T) {
	svc, _ := newFeedFixture(nil)
	propertyID := "prop1"

	_, err := svc.CreatePost(context.Background(), "owner1", models.RolePropertyOwner, models.CreatePostRequest{
		Content:    "Rooms available this semester",
		PropertyID: &propertyID,
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestDeletePostRequiresAuthor(t *testing.T) {
	svc, posts := newFeedFixture(nil)
	posts.studentPosts = map[string]*models.StudentPost{
		"sp1": {ID: "sp1", AuthorID: "student1", Content: "hello"},
	}

	err := svc.DeletePost(context.Background(), "sp1", "intruder", models.RoleStudent)
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	err = svc.DeletePost(context.Background(), "sp1", "student1", models.RoleStudent)
	require.NoError(t, err)
	assert.Contains(t, posts.deletedIDs, "sp1")
}

func TestAddCommentRequiresExistingPost(t *testing.T) {
	svc, posts := newFeedFixture(nil)

	_, err := svc.AddComment(context.Background(), models.PostFromStudent, "missing", "u1", models.CreateCommentRequest{Content: "nice"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)

	posts.studentPosts = map[string]*models.StudentPost{
		"sp1": {ID: "sp1", AuthorID: "student1", Content: "hello"},
	}
	comment, err := svc.AddComment(context.Background(), models.PostFromStudent, "sp1", "u1", models.CreateCommentRequest{Content: "nice"})
	require.NoError(t, err)
	assert.Equal(t, "c1", comment.ID)
	assert.Equal(t, models.PostFromStudent, comment.PostSource)

	listed, err := svc.ListComments(context.Background(), models.PostFromStudent, "sp1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestToggleLikeFlipsState(t *testing.T) {
	svc, posts := newFeedFixture(nil)
	posts.ownerPosts = map[string]*models.OwnerPost{
		"op1": {ID: "op1", AuthorID: "owner1", Content: "room available"},
	}

	result, err := svc.ToggleLike(context.Background(), models.PostFromOwner, "op1", "u1")
	require.NoError(t, err)
	assert.True(t, result.Liked)
	assert.Equal(t, 1, result.Likes)

	result, err = svc.ToggleLike(context.Background(), models.PostFromOwner, "op1", "u1")
	require.NoError(t, err)
	assert.False(t, result.Liked)
	assert.Equal(t, 0, result.Likes)
}

func TestToggleLikeRejectsUnknownSource(t *testing.T) {
	svc, _ := newFeedFixture(nil)

	_, err := svc.ToggleLike(context.Background(), models.PostSource("page"), "op1", "u1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
