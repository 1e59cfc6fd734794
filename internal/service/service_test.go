package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/internal/testutil"
)

type services struct {
	db    *gorm.DB
	posts PostService
	feed  FeedService
	rel   RelationshipService
	auth  AuthService
}

func newServices(t *testing.T) *services {
	t.Helper()
	db := testutil.NewDB(t)
	postRepo := repository.NewPostRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	userRepo := repository.NewUserRepository(db)
	return &services{
		db:    db,
		posts: NewPostService(postRepo, repository.NewCommentRepository(db), groupRepo),
		feed:  NewFeedService(postRepo, groupRepo, userRepo),
		rel:   NewRelationshipService(repository.NewFollowRepository(db)),
		auth:  NewAuthService(userRepo, "test-secret", time.Hour),
	}
}

func TestPostService_CreateAppearsFirstOnProfile(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	auth := testutil.CreateUser(t, s.db, "Auth")
	g := testutil.CreateGroup(t, s.db, "Тестовая группа", "test-slug")
	testutil.CreatePosts(t, s.db, auth, g, 12)

	p, err := s.posts.Create(ctx, auth.ID, PostInput{Text: "Новая запись", GroupID: &g.ID})
	require.NoError(t, err)
	assert.Equal(t, "Auth", p.Author.Username)
	require.NotNil(t, p.Group)
	assert.Equal(t, g.ID, p.Group.ID)

	_, page, err := s.feed.Profile(ctx, "Auth", 1)
	require.NoError(t, err)
	require.NotEmpty(t, page.Items)
	assert.Equal(t, p.ID, page.Items[0].ID)

	_, page, err = s.feed.Group(ctx, "test-slug", 1)
	require.NoError(t, err)
	assert.Equal(t, p.ID, page.Items[0].ID)
}

func TestPostService_CreateValidation(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	auth := testutil.CreateUser(t, s.db, "Auth")

	_, err := s.posts.Create(ctx, auth.ID, PostInput{Text: "   "})
	require.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "text")

	missing := uint(404)
	_, err = s.posts.Create(ctx, auth.ID, PostInput{Text: "ok", GroupID: &missing})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "group")

	page, err := s.feed.Index(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestPostService_UpdateRules(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	auth := testutil.CreateUser(t, s.db, "Auth")
	other := testutil.CreateUser(t, s.db, "NameSurname")

	p, err := s.posts.Create(ctx, auth.ID, PostInput{Text: "Новая запись", Image: "posts/small.gif"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		edited, err := s.posts.Update(ctx, p.ID, auth.ID, PostInput{Text: "Отредактировано"})
		require.NoError(t, err)
		assert.Equal(t, p.ID, edited.ID)
		assert.Equal(t, p.AuthorID, edited.AuthorID)
		assert.True(t, p.CreatedAt.Equal(edited.CreatedAt))
		assert.Equal(t, "Отредактировано", edited.Text)
		assert.Equal(t, "posts/small.gif", edited.Image, "image is kept without a new upload")
	}

	cleared, err := s.posts.Update(ctx, p.ID, auth.ID, PostInput{Text: "без картинки", ClearImage: true})
	require.NoError(t, err)
	assert.Empty(t, cleared.Image)

	_, err = s.posts.Update(ctx, p.ID, other.ID, PostInput{Text: "взлом"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.posts.Update(ctx, 9999, auth.ID, PostInput{Text: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.posts.Update(ctx, p.ID, auth.ID, PostInput{Text: ""})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPostService_Comments(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	auth := testutil.CreateUser(t, s.db, "Auth")
	reader := testutil.CreateUser(t, s.db, "Reader")
	p, err := s.posts.Create(ctx, auth.ID, PostInput{Text: "Тестовый пост"})
	require.NoError(t, err)

	_, err = s.posts.AddComment(ctx, p.ID, reader.ID, "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.posts.AddComment(ctx, 9999, reader.ID, "Комментарий")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.posts.AddComment(ctx, p.ID, reader.ID, "первый")
	require.NoError(t, err)
	_, err = s.posts.AddComment(ctx, p.ID, auth.ID, "второй")
	require.NoError(t, err)

	detail, count, err := s.posts.Detail(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	require.Len(t, detail.Comments, 2)
	assert.Equal(t, "первый", detail.Comments[0].Text)
	assert.Equal(t, "Reader", detail.Comments[0].Author.Username)
	assert.Equal(t, "второй", detail.Comments[1].Text)
}

func TestFeedService_Pagination(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	auth := testutil.CreateUser(t, s.db, "Auth")
	g := testutil.CreateGroup(t, s.db, "Группа", "test-slug_1")
	testutil.CreatePosts(t, s.db, auth, g, 13)

	cases := []struct {
		page int
		want int
	}{{1, 10}, {2, 3}, {3, 0}, {0, 10}, {-5, 10}, {922337203685477582, 0}, {math.MaxInt, 0}}
	for _, tc := range cases {
		page, err := s.feed.Index(ctx, tc.page)
		require.NoError(t, err)
		assert.Len(t, page.Items, tc.want, "page %d", tc.page)
		assert.Equal(t, 2, page.NumPages)
		assert.EqualValues(t, 13, page.Total)
	}

	_, page, err := s.feed.Group(ctx, "test-slug_1", 2)
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.True(t, page.HasPrevious())
	assert.False(t, page.HasNext())

	_, _, err = s.feed.Group(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = s.feed.Profile(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	empty, err := s.feed.Following(ctx, auth.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
	assert.Equal(t, 1, empty.NumPages)
}

func TestRelationshipService(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	auth := testutil.CreateUser(t, s.db, "Auth")
	follower := testutil.CreateUser(t, s.db, "Follower")
	testutil.CreatePosts(t, s.db, auth, nil, 2)

	_, err := s.rel.Follow(ctx, follower.ID, follower.ID)
	assert.ErrorIs(t, err, ErrFollowSelf)

	_, err = s.rel.Follow(ctx, follower.ID, auth.ID)
	require.NoError(t, err)
	_, err = s.rel.Follow(ctx, follower.ID, auth.ID)
	assert.ErrorIs(t, err, ErrConflict)

	ok, err := s.rel.IsFollowing(ctx, follower.ID, auth.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	page, err := s.feed.Following(ctx, follower.ID, 1)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	own, err := s.feed.Following(ctx, auth.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, own.Items)

	names, err := s.rel.ListFollowing(ctx, follower.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Auth"}, names)
	names, err = s.rel.ListFollowers(ctx, auth.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Follower"}, names)

	require.NoError(t, s.rel.Unfollow(ctx, follower.ID, auth.ID))
	require.NoError(t, s.rel.Unfollow(ctx, follower.ID, auth.ID))
	ok, err = s.rel.IsFollowing(ctx, follower.ID, auth.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthService(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	u, err := s.auth.Signup(ctx, "NameSurname", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", u.Password)

	_, err = s.auth.Signup(ctx, "NameSurname", "another-pass")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.auth.Signup(ctx, "bad name!", "another-pass")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.auth.Signup(ctx, "short", "123")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.auth.Login(ctx, "NameSurname", "wrong")
	assert.ErrorIs(t, err, ErrBadLogin)
	_, err = s.auth.Login(ctx, "nobody", "s3cret-pass")
	assert.ErrorIs(t, err, ErrBadLogin)

	logged, err := s.auth.Login(ctx, "NameSurname", "s3cret-pass")
	require.NoError(t, err)

	token, err := s.auth.IssueToken(logged)
	require.NoError(t, err)
	id, err := s.auth.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	_, err = s.auth.ParseToken(token + "x")
	assert.Error(t, err)

	other := NewAuthService(repository.NewUserRepository(s.db), "other-secret", time.Hour)
	_, err = other.ParseToken(token)
	assert.Error(t, err)
}

func TestAuthService_ExpiredToken(t *testing.T) {
	s := newServices(t)
	u := testutil.CreateUser(t, s.db, "Auth")
	svc := NewAuthService(repository.NewUserRepository(s.db), "secret", time.Minute).(*authService)
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := svc.IssueToken(u)
	require.NoError(t, err)
	svc.now = time.Now
	_, err = svc.ParseToken(token)
	assert.Error(t, err)
}
