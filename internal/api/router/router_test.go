package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/yatube/internal/api/handler"
	"github.com/d60-Lab/yatube/internal/cache"
	"github.com/d60-Lab/yatube/internal/media"
	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/render"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/internal/testutil"
)

const (
	cookieName = "yatube_session"
	adminToken = "admin-secret"
)

type testServer struct {
	engine *gin.Engine
	db     *gorm.DB
	cache  *cache.MemoryCache
	auth   service.AuthService
	posts  service.PostService
	rel    service.RelationshipService
}

func init() { gin.SetMode(gin.TestMode) }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.NewDB(t)
	postRepo := repository.NewPostRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	userRepo := repository.NewUserRepository(db)

	ts := &testServer{
		db:    db,
		cache: cache.NewMemoryCache(),
		auth:  service.NewAuthService(userRepo, "test-secret", time.Hour),
		posts: service.NewPostService(postRepo, repository.NewCommentRepository(db), groupRepo),
		rel:   service.NewRelationshipService(repository.NewFollowRepository(db)),
	}
	feed := service.NewFeedService(postRepo, groupRepo, userRepo)

	mediaRoot := t.TempDir()
	store := media.NewStore(mediaRoot, "/media/", 1<<20)
	renderer, err := render.New(store.URL)
	require.NoError(t, err)

	h := handler.New(handler.Options{
		LoginURL:   "/auth/login/",
		CookieName: cookieName,
		TokenTTL:   time.Hour,
		IndexTTL:   20 * time.Second,
	}, ts.posts, feed, ts.rel, ts.auth, ts.cache, store, renderer)

	ts.engine = Setup(h, ts.auth, Options{
		LoginURL:   "/auth/login/",
		CookieName: cookieName,
		MediaRoot:  mediaRoot,
		MediaURL:   "/media/",
		AdminToken: adminToken,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, req *http.Request, user *model.User) *httptest.ResponseRecorder {
	t.Helper()
	if user != nil {
		token, err := ts.auth.IssueToken(user)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func (ts *testServer) get(t *testing.T, path string, user *model.User) *httptest.ResponseRecorder {
	return ts.do(t, httptest.NewRequest(http.MethodGet, path, nil), user)
}

func (ts *testServer) postForm(t *testing.T, path string, form url.Values, user *model.User) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return ts.do(t, req, user)
}

func countPosts(body string) int { return strings.Count(body, `<article class="post" `) }

func TestIndex_Pagination(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "auth")
	testutil.CreatePosts(t, ts.db, author, nil, 13)

	for page, want := range map[string]int{"": 10, "?page=2": 3, "?page=3": 0, "?page=abc": 10} {
		w := ts.get(t, "/"+page, nil)
		require.Equal(t, http.StatusOK, w.Code, page)
		assert.Equal(t, want, countPosts(w.Body.String()), page)
	}
}

func TestGroupAndProfilePages(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "auth")
	group := testutil.CreateGroup(t, ts.db, "Тестовая группа", "test-slug")
	other := testutil.CreateGroup(t, ts.db, "Другая группа", "other-slug")
	testutil.CreatePosts(t, ts.db, author, group, 12)

	w := ts.get(t, "/group/test-slug/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, countPosts(w.Body.String()))
	assert.Contains(t, w.Body.String(), "Тестовая группа")

	w = ts.get(t, "/group/"+other.Slug+"/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, countPosts(w.Body.String()))

	w = ts.get(t, "/profile/auth/?page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, countPosts(w.Body.String()))
	assert.Contains(t, w.Body.String(), `<span class="posts-number">12</span>`)

	assert.Equal(t, http.StatusNotFound, ts.get(t, "/group/missing/", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.get(t, "/profile/nobody/", nil).Code)
}

func TestIndex_CachedUntilCleared(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "auth")
	posts := testutil.CreatePosts(t, ts.db, author, nil, 1)

	first := ts.get(t, "/", nil)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, 1, countPosts(first.Body.String()))

	require.NoError(t, ts.posts.Delete(context.Background(), posts[0].ID))

	cached := ts.get(t, "/", nil)
	assert.Equal(t, first.Body.Bytes(), cached.Body.Bytes())

	require.NoError(t, ts.cache.Clear(context.Background()))
	fresh := ts.get(t, "/", nil)
	assert.NotEqual(t, first.Body.Bytes(), fresh.Body.Bytes())
	assert.Equal(t, 0, countPosts(fresh.Body.String()))
}

func TestCreatePost_AnonymousRedirectsToLogin(t *testing.T) {
	ts := newTestServer(t)

	w := ts.postForm(t, "/create/", url.Values{"text": {"Тестовый текст"}}, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/login/?next=/create/", w.Header().Get("Location"))

	var count int64
	require.NoError(t, ts.db.Model(&model.Post{}).Count(&count).Error)
	assert.Zero(t, count)

	w = ts.get(t, "/follow/", nil)
	assert.Equal(t, "/auth/login/?next=/follow/", w.Header().Get("Location"))
}

// 最小的合法 gif
var smallGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x02, 0x00,
	0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xFF, 0xFF, 0xFF, 0x21, 0xF9, 0x04, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x2C, 0x00, 0x00, 0x00, 0x00,
	0x02, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x0C,
	0x0A, 0x00, 0x3B,
}

func multipartPost(t *testing.T, path string, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "small.gif")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestCreatePost_WithGroupAndImage(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "auth")
	group := testutil.CreateGroup(t, ts.db, "Тестовая группа", "test-slug")

	w := ts.get(t, "/create/", author)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="text"`)

	req := multipartPost(t, "/create/", map[string]string{
		"text":  "Пост с картинкой",
		"group": fmt.Sprint(group.ID),
	}, smallGIF)
	w = ts.do(t, req, author)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/auth/", w.Header().Get("Location"))

	var post model.Post
	require.NoError(t, ts.db.First(&post).Error)
	assert.Equal(t, "Пост с картинкой", post.Text)
	require.NotNil(t, post.GroupID)
	assert.Equal(t, group.ID, *post.GroupID)
	assert.True(t, strings.HasPrefix(post.Image, "posts/"))

	w = ts.get(t, "/media/"+post.Image, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.get(t, fmt.Sprintf("/posts/%d/", post.ID), nil)
	assert.Contains(t, w.Body.String(), `src="/media/`+post.Image+`"`)
}

func TestCreatePost_InvalidFormRerenders(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "auth")

	w := ts.postForm(t, "/create/", url.Values{"text": {"   "}}, author)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `data-field="text"`)

	req := multipartPost(t, "/create/", map[string]string{"text": "Текст"}, []byte("not an image at all"))
	w = ts.do(t, req, author)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `data-field="image"`)

	var count int64
	require.NoError(t, ts.db.Model(&model.Post{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEditPost(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "auth")
	stranger := testutil.CreateUser(t, ts.db, "stranger")
	post := testutil.CreatePosts(t, ts.db, author, nil, 1)[0]
	path := fmt.Sprintf("/posts/%d/edit/", post.ID)
	detail := fmt.Sprintf("/posts/%d/", post.ID)

	w := ts.get(t, path, stranger)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detail, w.Header().Get("Location"))

	w = ts.postForm(t, path, url.Values{"text": {"Чужая правка"}}, stranger)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detail, w.Header().Get("Location"))

	w = ts.get(t, path, nil)
	assert.Equal(t, "/auth/login/?next="+path, w.Header().Get("Location"))

	w = ts.get(t, path, author)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), post.Text)

	w = ts.postForm(t, path, url.Values{"text": {"Новый текст"}}, author)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detail, w.Header().Get("Location"))

	var got model.Post
	require.NoError(t, ts.db.First(&got, post.ID).Error)
	assert.Equal(t, "Новый текст", got.Text)
	assert.Equal(t, author.ID, got.AuthorID)
	assert.True(t, post.CreatedAt.Equal(got.CreatedAt))

	assert.Equal(t, http.StatusNotFound, ts.get(t, "/posts/999/edit/", author).Code)
}

func TestAddComment(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "auth")
	reader := testutil.CreateUser(t, ts.db, "reader")
	post := testutil.CreatePosts(t, ts.db, author, nil, 1)[0]
	path := fmt.Sprintf("/posts/%d/comment/", post.ID)

	w := ts.postForm(t, path, url.Values{"text": {"Анонимный"}}, nil)
	assert.Equal(t, "/auth/login/?next="+path, w.Header().Get("Location"))

	w = ts.postForm(t, path, url.Values{"text": {"Отличный пост"}, "author": {fmt.Sprint(author.ID)}}, reader)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), w.Header().Get("Location"))

	var comments []model.Comment
	require.NoError(t, ts.db.Find(&comments).Error)
	require.Len(t, comments, 1)
	assert.Equal(t, reader.ID, comments[0].AuthorID)
	assert.Equal(t, post.ID, comments[0].PostID)

	w = ts.get(t, fmt.Sprintf("/posts/%d/", post.ID), nil)
	assert.Contains(t, w.Body.String(), "Отличный пост")

	w = ts.postForm(t, path, url.Values{"text": {""}}, reader)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `data-field="text"`)

	assert.Equal(t, http.StatusNotFound, ts.postForm(t, "/posts/999/comment/", url.Values{"text": {"x"}}, reader).Code)
}

func TestFollowFlow(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "auth")
	reader := testutil.CreateUser(t, ts.db, "reader")
	stranger := testutil.CreateUser(t, ts.db, "stranger")
	testutil.CreatePosts(t, ts.db, author, nil, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		w := ts.get(t, "/profile/auth/follow/", reader)
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/profile/auth/", w.Header().Get("Location"))
	}
	var edges int64
	require.NoError(t, ts.db.Model(&model.Follow{}).Where("user_id = ? AND author_id = ?", reader.ID, author.ID).Count(&edges).Error)
	assert.Equal(t, int64(1), edges)

	w := ts.get(t, "/profile/auth/", reader)
	assert.Contains(t, w.Body.String(), `class="unfollow"`)

	assert.Equal(t, 2, countPosts(ts.get(t, "/follow/", reader).Body.String()))
	assert.Equal(t, 0, countPosts(ts.get(t, "/follow/", stranger).Body.String()))

	ts.get(t, "/profile/reader/follow/", reader)
	self, err := ts.rel.IsFollowing(ctx, reader.ID, reader.ID)
	require.NoError(t, err)
	assert.False(t, self)

	w = ts.postForm(t, "/profile/auth/unfollow/", url.Values{}, reader)
	assert.Equal(t, http.StatusFound, w.Code)
	following, err := ts.rel.IsFollowing(ctx, reader.ID, author.ID)
	require.NoError(t, err)
	assert.False(t, following)

	assert.Equal(t, http.StatusNotFound, ts.get(t, "/profile/nobody/follow/", reader).Code)
}

func TestNotFound(t *testing.T) {
	ts := newTestServer(t)
	w := ts.get(t, "/unexisting_page/", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "/unexisting_page/")

	assert.Equal(t, http.StatusNotFound, ts.get(t, "/posts/abc/", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.get(t, "/posts/42/", nil).Code)
}

func TestSignupLoginLogout(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get(t, "/auth/signup/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.postForm(t, "/auth/signup/", url.Values{"username": {"newbie"}, "password": {"long-password"}}, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), cookieName+"=")

	w = ts.postForm(t, "/auth/signup/", url.Values{"username": {"newbie"}, "password": {"long-password"}}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `data-field="username"`)

	w = ts.get(t, "/auth/login/?next=/create/", nil)
	assert.Contains(t, w.Body.String(), `value="/create/"`)

	w = ts.postForm(t, "/auth/login/", url.Values{"username": {"newbie"}, "password": {"wrong"}, "next": {"/create/"}}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Set-Cookie"))

	w = ts.postForm(t, "/auth/login/", url.Values{"username": {"newbie"}, "password": {"long-password"}, "next": {"/create/"}}, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/create/", w.Header().Get("Location"))

	w = ts.postForm(t, "/auth/login/", url.Values{"username": {"newbie"}, "password": {"long-password"}, "next": {"//evil.example"}}, nil)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = ts.get(t, "/auth/logout/", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestAPI(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "auth")
	reader := testutil.CreateUser(t, ts.db, "reader")
	group := testutil.CreateGroup(t, ts.db, "Тестовая группа", "test-slug")
	posts := testutil.CreatePosts(t, ts.db, author, group, 11)
	_, err := ts.rel.Follow(context.Background(), reader.ID, author.ID)
	require.NoError(t, err)

	w := ts.get(t, "/api/v1/posts?page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page handler.PageDTO
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &page))
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.NumPages)
	assert.Equal(t, int64(11), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, posts[0].ID, page.Items[0].ID)
	assert.Equal(t, "test-slug", page.Items[0].Group)

	w = ts.get(t, fmt.Sprintf("/api/v1/posts/%d", posts[10].ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var post handler.PostDTO
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &post))
	assert.Equal(t, "auth", post.Author)

	assert.Equal(t, http.StatusNotFound, ts.get(t, "/api/v1/posts/999", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.get(t, "/api/v1/groups/missing/posts", nil).Code)
	assert.Equal(t, http.StatusOK, ts.get(t, "/api/v1/groups/test-slug/posts", nil).Code)
	assert.Equal(t, http.StatusOK, ts.get(t, "/api/v1/profiles/auth/posts", nil).Code)

	w = ts.get(t, "/api/v1/profiles/reader/following", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), `"auth"`)

	w = ts.get(t, "/api/v1/profiles/auth/followers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), `"reader"`)
}

func TestAPI_ClearCache(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.cache.Set(context.Background(), "k", []byte("v"), time.Minute))

	w := ts.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/admin/cache/clear", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/cache/clear", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w = ts.do(t, req, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	_, ok, err := ts.cache.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpsEndpoints(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusOK, ts.get(t, "/healthz", nil).Code)

	w := ts.get(t, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestIndex_CacheKeyIgnoresExtraQuery(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "auth")
	testutil.CreatePosts(t, ts.db, author, nil, 3)

	for _, path := range []string{"/", "/?x=1", "/?x=2", "/?page=1&utm=a", "/?page=abc"} {
		require.Equal(t, http.StatusOK, ts.get(t, path, nil).Code, path)
	}
	assert.Equal(t, 1, ts.cache.Len())

	ts.get(t, "/?page=2", nil)
	assert.Equal(t, 2, ts.cache.Len())
}

func TestIndex_RendersWhenClientGone(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "auth")
	testutil.CreatePosts(t, ts.db, author, nil, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	w := ts.do(t, req, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, countPosts(w.Body.String()))
}
