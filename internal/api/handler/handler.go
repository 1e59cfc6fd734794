package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/cache"
	"github.com/d60-Lab/yatube/internal/media"
	"github.com/d60-Lab/yatube/internal/render"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/pkg/logger"
)

// Options 页面层需要的配置
type Options struct {
	LoginURL     string
	CookieName   string
	CookieSecure bool
	TokenTTL     time.Duration
	IndexTTL     time.Duration
}

// Handler HTML 页面与 JSON API
type Handler struct {
	opts       Options
	postSvc    service.PostService
	feedSvc    service.FeedService
	relService service.RelationshipService
	authSvc    service.AuthService
	pageCache  cache.PageCache
	media      *media.Store
	render     *render.Renderer

	// 同一 key 的首页未命中只渲染一次
	indexFlight singleflight.Group
}

func New(
	opts Options,
	postSvc service.PostService,
	feedSvc service.FeedService,
	relService service.RelationshipService,
	authSvc service.AuthService,
	pageCache cache.PageCache,
	mediaStore *media.Store,
	renderer *render.Renderer,
) *Handler {
	return &Handler{
		opts:       opts,
		postSvc:    postSvc,
		feedSvc:    feedSvc,
		relService: relService,
		authSvc:    authSvc,
		pageCache:  pageCache,
		media:      mediaStore,
		render:     renderer,
	}
}

// html 渲染页面，自动带上当前用户
func (h *Handler) html(c *gin.Context, status int, name string, data gin.H) {
	body, err := h.page(c, name, data)
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.Data(status, "text/html; charset=utf-8", body)
}

func (h *Handler) page(c *gin.Context, name string, data gin.H) ([]byte, error) {
	if data == nil {
		data = gin.H{}
	}
	data["CurrentUser"] = middleware.CurrentUser(c)
	return h.render.Render(name, data)
}

// NotFound 未匹配路由与不存在的对象
func (h *Handler) NotFound(c *gin.Context) {
	h.html(c, http.StatusNotFound, "core/404", gin.H{"Path": c.Request.URL.Path})
}

// ServerError 500 页面，渲染失败时退回纯文本
func (h *Handler) ServerError(c *gin.Context) {
	body, err := h.page(c, "core/500", nil)
	if err != nil {
		c.String(http.StatusInternalServerError, "internal server error")
		return
	}
	c.Data(http.StatusInternalServerError, "text/html; charset=utf-8", body)
}

// TooManyRequests 写接口限流
func (h *Handler) TooManyRequests(c *gin.Context) {
	body, err := h.page(c, "core/429", nil)
	if err != nil {
		c.String(http.StatusTooManyRequests, "too many requests")
		return
	}
	c.Data(http.StatusTooManyRequests, "text/html; charset=utf-8", body)
}

func (h *Handler) serverError(c *gin.Context, err error) {
	_ = c.Error(err)
	logger.Error("request failed", zap.Error(err), zap.String("path", c.Request.URL.Path))
	h.ServerError(c)
}

// fail 统一处理 NotFound，其余按 500
func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNotFound) {
		h.NotFound(c)
		return
	}
	h.serverError(c, err)
}

// pageNumber 非法页码按第一页处理
func pageNumber(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func validationFields(err error) (map[string]string, bool) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return verr.Fields, true
	}
	return nil, false
}
