package router

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/d60-Lab/yatube/docs"
	"github.com/d60-Lab/yatube/internal/api/handler"
	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/service"
)

// Options 路由层配置
type Options struct {
	LoginURL    string
	CookieName  string
	MediaRoot   string
	MediaURL    string
	AdminToken  string
	Tracing     bool
	ServiceName string
	// RateLimiter 为 nil 时不限流
	RateLimiter *middleware.IPRateLimiter
}

// Setup 组装 gin 引擎
func Setup(h *handler.Handler, auth service.AuthService, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery(h.ServerError))
	if opts.Tracing {
		r.Use(otelgin.Middleware(opts.ServiceName))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/media/"})))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if opts.MediaRoot != "" {
		r.Static(strings.TrimSuffix(opts.MediaURL, "/"), opts.MediaRoot)
	}

	api := r.Group("/api/v1", cors.Default())
	{
		api.GET("/posts", h.ListPosts)
		api.GET("/posts/:id", h.GetPost)
		api.GET("/groups/:slug/posts", h.ListGroupPosts)
		api.GET("/profiles/:username/posts", h.ListProfilePosts)
		api.GET("/profiles/:username/following", h.ListFollowing)
		api.GET("/profiles/:username/followers", h.ListFollowers)
		api.POST("/admin/cache/clear", middleware.AdminToken(opts.AdminToken), h.ClearCache)
	}

	site := r.Group("/",
		middleware.Session(auth, opts.CookieName),
		middleware.RateLimit(opts.RateLimiter, h.TooManyRequests),
	)
	{
		site.GET("/", h.Index)
		site.GET("/group/:slug/", h.GroupPosts)
		site.GET("/profile/:username/", h.Profile)
		site.GET("/posts/:id/", h.PostDetail)

		site.GET("/auth/login/", h.LoginForm)
		site.POST("/auth/login/", h.Login)
		site.GET("/auth/signup/", h.SignupForm)
		site.POST("/auth/signup/", h.Signup)
		site.GET("/auth/logout/", h.Logout)
		site.POST("/auth/logout/", h.Logout)
	}

	private := site.Group("/", middleware.LoginRequired(opts.LoginURL))
	{
		private.GET("/create/", h.PostCreateForm)
		private.POST("/create/", h.PostCreate)
		private.GET("/posts/:id/edit/", h.PostEditForm)
		private.POST("/posts/:id/edit/", h.PostEdit)
		private.GET("/posts/:id/comment/", h.AddComment)
		private.POST("/posts/:id/comment/", h.AddComment)
		private.GET("/follow/", h.FollowIndex)
		private.GET("/profile/:username/follow/", h.ProfileFollow)
		private.POST("/profile/:username/follow/", h.ProfileFollow)
		private.GET("/profile/:username/unfollow/", h.ProfileUnfollow)
		private.POST("/profile/:username/unfollow/", h.ProfileUnfollow)
	}

	// 404 页面需要识别当前用户
	r.NoRoute(middleware.Session(auth, opts.CookieName), h.NotFound)
	return r
}
