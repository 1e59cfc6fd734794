package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/pkg/logger"
)

const ctxCurrentUser = "current_user"

// Session 从会话 cookie 识别当前用户；无效 cookie 视为匿名
func Session(auth service.AuthService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}
		userID, err := auth.ParseToken(token)
		if err != nil {
			logger.Debug("invalid session token", zap.Error(err))
			c.Next()
			return
		}
		user, err := auth.UserByID(c.Request.Context(), userID)
		if err != nil {
			logger.Debug("session user not found", zap.Uint("user_id", userID), zap.Error(err))
			c.Next()
			return
		}
		c.Set(ctxCurrentUser, user)
		c.Next()
	}
}

// CurrentUser 匿名时返回 nil
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(ctxCurrentUser)
	if !ok {
		return nil
	}
	u, _ := v.(*model.User)
	return u
}

// SetCurrentUser 测试或其他认证方式注入当前用户
func SetCurrentUser(c *gin.Context, u *model.User) { c.Set(ctxCurrentUser, u) }

// LoginRequired 匿名请求重定向到登录页，并带上原始地址
func LoginRequired(loginURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) != nil {
			c.Next()
			return
		}
		c.Redirect(http.StatusFound, LoginRedirectURL(loginURL, c.Request.URL.RequestURI()))
		c.Abort()
	}
}

// LoginRedirectURL 生成 /auth/login/?next=/create/ 形式的地址，next 中保留斜杠
func LoginRedirectURL(loginURL, next string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(next), "%2F", "/")
	return loginURL + "?next=" + escaped
}

// SafeNext 只允许站内相对路径
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/"
	}
	return next
}
