package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/service"
)

func (h *Handler) LoginForm(c *gin.Context) {
	h.html(c, http.StatusOK, "users/login", gin.H{"Next": middleware.SafeNext(c.Query("next"))})
}

// Login 成功后写入会话 cookie 并跳转到 next
func (h *Handler) Login(c *gin.Context) {
	username := c.PostForm("username")
	next := middleware.SafeNext(c.PostForm("next"))

	user, err := h.authSvc.Login(c.Request.Context(), username, c.PostForm("password"))
	if err != nil {
		if errors.Is(err, service.ErrBadLogin) {
			h.html(c, http.StatusOK, "users/login", gin.H{
				"Next":     next,
				"Username": username,
				"Error":    "Введите правильные имя пользователя и пароль.",
			})
			return
		}
		h.serverError(c, err)
		return
	}
	if err := h.startSession(c, user); err != nil {
		h.serverError(c, err)
		return
	}
	c.Redirect(http.StatusFound, next)
}

func (h *Handler) SignupForm(c *gin.Context) {
	h.html(c, http.StatusOK, "users/signup", gin.H{"Fields": service.SignupFormFields})
}

// Signup 注册后直接登录
func (h *Handler) Signup(c *gin.Context) {
	username := c.PostForm("username")
	user, err := h.authSvc.Signup(c.Request.Context(), username, c.PostForm("password"))
	if err != nil {
		if fields, ok := validationFields(err); ok {
			h.html(c, http.StatusOK, "users/signup", gin.H{
				"Fields":   service.SignupFormFields,
				"Username": username,
				"Errors":   fields,
			})
			return
		}
		h.serverError(c, err)
		return
	}
	if err := h.startSession(c, user); err != nil {
		h.serverError(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.opts.CookieName, "", -1, "/", "", h.opts.CookieSecure, true)
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) startSession(c *gin.Context, user *model.User) error {
	token, err := h.authSvc.IssueToken(user)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.opts.CookieName, token, int(h.opts.TokenTTL.Seconds()), "/", "", h.opts.CookieSecure, true)
	return nil
}
