package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/media"
	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/pkg/logger"
)

const renderTimeout = 10 * time.Second

// Index 首页；整页缓存 IndexTTL，写操作不失效
func (h *Handler) Index(c *gin.Context) {
	var viewer uint
	if u := middleware.CurrentUser(c); u != nil {
		viewer = u.ID
	}
	number := pageNumber(c)
	key := fmt.Sprintf("index_page:%d:%d", viewer, number)
	ctx := c.Request.Context()

	if body, ok, err := h.pageCache.Get(ctx, key); err != nil {
		logger.Warn("page cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		c.Data(http.StatusOK, "text/html; charset=utf-8", body)
		return
	}

	v, err, _ := h.indexFlight.Do(key, func() (any, error) {
		// 等待同一 key 的其他请求不受首个请求断开影响
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), renderTimeout)
		defer cancel()
		page, err := h.feedSvc.Index(ctx, number)
		if err != nil {
			return nil, err
		}
		body, err := h.page(c, "posts/index", gin.H{"PageObj": page})
		if err != nil {
			return nil, err
		}
		if err := h.pageCache.Set(ctx, key, body, h.opts.IndexTTL); err != nil {
			logger.Warn("page cache set failed", zap.String("key", key), zap.Error(err))
		}
		return body, nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", v.([]byte))
}

func (h *Handler) GroupPosts(c *gin.Context) {
	group, page, err := h.feedSvc.Group(c.Request.Context(), c.Param("slug"), pageNumber(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.html(c, http.StatusOK, "posts/group_list", gin.H{"Group": group, "PageObj": page})
}

func (h *Handler) Profile(c *gin.Context) {
	ctx := c.Request.Context()
	author, page, err := h.feedSvc.Profile(ctx, c.Param("username"), pageNumber(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	following := false
	if u := middleware.CurrentUser(c); u != nil && u.ID != author.ID {
		if following, err = h.relService.IsFollowing(ctx, u.ID, author.ID); err != nil {
			h.serverError(c, err)
			return
		}
	}
	h.html(c, http.StatusOK, "posts/profile", gin.H{
		"Author":      author,
		"PageObj":     page,
		"PostsNumber": page.Total,
		"Following":   following,
	})
}

func (h *Handler) PostDetail(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		h.NotFound(c)
		return
	}
	h.renderDetail(c, id, http.StatusOK, nil)
}

func (h *Handler) renderDetail(c *gin.Context, id uint, status int, errs map[string]string) {
	post, authorPosts, err := h.postSvc.Detail(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.html(c, status, "posts/post_detail", gin.H{
		"Post":              post,
		"AuthorPostsNumber": authorPosts,
		"Fields":            service.CommentFormFields,
		"Errors":            errs,
	})
}

// FollowIndex 关注作者的帖子流
func (h *Handler) FollowIndex(c *gin.Context) {
	u := middleware.CurrentUser(c)
	page, err := h.feedSvc.Following(c.Request.Context(), u.ID, pageNumber(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.html(c, http.StatusOK, "posts/follow", gin.H{"PageObj": page})
}

// postForm 表单原始值，重新渲染时回填
type postForm struct {
	Text       string
	GroupID    *uint
	ClearImage bool
	Errors     map[string]string
}

func (h *Handler) renderPostForm(c *gin.Context, status int, form postForm, edit *model.Post) {
	groups, err := h.postSvc.Groups(c.Request.Context())
	if err != nil {
		h.serverError(c, err)
		return
	}
	data := gin.H{
		"Fields":  service.PostFormFields,
		"Groups":  groups,
		"Text":    form.Text,
		"GroupID": form.GroupID,
		"Errors":  form.Errors,
		"IsEdit":  edit != nil,
	}
	if edit != nil {
		data["PostID"] = edit.ID
		data["Image"] = edit.Image
	}
	h.html(c, status, "posts/create_post", data)
}

// bindPostForm 读取 multipart 表单并保存图片；返回的 cleanup 在写库失败时删除图片
func (h *Handler) bindPostForm(c *gin.Context) (service.PostInput, postForm, func(), bool) {
	form := postForm{
		Text:       c.PostForm("text"),
		ClearImage: c.PostForm("image-clear") != "",
		Errors:     map[string]string{},
	}
	in := service.PostInput{Text: form.Text, ClearImage: form.ClearImage}
	cleanup := func() {}

	if raw := strings.TrimSpace(c.PostForm("group")); raw != "" {
		gid, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			form.Errors["group"] = "Выберите корректный вариант."
		} else {
			g := uint(gid)
			form.GroupID = &g
			in.GroupID = &g
		}
	}

	fh, err := c.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	case err != nil:
		form.Errors["image"] = "Не удалось прочитать файл."
	default:
		rel, err := h.media.SaveUpload(fh)
		if err != nil {
			switch {
			case errors.Is(err, media.ErrNotImage):
				form.Errors["image"] = "Загрузите правильное изображение."
			case errors.Is(err, media.ErrTooLarge):
				form.Errors["image"] = "Файл слишком большой."
			default:
				logger.Warn("save upload failed", zap.Error(err))
				form.Errors["image"] = "Не удалось сохранить файл."
			}
			break
		}
		in.Image = rel
		cleanup = func() { _ = h.media.Remove(rel) }
	}

	if len(form.Errors) > 0 {
		cleanup()
		return in, form, func() {}, false
	}
	return in, form, cleanup, true
}

func (h *Handler) PostCreateForm(c *gin.Context) {
	h.renderPostForm(c, http.StatusOK, postForm{}, nil)
}

// PostCreate 成功后跳转到作者主页
func (h *Handler) PostCreate(c *gin.Context) {
	u := middleware.CurrentUser(c)
	in, form, cleanup, ok := h.bindPostForm(c)
	if !ok {
		h.renderPostForm(c, http.StatusOK, form, nil)
		return
	}
	if _, err := h.postSvc.Create(c.Request.Context(), u.ID, in); err != nil {
		cleanup()
		if fields, ok := validationFields(err); ok {
			form.Errors = fields
			h.renderPostForm(c, http.StatusOK, form, nil)
			return
		}
		h.serverError(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/profile/"+u.Username+"/")
}

// editable 非作者跳转到帖子详情
func (h *Handler) editable(c *gin.Context) (*model.Post, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		h.NotFound(c)
		return nil, false
	}
	post, err := h.postSvc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	if post.AuthorID != middleware.CurrentUser(c).ID {
		c.Redirect(http.StatusFound, fmt.Sprintf("/posts/%d/", post.ID))
		return nil, false
	}
	return post, true
}

func (h *Handler) PostEditForm(c *gin.Context) {
	post, ok := h.editable(c)
	if !ok {
		return
	}
	h.renderPostForm(c, http.StatusOK, postForm{Text: post.Text, GroupID: post.GroupID}, post)
}

func (h *Handler) PostEdit(c *gin.Context) {
	post, ok := h.editable(c)
	if !ok {
		return
	}
	in, form, cleanup, ok := h.bindPostForm(c)
	if !ok {
		h.renderPostForm(c, http.StatusOK, form, post)
		return
	}
	_, err := h.postSvc.Update(c.Request.Context(), post.ID, middleware.CurrentUser(c).ID, in)
	if err != nil {
		cleanup()
		if errors.Is(err, service.ErrForbidden) {
			c.Redirect(http.StatusFound, fmt.Sprintf("/posts/%d/", post.ID))
			return
		}
		if fields, ok := validationFields(err); ok {
			form.Errors = fields
			h.renderPostForm(c, http.StatusOK, form, post)
			return
		}
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, fmt.Sprintf("/posts/%d/", post.ID))
}

// AddComment 评论挂在路径中的帖子上，表单里的其他字段忽略
func (h *Handler) AddComment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		h.NotFound(c)
		return
	}
	if c.Request.Method != http.MethodPost {
		c.Redirect(http.StatusFound, fmt.Sprintf("/posts/%d/", id))
		return
	}
	_, err := h.postSvc.AddComment(c.Request.Context(), id, middleware.CurrentUser(c).ID, c.PostForm("text"))
	if err != nil {
		if fields, ok := validationFields(err); ok {
			h.renderDetail(c, id, http.StatusOK, fields)
			return
		}
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, fmt.Sprintf("/posts/%d/", id))
}

// ProfileFollow 已关注或关注自己时不做任何事
func (h *Handler) ProfileFollow(c *gin.Context) {
	ctx := c.Request.Context()
	me := middleware.CurrentUser(c)
	author, err := h.authSvc.UserByUsername(ctx, c.Param("username"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if author.ID != me.ID {
		exists, err := h.relService.IsFollowing(ctx, me.ID, author.ID)
		if err != nil {
			h.serverError(c, err)
			return
		}
		if !exists {
			_, err := h.relService.Follow(ctx, me.ID, author.ID)
			if err != nil && !errors.Is(err, service.ErrConflict) && !errors.Is(err, service.ErrFollowSelf) {
				h.serverError(c, err)
				return
			}
		}
	}
	c.Redirect(http.StatusFound, "/profile/"+author.Username+"/")
}

func (h *Handler) ProfileUnfollow(c *gin.Context) {
	ctx := c.Request.Context()
	author, err := h.authSvc.UserByUsername(ctx, c.Param("username"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.relService.Unfollow(ctx, middleware.CurrentUser(c).ID, author.ID); err != nil {
		h.serverError(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/profile/"+author.Username+"/")
}
