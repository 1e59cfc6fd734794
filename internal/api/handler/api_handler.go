package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/pkg/logger"
	"github.com/d60-Lab/yatube/pkg/response"
)

// PostDTO 帖子的 JSON 表示
type PostDTO struct {
	ID        uint         `json:"id"`
	Text      string       `json:"text"`
	Author    string       `json:"author"`
	Group     string       `json:"group,omitempty"`
	Image     string       `json:"image,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	Comments  []CommentDTO `json:"comments,omitempty"`
}

type CommentDTO struct {
	ID        uint      `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// PageDTO 分页结果
type PageDTO struct {
	Page     int       `json:"page"`
	NumPages int       `json:"num_pages"`
	Total    int64     `json:"total"`
	PageSize int       `json:"page_size"`
	Items    []PostDTO `json:"items"`
}

func (h *Handler) postDTO(p *model.Post) PostDTO {
	dto := PostDTO{
		ID:        p.ID,
		Text:      p.Text,
		Author:    p.Author.Username,
		Image:     h.media.URL(p.Image),
		CreatedAt: p.CreatedAt,
	}
	if p.Group != nil {
		dto.Group = p.Group.Slug
	}
	for _, cm := range p.Comments {
		dto.Comments = append(dto.Comments, CommentDTO{
			ID:        cm.ID,
			Author:    cm.Author.Username,
			Text:      cm.Text,
			CreatedAt: cm.CreatedAt,
		})
	}
	return dto
}

func (h *Handler) pageDTO(p *service.Page) PageDTO {
	items := make([]PostDTO, len(p.Items))
	for i, post := range p.Items {
		items[i] = h.postDTO(post)
	}
	return PageDTO{Page: p.Number, NumPages: p.NumPages, Total: p.Total, PageSize: p.PageSize, Items: items}
}

func apiFail(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNotFound) {
		response.NotFound(c, "not found")
		return
	}
	response.InternalError(c, err)
}

// ListPosts 首页帖子流
// @Summary 帖子列表
// @Tags 帖子
// @Produce json
// @Param page query int false "页码" default(1)
// @Success 200 {object} response.Response{data=PageDTO}
// @Router /api/v1/posts [get]
func (h *Handler) ListPosts(c *gin.Context) {
	page, err := h.feedSvc.Index(c.Request.Context(), pageNumber(c))
	if err != nil {
		apiFail(c, err)
		return
	}
	response.Success(c, h.pageDTO(page))
}

// GetPost 帖子详情，含评论
// @Summary 帖子详情
// @Tags 帖子
// @Produce json
// @Param id path int true "帖子ID"
// @Success 200 {object} response.Response{data=PostDTO}
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [get]
func (h *Handler) GetPost(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		response.NotFound(c, "not found")
		return
	}
	post, _, err := h.postSvc.Detail(c.Request.Context(), id)
	if err != nil {
		apiFail(c, err)
		return
	}
	response.Success(c, h.postDTO(post))
}

// ListGroupPosts 分组帖子流
// @Summary 分组帖子
// @Tags 帖子
// @Produce json
// @Param slug path string true "分组 slug"
// @Param page query int false "页码" default(1)
// @Success 200 {object} response.Response{data=PageDTO}
// @Failure 404 {object} response.Response
// @Router /api/v1/groups/{slug}/posts [get]
func (h *Handler) ListGroupPosts(c *gin.Context) {
	_, page, err := h.feedSvc.Group(c.Request.Context(), c.Param("slug"), pageNumber(c))
	if err != nil {
		apiFail(c, err)
		return
	}
	response.Success(c, h.pageDTO(page))
}

// ListProfilePosts 作者帖子流
// @Summary 作者帖子
// @Tags 帖子
// @Produce json
// @Param username path string true "用户名"
// @Param page query int false "页码" default(1)
// @Success 200 {object} response.Response{data=PageDTO}
// @Failure 404 {object} response.Response
// @Router /api/v1/profiles/{username}/posts [get]
func (h *Handler) ListProfilePosts(c *gin.Context) {
	_, page, err := h.feedSvc.Profile(c.Request.Context(), c.Param("username"), pageNumber(c))
	if err != nil {
		apiFail(c, err)
		return
	}
	response.Success(c, h.pageDTO(page))
}

// ListFollowing 查询某用户关注的作者
// @Summary 查询关注列表
// @Tags 关系链
// @Param username path string true "用户名"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 404 {object} response.Response
// @Router /api/v1/profiles/{username}/following [get]
func (h *Handler) ListFollowing(c *gin.Context) {
	h.listRelations(c, h.relService.ListFollowing)
}

// ListFollowers 查询某用户的关注者
// @Summary 查询粉丝列表
// @Tags 关系链
// @Param username path string true "用户名"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 404 {object} response.Response
// @Router /api/v1/profiles/{username}/followers [get]
func (h *Handler) ListFollowers(c *gin.Context) {
	h.listRelations(c, h.relService.ListFollowers)
}

type relationLister func(ctx context.Context, userID uint, page, pageSize int) ([]string, error)

func (h *Handler) listRelations(c *gin.Context, list relationLister) {
	user, err := h.authSvc.UserByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		apiFail(c, err)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	names, err := list(c.Request.Context(), user.ID, page, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": names})
}

// ClearCache 清空页面缓存
// @Summary 清空页面缓存
// @Tags 运维
// @Produce json
// @Security AdminToken
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/v1/admin/cache/clear [post]
func (h *Handler) ClearCache(c *gin.Context) {
	if err := h.pageCache.Clear(c.Request.Context()); err != nil {
		response.InternalError(c, err)
		return
	}
	logger.Info("page cache cleared")
	response.Success(c, nil)
}
