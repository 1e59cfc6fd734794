package service

import (
	"context"
	"errors"
	"math"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
)

// PageSize 每页帖子数
const PageSize = 10

// Page 一页帖子，页码从 1 开始
type Page struct {
	Items    []*model.Post `json:"items"`
	Number   int           `json:"page"`
	NumPages int           `json:"num_pages"`
	Total    int64         `json:"total"`
	PageSize int           `json:"page_size"`
}

func (p *Page) Len() int            { return len(p.Items) }
func (p *Page) HasPrevious() bool   { return p.Number > 1 }
func (p *Page) HasNext() bool       { return p.Number < p.NumPages }
func (p *Page) PreviousNumber() int { return p.Number - 1 }
func (p *Page) NextNumber() int     { return p.Number + 1 }

// FeedService 组装首页、分组、个人主页和关注流
type FeedService interface {
	Index(ctx context.Context, page int) (*Page, error)
	Group(ctx context.Context, slug string, page int) (*model.Group, *Page, error)
	Profile(ctx context.Context, username string, page int) (*model.User, *Page, error)
	Following(ctx context.Context, userID uint, page int) (*Page, error)
}

type feedService struct {
	posts  repository.PostRepository
	groups repository.GroupRepository
	users  repository.UserRepository
}

func NewFeedService(posts repository.PostRepository, groups repository.GroupRepository, users repository.UserRepository) FeedService {
	return &feedService{posts: posts, groups: groups, users: users}
}

func (s *feedService) Index(ctx context.Context, page int) (*Page, error) {
	return s.page(ctx, repository.PostFilter{}, page)
}

func (s *feedService) Group(ctx context.Context, slug string, page int) (*model.Group, *Page, error) {
	g, err := s.groups.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	p, err := s.page(ctx, repository.PostFilter{GroupID: &g.ID}, page)
	return g, p, err
}

func (s *feedService) Profile(ctx context.Context, username string, page int) (*model.User, *Page, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	p, err := s.page(ctx, repository.PostFilter{AuthorID: &u.ID}, page)
	return u, p, err
}

func (s *feedService) Following(ctx context.Context, userID uint, page int) (*Page, error) {
	return s.page(ctx, repository.PostFilter{FollowerID: &userID}, page)
}

// page 超出最后一页时返回空列表而不是错误
func (s *feedService) page(ctx context.Context, filter repository.PostFilter, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	// 极大的页码不能让 offset 溢出成负数
	offset := math.MaxInt
	if page <= math.MaxInt/PageSize {
		offset = (page - 1) * PageSize
	}
	items, total, err := s.posts.List(ctx, filter, offset, PageSize)
	if err != nil {
		return nil, err
	}
	numPages := int((total + PageSize - 1) / PageSize)
	if numPages < 1 {
		numPages = 1
	}
	return &Page{Items: items, Number: page, NumPages: numPages, Total: total, PageSize: PageSize}, nil
}
