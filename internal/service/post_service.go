package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/pkg/logger"
)

// PostInput 创建/编辑帖子的输入；Image 为空表示保持原图
type PostInput struct {
	Text       string
	GroupID    *uint
	Image      string
	ClearImage bool
}

// PostService 帖子与评论
type PostService interface {
	Create(ctx context.Context, authorID uint, in PostInput) (*model.Post, error)
	Update(ctx context.Context, postID, editorID uint, in PostInput) (*model.Post, error)
	Delete(ctx context.Context, postID uint) error
	Get(ctx context.Context, postID uint) (*model.Post, error)
	// Detail 帖子、按时间升序的评论以及作者帖子数
	Detail(ctx context.Context, postID uint) (*model.Post, int64, error)
	AddComment(ctx context.Context, postID, authorID uint, text string) (*model.Comment, error)
	Groups(ctx context.Context) ([]*model.Group, error)
}

type postService struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
	groups   repository.GroupRepository
}

func NewPostService(posts repository.PostRepository, comments repository.CommentRepository, groups repository.GroupRepository) PostService {
	return &postService{posts: posts, comments: comments, groups: groups}
}

func (s *postService) Create(ctx context.Context, authorID uint, in PostInput) (*model.Post, error) {
	in.Text = strings.TrimSpace(in.Text)
	if err := s.check(ctx, in); err != nil {
		return nil, err
	}
	p := &model.Post{Text: in.Text, AuthorID: authorID, GroupID: in.GroupID, Image: in.Image}
	if err := s.posts.Create(ctx, p); err != nil {
		return nil, err
	}
	logger.Info("post created", zap.Uint("post_id", p.ID), zap.Uint("author_id", authorID))
	return s.Get(ctx, p.ID)
}

func (s *postService) Update(ctx context.Context, postID, editorID uint, in PostInput) (*model.Post, error) {
	p, err := s.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p.AuthorID != editorID {
		return nil, ErrForbidden
	}
	in.Text = strings.TrimSpace(in.Text)
	if err := s.check(ctx, in); err != nil {
		return nil, err
	}

	image := p.Image
	switch {
	case in.Image != "":
		image = in.Image
	case in.ClearImage:
		image = ""
	}
	changes := repository.PostChanges{Text: in.Text, GroupID: in.GroupID, Image: image}
	if err := s.posts.Update(ctx, postID, changes); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.Get(ctx, postID)
}

func (s *postService) Delete(ctx context.Context, postID uint) error {
	if err := s.posts.Delete(ctx, postID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	logger.Info("post deleted", zap.Uint("post_id", postID))
	return nil
}

func (s *postService) Get(ctx context.Context, postID uint) (*model.Post, error) {
	p, err := s.posts.GetByID(ctx, postID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *postService) Detail(ctx context.Context, postID uint) (*model.Post, int64, error) {
	p, err := s.posts.GetDetail(ctx, postID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	cnt, err := s.posts.CountByAuthor(ctx, p.AuthorID)
	if err != nil {
		return nil, 0, err
	}
	return p, cnt, nil
}

// AddComment 评论总是挂在 postID 对应的帖子上
func (s *postService) AddComment(ctx context.Context, postID, authorID uint, text string) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if err := validateStruct(commentFields{Text: text}); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, postID); err != nil {
		return nil, err
	}
	c := &model.Comment{PostID: postID, AuthorID: authorID, Text: text}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *postService) Groups(ctx context.Context) ([]*model.Group, error) {
	return s.groups.List(ctx)
}

func (s *postService) check(ctx context.Context, in PostInput) error {
	if err := validateStruct(postFields{Text: in.Text}); err != nil {
		return err
	}
	if in.GroupID == nil {
		return nil
	}
	if _, err := s.groups.GetByID(ctx, *in.GroupID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fieldError("group", "Выберите корректный вариант.")
		}
		return err
	}
	return nil
}
