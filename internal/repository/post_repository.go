package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/yatube/internal/model"
)

// PostFilter 帖子列表过滤条件，全部为空表示全站
type PostFilter struct {
	GroupID    *uint
	AuthorID   *uint
	FollowerID *uint // 只返回该用户关注的作者的帖子
}

// PostChanges 作者可修改的字段
type PostChanges struct {
	Text    string
	GroupID *uint
	Image   string
}

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	Update(ctx context.Context, id uint, changes PostChanges) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*model.Post, error)
	// GetDetail 预加载作者、分组和按时间升序的评论
	GetDetail(ctx context.Context, id uint) (*model.Post, error)
	List(ctx context.Context, filter PostFilter, offset, limit int) ([]*model.Post, int64, error)
	CountByAuthor(ctx context.Context, authorID uint) (int64, error)
}

type postRepository struct{ db *gorm.DB }

func NewPostRepository(db *gorm.DB) PostRepository { return &postRepository{db: db} }

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Omit("Author", "Group", "Comments").Create(post).Error
}

// Update 只更新正文、分组、图片；id / 作者 / 创建时间不参与
func (r *postRepository) Update(ctx context.Context, id uint, changes PostChanges) error {
	res := r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"text":     changes.Text,
			"group_id": changes.GroupID,
			"image":    changes.Image,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete 删除帖子及其评论
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*model.Post, error) {
	var p model.Post
	err := r.db.WithContext(ctx).Preload("Author").Preload("Group").First(&p, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *postRepository) GetDetail(ctx context.Context, id uint) (*model.Post, error) {
	var p model.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Group").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Preload("Comments.Author").
		First(&p, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// List 按创建时间倒序分页，同时返回总数
func (r *postRepository) List(ctx context.Context, filter PostFilter, offset, limit int) ([]*model.Post, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Model(&model.Post{})
		if filter.GroupID != nil {
			db = db.Where("posts.group_id = ?", *filter.GroupID)
		}
		if filter.AuthorID != nil {
			db = db.Where("posts.author_id = ?", *filter.AuthorID)
		}
		if filter.FollowerID != nil {
			sub := db.Session(&gorm.Session{NewDB: true}).
				Model(&model.Follow{}).
				Select("author_id").
				Where("user_id = ?", *filter.FollowerID)
			db = db.Where("posts.author_id IN (?)", sub)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 || int64(offset) >= total {
		return []*model.Post{}, total, nil
	}

	var res []*model.Post
	err := r.db.WithContext(ctx).
		Scopes(scope).
		Preload("Author").
		Preload("Group").
		Order("posts.created_at DESC").
		Order("posts.id DESC").
		Offset(offset).
		Limit(limit).
		Find(&res).Error
	if err != nil {
		return nil, 0, err
	}
	return res, total, nil
}

func (r *postRepository) CountByAuthor(ctx context.Context, authorID uint) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Post{}).Where("author_id = ?", authorID).Count(&cnt).Error
	return cnt, err
}
