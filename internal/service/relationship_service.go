package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/pkg/logger"
)

// RelationshipService 关系链服务
type RelationshipService interface {
	Follow(ctx context.Context, fromUserID, toUserID uint) (*model.Follow, error)
	Unfollow(ctx context.Context, fromUserID, toUserID uint) error
	IsFollowing(ctx context.Context, fromUserID, toUserID uint) (bool, error)
	ListFollowing(ctx context.Context, userID uint, page, pageSize int) ([]string, error)
	ListFollowers(ctx context.Context, userID uint, page, pageSize int) ([]string, error)
}

type relationshipService struct {
	followRepo repository.FollowRepository
}

func NewRelationshipService(followRepo repository.FollowRepository) RelationshipService {
	return &relationshipService{followRepo: followRepo}
}

// Follow 重复关注返回 ErrConflict，调用方通常先用 IsFollowing 判断
func (s *relationshipService) Follow(ctx context.Context, fromUserID, toUserID uint) (*model.Follow, error) {
	if fromUserID == toUserID {
		return nil, ErrFollowSelf
	}
	f, err := s.followRepo.Create(ctx, fromUserID, toUserID)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, err
	}
	logger.Debug("follow created", zap.Uint("user_id", fromUserID), zap.Uint("author_id", toUserID))
	return f, nil
}

// Unfollow 关系不存在时为空操作
func (s *relationshipService) Unfollow(ctx context.Context, fromUserID, toUserID uint) error {
	return s.followRepo.Delete(ctx, fromUserID, toUserID)
}

func (s *relationshipService) IsFollowing(ctx context.Context, fromUserID, toUserID uint) (bool, error) {
	return s.followRepo.Exists(ctx, fromUserID, toUserID)
}

func (s *relationshipService) ListFollowing(ctx context.Context, userID uint, page, pageSize int) ([]string, error) {
	page, pageSize = normalize(page, pageSize)
	items, err := s.followRepo.ListFollowings(ctx, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	res := make([]string, len(items))
	for i, it := range items {
		res[i] = it.Author.Username
	}
	return res, nil
}

func (s *relationshipService) ListFollowers(ctx context.Context, userID uint, page, pageSize int) ([]string, error) {
	page, pageSize = normalize(page, pageSize)
	items, err := s.followRepo.ListFollowers(ctx, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	res := make([]string, len(items))
	for i, it := range items {
		res[i] = it.User.Username
	}
	return res, nil
}

func normalize(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = PageSize
	}
	return page, pageSize
}
