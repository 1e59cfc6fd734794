package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/yatube/config"
	"github.com/d60-Lab/yatube/internal/cache"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/pkg/database"
	"github.com/d60-Lab/yatube/pkg/logger"
)

// app 各子命令共用的依赖
type app struct {
	cfg *config.Config
	db  *gorm.DB

	users    repository.UserRepository
	groups   repository.GroupRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	follows  repository.FollowRepository

	postSvc service.PostService
	feedSvc service.FeedService
	relSvc  service.RelationshipService
	authSvc service.AuthService
}

func newApp(cfg *config.Config) (*app, error) {
	db, err := database.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:      cfg,
		db:       db,
		users:    repository.NewUserRepository(db),
		groups:   repository.NewGroupRepository(db),
		posts:    repository.NewPostRepository(db),
		comments: repository.NewCommentRepository(db),
		follows:  repository.NewFollowRepository(db),
	}
	a.postSvc = service.NewPostService(a.posts, a.comments, a.groups)
	a.feedSvc = service.NewFeedService(a.posts, a.groups, a.users)
	a.relSvc = service.NewRelationshipService(a.follows)
	a.authSvc = service.NewAuthService(a.users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	return a, nil
}

func (a *app) Close() {
	if err := database.Close(a.db); err != nil {
		logger.Warn("close database", zap.Error(err))
	}
}

// newPageCache redis 启用时多实例共享缓存，否则使用进程内缓存
func newPageCache(ctx context.Context, cfg *config.Config) (cache.PageCache, func(), error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), func() {}, nil
	}
	client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
	}
	return cache.NewRedisCache(client, cfg.Cache.Prefix), func() { _ = client.Close() }, nil
}
