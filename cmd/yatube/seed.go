package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/pkg/database"
	"github.com/d60-Lab/yatube/pkg/logger"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

type seedOptions struct {
	users    int
	groups   int
	posts    int // 每个用户
	follows  int // 每个用户
	password string
	batch    int
}

// 本地演示数据：用户、分组、帖子和关注关系
func newSeedCmd() *cobra.Command {
	opts := seedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with demo data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := database.Migrate(a.db); err != nil {
				return err
			}
			st := time.Now()
			res, err := seed(cmd.Context(), a, opts)
			if err != nil {
				return err
			}
			logger.Info("seed finished",
				zap.Int("users", res.users),
				zap.Int("groups", res.groups),
				zap.Int("posts", res.posts),
				zap.Int("follows", res.follows),
				zap.Duration("took", time.Since(st)),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "users=%d groups=%d posts=%d follows=%d (password %q)\n",
				res.users, res.groups, res.posts, res.follows, opts.password)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.users, "users", 20, "number of users")
	cmd.Flags().IntVar(&opts.groups, "groups", 3, "number of groups")
	cmd.Flags().IntVar(&opts.posts, "posts", 15, "posts per user")
	cmd.Flags().IntVar(&opts.follows, "follows", 5, "authors followed by each user")
	cmd.Flags().StringVar(&opts.password, "password", "yatube-demo", "password for every seeded user")
	cmd.Flags().IntVar(&opts.batch, "batch", 1000, "insert batch size")
	return cmd
}

type seedResult struct {
	users, groups, posts, follows int
}

func seed(ctx context.Context, a *app, opts seedOptions) (seedResult, error) {
	var res seedResult
	if opts.batch <= 0 {
		opts.batch = 1000
	}
	hash := string(must(bcrypt.GenerateFromPassword([]byte(opts.password), bcrypt.DefaultCost)))

	run := uuid.NewString()[:8]
	groups := make([]model.Group, opts.groups)
	for i := range groups {
		groups[i] = model.Group{
			Title:       fmt.Sprintf("Группа %d", i+1),
			Slug:        fmt.Sprintf("group-%s-%d", run, i+1),
			Description: "Демонстрационная группа",
		}
	}
	if len(groups) > 0 {
		if err := a.db.CreateInBatches(&groups, opts.batch).Error; err != nil {
			return res, fmt.Errorf("seed groups: %w", err)
		}
	}
	res.groups = len(groups)

	users := make([]model.User, opts.users)
	for i := range users {
		users[i] = model.User{Username: fmt.Sprintf("u%s_%d", run, i), Password: hash}
	}
	if len(users) == 0 {
		return res, nil
	}
	if err := a.db.CreateInBatches(&users, opts.batch).Error; err != nil {
		return res, fmt.Errorf("seed users: %w", err)
	}
	res.users = len(users)

	// 时间递增，保证 feed 顺序可预期
	base := time.Now().Add(-time.Duration(opts.users*opts.posts) * time.Minute)
	posts := make([]model.Post, 0, opts.users*opts.posts)
	for i := 0; i < opts.posts; i++ {
		for j, u := range users {
			p := model.Post{
				Text:      fmt.Sprintf("Запись %d пользователя %s", i+1, u.Username),
				AuthorID:  u.ID,
				CreatedAt: base.Add(time.Duration(i*len(users)+j) * time.Minute),
			}
			if len(groups) > 0 && (i+j)%2 == 0 {
				gid := groups[(i+j)%len(groups)].ID
				p.GroupID = &gid
			}
			posts = append(posts, p)
		}
	}
	if len(posts) > 0 {
		if err := a.db.Omit("Author", "Group", "Comments").CreateInBatches(&posts, opts.batch).Error; err != nil {
			return res, fmt.Errorf("seed posts: %w", err)
		}
	}
	res.posts = len(posts)

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i, u := range users {
		followed := 0
		for _, k := range rnd.Perm(len(users)) {
			if followed >= opts.follows {
				break
			}
			if k == i {
				continue
			}
			if _, err := a.follows.Create(ctx, u.ID, users[k].ID); err != nil {
				return res, fmt.Errorf("seed follows: %w", err)
			}
			followed++
		}
		res.follows += followed
	}
	return res, nil
}
