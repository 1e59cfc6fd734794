// Package testutil 测试公共设施
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d60-Lab/yatube/internal/model"
)

// NewDB 返回迁移好的内存 sqlite
func NewDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	return open(tb, "file::memory:?_foreign_keys=on", 1)
}

// NewFileDB 临时目录中的文件库，允许多个连接并发写
func NewFileDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := "file:" + filepath.Join(tb.TempDir(), "yatube.db") + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	return open(tb, dsn, 8)
}

func open(tb testing.TB, dsn string, maxConns int) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		tb.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sql db: %v", err)
	}
	// 内存库每个连接独立，只能用单连接
	sqlDB.SetMaxOpenConns(maxConns)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateUser 直接写库，密码为占位值
func CreateUser(tb testing.TB, db *gorm.DB, username string) *model.User {
	tb.Helper()
	u := &model.User{Username: username, Password: "p"}
	if err := db.Create(u).Error; err != nil {
		tb.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

func CreateGroup(tb testing.TB, db *gorm.DB, title, slug string) *model.Group {
	tb.Helper()
	g := &model.Group{Title: title, Slug: slug, Description: "Тестовое описание группы"}
	if err := db.Create(g).Error; err != nil {
		tb.Fatalf("seed group %s: %v", slug, err)
	}
	return g
}

// CreatePosts 写入 n 条帖子，创建时间依次递增一秒
func CreatePosts(tb testing.TB, db *gorm.DB, author *model.User, group *model.Group, n int) []*model.Post {
	tb.Helper()
	base := time.Now().Add(-time.Duration(n) * time.Minute)
	out := make([]*model.Post, 0, n)
	for i := 0; i < n; i++ {
		p := &model.Post{
			Text:      fmt.Sprintf("Тестовый пост № %d", i+1),
			AuthorID:  author.ID,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if group != nil {
			p.GroupID = &group.ID
		}
		if err := db.WithContext(context.Background()).Omit("Author", "Group", "Comments").Create(p).Error; err != nil {
			tb.Fatalf("seed post: %v", err)
		}
		out = append(out, p)
	}
	return out
}
