package model

import "time"

// Follow 关注关系（User 关注 Author）
type Follow struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	UserID   uint `json:"user_id" gorm:"index:idx_follow_user;uniqueIndex:idx_follow_pair;not null"`
	User     User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	AuthorID uint `json:"author_id" gorm:"index:idx_follow_author;uniqueIndex:idx_follow_pair;not null"`
	Author   User `json:"-" gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
	// 复合唯一键，避免重复关注
	// idx_follow_pair = (user_id, author_id)
	CreatedAt time.Time `json:"created_at"`
}

func (Follow) TableName() string { return "follows" }

// All 返回需要迁移的全部模型
func All() []any {
	return []any{&User{}, &Group{}, &Post{}, &Comment{}, &Follow{}}
}
