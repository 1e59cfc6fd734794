package model

import "time"

// Comment 评论，创建后不可修改
type Comment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PostID    uint      `json:"post_id" gorm:"index:idx_comment_post;not null"`
	AuthorID  uint      `json:"author_id" gorm:"not null"`
	Author    User      `json:"author" gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
	Text      string    `json:"text" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_comment_post"`
}

func (Comment) TableName() string { return "comments" }

func (c Comment) String() string {
	r := []rune(c.Text)
	if len(r) > 15 {
		return string(r[:15])
	}
	return c.Text
}
