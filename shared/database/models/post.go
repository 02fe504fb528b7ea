package models

import (
	"time"

	"github.com/google/uuid"
)

type Post struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	AuthorID  uuid.UUID  `json:"author_id" gorm:"type:uuid;not null;index"`
	OfficeID  *uuid.UUID `json:"office_id,omitempty" gorm:"type:uuid;index"`
	Content   string     `json:"content" gorm:"type:text;not null"`
	ImageURL  string     `json:"image_url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	// Computed by the feed query
	LikeCount    int64 `json:"like_count" gorm:"->;-:migration"`
	CommentCount int64 `json:"comment_count" gorm:"->;-:migration"`
	LikedByMe    bool  `json:"liked_by_me" gorm:"->;-:migration"`

	Author *User   `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
	Office *Office `json:"-" gorm:"foreignKey:OfficeID;constraint:OnDelete:CASCADE"`
}

type PostLike struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PostID    uint      `json:"post_id" gorm:"not null;uniqueIndex:idx_post_like_user"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_post_like_user"`
	CreatedAt time.Time `json:"created_at"`

	Post *Post `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
}

type PostComment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PostID    uint      `json:"post_id" gorm:"not null;index"`
	AuthorID  uuid.UUID `json:"author_id" gorm:"type:uuid;not null"`
	Body      string    `json:"body" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`

	Post   *Post `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
	Author *User `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
}
