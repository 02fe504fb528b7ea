package storage

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"desktown-backend/shared/database/models"
	"desktown-backend/shared/utils/query"
)

const postColumns = `posts.*,
	(SELECT COUNT(*) FROM post_likes pl WHERE pl.post_id = posts.id) AS like_count,
	(SELECT COUNT(*) FROM post_comments pc WHERE pc.post_id = posts.id) AS comment_count,
	EXISTS (SELECT 1 FROM post_likes pl WHERE pl.post_id = posts.id AND pl.user_id = ?) AS liked_by_me`

func (s *Storage) postQuery(ctx context.Context, viewer uuid.UUID) *gorm.DB {
	return s.conn(ctx).Model(&models.Post{}).Select(postColumns, viewer).Preload("Author")
}

func (s *Storage) CreatePost(ctx context.Context, post *models.Post) error {
	return translate(s.conn(ctx).Create(post).Error)
}

// GetPost loads a post with like and comment counts as seen by viewer
func (s *Storage) GetPost(ctx context.Context, id uint, viewer uuid.UUID) (*models.Post, error) {
	var post models.Post
	if err := s.postQuery(ctx, viewer).Where("posts.id = ?", id).First(&post).Error; err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

// ListFeed pages newest-first by id. officeID limits the feed to one office's posts.
func (s *Storage) ListFeed(ctx context.Context, viewer uuid.UUID, officeID *uuid.UUID, cur query.Cursor) ([]models.Post, error) {
	db := s.postQuery(ctx, viewer)
	if officeID != nil {
		db = db.Where("posts.office_id = ?", *officeID)
	}
	if cur.Before > 0 {
		db = db.Where("posts.id < ?", cur.Before)
	}
	if cur.After > 0 {
		db = db.Where("posts.id > ?", cur.After)
	}

	var posts []models.Post
	err := db.Order("posts.id DESC").Limit(cur.Limit).Find(&posts).Error
	return posts, err
}

// DeletePost removes a post; likes and comments cascade
func (s *Storage) DeletePost(ctx context.Context, id uint) error {
	return affected(s.conn(ctx).Delete(&models.Post{}, id))
}

// LikePost is idempotent; created is false when the like already existed
func (s *Storage) LikePost(ctx context.Context, postID uint, userID uuid.UUID) (bool, error) {
	result := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&models.PostLike{PostID: postID, UserID: userID})
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *Storage) UnlikePost(ctx context.Context, postID uint, userID uuid.UUID) (bool, error) {
	result := s.conn(ctx).Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostLike{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Storage) CountPostLikes(ctx context.Context, postID uint) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&models.PostLike{}).Where("post_id = ?", postID).Count(&count).Error
	return count, err
}

func (s *Storage) AddPostComment(ctx context.Context, comment *models.PostComment) error {
	return translate(s.conn(ctx).Create(comment).Error)
}

func (s *Storage) ListPostComments(ctx context.Context, postID uint) ([]models.PostComment, error) {
	var comments []models.PostComment
	err := s.conn(ctx).Preload("Author").Where("post_id = ?", postID).Order("id ASC").Find(&comments).Error
	return comments, err
}

func (s *Storage) ListPostsByOffice(ctx context.Context, officeID uuid.UUID) ([]models.Post, error) {
	var posts []models.Post
	err := s.conn(ctx).Where("office_id = ?", officeID).Find(&posts).Error
	return posts, err
}
