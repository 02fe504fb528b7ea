package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"desktown-backend/shared/database/models"
)

const statusColumns = `statuses.*,
	(SELECT COUNT(*) FROM status_views sv WHERE sv.status_id = statuses.id) AS view_count`

// activeStatuses applies the read-time expiry predicate expires_at > now
func (s *Storage) activeStatuses(ctx context.Context) *gorm.DB {
	return s.conn(ctx).Model(&models.Status{}).
		Select(statusColumns).
		Where("statuses.expires_at > ?", s.now()).
		Preload("User")
}

// CreateStatus stamps expires_at = now + ttl
func (s *Storage) CreateStatus(ctx context.Context, status *models.Status, ttl time.Duration) error {
	if status.MediaType == "" {
		status.MediaType = "text"
	}
	status.ExpiresAt = s.now().Add(ttl)
	return translate(s.conn(ctx).Create(status).Error)
}

// ListActiveStatuses returns unexpired statuses, newest first. Expired rows stay in the table.
func (s *Storage) ListActiveStatuses(ctx context.Context) ([]models.Status, error) {
	var statuses []models.Status
	err := s.activeStatuses(ctx).Order("statuses.created_at DESC").Find(&statuses).Error
	return statuses, err
}

func (s *Storage) ListActiveStatusesForUser(ctx context.Context, userID uuid.UUID) ([]models.Status, error) {
	var statuses []models.Status
	err := s.activeStatuses(ctx).Where("statuses.user_id = ?", userID).Order("statuses.created_at ASC").Find(&statuses).Error
	return statuses, err
}

// GetActiveStatus treats an expired status as missing
func (s *Storage) GetActiveStatus(ctx context.Context, id uint) (*models.Status, error) {
	var status models.Status
	if err := s.activeStatuses(ctx).Where("statuses.id = ?", id).First(&status).Error; err != nil {
		return nil, translate(err)
	}
	return &status, nil
}

// RecordStatusView counts each viewer once
func (s *Storage) RecordStatusView(ctx context.Context, statusID uint, viewerID uuid.UUID) (bool, error) {
	result := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.StatusView{StatusID: statusID, ViewerID: viewerID})
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *Storage) ListStatusViewers(ctx context.Context, statusID uint) ([]models.StatusView, error) {
	var views []models.StatusView
	err := s.conn(ctx).Preload("Viewer").Where("status_id = ?", statusID).Order("viewed_at DESC").Find(&views).Error
	return views, err
}

// DeleteStatus only removes the owner's status
func (s *Storage) DeleteStatus(ctx context.Context, id uint, ownerID uuid.UUID) error {
	return affected(s.conn(ctx).Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.Status{}))
}

// PurgeExpiredStatuses hard-deletes expired rows on demand; nothing calls it on a timer
func (s *Storage) PurgeExpiredStatuses(ctx context.Context) (int64, error) {
	result := s.conn(ctx).Where("expires_at <= ?", s.now()).Delete(&models.Status{})
	return result.RowsAffected, result.Error
}

func (s *Storage) CountActiveStatuses(ctx context.Context) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&models.Status{}).Where("expires_at > ?", s.now()).Count(&count).Error
	return count, err
}
