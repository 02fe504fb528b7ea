package storage

import (
	"context"

	"github.com/google/uuid"

	"desktown-backend/shared/database/models/notification"
	"desktown-backend/shared/utils/query"
)

func (s *Storage) CreateNotification(ctx context.Context, n *notification.Notification) error {
	if n.Level == "" {
		n.Level = notification.NotificationLevelInfo
	}
	return translate(s.conn(ctx).Create(n).Error)
}

// ListNotifications returns the user's notifications, newest first. unreadOnly narrows to unread rows.
func (s *Storage) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, params query.Params) ([]notification.Notification, int64, error) {
	db := s.conn(ctx).Model(&notification.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		db = db.Where("is_read = ?", false)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []notification.Notification
	err := query.ApplyPagination(db.Order("created_at DESC, id DESC"), params).Find(&items).Error
	return items, total, err
}

func (s *Storage) NotificationUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&notification.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkNotificationRead is idempotent; an already-read row keeps its original read_at
func (s *Storage) MarkNotificationRead(ctx context.Context, id uint, userID uuid.UUID) error {
	var n notification.Notification
	if err := s.conn(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		return translate(err)
	}
	if n.IsRead {
		return nil
	}
	return s.conn(ctx).Model(&notification.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_read": true, "read_at": s.now()}).Error
}

func (s *Storage) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := s.conn(ctx).Model(&notification.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": s.now()})
	return result.RowsAffected, result.Error
}

func (s *Storage) DeleteNotification(ctx context.Context, id uint, userID uuid.UUID) error {
	return affected(s.conn(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&notification.Notification{}))
}
