package storage

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"desktown-backend/shared/database/models/notification"
)

// UpsertPushSubscription binds an endpoint to the user, taking it over if another user registered it before
func (s *Storage) UpsertPushSubscription(ctx context.Context, sub *notification.PushSubscription) error {
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth", "user_agent", "updated_at"}),
	}).Create(sub).Error
	return translate(err)
}

func (s *Storage) ListPushSubscriptions(ctx context.Context, userID uuid.UUID) ([]notification.PushSubscription, error) {
	var subs []notification.PushSubscription
	err := s.conn(ctx).Where("user_id = ?", userID).Find(&subs).Error
	return subs, err
}

// DeletePushSubscription removes an endpoint. A zero userID removes it regardless of owner.
func (s *Storage) DeletePushSubscription(ctx context.Context, endpoint string, userID uuid.UUID) error {
	db := s.conn(ctx).Where("endpoint = ?", endpoint)
	if userID != uuid.Nil {
		db = db.Where("user_id = ?", userID)
	}
	return affected(db.Delete(&notification.PushSubscription{}))
}
