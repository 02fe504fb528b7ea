package storage

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"desktown-backend/shared/database/models"
)

func (s *Storage) CreateCall(ctx context.Context, call *models.VideoCall) error {
	if call.RoomID == "" {
		call.RoomID = uuid.NewString()
	}
	if call.Kind == "" {
		call.Kind = "video"
	}
	call.Status = models.CallRinging
	return translate(s.conn(ctx).Create(call).Error)
}

func (s *Storage) GetCall(ctx context.Context, id uint) (*models.VideoCall, error) {
	var call models.VideoCall
	if err := s.conn(ctx).Preload("Caller").Preload("Callee").First(&call, id).Error; err != nil {
		return nil, translate(err)
	}
	return &call, nil
}

// TransitionCall moves a call to status under a row lock, stamping start and end times
func (s *Storage) TransitionCall(ctx context.Context, id uint, status string) (*models.VideoCall, error) {
	err := s.Transaction(ctx, func(tx *Storage) error {
		var call models.VideoCall
		if err := tx.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&call, id).Error; err != nil {
			return translate(err)
		}
		if !models.CallCanTransition(call.Status, status) {
			return ErrInvalidTransition
		}

		now := s.now()
		updates := map[string]interface{}{"status": status}
		switch status {
		case models.CallAccepted:
			updates["started_at"] = now
		case models.CallEnded, models.CallDeclined, models.CallMissed:
			updates["ended_at"] = now
		}
		return tx.db.Model(&call).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetCall(ctx, id)
}

func (s *Storage) ListCallsForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.VideoCall, error) {
	var calls []models.VideoCall
	err := s.conn(ctx).Preload("Caller").Preload("Callee").
		Where("caller_id = ? OR callee_id = ?", userID, userID).
		Order("id DESC").Limit(limit).
		Find(&calls).Error
	return calls, err
}
