package storage

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"desktown-backend/shared/database/models"
	"desktown-backend/shared/utils/query"
)

// EmailFlags are recipient-side toggles; nil leaves a flag unchanged
type EmailFlags struct {
	Read     *bool
	Starred  *bool
	Archived *bool
}

// SendEmail writes one row per recipient in a single transaction
func (s *Storage) SendEmail(ctx context.Context, senderID *uuid.UUID, from string, recipients []uuid.UUID, subject, body string) ([]models.InternalEmail, error) {
	rows := make([]models.InternalEmail, 0, len(recipients))
	seen := map[uuid.UUID]bool{}
	for _, r := range recipients {
		if seen[r] {
			continue
		}
		seen[r] = true
		rows = append(rows, models.InternalEmail{
			SenderID:    senderID,
			FromAddress: from,
			RecipientID: r,
			Subject:     subject,
			Body:        body,
		})
	}
	if len(rows) == 0 {
		return rows, nil
	}

	if err := s.conn(ctx).Create(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

func folderScope(db *gorm.DB, userID uuid.UUID, folder string) *gorm.DB {
	switch folder {
	case models.FolderSent:
		return db.Where("sender_id = ? AND sender_deleted = ?", userID, false)
	case models.FolderStarred:
		return db.Where("recipient_id = ? AND recipient_deleted = ? AND is_starred = ?", userID, false, true)
	case models.FolderArchived:
		return db.Where("recipient_id = ? AND recipient_deleted = ? AND is_archived = ?", userID, false, true)
	default:
		return db.Where("recipient_id = ? AND recipient_deleted = ? AND is_archived = ?", userID, false, false)
	}
}

func (s *Storage) ListEmails(ctx context.Context, userID uuid.UUID, folder string, params query.Params) ([]models.InternalEmail, int64, error) {
	db := folderScope(s.conn(ctx).Model(&models.InternalEmail{}), userID, folder)
	db = query.ApplySearch(db, params.Search, []string{"subject", "body", "from_address"})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var emails []models.InternalEmail
	err := query.ApplyPagination(db.Order("id DESC"), params).
		Preload("Sender").Preload("Recipient").
		Find(&emails).Error
	return emails, total, err
}

// GetEmail returns the message if userID is its sender or recipient and has not deleted it
func (s *Storage) GetEmail(ctx context.Context, id uint, userID uuid.UUID) (*models.InternalEmail, error) {
	var email models.InternalEmail
	err := s.conn(ctx).Preload("Sender").Preload("Recipient").
		Where("id = ?", id).
		Where("(sender_id = ? AND sender_deleted = ?) OR (recipient_id = ? AND recipient_deleted = ?)", userID, false, userID, false).
		First(&email).Error
	if err != nil {
		return nil, translate(err)
	}
	return &email, nil
}

// UpdateEmailFlags changes read, starred or archived state for the recipient
func (s *Storage) UpdateEmailFlags(ctx context.Context, id uint, recipientID uuid.UUID, flags EmailFlags) (*models.InternalEmail, error) {
	updates := map[string]interface{}{}
	if flags.Read != nil {
		updates["is_read"] = *flags.Read
		if *flags.Read {
			updates["read_at"] = s.now()
		} else {
			updates["read_at"] = nil
		}
	}
	if flags.Starred != nil {
		updates["is_starred"] = *flags.Starred
	}
	if flags.Archived != nil {
		updates["is_archived"] = *flags.Archived
	}

	if len(updates) > 0 {
		result := s.conn(ctx).Model(&models.InternalEmail{}).
			Where("id = ? AND recipient_id = ? AND recipient_deleted = ?", id, recipientID, false).
			Updates(updates)
		if err := affected(result); err != nil {
			return nil, err
		}
	}
	return s.GetEmail(ctx, id, recipientID)
}

// DeleteEmail hides the message for userID; the row goes once neither side can see it
func (s *Storage) DeleteEmail(ctx context.Context, id uint, userID uuid.UUID) error {
	return s.Transaction(ctx, func(tx *Storage) error {
		email, err := tx.GetEmail(ctx, id, userID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if email.SenderID != nil && *email.SenderID == userID {
			updates["sender_deleted"] = true
			email.SenderDeleted = true
		}
		if email.RecipientID == userID {
			updates["recipient_deleted"] = true
			email.RecipientDeleted = true
		}
		if err := tx.db.Model(&models.InternalEmail{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}

		senderGone := email.SenderID == nil || email.SenderDeleted
		if senderGone && email.RecipientDeleted {
			return tx.db.Delete(&models.InternalEmail{}, id).Error
		}
		return nil
	})
}

func (s *Storage) EmailUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&models.InternalEmail{}).
		Where("recipient_id = ? AND recipient_deleted = ? AND is_archived = ? AND is_read = ?", userID, false, false, false).
		Count(&count).Error
	return count, err
}
