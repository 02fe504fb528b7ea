package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"desktown-backend/shared/database/models"
)

// CreateMeeting stores the meeting and invites participants. The organizer is recorded as accepted.
func (s *Storage) CreateMeeting(ctx context.Context, meeting *models.Meeting, participants []uuid.UUID) error {
	return s.Transaction(ctx, func(tx *Storage) error {
		if err := tx.db.Create(meeting).Error; err != nil {
			return translate(err)
		}

		rows := []models.MeetingParticipant{{MeetingID: meeting.ID, UserID: meeting.OrganizerID, Response: models.RSVPAccepted}}
		for _, id := range uniqueMembers(meeting.OrganizerID, participants)[1:] {
			rows = append(rows, models.MeetingParticipant{MeetingID: meeting.ID, UserID: id, Response: models.RSVPPending})
		}
		if err := tx.db.Create(&rows).Error; err != nil {
			return translate(err)
		}
		meeting.Participants = rows
		return nil
	})
}

func (s *Storage) GetMeeting(ctx context.Context, id uint) (*models.Meeting, error) {
	var meeting models.Meeting
	if err := s.conn(ctx).First(&meeting, id).Error; err != nil {
		return nil, translate(err)
	}
	if err := s.conn(ctx).Preload("User").Where("meeting_id = ?", id).Order("id ASC").Find(&meeting.Participants).Error; err != nil {
		return nil, err
	}
	return &meeting, nil
}

// ListMeetingsForUser returns meetings the user organizes or is invited to, starting at or after from
func (s *Storage) ListMeetingsForUser(ctx context.Context, userID uuid.UUID, from *time.Time) ([]models.Meeting, error) {
	db := s.conn(ctx).Model(&models.Meeting{}).
		Where("organizer_id = ? OR id IN (SELECT meeting_id FROM meeting_participants WHERE user_id = ?)", userID, userID)
	if from != nil {
		db = db.Where("ends_at >= ?", *from)
	}

	var meetings []models.Meeting
	if err := db.Order("starts_at ASC").Find(&meetings).Error; err != nil {
		return nil, err
	}
	if len(meetings) == 0 {
		return meetings, nil
	}

	ids := make([]uint, len(meetings))
	for i, m := range meetings {
		ids[i] = m.ID
	}
	var participants []models.MeetingParticipant
	if err := s.conn(ctx).Preload("User").Where("meeting_id IN ?", ids).Order("id ASC").Find(&participants).Error; err != nil {
		return nil, err
	}
	byMeeting := map[uint][]models.MeetingParticipant{}
	for _, p := range participants {
		byMeeting[p.MeetingID] = append(byMeeting[p.MeetingID], p)
	}
	for i := range meetings {
		meetings[i].Participants = byMeeting[meetings[i].ID]
	}
	return meetings, nil
}

// UpdateMeeting applies field updates and, when invitees is non-nil, adds any new participants
func (s *Storage) UpdateMeeting(ctx context.Context, id uint, updates map[string]interface{}, invitees []uuid.UUID) (*models.Meeting, error) {
	err := s.Transaction(ctx, func(tx *Storage) error {
		if len(updates) > 0 {
			if err := affected(tx.db.Model(&models.Meeting{}).Where("id = ?", id).Updates(updates)); err != nil {
				return err
			}
		}
		for _, userID := range invitees {
			row := models.MeetingParticipant{MeetingID: id, UserID: userID, Response: models.RSVPPending}
			if err := tx.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return translate(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetMeeting(ctx, id)
}

// DeleteMeeting removes the meeting; participant rows cascade
func (s *Storage) DeleteMeeting(ctx context.Context, id uint) error {
	return affected(s.conn(ctx).Delete(&models.Meeting{}, id))
}

// RSVP records the invitee's response; ErrNotFound when the user was not invited
func (s *Storage) RSVP(ctx context.Context, meetingID uint, userID uuid.UUID, response string) error {
	return affected(s.conn(ctx).Model(&models.MeetingParticipant{}).
		Where("meeting_id = ? AND user_id = ?", meetingID, userID).
		Updates(map[string]interface{}{"response": response, "updated_at": s.now()}))
}
