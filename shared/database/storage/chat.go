package storage

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"desktown-backend/shared/database/models"
	"desktown-backend/shared/utils/query"
)

// DirectKey identifies the one-to-one thread between two users regardless of order
func DirectKey(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// CreateThread opens a thread for creator and participants. A non-group thread with a
// single other participant is deduplicated: the existing direct thread is returned with created=false.
func (s *Storage) CreateThread(ctx context.Context, creator uuid.UUID, name string, participants []uuid.UUID, isGroup bool) (*models.ChatThread, bool, error) {
	members := uniqueMembers(creator, participants)

	var directKey *string
	if !isGroup && len(members) == 2 {
		key := DirectKey(members[0], members[1])
		directKey = &key

		existing, err := s.directThread(ctx, key, members)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	thread := &models.ChatThread{
		Name:        name,
		IsGroup:     isGroup || len(members) > 2,
		DirectKey:   directKey,
		CreatedByID: creator,
	}

	err := s.Transaction(ctx, func(tx *Storage) error {
		if err := tx.db.Create(thread).Error; err != nil {
			return err
		}
		rows := make([]models.ChatParticipant, 0, len(members))
		for _, id := range members {
			rows = append(rows, models.ChatParticipant{ThreadID: thread.ID, UserID: id})
		}
		return tx.db.Create(&rows).Error
	})
	if err != nil {
		// a concurrent request created the same direct thread first
		if directKey != nil && IsUniqueViolation(err) {
			if existing, err := s.directThread(ctx, *directKey, members); err == nil && existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, translate(err)
	}

	return thread, true, nil
}

// directThread returns the thread stored under key while both members still take part in it.
// A thread that lost a member gives up the key so a fresh direct thread can be opened.
func (s *Storage) directThread(ctx context.Context, key string, members []uuid.UUID) (*models.ChatThread, error) {
	var existing models.ChatThread
	err := s.conn(ctx).Where("direct_key = ?", key).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var count int64
	err = s.conn(ctx).Model(&models.ChatParticipant{}).
		Where("thread_id = ? AND user_id IN ?", existing.ID, members).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if !existing.IsGroup && count == int64(len(members)) {
		return &existing, nil
	}

	if err := s.releaseDirectKey(ctx, existing.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Storage) releaseDirectKey(ctx context.Context, threadID uint) error {
	return s.conn(ctx).Model(&models.ChatThread{}).Where("id = ?", threadID).
		Update("direct_key", gorm.Expr("NULL")).Error
}

func uniqueMembers(creator uuid.UUID, participants []uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]bool{creator: true}
	members := []uuid.UUID{creator}
	for _, id := range participants {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}
	return members
}

func (s *Storage) GetThread(ctx context.Context, id uint) (*models.ChatThread, error) {
	var thread models.ChatThread
	if err := s.conn(ctx).First(&thread, id).Error; err != nil {
		return nil, translate(err)
	}
	return &thread, nil
}

func (s *Storage) IsParticipant(ctx context.Context, threadID uint, userID uuid.UUID) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&models.ChatParticipant{}).
		Where("thread_id = ? AND user_id = ?", threadID, userID).
		Count(&count).Error
	return count > 0, err
}

func (s *Storage) ListParticipants(ctx context.Context, threadID uint) ([]models.ChatParticipant, error) {
	var participants []models.ChatParticipant
	err := s.conn(ctx).Preload("User").Where("thread_id = ?", threadID).Order("id ASC").Find(&participants).Error
	return participants, err
}

// ParticipantIDs returns the user ids in a thread, used to fan out realtime events
func (s *Storage) ParticipantIDs(ctx context.Context, threadID uint) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.conn(ctx).Model(&models.ChatParticipant{}).Where("thread_id = ?", threadID).Pluck("user_id", &ids).Error
	return ids, err
}

// AddParticipant is idempotent; added is false when the user was already in the thread.
// A direct thread that gains a member becomes a group and stops answering for the pair.
func (s *Storage) AddParticipant(ctx context.Context, threadID uint, userID uuid.UUID) (bool, error) {
	added := false
	err := s.Transaction(ctx, func(tx *Storage) error {
		result := tx.db.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.ChatParticipant{ThreadID: threadID, UserID: userID})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		added = true
		return tx.db.Model(&models.ChatThread{}).Where("id = ?", threadID).
			Updates(map[string]interface{}{"is_group": true, "direct_key": gorm.Expr("NULL")}).Error
	})
	if err != nil {
		return false, translate(err)
	}
	return added, nil
}

// RemoveParticipant drops userID from the thread; a direct thread losing a member gives up its pair key
func (s *Storage) RemoveParticipant(ctx context.Context, threadID uint, userID uuid.UUID) error {
	return s.Transaction(ctx, func(tx *Storage) error {
		if err := affected(tx.db.Where("thread_id = ? AND user_id = ?", threadID, userID).Delete(&models.ChatParticipant{})); err != nil {
			return err
		}
		return tx.releaseDirectKey(ctx, threadID)
	})
}

// SendMessage appends to the thread and bumps its last activity
func (s *Storage) SendMessage(ctx context.Context, msg *models.ChatMessage) error {
	return s.Transaction(ctx, func(tx *Storage) error {
		if err := tx.db.Create(msg).Error; err != nil {
			return translate(err)
		}
		return tx.db.Model(&models.ChatThread{}).Where("id = ?", msg.ThreadID).
			Updates(map[string]interface{}{"last_message_at": msg.CreatedAt, "updated_at": s.now()}).Error
	})
}

// ListMessages returns a page in ascending id order. Without a cursor the newest page is returned.
func (s *Storage) ListMessages(ctx context.Context, threadID uint, cur query.Cursor) ([]models.ChatMessage, error) {
	db := s.conn(ctx).Preload("Sender").Where("thread_id = ?", threadID)

	var messages []models.ChatMessage
	if cur.After > 0 {
		err := query.ApplyCursor(db.Order("id ASC"), "id", cur).Find(&messages).Error
		return messages, err
	}

	if err := query.ApplyCursor(db.Order("id DESC"), "id", cur).Find(&messages).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// UnreadCount counts messages in the thread newer than the user's read marker and sent by someone else
func (s *Storage) UnreadCount(ctx context.Context, threadID uint, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.conn(ctx).Raw(`
		SELECT COUNT(cm.id)
		FROM chat_messages cm
		JOIN chat_participants cp ON cp.thread_id = cm.thread_id AND cp.user_id = ?
		WHERE cm.thread_id = ?
		  AND cm.sender_id <> ?
		  AND cm.id > COALESCE(cp.last_read_message_id, 0)`,
		userID, threadID, userID).Scan(&count).Error
	return count, err
}

// MarkThreadRead moves the user's marker to the thread's latest message.
// Repeating it is harmless and other participants' markers are untouched.
func (s *Storage) MarkThreadRead(ctx context.Context, threadID uint, userID uuid.UUID) (*uint, error) {
	result := s.conn(ctx).Exec(`
		UPDATE chat_participants
		SET last_read_message_id = GREATEST(
			COALESCE(last_read_message_id, 0),
			COALESCE((SELECT MAX(id) FROM chat_messages WHERE thread_id = ?), 0))
		WHERE thread_id = ? AND user_id = ?`,
		threadID, threadID, userID)
	if err := affected(result); err != nil {
		return nil, err
	}

	var participant models.ChatParticipant
	if err := s.conn(ctx).Where("thread_id = ? AND user_id = ?", threadID, userID).First(&participant).Error; err != nil {
		return nil, translate(err)
	}
	return participant.LastReadMessageID, nil
}

// TotalUnread sums unread messages across every thread the user belongs to
func (s *Storage) TotalUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.conn(ctx).Raw(`
		SELECT COUNT(cm.id)
		FROM chat_participants cp
		JOIN chat_messages cm ON cm.thread_id = cp.thread_id
		WHERE cp.user_id = ?
		  AND cm.sender_id <> ?
		  AND cm.id > COALESCE(cp.last_read_message_id, 0)`,
		userID, userID).Scan(&count).Error
	return count, err
}

// ListThreadsForUser returns the user's threads, most recently active first, with
// participants, the last message and the unread count for that user.
func (s *Storage) ListThreadsForUser(ctx context.Context, userID uuid.UUID) ([]models.ThreadSummary, error) {
	var threads []models.ChatThread
	err := s.conn(ctx).
		Joins("JOIN chat_participants cp ON cp.thread_id = chat_threads.id AND cp.user_id = ?", userID).
		Order("COALESCE(chat_threads.last_message_at, chat_threads.created_at) DESC").
		Find(&threads).Error
	if err != nil {
		return nil, err
	}
	if len(threads) == 0 {
		return []models.ThreadSummary{}, nil
	}

	ids := make([]uint, len(threads))
	for i, t := range threads {
		ids[i] = t.ID
	}

	var participants []models.ChatParticipant
	if err := s.conn(ctx).Preload("User").Where("thread_id IN ?", ids).Order("id ASC").Find(&participants).Error; err != nil {
		return nil, err
	}

	var lastMessages []models.ChatMessage
	err = s.conn(ctx).Raw(`
		SELECT DISTINCT ON (thread_id) *
		FROM chat_messages
		WHERE thread_id IN ?
		ORDER BY thread_id, id DESC`, ids).Scan(&lastMessages).Error
	if err != nil {
		return nil, err
	}

	var unread []struct {
		ThreadID uint
		Count    int64
	}
	err = s.conn(ctx).Raw(`
		SELECT cp.thread_id, COUNT(cm.id) AS count
		FROM chat_participants cp
		JOIN chat_messages cm ON cm.thread_id = cp.thread_id
		WHERE cp.user_id = ?
		  AND cm.sender_id <> ?
		  AND cm.id > COALESCE(cp.last_read_message_id, 0)
		GROUP BY cp.thread_id`, userID, userID).Scan(&unread).Error
	if err != nil {
		return nil, err
	}

	byThread := make(map[uint][]models.ChatParticipant, len(threads))
	for _, p := range participants {
		byThread[p.ThreadID] = append(byThread[p.ThreadID], p)
	}
	last := make(map[uint]models.ChatMessage, len(lastMessages))
	for _, m := range lastMessages {
		last[m.ThreadID] = m
	}
	counts := make(map[uint]int64, len(unread))
	for _, u := range unread {
		counts[u.ThreadID] = u.Count
	}

	summaries := make([]models.ThreadSummary, 0, len(threads))
	for _, t := range threads {
		summary := models.ThreadSummary{
			ChatThread:   t,
			Participants: byThread[t.ID],
			UnreadCount:  counts[t.ID],
		}
		if m, ok := last[t.ID]; ok {
			msg := m
			summary.LastMessage = &msg
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
