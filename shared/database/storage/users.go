package storage

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"desktown-backend/shared/database/models"
	"desktown-backend/shared/utils/query"
)

var (
	userFilterFields = map[string]string{
		"role":       "role",
		"presence":   "presence",
		"department": "department",
		"is_active":  "is_active",
	}
	userSortFields = map[string]string{
		"created_at": "created_at",
		"username":   "username",
		"first_name": "first_name",
		"last_seen":  "last_seen_at",
	}
	userSearchFields = []string{"first_name", "last_name", "username", "email", "job_title", "department"}
)

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Role == "" {
		user.Role = models.RoleMember
	}
	if user.Presence == "" {
		user.Presence = models.PresenceOffline
	}
	user.IsActive = true
	return translate(s.conn(ctx).Create(user).Error)
}

func (s *Storage) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.conn(ctx).Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).Where("LOWER(username) = LOWER(?)", username).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByLogin accepts either an email address or a username
func (s *Storage) GetUserByLogin(ctx context.Context, identifier string) (*models.User, error) {
	if strings.Contains(identifier, "@") {
		return s.GetUserByEmail(ctx, identifier)
	}
	return s.GetUserByUsername(ctx, identifier)
}

// GetUsers loads the given ids; missing ids are silently skipped
func (s *Storage) GetUsers(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	err := s.conn(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, translate(err)
}

func (s *Storage) ListUsers(ctx context.Context, params query.Params) ([]models.User, int64, error) {
	db := s.conn(ctx).Model(&models.User{})
	db = query.ApplyFilters(db, params.Filters, userFilterFields)
	db = query.ApplySearch(db, params.Search, userSearchFields)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	db = query.ApplySort(db, params.Sort, userSortFields, "created_at DESC")
	if err := query.ApplyPagination(db, params).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// ListOnlineUsers returns active users whose presence is anything but offline
func (s *Storage) ListOnlineUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.conn(ctx).
		Where("is_active = ? AND presence <> ?", true, models.PresenceOffline).
		Order("last_seen_at DESC NULLS LAST").
		Find(&users).Error
	return users, err
}

func (s *Storage) UpdateUser(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*models.User, error) {
	if len(updates) > 0 {
		if err := affected(s.conn(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)); err != nil {
			return nil, err
		}
	}
	return s.GetUser(ctx, id)
}

func (s *Storage) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	return affected(s.conn(ctx).Model(&models.User{}).Where("id = ?", id).Update("password", hash))
}

// UpdatePresence is the heartbeat: it records presence and the time it was seen
func (s *Storage) UpdatePresence(ctx context.Context, id uuid.UUID, presence string) (*models.User, error) {
	return s.UpdateUser(ctx, id, map[string]interface{}{
		"presence":     presence,
		"last_seen_at": s.now(),
	})
}

func (s *Storage) UpdateUserRole(ctx context.Context, id uuid.UUID, role string) (*models.User, error) {
	return s.UpdateUser(ctx, id, map[string]interface{}{"role": role})
}

// DeactivateUser disables the account; users are never hard-deleted
func (s *Storage) DeactivateUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.UpdateUser(ctx, id, map[string]interface{}{
		"is_active": false,
		"presence":  models.PresenceOffline,
	})
}

func (s *Storage) CountUsersByRole(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Role  string
		Count int64
	}
	err := s.conn(ctx).Model(&models.User{}).
		Select("role, COUNT(*) AS count").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(models.Roles))
	for _, r := range models.Roles {
		counts[r] = 0
	}
	for _, row := range rows {
		counts[row.Role] = row.Count
	}
	return counts, nil
}
