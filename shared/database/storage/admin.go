package storage

import (
	"context"
	"time"

	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/models/notification"
	"desktown-backend/shared/utils/query"
)

// PlatformStats is the admin dashboard summary
type PlatformStats struct {
	UsersByRole      map[string]int64 `json:"users_by_role"`
	TotalUsers       int64            `json:"total_users"`
	Offices          int64            `json:"offices"`
	PublishedOffices int64            `json:"published_offices"`
	OrdersByStatus   map[string]int64 `json:"orders_by_status"`
	RevenueCents     int64            `json:"revenue_cents"`
	TasksByStatus    map[string]int64 `json:"tasks_by_status"`
	OpenTickets      int64            `json:"open_tickets"`
	ActiveStatuses   int64            `json:"active_statuses"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

func (s *Storage) PlatformStats(ctx context.Context) (*PlatformStats, error) {
	stats := &PlatformStats{GeneratedAt: s.now()}

	byRole, err := s.CountUsersByRole(ctx)
	if err != nil {
		return nil, err
	}
	stats.UsersByRole = byRole
	for _, n := range byRole {
		stats.TotalUsers += n
	}

	if stats.Offices, stats.PublishedOffices, err = s.CountOffices(ctx); err != nil {
		return nil, err
	}
	if stats.OrdersByStatus, stats.RevenueCents, err = s.OrderTotals(ctx); err != nil {
		return nil, err
	}
	if stats.TasksByStatus, err = s.CountTasksByStatus(ctx); err != nil {
		return nil, err
	}
	if err = s.conn(ctx).Model(&models.Ticket{}).
		Where("status IN ?", []string{models.TicketStatusOpen, models.TicketStatusInProgress}).
		Count(&stats.OpenTickets).Error; err != nil {
		return nil, err
	}
	if stats.ActiveStatuses, err = s.CountActiveStatuses(ctx); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Storage) CreateAuditLog(ctx context.Context, entry *notification.AuditLog) error {
	return s.conn(ctx).Create(entry).Error
}

// ListAuditLogs supports filters[action], filters[user_id] and filters[status_code]
func (s *Storage) ListAuditLogs(ctx context.Context, params query.Params) ([]notification.AuditLog, int64, error) {
	db := s.conn(ctx).Model(&notification.AuditLog{})
	db = query.ApplyFilters(db, params.Filters, map[string]string{
		"action":      "action",
		"user_id":     "user_id",
		"status_code": "status_code",
		"method":      "method",
	})
	db = query.ApplySearch(db, params.Search, []string{"path", "action"})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []notification.AuditLog
	err := query.ApplyPagination(db.Order("created_at DESC"), params).Find(&logs).Error
	return logs, total, err
}
