package storage

import (
	"context"

	"github.com/google/uuid"

	"desktown-backend/shared/database/models"
	"desktown-backend/shared/utils/query"
)

type TicketFilter struct {
	ReporterID *uuid.UUID
	AssigneeID *uuid.UUID
	Status     string
	Category   string
}

var ticketSortFields = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"priority":   "priority",
	"status":     "status",
}

func (s *Storage) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	if ticket.Status == "" {
		ticket.Status = models.TicketStatusOpen
	}
	if ticket.Priority == "" {
		ticket.Priority = models.PriorityMedium
	}
	return translate(s.conn(ctx).Create(ticket).Error)
}

func (s *Storage) GetTicket(ctx context.Context, id uint) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := s.conn(ctx).Preload("Reporter").Preload("Assignee").First(&ticket, id).Error; err != nil {
		return nil, translate(err)
	}
	return &ticket, nil
}

func (s *Storage) ListTickets(ctx context.Context, f TicketFilter, params query.Params) ([]models.Ticket, int64, error) {
	db := s.conn(ctx).Model(&models.Ticket{})
	if f.ReporterID != nil {
		db = db.Where("reporter_id = ?", *f.ReporterID)
	}
	if f.AssigneeID != nil {
		db = db.Where("assignee_id = ?", *f.AssigneeID)
	}
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		db = db.Where("category = ?", f.Category)
	}
	db = query.ApplySearch(db, params.Search, []string{"title", "description"})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tickets []models.Ticket
	db = query.ApplySort(db, params.Sort, ticketSortFields, "created_at DESC")
	err := query.ApplyPagination(db, params).Preload("Reporter").Preload("Assignee").Find(&tickets).Error
	return tickets, total, err
}

func (s *Storage) UpdateTicket(ctx context.Context, id uint, updates map[string]interface{}) (*models.Ticket, error) {
	if status, ok := updates["status"].(string); ok {
		switch status {
		case models.TicketStatusResolved, models.TicketStatusClosed:
			updates["resolved_at"] = s.now()
		default:
			updates["resolved_at"] = nil
		}
	}
	if len(updates) > 0 {
		if err := affected(s.conn(ctx).Model(&models.Ticket{}).Where("id = ?", id).Updates(updates)); err != nil {
			return nil, err
		}
	}
	return s.GetTicket(ctx, id)
}

// DeleteTicket removes the ticket; comments go with it through the foreign key
func (s *Storage) DeleteTicket(ctx context.Context, id uint) error {
	return affected(s.conn(ctx).Delete(&models.Ticket{}, id))
}

func (s *Storage) AddTicketComment(ctx context.Context, comment *models.TicketComment) error {
	if err := s.conn(ctx).Create(comment).Error; err != nil {
		return translate(err)
	}
	s.conn(ctx).Model(&models.Ticket{}).Where("id = ?", comment.TicketID).Update("updated_at", s.now())
	return nil
}

func (s *Storage) ListTicketComments(ctx context.Context, ticketID uint) ([]models.TicketComment, error) {
	var comments []models.TicketComment
	err := s.conn(ctx).Preload("Author").Where("ticket_id = ?", ticketID).Order("id ASC").Find(&comments).Error
	return comments, err
}
