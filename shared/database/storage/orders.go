package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"desktown-backend/shared/database/models"
	"desktown-backend/shared/utils/query"
)

// PaymentEvent is a verified payment provider callback
type PaymentEvent struct {
	Source        string
	EventID       string
	EventType     string
	SessionID     string
	Succeeded     bool
	Reference     string
	FailureReason string
	Payload       datatypes.JSON
}

// PaymentOutcome reports what ApplyPaymentResult did with an event
type PaymentOutcome struct {
	Order   *models.ServiceOrder
	Applied bool
}

var orderSortFields = map[string]string{
	"created_at": "service_orders.created_at",
	"amount":     "service_orders.amount_cents",
	"status":     "service_orders.status",
}

func (s *Storage) CreateOrder(ctx context.Context, order *models.ServiceOrder) error {
	order.Status = models.OrderPending
	return translate(s.conn(ctx).Create(order).Error)
}

func (s *Storage) GetOrder(ctx context.Context, id uuid.UUID) (*models.ServiceOrder, error) {
	var order models.ServiceOrder
	if err := s.conn(ctx).Preload("Buyer").First(&order, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func lockOrder(tx *gorm.DB, where string, arg interface{}) (*models.ServiceOrder, error) {
	var order models.ServiceOrder
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(where, arg).First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// MarkAwaitingPayment attaches a checkout session and moves pending -> awaiting_payment
func (s *Storage) MarkAwaitingPayment(ctx context.Context, orderID uuid.UUID, sessionID string) (*models.ServiceOrder, error) {
	var order *models.ServiceOrder
	err := s.Transaction(ctx, func(tx *Storage) error {
		var err error
		order, err = lockOrder(tx.db, "id = ?", orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(models.OrderAwaitingPayment) {
			return ErrInvalidTransition
		}

		order.Status = models.OrderAwaitingPayment
		order.CheckoutSessionID = &sessionID
		return translate(tx.db.Model(order).Updates(map[string]interface{}{
			"status":              string(models.OrderAwaitingPayment),
			"checkout_session_id": sessionID,
		}).Error)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ApplyPaymentResult records the event id and settles the matching order in one transaction.
// A repeated event id returns ErrDuplicateEvent without touching the order. An order that is
// no longer awaiting payment is returned with Applied=false.
func (s *Storage) ApplyPaymentResult(ctx context.Context, ev PaymentEvent) (*PaymentOutcome, error) {
	outcome := &PaymentOutcome{}
	orderMissing := false

	err := s.Transaction(ctx, func(tx *Storage) error {
		record := models.WebhookEvent{
			Source:    ev.Source,
			EventID:   ev.EventID,
			EventType: ev.EventType,
			Payload:   ev.Payload,
		}
		result := tx.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrDuplicateEvent
		}

		order, err := lockOrder(tx.db, "checkout_session_id = ?", ev.SessionID)
		if errors.Is(err, ErrNotFound) {
			// keep the event row so redelivery is acknowledged as a duplicate
			orderMissing = true
			return nil
		}
		if err != nil {
			return err
		}
		outcome.Order = order

		next := models.OrderPaymentFailed
		if ev.Succeeded {
			next = models.OrderPaid
		}
		if !order.Status.CanTransitionTo(next) {
			return nil
		}

		now := s.now()
		updates := map[string]interface{}{
			"status":            string(next),
			"payment_reference": ev.Reference,
		}
		if next == models.OrderPaid {
			updates["paid_at"] = now
			order.PaidAt = &now
		} else {
			updates["failed_at"] = now
			updates["failure_reason"] = ev.FailureReason
			order.FailedAt = &now
			order.FailureReason = ev.FailureReason
		}
		if err := tx.db.Model(order).Updates(updates).Error; err != nil {
			return err
		}
		order.Status = next
		order.PaymentReference = ev.Reference
		outcome.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if orderMissing {
		return nil, ErrNotFound
	}
	return outcome, nil
}

// RecordWebhookEvent stores an event id once; recorded is false for a redelivery
func (s *Storage) RecordWebhookEvent(ctx context.Context, ev *models.WebhookEvent) (bool, error) {
	result := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(ev)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Storage) listOrders(ctx context.Context, scope func(*gorm.DB) *gorm.DB, params query.Params) ([]models.ServiceOrder, int64, error) {
	db := scope(s.conn(ctx).Model(&models.ServiceOrder{}))
	db = query.ApplyFilters(db, params.Filters, map[string]string{"status": "service_orders.status"})
	db = query.ApplySearch(db, params.Search, []string{"service_orders.service_name", "service_orders.buyer_email"})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.ServiceOrder
	db = query.ApplySort(db, params.Sort, orderSortFields, "service_orders.created_at DESC")
	err := query.ApplyPagination(db, params).Preload("Buyer").Find(&orders).Error
	return orders, total, err
}

func (s *Storage) ListOrdersForOffice(ctx context.Context, officeID uuid.UUID, params query.Params) ([]models.ServiceOrder, int64, error) {
	return s.listOrders(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("service_orders.office_id = ?", officeID)
	}, params)
}

func (s *Storage) ListOrdersForBuyer(ctx context.Context, buyerID uuid.UUID, params query.Params) ([]models.ServiceOrder, int64, error) {
	return s.listOrders(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("service_orders.buyer_id = ?", buyerID)
	}, params)
}

// ListTransactions is the platform-wide order ledger
func (s *Storage) ListTransactions(ctx context.Context, params query.Params) ([]models.ServiceOrder, int64, error) {
	return s.listOrders(ctx, func(db *gorm.DB) *gorm.DB { return db }, params)
}

// OrderTotals groups orders by status with their summed amounts
func (s *Storage) OrderTotals(ctx context.Context) (map[string]int64, int64, error) {
	var rows []struct {
		Status string
		Count  int64
		Amount int64
	}
	err := s.conn(ctx).Model(&models.ServiceOrder{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount_cents), 0) AS amount").
		Group("status").Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	counts := map[string]int64{}
	var revenue int64
	for _, row := range rows {
		counts[row.Status] = row.Count
		if row.Status == string(models.OrderPaid) {
			revenue = row.Amount
		}
	}
	return counts, revenue, nil
}
