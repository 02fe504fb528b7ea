package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type OrderStatus string

const (
	OrderPending         OrderStatus = "pending"
	OrderAwaitingPayment OrderStatus = "awaiting_payment"
	OrderPaid            OrderStatus = "paid"
	OrderPaymentFailed   OrderStatus = "payment_failed"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:         {OrderAwaitingPayment},
	OrderAwaitingPayment: {OrderPaid, OrderPaymentFailed},
}

// CanTransitionTo encodes pending -> awaiting_payment -> paid | payment_failed
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsFinal is true once the payment provider has settled the order
func (s OrderStatus) IsFinal() bool {
	return s == OrderPaid || s == OrderPaymentFailed
}

// ServiceOrder keeps its row when the office or service is removed so transactions stay auditable.
type ServiceOrder struct {
	ID                uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ServiceID         *uint       `json:"service_id" gorm:"index"`
	OfficeID          *uuid.UUID  `json:"office_id" gorm:"type:uuid;index"`
	BuyerID           uuid.UUID   `json:"buyer_id" gorm:"type:uuid;not null;index"`
	ServiceName       string      `json:"service_name" gorm:"size:200;not null"`
	BuyerEmail        string      `json:"buyer_email" gorm:"size:255"`
	AmountCents       int64       `json:"amount_cents" gorm:"not null"`
	Currency          string      `json:"currency" gorm:"size:3;not null"`
	Status            OrderStatus `json:"status" gorm:"type:varchar(30);not null;default:'pending';index"`
	CheckoutSessionID *string     `json:"checkout_session_id,omitempty" gorm:"size:255;uniqueIndex"`
	PaymentReference  string      `json:"payment_reference,omitempty" gorm:"size:255"`
	Notes             string      `json:"notes" gorm:"type:text"`
	FailureReason     string      `json:"failure_reason,omitempty" gorm:"type:text"`
	PaidAt            *time.Time  `json:"paid_at"`
	FailedAt          *time.Time  `json:"failed_at"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`

	Service *OfficeService `json:"-" gorm:"foreignKey:ServiceID;constraint:OnDelete:SET NULL"`
	Office  *Office        `json:"-" gorm:"foreignKey:OfficeID;constraint:OnDelete:SET NULL"`
	Buyer   *User          `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
}

// WebhookEvent records every inbound provider event id once; a second delivery hits the unique index.
type WebhookEvent struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Source      string         `json:"source" gorm:"size:50;not null;uniqueIndex:idx_webhook_source_event"`
	EventID     string         `json:"event_id" gorm:"size:255;not null;uniqueIndex:idx_webhook_source_event"`
	EventType   string         `json:"event_type" gorm:"size:100;not null"`
	Payload     datatypes.JSON `json:"payload"`
	ProcessedAt time.Time      `json:"processed_at" gorm:"autoCreateTime"`
}
