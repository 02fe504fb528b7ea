package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"desktown-backend/shared/config"
	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/models/notification"
	"desktown-backend/shared/database/storage"
	utils "desktown-backend/shared/utils/auth"
	"desktown-backend/shared/utils/webhook"
)

const paymentSource = "payments"

// Webhook outcomes, also used as the metrics label
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeStale     = "stale"
	OutcomeUnmatched = "unmatched"
)

var (
	ErrServiceUnavailable = errors.New("service is not available for purchase")
	ErrNotOrderBuyer      = errors.New("order belongs to another user")
	ErrMalformedEvent     = errors.New("malformed payment event")
)

// OrderStore is the slice of storage the payment flow needs
type OrderStore interface {
	GetService(ctx context.Context, id uint) (*models.OfficeService, error)
	GetOffice(ctx context.Context, id uuid.UUID) (*models.Office, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateOrder(ctx context.Context, order *models.ServiceOrder) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.ServiceOrder, error)
	MarkAwaitingPayment(ctx context.Context, orderID uuid.UUID, sessionID string) (*models.ServiceOrder, error)
	ApplyPaymentResult(ctx context.Context, ev storage.PaymentEvent) (*storage.PaymentOutcome, error)
}

// OrderNotifier is implemented by *Notifier
type OrderNotifier interface {
	Notify(ctx context.Context, item *notification.Notification) error
}

// PaymentEventPayload is the body of POST /api/webhooks/payments.
// Both the flat form and the nested data.object form used by Stripe-style providers are accepted.
type PaymentEventPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		SessionID        string `json:"session_id"`
		PaymentReference string `json:"payment_reference"`
		FailureReason    string `json:"failure_reason"`
		Object           *struct {
			ID            string `json:"id"`
			PaymentIntent string `json:"payment_intent"`
		} `json:"object,omitempty"`
	} `json:"data"`
}

// WebhookResult reports what happened to one delivery
type WebhookResult struct {
	EventID string               `json:"event_id"`
	Outcome string               `json:"outcome"`
	Order   *models.ServiceOrder `json:"order,omitempty"`
}

type CheckoutSession struct {
	Order       *models.ServiceOrder `json:"order"`
	SessionID   string               `json:"session_id"`
	CheckoutURL string               `json:"checkout_url"`
}

// PaymentService runs the order lifecycle pending -> awaiting_payment -> paid | payment_failed
type PaymentService struct {
	store       OrderStore
	notifier    OrderNotifier
	mailer      Mailer
	secret      []byte
	checkoutURL string
	now         func() time.Time
}

func NewPaymentService(store OrderStore, notifier OrderNotifier, mailer Mailer, cfg *config.Config) *PaymentService {
	return &PaymentService{
		store:       store,
		notifier:    notifier,
		mailer:      mailer,
		secret:      []byte(cfg.PaymentWebhookSecret),
		checkoutURL: cfg.PaymentCheckoutURL,
		now:         time.Now,
	}
}

// CreateOrder snapshots the service name and price into a pending order
func (ps *PaymentService) CreateOrder(ctx context.Context, buyer *models.User, serviceID uint, notes string) (*models.ServiceOrder, error) {
	svc, err := ps.store.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return nil, ErrServiceUnavailable
	}

	officeID := svc.OfficeID
	order := &models.ServiceOrder{
		ServiceID:   &svc.ID,
		OfficeID:    &officeID,
		BuyerID:     buyer.ID,
		ServiceName: svc.Name,
		BuyerEmail:  buyer.Email,
		AmountCents: svc.PriceCents,
		Currency:    svc.Currency,
		Notes:       notes,
	}
	if err := ps.store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	log.Printf("🧾 Order %s created for service %d by %s", order.ID, svc.ID, buyer.ID)
	return order, nil
}

// StartCheckout opens a checkout session for a pending order owned by buyer
func (ps *PaymentService) StartCheckout(ctx context.Context, buyer *models.User, orderID uuid.UUID) (*CheckoutSession, error) {
	order, err := ps.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyer.ID {
		return nil, ErrNotOrderBuyer
	}
	if !order.Status.CanTransitionTo(models.OrderAwaitingPayment) {
		return nil, storage.ErrInvalidTransition
	}

	token, err := utils.GenerateRandomToken(16)
	if err != nil {
		return nil, err
	}
	sessionID := "cs_" + token

	order, err = ps.store.MarkAwaitingPayment(ctx, orderID, sessionID)
	if err != nil {
		return nil, err
	}

	return &CheckoutSession{
		Order:       order,
		SessionID:   sessionID,
		CheckoutURL: ps.buildCheckoutURL(sessionID, order),
	}, nil
}

func (ps *PaymentService) buildCheckoutURL(sessionID string, order *models.ServiceOrder) string {
	q := url.Values{}
	q.Set("session_id", sessionID)
	q.Set("order_id", order.ID.String())
	q.Set("amount", fmt.Sprintf("%d", order.AmountCents))
	q.Set("currency", order.Currency)

	sep := "?"
	if strings.Contains(ps.checkoutURL, "?") {
		sep = "&"
	}
	return ps.checkoutURL + sep + q.Encode()
}

// classify maps provider event types onto success or failure; ok=false means the type is not a payment result
func classify(eventType string) (succeeded bool, ok bool) {
	switch eventType {
	case "checkout.completed", "checkout.session.completed", "checkout.session.async_payment_succeeded", "payment.succeeded":
		return true, true
	case "checkout.failed", "checkout.expired", "checkout.session.expired", "checkout.session.async_payment_failed", "payment.failed":
		return false, true
	}
	return false, false
}

// HandleWebhook verifies the signature and applies the event at most once
func (ps *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	if err := webhook.Verify(ps.secret, body, signature, webhook.DefaultTolerance, ps.now()); err != nil {
		return nil, err
	}

	var payload PaymentEventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	sessionID := payload.Data.SessionID
	reference := payload.Data.PaymentReference
	if payload.Data.Object != nil {
		if sessionID == "" {
			sessionID = payload.Data.Object.ID
		}
		if reference == "" {
			reference = payload.Data.Object.PaymentIntent
		}
	}
	if payload.ID == "" || payload.Type == "" {
		return nil, fmt.Errorf("%w: id and type are required", ErrMalformedEvent)
	}

	result := &WebhookResult{EventID: payload.ID}

	succeeded, ok := classify(payload.Type)
	if !ok {
		result.Outcome = OutcomeIgnored
		return result, nil
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id missing", ErrMalformedEvent)
	}

	failure := payload.Data.FailureReason
	if !succeeded && failure == "" {
		failure = payload.Type
	}

	outcome, err := ps.store.ApplyPaymentResult(ctx, storage.PaymentEvent{
		Source:        paymentSource,
		EventID:       payload.ID,
		EventType:     payload.Type,
		SessionID:     sessionID,
		Succeeded:     succeeded,
		Reference:     reference,
		FailureReason: failure,
		Payload:       body,
	})
	switch {
	case errors.Is(err, storage.ErrDuplicateEvent):
		result.Outcome = OutcomeDuplicate
		return result, nil
	case errors.Is(err, storage.ErrNotFound):
		log.Printf("⚠️  payment event %s references unknown session %s", payload.ID, sessionID)
		result.Outcome = OutcomeUnmatched
		return result, nil
	case err != nil:
		return nil, err
	}

	result.Order = outcome.Order
	if !outcome.Applied {
		result.Outcome = OutcomeStale
		return result, nil
	}

	result.Outcome = OutcomeApplied
	log.Printf("💳 Order %s is now %s (event %s)", outcome.Order.ID, outcome.Order.Status, payload.ID)
	ps.afterSettlement(ctx, outcome.Order)
	return result, nil
}

// afterSettlement notifies the buyer and office owner and mails the buyer. It runs once per order
// because ApplyPaymentResult only reports Applied for the first settling event.
func (ps *PaymentService) afterSettlement(ctx context.Context, order *models.ServiceOrder) {
	paid := order.Status == models.OrderPaid

	buyerName := order.BuyerEmail
	if buyer, err := ps.store.GetUser(ctx, order.BuyerID); err == nil {
		buyerName = buyer.FullName()
	}

	if ps.notifier != nil {
		buyerNote := &notification.Notification{
			UserID:   order.BuyerID,
			Entity:   "order",
			EntityID: order.ID.String(),
			Link:     "/orders/" + order.ID.String(),
		}
		if paid {
			buyerNote.Type = notification.TypeOrderPaid
			buyerNote.Level = notification.NotificationLevelSuccess
			buyerNote.Title = "Payment received"
			buyerNote.Message = fmt.Sprintf("Your order for %s is paid.", order.ServiceName)
		} else {
			buyerNote.Type = notification.TypeOrderFailed
			buyerNote.Level = notification.NotificationLevelError
			buyerNote.Title = "Payment failed"
			buyerNote.Message = fmt.Sprintf("The payment for %s did not go through.", order.ServiceName)
		}
		if err := ps.notifier.Notify(ctx, buyerNote); err != nil {
			log.Printf("❌ notify buyer of order %s: %v", order.ID, err)
		}

		if paid && order.OfficeID != nil {
			if office, err := ps.store.GetOffice(ctx, *order.OfficeID); err == nil {
				ownerNote := &notification.Notification{
					UserID:   office.OwnerID,
					Type:     notification.TypeOrderPaid,
					Level:    notification.NotificationLevelSuccess,
					Title:    "New paid order",
					Message:  fmt.Sprintf("%s bought %s (%s).", buyerName, order.ServiceName, FormatAmount(order.AmountCents, order.Currency)),
					Link:     fmt.Sprintf("/offices/%s/orders", office.ID),
					Entity:   "order",
					EntityID: order.ID.String(),
				}
				if err := ps.notifier.Notify(ctx, ownerNote); err != nil {
					log.Printf("❌ notify office owner of order %s: %v", order.ID, err)
				}
			}
		}
	}

	if ps.mailer != nil && order.BuyerEmail != "" {
		snapshot := *order
		go func() {
			var err error
			if paid {
				err = ps.mailer.SendOrderReceipt(&snapshot, buyerName)
			} else {
				err = ps.mailer.SendPaymentFailed(&snapshot, buyerName)
			}
			if err != nil && !errors.Is(err, ErrEmailDisabled) {
				log.Printf("❌ order %s email: %v", snapshot.ID, err)
			}
		}()
	}
}
