package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"desktown-backend/shared/config"
	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/models/notification"
	"desktown-backend/shared/database/storage"
	"desktown-backend/shared/utils/webhook"
)

// fakeOrderStore mirrors the storage semantics in memory
type fakeOrderStore struct {
	mu       sync.Mutex
	services map[uint]*models.OfficeService
	offices  map[uuid.UUID]*models.Office
	users    map[uuid.UUID]*models.User
	orders   map[uuid.UUID]*models.ServiceOrder
	events   map[string]bool
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		services: map[uint]*models.OfficeService{},
		offices:  map[uuid.UUID]*models.Office{},
		users:    map[uuid.UUID]*models.User{},
		orders:   map[uuid.UUID]*models.ServiceOrder{},
		events:   map[string]bool{},
	}
}

func (f *fakeOrderStore) GetService(_ context.Context, id uint) (*models.OfficeService, error) {
	if s, ok := f.services[id]; ok {
		return s, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeOrderStore) GetOffice(_ context.Context, id uuid.UUID) (*models.Office, error) {
	if o, ok := f.offices[id]; ok {
		return o, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeOrderStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeOrderStore) CreateOrder(_ context.Context, order *models.ServiceOrder) error {
	order.ID = uuid.New()
	order.Status = models.OrderPending
	cp := *order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeOrderStore) GetOrder(_ context.Context, id uuid.UUID) (*models.ServiceOrder, error) {
	if o, ok := f.orders[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeOrderStore) MarkAwaitingPayment(_ context.Context, id uuid.UUID, sessionID string) (*models.ServiceOrder, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if !o.Status.CanTransitionTo(models.OrderAwaitingPayment) {
		return nil, storage.ErrInvalidTransition
	}
	o.Status = models.OrderAwaitingPayment
	o.CheckoutSessionID = &sessionID
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) ApplyPaymentResult(_ context.Context, ev storage.PaymentEvent) (*storage.PaymentOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := ev.Source + "/" + ev.EventID
	if f.events[key] {
		return nil, storage.ErrDuplicateEvent
	}
	f.events[key] = true

	for _, o := range f.orders {
		if o.CheckoutSessionID == nil || *o.CheckoutSessionID != ev.SessionID {
			continue
		}
		next := models.OrderPaymentFailed
		if ev.Succeeded {
			next = models.OrderPaid
		}
		if !o.Status.CanTransitionTo(next) {
			cp := *o
			return &storage.PaymentOutcome{Order: &cp}, nil
		}
		o.Status = next
		o.PaymentReference = ev.Reference
		cp := *o
		return &storage.PaymentOutcome{Order: &cp, Applied: true}, nil
	}
	return nil, storage.ErrNotFound
}

type countingNotifier struct {
	mu    sync.Mutex
	items []*notification.Notification
}

func (c *countingNotifier) Notify(_ context.Context, n *notification.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, n)
	return nil
}

const testSecret = "whsec_test"

func newPaymentFixture(t *testing.T) (*PaymentService, *fakeOrderStore, *countingNotifier, *models.User, *models.OfficeService) {
	t.Helper()
	store := newFakeOrderStore()
	owner := &models.User{ID: uuid.New(), Email: "owner@desktown.test", Role: models.RoleOfficeRenter}
	buyer := &models.User{ID: uuid.New(), Email: "buyer@desktown.test", FirstName: "Bea", Role: models.RoleMember}
	office := &models.Office{ID: uuid.New(), OwnerID: owner.ID, Name: "Harbor"}
	svc := &models.OfficeService{ID: 4, OfficeID: office.ID, Name: "Consulting", PriceCents: 9900, Currency: "usd", IsActive: true}

	store.users[owner.ID] = owner
	store.users[buyer.ID] = buyer
	store.offices[office.ID] = office
	store.services[svc.ID] = svc

	notifier := &countingNotifier{}
	ps := NewPaymentService(store, notifier, nil, &config.Config{
		PaymentWebhookSecret: testSecret,
		PaymentCheckoutURL:   "https://pay.test/checkout",
	})
	return ps, store, notifier, buyer, svc
}

func signed(body string) (string, []byte) {
	payload := []byte(body)
	return webhook.Sign([]byte(testSecret), payload, time.Now()), payload
}

func TestCheckoutThenWebhookMarksOrderPaidOnce(t *testing.T) {
	ps, store, notifier, buyer, svc := newPaymentFixture(t)
	ctx := context.Background()

	order, err := ps.CreateOrder(ctx, buyer, svc.ID, "")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.Status != models.OrderPending || order.AmountCents != 9900 {
		t.Fatalf("unexpected order %+v", order)
	}

	session, err := ps.StartCheckout(ctx, buyer, order.ID)
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}
	if session.Order.Status != models.OrderAwaitingPayment {
		t.Fatalf("expected awaiting_payment, got %s", session.Order.Status)
	}
	if !strings.HasPrefix(session.CheckoutURL, "https://pay.test/checkout?") || !strings.Contains(session.CheckoutURL, session.SessionID) {
		t.Fatalf("unexpected checkout url %s", session.CheckoutURL)
	}

	if _, err := ps.StartCheckout(ctx, buyer, order.ID); !errors.Is(err, storage.ErrInvalidTransition) {
		t.Fatalf("second checkout should fail, got %v", err)
	}

	sig, body := signed(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"` + session.SessionID + `","payment_intent":"pi_9"}}}`)

	result, err := ps.HandleWebhook(ctx, body, sig)
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if result.Outcome != OutcomeApplied || result.Order.Status != models.OrderPaid {
		t.Fatalf("expected applied paid, got %+v", result)
	}
	if len(notifier.items) != 2 {
		t.Fatalf("expected buyer and owner notifications, got %d", len(notifier.items))
	}

	result, err = ps.HandleWebhook(ctx, body, sig)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if result.Outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %s", result.Outcome)
	}
	if len(notifier.items) != 2 {
		t.Fatalf("duplicate delivery must not notify again, got %d", len(notifier.items))
	}

	stored, _ := store.GetOrder(ctx, order.ID)
	if stored.Status != models.OrderPaid || stored.PaymentReference != "pi_9" {
		t.Fatalf("unexpected stored order %+v", stored)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	ps, _, _, _, _ := newPaymentFixture(t)

	_, body := signed(`{"id":"evt_x","type":"checkout.completed","data":{"session_id":"cs_x"}}`)
	forged := webhook.Sign([]byte("other"), body, time.Now())

	if _, err := ps.HandleWebhook(context.Background(), body, forged); !errors.Is(err, webhook.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if _, err := ps.HandleWebhook(context.Background(), body, ""); !errors.Is(err, webhook.ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}
}

func TestWebhookFailureAfterPaidIsStale(t *testing.T) {
	ps, _, _, buyer, svc := newPaymentFixture(t)
	ctx := context.Background()

	order, _ := ps.CreateOrder(ctx, buyer, svc.ID, "")
	session, _ := ps.StartCheckout(ctx, buyer, order.ID)

	sig, body := signed(`{"id":"evt_a","type":"checkout.completed","data":{"session_id":"` + session.SessionID + `"}}`)
	if _, err := ps.HandleWebhook(ctx, body, sig); err != nil {
		t.Fatalf("paid: %v", err)
	}

	sig, body = signed(`{"id":"evt_b","type":"checkout.failed","data":{"session_id":"` + session.SessionID + `","failure_reason":"card_declined"}}`)
	result, err := ps.HandleWebhook(ctx, body, sig)
	if err != nil {
		t.Fatalf("failed event: %v", err)
	}
	if result.Outcome != OutcomeStale || result.Order.Status != models.OrderPaid {
		t.Fatalf("paid order must stay paid, got %+v", result)
	}
}

func TestWebhookIgnoresUnrelatedEventsAndUnknownSessions(t *testing.T) {
	ps, _, _, _, _ := newPaymentFixture(t)
	ctx := context.Background()

	sig, body := signed(`{"id":"evt_c","type":"customer.created","data":{}}`)
	result, err := ps.HandleWebhook(ctx, body, sig)
	if err != nil || result.Outcome != OutcomeIgnored {
		t.Fatalf("expected ignored, got %+v err=%v", result, err)
	}

	sig, body = signed(`{"id":"evt_d","type":"checkout.completed","data":{"session_id":"cs_unknown"}}`)
	result, err = ps.HandleWebhook(ctx, body, sig)
	if err != nil || result.Outcome != OutcomeUnmatched {
		t.Fatalf("expected unmatched, got %+v err=%v", result, err)
	}
}

func TestCheckoutRequiresBuyer(t *testing.T) {
	ps, _, _, buyer, svc := newPaymentFixture(t)
	ctx := context.Background()

	order, _ := ps.CreateOrder(ctx, buyer, svc.ID, "")
	if _, err := ps.StartCheckout(ctx, &models.User{ID: uuid.New()}, order.ID); !errors.Is(err, ErrNotOrderBuyer) {
		t.Fatalf("expected ErrNotOrderBuyer, got %v", err)
	}
}

func TestCreateOrderRejectsInactiveService(t *testing.T) {
	ps, store, _, buyer, svc := newPaymentFixture(t)
	store.services[svc.ID].IsActive = false

	if _, err := ps.CreateOrder(context.Background(), buyer, svc.ID, ""); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}
