package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderPending, OrderAwaitingPayment, true},
		{OrderPending, OrderPaid, false},
		{OrderAwaitingPayment, OrderPaid, true},
		{OrderAwaitingPayment, OrderPaymentFailed, true},
		{OrderAwaitingPayment, OrderPending, false},
		{OrderPaid, OrderPaymentFailed, false},
		{OrderPaymentFailed, OrderPaid, false},
		{OrderPaid, OrderAwaitingPayment, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}

	if OrderAwaitingPayment.IsFinal() || !OrderPaid.IsFinal() || !OrderPaymentFailed.IsFinal() {
		t.Error("only paid and payment_failed are final")
	}
}

func TestStatusIsExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if (&Status{ExpiresAt: now.Add(time.Minute)}).IsExpired(now) {
		t.Error("status expiring in the future should be visible")
	}
	if !(&Status{ExpiresAt: now}).IsExpired(now) {
		t.Error("status expiring exactly now should be hidden")
	}
	if !(&Status{ExpiresAt: now.Add(-time.Second)}).IsExpired(now) {
		t.Error("past status should be hidden")
	}
}

func TestCallTransitions(t *testing.T) {
	if !CallCanTransition(CallRinging, CallAccepted) {
		t.Error("ringing call can be accepted")
	}
	if !CallCanTransition(CallAccepted, CallEnded) {
		t.Error("accepted call can end")
	}
	if CallCanTransition(CallEnded, CallAccepted) {
		t.Error("ended call cannot be accepted")
	}
	if CallCanTransition(CallDeclined, CallEnded) {
		t.Error("declined call is final")
	}
}

func TestVideoCallParties(t *testing.T) {
	caller, callee := uuid.New(), uuid.New()
	call := &VideoCall{CallerID: caller, CalleeID: callee}

	if !call.IsParty(caller) || !call.IsParty(callee) || call.IsParty(uuid.New()) {
		t.Error("IsParty should match only caller and callee")
	}
	if call.Peer(caller) != callee || call.Peer(callee) != caller {
		t.Error("Peer should return the other party")
	}
}

func TestUserRoles(t *testing.T) {
	for _, role := range Roles {
		if !ValidRole(role) {
			t.Errorf("%s should be valid", role)
		}
	}
	if ValidRole("owner") {
		t.Error("unknown role accepted")
	}

	admin := &User{Role: RoleSuperAdmin}
	if !admin.IsAdmin() {
		t.Error("super_admin is an admin")
	}
	member := &User{Role: RoleMember, FirstName: "Ada", LastName: "Lovelace"}
	if member.IsAdmin() || !member.HasRole(RoleManager, RoleMember) {
		t.Error("member role checks")
	}
	if member.FullName() != "Ada Lovelace" {
		t.Errorf("unexpected full name %q", member.FullName())
	}
}

func TestOfficeCanManage(t *testing.T) {
	owner := &User{ID: uuid.New(), Role: RoleOfficeRenter}
	office := &Office{OwnerID: owner.ID}

	if !office.CanManage(owner) {
		t.Error("owner manages office")
	}
	if office.CanManage(&User{ID: uuid.New(), Role: RoleOfficeRenter}) {
		t.Error("other renters cannot manage office")
	}
	if !office.CanManage(&User{ID: uuid.New(), Role: RoleAdmin}) {
		t.Error("admins manage every office")
	}
	if office.CanManage(nil) {
		t.Error("nil user cannot manage")
	}
}
