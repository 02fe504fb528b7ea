package webhook

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var secret = []byte("whsec_test")

func TestSignAndVerify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	body := []byte(`{"id":"evt_1","type":"checkout.completed"}`)

	header := Sign(secret, body, now)
	if !strings.HasPrefix(header, "t=1700000000,v1=") {
		t.Fatalf("unexpected header %q", header)
	}

	if err := Verify(secret, body, header, DefaultTolerance, now.Add(time.Minute)); err != nil {
		t.Errorf("expected valid signature, got %v", err)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	now := time.Now()
	header := Sign(secret, []byte(`{"amount":100}`), now)

	err := Verify(secret, []byte(`{"amount":1}`), header, DefaultTolerance, now)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	now := time.Now()
	body := []byte("payload")
	header := Sign([]byte("other"), body, now)

	if err := Verify(secret, body, header, DefaultTolerance, now); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyTolerance(t *testing.T) {
	signedAt := time.Unix(1_700_000_000, 0)
	body := []byte("payload")
	header := Sign(secret, body, signedAt)

	if err := Verify(secret, body, header, DefaultTolerance, signedAt.Add(6*time.Minute)); !errors.Is(err, ErrExpiredTimestamp) {
		t.Errorf("expected ErrExpiredTimestamp for late delivery, got %v", err)
	}
	if err := Verify(secret, body, header, DefaultTolerance, signedAt.Add(-6*time.Minute)); !errors.Is(err, ErrExpiredTimestamp) {
		t.Errorf("expected ErrExpiredTimestamp for future timestamp, got %v", err)
	}
}

func TestVerifyMalformedHeaders(t *testing.T) {
	body := []byte("payload")
	now := time.Now()

	cases := map[string]error{
		"":                  ErrMissingSignature,
		"garbage":           ErrMalformedHeader,
		"t=abc,v1=00":       ErrMalformedHeader,
		"t=1700000000":      ErrMalformedHeader,
		"v1=deadbeef":       ErrMalformedHeader,
	}

	for header, want := range cases {
		if err := Verify(secret, body, header, DefaultTolerance, now); !errors.Is(err, want) {
			t.Errorf("Verify(%q) = %v, want %v", header, err, want)
		}
	}
}

func TestVerifyAcceptsAnyOfSeveralSignatures(t *testing.T) {
	now := time.Now()
	body := []byte("payload")
	good := Sign(secret, body, now)
	_, sig, _ := strings.Cut(good, "v1=")
	header := good[:strings.Index(good, ",")] + ",v1=0000,v1=" + sig

	if err := Verify(secret, body, header, DefaultTolerance, now); err != nil {
		t.Errorf("expected rotated-secret header to verify, got %v", err)
	}
}

func TestVerifyWithoutSecret(t *testing.T) {
	if err := Verify(nil, []byte("x"), "t=1,v1=00", DefaultTolerance, time.Now()); !errors.Is(err, ErrNoSecret) {
		t.Errorf("expected ErrNoSecret, got %v", err)
	}
}
