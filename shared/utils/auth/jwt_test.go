package utils

import (
	"testing"
	"time"

	"desktown-backend/shared/config"

	"github.com/google/uuid"
)

func useTestConfig(t *testing.T) {
	t.Helper()
	config.SetConfig(&config.Config{SessionSecret: "test-secret"})
	t.Cleanup(func() { config.SetConfig(nil) })
}

func TestEmployeeTokenRoundTrip(t *testing.T) {
	useTestConfig(t)

	userID := uuid.New()
	token, jti, err := GenerateEmployeeToken(userID, "emp@desktown.app", "member", time.Hour)
	if err != nil {
		t.Fatalf("GenerateEmployeeToken failed: %v", err)
	}

	claims, err := ValidateEmployeeToken(token)
	if err != nil {
		t.Fatalf("ValidateEmployeeToken failed: %v", err)
	}
	if claims.UserID != userID.String() {
		t.Errorf("expected user %s, got %s", userID, claims.UserID)
	}
	if claims.ID != jti {
		t.Errorf("expected jti %s, got %s", jti, claims.ID)
	}
	if claims.Role != "member" {
		t.Errorf("expected role member, got %s", claims.Role)
	}
}

func TestEmployeeTokenExpired(t *testing.T) {
	useTestConfig(t)

	token, _, err := GenerateEmployeeToken(uuid.New(), "emp@desktown.app", "member", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateEmployeeToken failed: %v", err)
	}

	if _, err := ValidateEmployeeToken(token); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestEmployeeTokenWrongSecret(t *testing.T) {
	useTestConfig(t)

	token, _, err := GenerateEmployeeToken(uuid.New(), "emp@desktown.app", "member", time.Hour)
	if err != nil {
		t.Fatalf("GenerateEmployeeToken failed: %v", err)
	}

	config.SetConfig(&config.Config{SessionSecret: "another-secret"})
	if _, err := ValidateEmployeeToken(token); err == nil {
		t.Error("expected token signed with a different secret to be rejected")
	}
}
