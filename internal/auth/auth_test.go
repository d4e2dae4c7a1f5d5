package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("test-secret-key-for-unit-tests-only", "clinic")

	token, err := v.Sign(17, []string{RoleDoctor}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	id, err := v.ParseHeader("Bearer " + token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id.UserID != 17 {
		t.Errorf("expected user 17, got %d", id.UserID)
	}
	if !id.IsDoctor() || id.IsAdmin() {
		t.Errorf("unexpected roles %v", id.Roles)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("test-secret-key-for-unit-tests-only", "clinic")
	other := NewVerifier("another-secret", "clinic")
	wrongIssuer := NewVerifier("test-secret-key-for-unit-tests-only", "elsewhere")

	expired, err := v.Sign(1, nil, -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	forged, _ := other.Sign(1, []string{RoleAdmin}, time.Hour)
	foreign, _ := wrongIssuer.Sign(1, []string{RoleAdmin}, time.Hour)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1", Issuer: "clinic"},
	})
	noExpStr, _ := noExp.SignedString([]byte("test-secret-key-for-unit-tests-only"))

	badSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "clinic",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	badSubjectStr, _ := badSubject.SignedString([]byte("test-secret-key-for-unit-tests-only"))

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{"missing", "", ErrMissingToken},
		{"basic scheme", "Basic dXNlcjpwYXNz", ErrInvalidToken},
		{"empty bearer", "Bearer ", ErrInvalidToken},
		{"garbage", "Bearer not.a.jwt", ErrInvalidToken},
		{"expired", "Bearer " + expired, ErrInvalidToken},
		{"wrong key", "Bearer " + forged, ErrInvalidToken},
		{"wrong issuer", "Bearer " + foreign, ErrInvalidToken},
		{"no expiry", "Bearer " + noExpStr, ErrInvalidToken},
		{"non numeric subject", "Bearer " + badSubjectStr, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.ParseHeader(tt.header); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestIdentity_HasRole(t *testing.T) {
	admin := Identity{Roles: []string{RoleAdmin}}
	if !admin.HasRole(RoleDoctor, RoleAssistant) {
		t.Error("admin should satisfy any role check")
	}

	assistant := Identity{Roles: []string{RoleAssistant}}
	if !assistant.HasRole(RoleDoctor, RoleAssistant) {
		t.Error("assistant should satisfy medical staff check")
	}
	if assistant.HasRole(RoleAdmin) {
		t.Error("assistant is not admin")
	}

	var none Identity
	if none.HasRole(RoleDoctor) {
		t.Error("empty identity holds no role")
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if FromContext(ctx) != nil {
		t.Fatal("expected nil identity on empty context")
	}

	ctx = WithIdentity(ctx, &Identity{UserID: 5})
	if id := FromContext(ctx); id == nil || id.UserID != 5 {
		t.Fatalf("unexpected identity %+v", id)
	}
}
