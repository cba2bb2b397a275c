package auth

import (
	"testing"
	"time"
)

func TestSignAndVerifyHS256(t *testing.T) {
	claims := Claims{
		Sub:   "prov-1",
		Email: "ana@example.com",
		Iat:   time.Now().Unix(),
		Exp:   time.Now().Add(time.Hour).Unix(),
	}
	token, err := SignHS256(claims, "secret")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	got, err := VerifyHS256(token, "secret")
	if err != nil {
		t.Fatalf("VerifyHS256 failed: %v", err)
	}
	if got.Sub != claims.Sub || got.Email != claims.Email {
		t.Fatalf("claims mismatch: %+v", got)
	}

	if _, err := VerifyHS256(token, "wrong-secret"); err == nil {
		t.Fatal("expected verification failure with wrong secret")
	}
}

func TestVerifyHS256_Expired(t *testing.T) {
	claims := Claims{
		Sub: "prov-1",
		Iat: time.Now().Add(-2 * time.Hour).Unix(),
		Exp: time.Now().Add(-time.Hour).Unix(),
	}
	token, err := SignHS256(claims, "secret")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	if _, err := VerifyHS256(token, "secret"); err == nil {
		t.Fatal("expected expired token to fail verification")
	}
}
