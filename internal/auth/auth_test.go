package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateToken(t *testing.T) {
	secret := "test-secret-key"
	userID := "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"

	signed, expiresAt, err := GenerateToken(userID, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}
	if expiresAt.Before(time.Now().Add(59 * time.Minute)) {
		t.Error("token expires too soon")
	}

	parsed, err := jwt.ParseWithClaims(signed, new(Claims), func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		t.Fatalf("failed to parse JWT: %v", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		t.Fatal("expected Claims")
	}
	if claims.UserID != userID {
		t.Errorf("expected user_id=%s, got=%s", userID, claims.UserID)
	}
	if claims.Subject != userID {
		t.Errorf("expected sub=%s, got=%s", userID, claims.Subject)
	}
}

func TestGenerateToken_EmptySecret(t *testing.T) {
	if _, _, err := GenerateToken("user-123", "", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestGenerateToken_EmptyUserID(t *testing.T) {
	_, _, err := GenerateToken("   ", "some-secret", time.Hour)
	if err == nil || !strings.Contains(err.Error(), "user id") {
		t.Fatalf("expected user id error, got: %v", err)
	}
}
