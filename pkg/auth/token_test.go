package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-payments/pkg/config"
	"github.com/angelmondragon/storefront-payments/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "storefront",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, time.Now().UTC(), AccessTokenPayload{UserID: userID, Role: enums.StaffRoleAdmin})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Role != enums.StaffRoleAdmin {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be set")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{UserID: uuid.New(), Role: enums.StaffRoleSupport})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseAccessTokenRejectsWrongIssuerOrSecret(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.StaffRoleAdmin})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected issuer mismatch to fail")
	}
	other = cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected signature mismatch to fail")
	}
}

func TestMintAccessTokenValidatesInput(t *testing.T) {
	cfg := testJWTConfig()
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: "owner"}); err == nil {
		t.Fatal("expected invalid role error")
	}
	cfg.Secret = ""
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.StaffRoleAdmin}); err == nil {
		t.Fatal("expected missing secret error")
	}
}
