package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-at-least-16-chars!!"

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret, time.Hour, 10*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		expire  time.Duration
		wantErr bool
	}{
		{"short secret", "short", time.Hour, true},
		{"exactly 16 chars", "this-is-16-chars", time.Hour, false},
		{"zero lifetime", testSecret, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenService(tt.secret, tt.expire, time.Minute)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewTokenService() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// =========================================================================
// ACCESS TOKEN TESTS
// =========================================================================

func TestGenerateValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user-123")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("token %q is not a three-part JWT", token)
	}

	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != "user-123" {
		t.Errorf("Validate() = %q, want user-123", got)
	}
}

func TestValidate_Expired(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.sign("user-123", "", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ts.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Validate() error = %v, want ErrTokenExpired", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	good, err := ts.Generate("user-123")
	if err != nil {
		t.Fatal(err)
	}
	other, err := NewTokenService("a-completely-different-secret", time.Hour, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	foreign, err := other.Generate("user-123")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"tampered signature", good[:len(good)-4] + "AAAA"},
		{"wrong secret", foreign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ts.Validate(tt.token); err == nil {
				t.Error("Validate() should have failed")
			}
		})
	}
}

// =========================================================================
// RESET TOKEN TESTS
// =========================================================================

func TestResetTokenUsageIsEnforced(t *testing.T) {
	ts := newTestTokenService(t)

	reset, err := ts.GenerateReset("user-123")
	if err != nil {
		t.Fatal(err)
	}
	access, err := ts.Generate("user-123")
	if err != nil {
		t.Fatal(err)
	}

	if got, err := ts.ValidateReset(reset); err != nil || got != "user-123" {
		t.Errorf("ValidateReset(reset) = %q, %v", got, err)
	}
	if _, err := ts.Validate(reset); !errors.Is(err, ErrWrongUsage) {
		t.Errorf("Validate(reset) error = %v, want ErrWrongUsage", err)
	}
	if _, err := ts.ValidateReset(access); !errors.Is(err, ErrWrongUsage) {
		t.Errorf("ValidateReset(access) error = %v, want ErrWrongUsage", err)
	}
}
