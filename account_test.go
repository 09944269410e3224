package novaauth

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Test@Example.com", "test@example.com"},
		{"  padded@example.com  ", "padded@example.com"},
		{"already@example.com", "already@example.com"},
	}
	for _, tt := range tests {
		if got := NormalizeEmail(tt.in); got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChallengePending(t *testing.T) {
	now := time.Now()
	acct := &Account{OTPCode: "123456", OTPExpiresAt: now.Add(time.Minute)}
	if !acct.ChallengePending(now) {
		t.Error("unexpired challenge should be pending")
	}
	if acct.ChallengePending(now.Add(2 * time.Minute)) {
		t.Error("expired challenge should not be pending")
	}
	if (&Account{}).ChallengePending(now) {
		t.Error("no challenge should not be pending")
	}
}

func TestSummaryNeverLeaksSecrets(t *testing.T) {
	acct := &Account{
		ID:           "a1",
		Name:         "Test",
		Email:        "t@example.com",
		PasswordHash: "digest",
		OTPCode:      "123456",
	}
	data, err := json.Marshal(acct.Summary())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "digest") || strings.Contains(out, "123456") {
		t.Errorf("summary leaked server-side fields: %s", out)
	}
	if !strings.Contains(out, `"id":"a1"`) || !strings.Contains(out, `"email":"t@example.com"`) {
		t.Errorf("summary missing expected fields: %s", out)
	}
}
