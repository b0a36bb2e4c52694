package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"testing"
)

var tokenPattern = regexp.MustCompile(`^[a-z2-7]{32}$`)

func TestGenerateToken_Format(t *testing.T) {
	token, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	// 20バイト = 160bit をbase32で表すと32文字（パディングなし）
	if !tokenPattern.MatchString(token) {
		t.Errorf("token = %q, want 32 lower-case base32 chars", token)
	}
}

func TestGenerateToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		token, err := GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		if seen[token] {
			t.Fatalf("duplicate token generated: %s", token)
		}
		seen[token] = true
	}
}

func TestSessionIDFromToken_IsHexSHA256(t *testing.T) {
	token := "abcdefghijklmnopqrstuvwxyz234567"
	sum := sha256.Sum256([]byte(token))
	want := hex.EncodeToString(sum[:])

	if got := SessionIDFromToken(token); got != want {
		t.Errorf("SessionIDFromToken() = %q, want %q", got, want)
	}
	if SessionIDFromToken(token) != SessionIDFromToken(token) {
		t.Error("SessionIDFromToken should be deterministic")
	}
	if SessionIDFromToken(token) == SessionIDFromToken(token+"x") {
		t.Error("different tokens should map to different ids")
	}
	if len(want) != 64 {
		t.Errorf("id length = %d, want 64", len(want))
	}
}
