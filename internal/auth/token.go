package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
)

// tokenBytes はセッショントークンのバイト長（160bit）。
const tokenBytes = 20

// tokenEncoding は小文字・パディングなしのbase32。Cookie値としてそのまま使える。
var tokenEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateToken は暗号的に安全なセッショントークンを生成する。
// トークンはクライアントのみが保持し、サーバー側には保存しない。
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return strings.ToLower(tokenEncoding.EncodeToString(b)), nil
}

// SessionIDFromToken はトークンからセッションIDを導出する。
// SHA-256の16進表現であり、同じトークンからは常に同じIDが得られる。
// ストアにはこのIDのみを保存するため、ストアが漏洩しても有効なトークンは得られない。
func SessionIDFromToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// randomHex は指定バイト数の乱数を16進文字列で返す。
func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
