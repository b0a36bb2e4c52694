// Package model はドメインモデルを定義する。
package model

import "time"

// Provider は外部OAuthプロバイダーの識別子。
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderDiscord Provider = "discord"
)

// User はサービス利用ユーザーを表す。
// Email、GoogleID、DiscordIDのうち少なくとも1つは設定されている。
type User struct {
	ID           string
	Email        *string
	GoogleID     *string
	DiscordID    *string
	PasswordHash *string
	CreatedAt    time.Time
}

// ProviderID は指定プロバイダーのIDを返す。未連携の場合は空文字を返す。
func (u *User) ProviderID(p Provider) string {
	var v *string
	switch p {
	case ProviderGoogle:
		v = u.GoogleID
	case ProviderDiscord:
		v = u.DiscordID
	}
	if v == nil {
		return ""
	}
	return *v
}

// Session はユーザーのログインセッションを表す。
// IDはトークンのSHA-256ハッシュであり、トークンそのものは保存しない。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}

// OAuthState はOAuthフローのCSRF対策用stateを表す。一度だけ消費できる。
type OAuthState struct {
	State     string
	ExpiresAt time.Time
}

// UserItem はユーザーごとのアイテム発見記録を表す。
type UserItem struct {
	ID      string     `json:"id"`
	UserID  string     `json:"userId"`
	ItemKey string     `json:"itemKey"`
	Found   bool       `json:"found"`
	FoundAt *time.Time `json:"foundAt"`
}
