package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/hitoshi/grailtracker/internal/model"
)

const (
	defaultGoogleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultGoogleTokenURL    = "https://oauth2.googleapis.com/token"
	defaultGoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

	defaultDiscordAuthURL     = "https://discord.com/api/oauth2/authorize"
	defaultDiscordTokenURL    = "https://discord.com/api/oauth2/token"
	defaultDiscordUserInfoURL = "https://discord.com/api/users/@me"
)

// Profile はプロバイダーから取得した最小限のユーザー情報。
type Profile struct {
	ID    string
	Email string
}

// ProviderConfig はOAuthプロバイダーの設定。
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// Name はプロバイダー識別子を返す。
	Name() model.Provider
	// AuthCodeURL はstateを含む認可URLを生成する。
	AuthCodeURL(state string) string
	// ExchangeProfile は認可コードをアクセストークンに交換し、プロフィールを取得する。
	ExchangeProfile(ctx context.Context, code string) (*Profile, error)
}

// profileDecoder はuserinfoレスポンスをProfileに変換する。
type profileDecoder func(body []byte) (*Profile, error)

// Provider はx/oauth2を使用したOAuthProviderの実装。
type Provider struct {
	name        model.Provider
	oauth       *oauth2.Config
	userInfoURL string
	decode      profileDecoder
}

// NewGoogleProvider はGoogle用のProviderを生成する。スコープは"openid email"。
func NewGoogleProvider(cfg ProviderConfig) *Provider {
	return newProvider(model.ProviderGoogle, cfg,
		defaultGoogleAuthURL, defaultGoogleTokenURL, defaultGoogleUserInfoURL,
		[]string{"openid", "email"}, decodeGoogleProfile)
}

// NewDiscordProvider はDiscord用のProviderを生成する。スコープは"identify email"。
func NewDiscordProvider(cfg ProviderConfig) *Provider {
	return newProvider(model.ProviderDiscord, cfg,
		defaultDiscordAuthURL, defaultDiscordTokenURL, defaultDiscordUserInfoURL,
		[]string{"identify", "email"}, decodeDiscordProfile)
}

func newProvider(
	name model.Provider,
	cfg ProviderConfig,
	authURL, tokenURL, userInfoURL string,
	scopes []string,
	decode profileDecoder,
) *Provider {
	if cfg.AuthURL != "" {
		authURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		tokenURL = cfg.TokenURL
	}
	if cfg.UserInfoURL != "" {
		userInfoURL = cfg.UserInfoURL
	}

	return &Provider{
		name: name,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: userInfoURL,
		decode:      decode,
	}
}

// Name はプロバイダー識別子を返す。
func (p *Provider) Name() model.Provider {
	return p.name
}

// AuthCodeURL は認可URLを生成する。
// client_id, redirect_uri, response_type=code, scope, stateを含む。
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// ExchangeProfile は認可コードをアクセストークンに交換し、プロフィールを取得する。
// リトライは行わない。
func (p *Provider) ExchangeProfile(ctx context.Context, code string) (*Profile, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	client := p.oauth.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	profile, err := p.decode(body)
	if err != nil {
		return nil, err
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("empty user id in %s user info response", p.name)
	}
	return profile, nil
}

type googleUserInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

func decodeGoogleProfile(body []byte) (*Profile, error) {
	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse google user info: %w", err)
	}
	return &Profile{ID: info.Sub, Email: info.Email}, nil
}

type discordUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func decodeDiscordProfile(body []byte) (*Profile, error) {
	var info discordUser
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse discord user info: %w", err)
	}
	return &Profile{ID: info.ID, Email: info.Email}, nil
}

// compile-time interface check
var _ OAuthProvider = (*Provider)(nil)
