// Package auth はセッショントークン、OAuthログインフロー、アカウント連携を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/hitoshi/grailtracker/internal/metrics"
	"github.com/hitoshi/grailtracker/internal/model"
)

// CallbackParams はプロバイダーからのコールバックで受け取るパラメータ。
type CallbackParams struct {
	Code  string
	State string
	Error string
}

// FlowResult はコールバック処理の結果。
// Tokenが空の場合はセッションを発行せずRedirectURLへ戻すだけ（ユーザーによるキャンセル）。
type FlowResult struct {
	Token       string
	RedirectURL string
}

// FlowController はOAuthログインフローを制御する。
type FlowController struct {
	providers map[model.Provider]OAuthProvider
	states    *StateStore
	sessions  *SessionStore
	resolver  *IdentityResolver
	clientURL string
	metrics   metrics.MetricsCollector
}

// NewFlowController はFlowControllerを生成する。
func NewFlowController(
	providers []OAuthProvider,
	states *StateStore,
	sessions *SessionStore,
	resolver *IdentityResolver,
	clientURL string,
	mc metrics.MetricsCollector,
) *FlowController {
	if mc == nil {
		mc = metrics.Nop{}
	}
	byName := make(map[model.Provider]OAuthProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &FlowController{
		providers: byName,
		states:    states,
		sessions:  sessions,
		resolver:  resolver,
		clientURL: clientURL,
		metrics:   mc,
	}
}

func (f *FlowController) provider(name model.Provider) (OAuthProvider, error) {
	p, ok := f.providers[name]
	if !ok {
		return nil, model.ErrUnknownProvider
	}
	return p, nil
}

// BeginFlow はstateを発行し、プロバイダーの認可URLを返す。
// stateはストアにのみ保存し、Cookieは使わない。
func (f *FlowController) BeginFlow(ctx context.Context, name model.Provider) (string, error) {
	p, err := f.provider(name)
	if err != nil {
		return "", err
	}

	state, err := f.states.Issue(ctx)
	if err != nil {
		return "", err
	}
	return p.AuthCodeURL(state), nil
}

// CompleteFlow はコールバックを処理し、セッショントークンとリダイレクト先を返す。
func (f *FlowController) CompleteFlow(ctx context.Context, name model.Provider, params CallbackParams) (*FlowResult, error) {
	p, err := f.provider(name)
	if err != nil {
		return nil, err
	}

	// プロバイダー側でキャンセルされた場合はストアに触れずクライアントへ戻す
	if params.Error != "" {
		f.metrics.RecordLogin(string(name), "cancelled")
		return &FlowResult{RedirectURL: f.cancelURL(params.Error)}, nil
	}

	if err := f.states.Consume(ctx, params.State); err != nil {
		f.metrics.RecordLogin(string(name), "invalid_state")
		return nil, err
	}

	if params.Code == "" {
		f.metrics.RecordLogin(string(name), "missing_code")
		return nil, model.ErrMissingAuthorizationCode
	}

	profile, err := p.ExchangeProfile(ctx, params.Code)
	if err != nil {
		f.metrics.RecordLogin(string(name), "upstream_error")
		slog.Error("oauth exchange failed",
			slog.String("provider", string(name)),
			slog.String("error", err.Error()),
		)
		return nil, model.ErrUpstreamProvider
	}

	user, err := f.resolver.Resolve(ctx, name, profile)
	if err != nil {
		return nil, err
	}

	token, err := f.issueSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	f.metrics.RecordLogin(string(name), "success")
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("provider", string(name)),
	)
	return &FlowResult{Token: token, RedirectURL: f.clientURL}, nil
}

// Logout はトークンに対応するセッションを破棄する。
// トークンが空、または既に無効な場合は何もしない。
func (f *FlowController) Logout(ctx context.Context, token string) error {
	return logout(ctx, f.sessions, token)
}

func (f *FlowController) issueSession(ctx context.Context, userID string) (string, error) {
	return issueSession(ctx, f.sessions, userID)
}

// cancelURL はクライアントURLにauth_errorとauth_cancelledを付けたURLを返す。
// クライアントURLが既に持つクエリは残す。
func (f *FlowController) cancelURL(providerError string) string {
	u, err := url.Parse(f.clientURL)
	if err != nil {
		return f.clientURL + "?auth_error=" + url.QueryEscape(providerError) + "&auth_cancelled=true"
	}
	q := u.Query()
	q.Set("auth_error", providerError)
	q.Set("auth_cancelled", "true")
	u.RawQuery = q.Encode()
	return u.String()
}

func issueSession(ctx context.Context, sessions *SessionStore, userID string) (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	if _, err := sessions.Create(ctx, token, userID); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return token, nil
}

func logout(ctx context.Context, sessions *SessionStore, token string) error {
	if token == "" {
		return nil
	}

	session, _, err := sessions.Validate(ctx, token)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	if err := sessions.Invalidate(ctx, session.ID); err != nil {
		return err
	}
	slog.Info("user logged out", slog.String("user_id", session.UserID))
	return nil
}

