// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/grailtracker/internal/auth"
	"github.com/hitoshi/grailtracker/internal/middleware"
	"github.com/hitoshi/grailtracker/internal/model"
)

// sessionMaxAge はセッションCookieの有効期間（秒）。30日。
const sessionMaxAge = int(auth.SessionTTL / time.Second)

// OAuthFlow は認証ハンドラーが必要とするOAuthフローのインターフェース。
type OAuthFlow interface {
	BeginFlow(ctx context.Context, provider model.Provider) (string, error)
	CompleteFlow(ctx context.Context, provider model.Provider, params auth.CallbackParams) (*auth.FlowResult, error)
	Logout(ctx context.Context, token string) error
}

// PasswordAuthenticator はメールアドレスとパスワードによる認証のインターフェース。
type PasswordAuthenticator interface {
	Register(ctx context.Context, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	flow      OAuthFlow
	passwords PasswordAuthenticator
	config    AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(flow OAuthFlow, passwords PasswordAuthenticator, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		flow:      flow,
		passwords: passwords,
		config:    config,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type userResponse struct {
	ID        string  `json:"id"`
	Email     *string `json:"email"`
	GoogleID  *string `json:"googleId"`
	DiscordID *string `json:"discordId"`
}

// Login はOAuthフローを開始する。
// GET /auth/{provider}/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	provider := model.Provider(chi.URLParam(r, "provider"))

	url, err := h.flow.BeginFlow(r.Context(), provider)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/{provider}/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := model.Provider(chi.URLParam(r, "provider"))
	q := r.URL.Query()

	result, err := h.flow.CompleteFlow(r.Context(), provider, auth.CallbackParams{
		Code:  q.Get("code"),
		State: q.Get("state"),
		Error: q.Get("error"),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if result.Token != "" {
		h.setSessionCookie(w, result.Token)
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// Register はメールアドレスとパスワードでユーザーを登録し、ログイン状態にする。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, model.ErrInvalidRequestBody)
		return
	}

	token, err := h.passwords.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, token)
	middleware.WriteJSON(w, http.StatusOK, successResponse{Success: true})
}

// PasswordLogin はメールアドレスとパスワードでログインする。
// POST /auth/login
func (h *AuthHandler) PasswordLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, model.ErrInvalidRequestBody)
		return
	}

	token, err := h.passwords.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, token)
	middleware.WriteJSON(w, http.StatusOK, successResponse{Success: true})
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.flow.Logout(r.Context(), middleware.SessionToken(r)); err != nil {
		slog.Error("failed to logout", slog.String("error", err.Error()))
		// ログアウト失敗してもCookieはクリアする
	}

	h.clearSessionCookie(w)
	middleware.WriteJSON(w, http.StatusOK, successResponse{Success: true})
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		middleware.WriteErrorResponse(w, model.ErrAuthenticationRequired)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]userResponse{
		"user": {
			ID:        user.ID,
			Email:     user.Email,
			GoogleID:  user.GoogleID,
			DiscordID: user.DiscordID,
		},
	})
}

// setSessionCookie はセッションCookieを設定する。
// SecureとDomainは開発環境以外でのみ付与する。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, h.sessionCookie(token, sessionMaxAge))
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, h.sessionCookie("", -1))
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if h.config.CookieSecure {
		c.Secure = true
		c.Domain = h.config.CookieDomain
	}
	return c
}

// handleServiceError はサービス層から返されたエラーをHTTPレスポンスに変換する。
// 列挙済みのAPIErrorはそのステータスとメッセージで返し、それ以外は汎用の500とする。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}
