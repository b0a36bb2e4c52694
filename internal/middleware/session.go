// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/grailtracker/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "session"

// DefaultAuthTimeout はRequireAuthのセッション検証タイムアウトのデフォルト値。
const DefaultAuthTimeout = 5 * time.Second

// sessionTTL はスライディング延長後の有効期間。auth.SessionTTLと同じ値。
const sessionTTL = 30 * 24 * time.Hour

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// checkedContextKey はOptionalAuthがセッション検証を済ませたことを示すキー。
var checkedContextKey = contextKey("session_checked")

// SessionValidator はセッションの検証と延長に必要なインターフェース。
// auth.SessionStoreが満たす。
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*model.Session, *model.User, error)
	Extend(ctx context.Context, sessionID string, expiresAt time.Time) error
	Now() time.Time
}

// NewRequireAuth は有効なセッションを必須とするミドルウェアを返す。
// Cookieがなければストアに問い合わせずに401を返す。
// 検証はtimeoutで打ち切り、タイムアウト・エラー・無効セッションはすべて401とする。
// OptionalAuthが検証済みのリクエストはその結果を使い、ストアに再度問い合わせない。
func NewRequireAuth(validator SessionValidator, timeout time.Duration) func(next http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultAuthTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserFromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}
			token := SessionToken(r)
			if token == "" || sessionChecked(r.Context()) {
				WriteErrorResponse(w, model.ErrAuthenticationRequired)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			_, user, err := validator.Validate(ctx, token)
			cancel()
			if err != nil {
				slog.Warn("session validation failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, model.ErrAuthenticationRequired)
				return
			}
			if user == nil {
				WriteErrorResponse(w, model.ErrAuthenticationRequired)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// NewOptionalAuth はセッションがあればユーザーを注入するミドルウェアを返す。
// 有効なセッションは30日延長する。無効・期限切れ・エラーの場合は匿名のまま続行する。
// 検証と延長はそれぞれtimeoutで打ち切る。
func NewOptionalAuth(validator SessionValidator, timeout time.Duration) func(next http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultAuthTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			checked := r.WithContext(context.WithValue(r.Context(), checkedContextKey, true))

			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			session, user, err := validator.Validate(ctx, token)
			cancel()
			if err != nil {
				slog.Warn("optional session validation failed", slog.String("error", err.Error()))
				next.ServeHTTP(w, checked)
				return
			}
			if session == nil || user == nil {
				next.ServeHTTP(w, checked)
				return
			}

			ctx, cancel = context.WithTimeout(r.Context(), timeout)
			err = validator.Extend(ctx, session.ID, validator.Now().Add(sessionTTL))
			cancel()
			if err != nil {
				slog.Warn("failed to extend session",
					slog.String("user_id", user.ID),
					slog.String("error", err.Error()),
				)
			}

			next.ServeHTTP(w, checked.WithContext(ContextWithUser(checked.Context(), user)))
		})
	}
}

// SessionToken はリクエストのCookieからセッショントークンを取り出す。なければ空文字を返す。
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 未認証の場合はnilを返す。
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}

func sessionChecked(ctx context.Context) bool {
	checked, _ := ctx.Value(checkedContextKey).(bool)
	return checked
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	recordUser(ctx, user)
	return context.WithValue(ctx, userContextKey, user)
}
