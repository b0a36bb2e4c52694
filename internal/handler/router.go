package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/grailtracker/internal/metrics"
	"github.com/hitoshi/grailtracker/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionValidator middleware.SessionValidator
	AuthTimeout      time.Duration
	ClientURL        string
	RateLimiter      *middleware.RateLimiter
	Logger           *slog.Logger
	Metrics          metrics.MetricsCollector
	MetricsHandler   http.Handler // nilの場合は/metricsを公開しない

	// 認証
	Flow       OAuthFlow
	Passwords  PasswordAuthenticator
	AuthConfig AuthHandlerConfig

	// カタログ
	Catalog ItemCatalog

	// アイテム発見記録
	UserItems UserItemService

	// ヘルスチェック
	Health *HealthHandler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → Logging → StatusMetrics → CORS → SecurityHeaders → OptionalAuth
//
// OptionalAuthは全リクエストの前処理としてセッションを検証・延長する。
// 認証必須のルートはさらにRequireAuthで保護する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mc := deps.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewStatusMetricsMiddleware(mc))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.AuthConfig.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.ClientURL))
	r.Use(middleware.NewOptionalAuth(deps.SessionValidator, deps.AuthTimeout))

	requireAuth := middleware.NewRequireAuth(deps.SessionValidator, deps.AuthTimeout)

	authHandler := NewAuthHandler(deps.Flow, deps.Passwords, deps.AuthConfig)
	itemHandler := NewItemHandler(deps.Catalog)
	userItemHandler := NewUserItemHandler(deps.UserItems)

	// 認証ルート
	r.Route("/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.CredentialMiddleware()).Post("/register", authHandler.Register)
		r.With(deps.RateLimiter.CredentialMiddleware()).Post("/login", authHandler.PasswordLogin)
		r.Post("/logout", authHandler.Logout)
		r.With(requireAuth).Get("/me", authHandler.Me)

		r.Get("/{provider}/login", authHandler.Login)
		r.Get("/{provider}/callback", authHandler.Callback)
	})

	// カタログ（認証不要）
	r.Route("/items", func(r chi.Router) {
		r.Get("/", itemHandler.ListItems)
		r.Get("/{itemKey}", itemHandler.GetItem)
	})
	r.Route("/runewords", func(r chi.Router) {
		r.Get("/", itemHandler.ListRunewords)
		r.Get("/{runewordKey}", itemHandler.GetRuneword)
	})

	// アイテム発見記録（認証必須）
	r.Route("/user-items", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", userItemHandler.List)
		r.Get("/found", userItemHandler.ListFound)
		r.Post("/set", userItemHandler.Set)
	})

	// ヘルスチェック
	r.With(deps.RateLimiter.HealthMiddleware()).Get("/status/health", deps.Health.Health)
	r.With(deps.RateLimiter.HealthMiddleware()).Get("/health", deps.Health.Health)
	r.With(deps.RateLimiter.StatusMiddleware()).Get("/status", deps.Health.Status)

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	return r
}
