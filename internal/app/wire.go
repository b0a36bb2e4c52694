package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/grailtracker/internal/auth"
	"github.com/hitoshi/grailtracker/internal/catalog"
	"github.com/hitoshi/grailtracker/internal/config"
	"github.com/hitoshi/grailtracker/internal/handler"
	"github.com/hitoshi/grailtracker/internal/metrics"
	"github.com/hitoshi/grailtracker/internal/middleware"
	"github.com/hitoshi/grailtracker/internal/model"
	"github.com/hitoshi/grailtracker/internal/repository"
	"github.com/hitoshi/grailtracker/internal/useritem"
	"github.com/hitoshi/grailtracker/internal/worker/cleanup"
)

// Components はserve・worker・サーバーレスの各モードで共有する依存関係。
type Components struct {
	Handler     http.Handler
	Cleanup     *cleanup.Job
	RateLimiter *middleware.RateLimiter
	Registry    *prometheus.Registry
}

// Close はバックグラウンドのgoroutineを停止する。
func (c *Components) Close() {
	if c.RateLimiter != nil {
		c.RateLimiter.Stop()
	}
}

// NewRateLimiterConfig は設定のreq/min/IPをレートリミッターの設定に変換する。
func NewRateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rl := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitHealth > 0 {
		rl.HealthRate = rate.Limit(float64(cfg.RateLimitHealth) / 60.0)
		rl.HealthBurst = cfg.RateLimitHealth
	}
	if cfg.RateLimitCredential > 0 {
		rl.CredentialRate = rate.Limit(float64(cfg.RateLimitCredential) / 60.0)
		rl.CredentialBurst = cfg.RateLimitCredential
	}
	if cfg.RateLimitStatus > 0 {
		rl.StatusRate = rate.Limit(float64(cfg.RateLimitStatus) / 60.0)
		rl.StatusBurst = cfg.RateLimitStatus
	}
	return rl
}

// NewProviders は設定済みのOAuthプロバイダーを生成する。
func NewProviders(cfg *config.Config) []auth.OAuthProvider {
	var providers []auth.OAuthProvider
	if cfg.GoogleEnabled() {
		providers = append(providers, auth.NewGoogleProvider(auth.ProviderConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.CallbackURL(string(model.ProviderGoogle)),
			AuthURL:      cfg.GoogleAuthURL,
			TokenURL:     cfg.GoogleTokenURL,
			UserInfoURL:  cfg.GoogleUserInfoURL,
		}))
	}
	if cfg.DiscordEnabled() {
		providers = append(providers, auth.NewDiscordProvider(auth.ProviderConfig{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.CallbackURL(string(model.ProviderDiscord)),
			AuthURL:      cfg.DiscordAuthURL,
			TokenURL:     cfg.DiscordTokenURL,
			UserInfoURL:  cfg.DiscordUserInfoURL,
		}))
	}
	return providers
}

// NewCleanupJob はセッションとOAuth stateの掃除ジョブを生成する。
func NewCleanupJob(sessions *auth.SessionStore, states *auth.StateStore, logger *slog.Logger, mc metrics.MetricsCollector) *cleanup.Job {
	return cleanup.NewJob([]cleanup.Target{
		{Name: "sessions", Sweeper: sessions},
		{Name: "oauth_states", Sweeper: states},
	}, logger, mc)
}

// Build はDB接続と設定から全依存関係をワイヤリングする。
func Build(cfg *config.Config, db *sql.DB, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	collector := metrics.NewCollector(reg)

	// 2. リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	stateRepo := repository.NewPostgresOAuthStateRepo(db)
	userItemRepo := repository.NewPostgresUserItemRepo(db)

	// 3. 認証
	sessions := auth.NewSessionStore(sessionRepo).WithMetrics(collector)
	states := auth.NewStateStore(stateRepo)
	flow := auth.NewFlowController(
		NewProviders(cfg), states, sessions,
		auth.NewIdentityResolver(userRepo), cfg.ClientURL, collector,
	)
	passwords := auth.NewPasswordAuth(userRepo, sessions)

	// 4. カタログとアイテム発見記録
	items, err := catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	userItems := useritem.NewService(userItemRepo, items)

	// 5. 掃除ジョブ
	job := NewCleanupJob(sessions, states, logger, collector)

	// 6. ルーター
	rl := middleware.NewRateLimiter(NewRateLimiterConfig(cfg))
	router := handler.NewRouter(&handler.RouterDeps{
		SessionValidator: sessions,
		AuthTimeout:      cfg.AuthTimeout,
		ClientURL:        cfg.ClientURL,
		RateLimiter:      rl,
		Logger:           logger,
		Metrics:          collector,
		MetricsHandler:   metrics.Handler(reg),

		Flow:      flow,
		Passwords: passwords,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: !cfg.IsDevelopment(),
		},

		Catalog:   items,
		UserItems: userItems,

		Health: handler.NewHealthHandler(db, job, cfg.AppVersion).
			WithStatusReporter(repository.NewPostgresStatusRepo(db)),
	})

	return &Components{
		Handler:     router,
		Cleanup:     job,
		RateLimiter: rl,
		Registry:    reg,
	}, nil
}
