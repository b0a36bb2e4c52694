package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 実行環境
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth (Google)
	GoogleClientID     string
	GoogleClientSecret string
	GoogleAuthURL      string
	GoogleTokenURL     string
	GoogleUserInfoURL  string

	// OAuth (Discord)
	DiscordClientID     string
	DiscordClientSecret string
	DiscordAuthURL      string
	DiscordTokenURL     string
	DiscordUserInfoURL  string

	// Session
	AuthTimeout   time.Duration
	SweepInterval time.Duration

	// Rate Limit (req/min/IP)
	RateLimitHealth     int
	RateLimitCredential int
	RateLimitStatus     int

	// Server
	ServerPort string
	BaseURL    string
	ClientURL  string
	AppEnv     string
	AppVersion string

	// Cookie
	CookieDomain string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込むが、既存の環境変数は上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = strings.TrimRight(os.Getenv("BASE_URL"), "/")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.ClientURL = os.Getenv("CLIENT_URL")
	if cfg.ClientURL == "" {
		missing = append(missing, "CLIENT_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// プロバイダーはIDとシークレットが揃っている場合のみ有効
	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.DiscordClientID = os.Getenv("DISCORD_CLIENT_ID")
	cfg.DiscordClientSecret = os.Getenv("DISCORD_CLIENT_SECRET")
	if !cfg.GoogleEnabled() && !cfg.DiscordEnabled() {
		return nil, fmt.Errorf("at least one OAuth provider must be configured (GOOGLE_CLIENT_ID/SECRET or DISCORD_CLIENT_ID/SECRET)")
	}

	// Optional fields with defaults
	cfg.GoogleAuthURL = os.Getenv("GOOGLE_AUTH_URL")
	cfg.GoogleTokenURL = os.Getenv("GOOGLE_TOKEN_URL")
	cfg.GoogleUserInfoURL = os.Getenv("GOOGLE_USERINFO_URL")
	cfg.DiscordAuthURL = os.Getenv("DISCORD_AUTH_URL")
	cfg.DiscordTokenURL = os.Getenv("DISCORD_TOKEN_URL")
	cfg.DiscordUserInfoURL = os.Getenv("DISCORD_USERINFO_URL")
	cfg.AuthTimeout = getEnvDuration("AUTH_TIMEOUT", 5*time.Second)
	cfg.SweepInterval = getEnvDuration("SWEEP_INTERVAL", 15*time.Minute)
	cfg.RateLimitHealth = getEnvInt("RATE_LIMIT_HEALTH", 10)
	cfg.RateLimitCredential = getEnvInt("RATE_LIMIT_CREDENTIAL", 20)
	cfg.RateLimitStatus = getEnvInt("RATE_LIMIT_STATUS", 5)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.AppEnv = getEnvString("APP_ENV", EnvDevelopment)
	cfg.AppVersion = getEnvString("APP_VERSION", "dev")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

// IsDevelopment は開発環境で動作しているかを返す。
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// IsProduction は本番環境で動作しているかを返す。
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// GoogleEnabled はGoogleログインが設定されているかを返す。
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// DiscordEnabled はDiscordログインが設定されているかを返す。
func (c *Config) DiscordEnabled() bool {
	return c.DiscordClientID != "" && c.DiscordClientSecret != ""
}

// CallbackURL はプロバイダーのOAuthコールバックURLを返す。
func (c *Config) CallbackURL(provider string) string {
	return c.BaseURL + "/auth/" + provider + "/callback"
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
