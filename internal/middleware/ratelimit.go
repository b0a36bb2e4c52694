package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	HealthRate      rate.Limit    // ヘルスチェックのレート（req/sec）。10/60
	HealthBurst     int           // ヘルスチェックのバーストサイズ
	CredentialRate  rate.Limit    // パスワード登録・ログインのレート（req/sec）
	CredentialBurst int           // パスワード登録・ログインのバーストサイズ
	StatusRate      rate.Limit    // 詳細ステータスのレート（req/sec）。5/60
	StatusBurst     int           // 詳細ステータスのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// ヘルスチェック 10 req/min/IP、パスワード認証 20 req/min/IP、詳細ステータス 5 req/min/IP。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		HealthRate:      rate.Limit(10.0 / 60.0),
		HealthBurst:     10,
		CredentialRate:  rate.Limit(20.0 / 60.0),
		CredentialBurst: 20,
		StatusRate:      rate.Limit(5.0 / 60.0),
		StatusBurst:     5,
		CleanupInterval: 5 * time.Minute,
	}
}

// clientLimiter はクライアントごとのレートリミッターとアクセス時刻を保持する。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterPool はキー（クライアントIP）ごとのリミッターを管理する。
type limiterPool struct {
	name  string
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

func newLimiterPool(name string, limit rate.Limit, burst int) *limiterPool {
	return &limiterPool{
		name:     name,
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*clientLimiter),
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cl, ok := p.limiters[key]; ok {
		cl.lastAccess = time.Now()
		return cl.limiter
	}

	limiter := rate.NewLimiter(p.limit, p.burst)
	p.limiters[key] = &clientLimiter{limiter: limiter, lastAccess: time.Now()}
	return limiter
}

func (p *limiterPool) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.limiters)
}

// prune は最終アクセスからttl以上経過したエントリを削除する。
func (p *limiterPool) prune(now time.Time, ttl time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, cl := range p.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(p.limiters, key)
		}
	}
}

func (p *limiterPool) middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !p.get(ip).Allow() {
				writeRateLimitResponse(w, p.limit)
				slog.Warn("rate limit exceeded",
					slog.String("client_ip", ip),
					slog.String("limit_type", p.name),
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter はクライアントIPごとのレート制限を管理する。
// ヘルスチェック、パスワード認証、詳細ステータスの制限を独立に提供する。
type RateLimiter struct {
	config     RateLimiterConfig
	health     *limiterPool
	credential *limiterPool
	status     *limiterPool

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.StatusBurst <= 0 {
		def := DefaultRateLimiterConfig()
		config.StatusRate, config.StatusBurst = def.StatusRate, def.StatusBurst
	}

	rl := &RateLimiter{
		config:     config,
		health:     newLimiterPool("health", config.HealthRate, config.HealthBurst),
		credential: newLimiterPool("credential", config.CredentialRate, config.CredentialBurst),
		status:     newLimiterPool("status", config.StatusRate, config.StatusBurst),
		stopCh:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// HealthMiddleware はヘルスチェック用のレート制限ミドルウェアを返す。
func (rl *RateLimiter) HealthMiddleware() func(next http.Handler) http.Handler {
	return rl.health.middleware()
}

// CredentialMiddleware はパスワード登録・ログイン用のレート制限ミドルウェアを返す。
func (rl *RateLimiter) CredentialMiddleware() func(next http.Handler) http.Handler {
	return rl.credential.middleware()
}

// StatusMiddleware は詳細ステータス用のレート制限ミドルウェアを返す。
func (rl *RateLimiter) StatusMiddleware() func(next http.Handler) http.Handler {
	return rl.status.middleware()
}

// HealthLimiterCount は現在管理されているヘルスチェック用リミッターのエントリ数を返す。
// テスト用。
func (rl *RateLimiter) HealthLimiterCount() int {
	return rl.health.len()
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2
	rl.health.prune(now, ttl)
	rl.credential.prune(now, ttl)
	rl.status.prune(now, ttl)
}

// clientIP はリクエスト元のIPアドレスを返す。
// chiのRealIPミドルウェアを前段に置くとプロキシ配下でも実IPになる。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteJSON(w, http.StatusTooManyRequests, ErrorResponseBody{Error: "Too many requests, please try again later."})
}
