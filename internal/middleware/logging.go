package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/grailtracker/internal/metrics"
	"github.com/hitoshi/grailtracker/internal/model"
)

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// userSlot は下流の認証ミドルウェアが解決したユーザーをログ出力側へ渡すための入れ物。
type userSlot struct {
	user *model.User
}

var userSlotContextKey = contextKey("log_user_slot")

// recordUser はログ用スロットがあればユーザーを記録する。
func recordUser(ctx context.Context, user *model.User) {
	if slot, ok := ctx.Value(userSlotContextKey).(*userSlot); ok {
		slot.user = user
	}
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、user_id（認証済みの場合）を含む。
// 認証ミドルウェアより外側に置いても、下流で解決されたユーザーを記録できる。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			slot := &userSlot{user: UserFromContext(r.Context())}
			ctx := context.WithValue(r.Context(), userSlotContextKey, slot)

			next.ServeHTTP(rec, r.WithContext(ctx))

			duration := time.Since(start)
			durationMs := float64(duration.Nanoseconds()) / float64(time.Millisecond)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
			}
			if slot.user != nil {
				args = append(args, slog.String("user_id", slot.user.ID))
			}

			// slogのログレベルをステータスコードに応じて変更
			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}

// NewStatusMetricsMiddleware はレスポンスのステータスコードをメトリクスに記録するミドルウェアを返す。
func NewStatusMetricsMiddleware(mc metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			next.ServeHTTP(rec, r)
			mc.RecordHTTPStatus(rec.statusCode)
		})
	}
}
