package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// NewRecoveryMiddleware はハンドラーのpanicを500 JSONに変換するミドルウェアを返す。
// http.ErrAbortHandlerはnet/httpが接続の中断に使うため、そのまま再panicさせる。
func NewRecoveryMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				logger.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				WriteInternalServerError(w)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
