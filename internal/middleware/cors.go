package middleware

import (
	"net/http"
	"strings"
)

// corsAllowedMethods はクライアントが使うメソッド。
var corsAllowedMethods = strings.Join([]string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodDelete, http.MethodOptions,
}, ", ")

// NewCORSMiddleware はクライアントURLのみを許可するCORSミドルウェアを返す。
// セッションCookieを送らせるためcredentialsを許可し、ワイルドカード(*)は使用しない。
// プリフライト（Access-Control-Request-Method付きのOPTIONS）には204で応答し、
// 要求されたヘッダーをそのまま許可する。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowedOrigin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")

			if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowHeaders := r.Header.Get("Access-Control-Request-Headers")
			if allowHeaders == "" {
				allowHeaders = "Content-Type"
			}
			h.Set("Access-Control-Allow-Methods", corsAllowedMethods)
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Access-Control-Request-Headers")
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
