// Package api はVercelのGo関数ランタイム向けのエントリーポイント。
// すべてのパスをこの関数へリライトし、内部ルーターへディスパッチする。
package api

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/grailtracker/internal/app"
)

// Handler はVercelから呼び出される。
func Handler(w http.ResponseWriter, r *http.Request) {
	b, err := app.Serverless()
	if err != nil {
		slog.Error("serverless initialization failed", slog.String("error", err.Error()))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal Server Error"}`))
		return
	}
	b.ServeHTTP(w, r)
}
