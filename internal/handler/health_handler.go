package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/grailtracker/internal/middleware"
	"github.com/hitoshi/grailtracker/internal/repository"
)

// healthPingTimeout はヘルスチェックのDB疎通確認のタイムアウト。
const healthPingTimeout = 5 * time.Second

// BackgroundSweeper はリクエストを待たせずに期限切れ行を掃除するジョブ。
// cleanup.Jobが満たす。
type BackgroundSweeper interface {
	RunDetached()
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	db      repository.Pinger
	sweeper BackgroundSweeper
	status  repository.StatusReporter
	version string
	now     func() time.Time
}

// NewHealthHandler はHealthHandlerを生成する。sweeperはnilでもよい。
func NewHealthHandler(db repository.Pinger, sweeper BackgroundSweeper, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		sweeper: sweeper,
		version: version,
		now:     time.Now,
	}
}

// WithStatusReporter は詳細ステータス用のDB情報取得を設定する。
func (h *HealthHandler) WithStatusReporter(status repository.StatusReporter) *HealthHandler {
	h.status = status
	return h
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Database  string `json:"database"`
}

// Health はDBへの疎通を確認し、サービスの状態を返す。
// 疎通できない場合は503を返す。あわせて期限切れ行の掃除をバックグラウンドで起動する。
// GET /status/health, GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.sweeper != nil {
		h.sweeper.RunDetached()
	}

	resp := healthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Version:   h.version,
		Database:  "connected",
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		slog.Warn("health check: database unreachable", slog.String("error", err.Error()))
		resp.Status = "unhealthy"
		resp.Database = "disconnected"
		middleware.WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

type statusDatabase struct {
	Connected bool   `json:"connected"`
	Name      string `json:"name,omitempty"`
	User      string `json:"user,omitempty"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

type statusResponse struct {
	Status    string         `json:"status"`
	Database  statusDatabase `json:"database"`
	Timestamp string         `json:"timestamp"`
}

// Status は接続先DBの名前・ユーザー・バージョンを含む詳細な状態を返す。
// 取得できない場合は詳細を伏せて503を返す。
// GET /status
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:    "unhealthy",
		Database:  statusDatabase{Error: "Connection failed"},
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}
	if h.status == nil {
		middleware.WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	info, err := h.status.DatabaseInfo(ctx)
	if err != nil {
		slog.Warn("status: database unreachable", slog.String("error", err.Error()))
		middleware.WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	resp.Status = "healthy"
	resp.Database = statusDatabase{
		Connected: true,
		Name:      info.Name,
		User:      info.User,
		Version:   info.Version,
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}
