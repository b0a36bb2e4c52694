package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/grailtracker/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Error string `json:"error"`
}

// WriteErrorResponse はAPIErrorのステータスとメッセージでエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	WriteJSON(w, apiErr.Status, ErrorResponseBody{Error: apiErr.Message})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、クライアントには汎用メッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteJSON(w, http.StatusInternalServerError, ErrorResponseBody{Error: model.InternalErrorMessage})
}

// WriteJSON はJSONレスポンスを書き込む。
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
