package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/grailtracker/internal/middleware"
	"github.com/hitoshi/grailtracker/internal/model"
)

// UserItemService はアイテム発見記録ハンドラーが必要とするサービスインターフェース。
type UserItemService interface {
	List(ctx context.Context, userID string) ([]*model.UserItem, error)
	ListFound(ctx context.Context, userID string) ([]*model.UserItem, error)
	Set(ctx context.Context, userID, itemKey string, found bool) error
}

// UserItemHandler はアイテム発見記録のHTTPハンドラー。RequireAuthの内側に置く。
type UserItemHandler struct {
	service UserItemService
}

// NewUserItemHandler はUserItemHandlerを生成する。
func NewUserItemHandler(service UserItemService) *UserItemHandler {
	return &UserItemHandler{service: service}
}

type setUserItemRequest struct {
	ItemKey string `json:"itemKey"`
	Found   *bool  `json:"found"`
}

type setUserItemResponse struct {
	Success bool `json:"success"`
	Found   bool `json:"found"`
}

type userItemsResponse struct {
	Items []*model.UserItem `json:"items"`
}

// List はユーザーの全記録を返す。
// GET /user-items
func (h *UserItemHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		middleware.WriteErrorResponse(w, model.ErrAuthenticationRequired)
		return
	}

	items, err := h.service.List(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, userItemsResponse{Items: items})
}

// ListFound は発見済みの記録のみを返す。
// GET /user-items/found
func (h *UserItemHandler) ListFound(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		middleware.WriteErrorResponse(w, model.ErrAuthenticationRequired)
		return
	}

	items, err := h.service.ListFound(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, userItemsResponse{Items: items})
}

// Set はアイテムの発見状態を設定する。
// POST /user-items/set {"itemKey": "...", "found": true}
func (h *UserItemHandler) Set(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		middleware.WriteErrorResponse(w, model.ErrAuthenticationRequired)
		return
	}

	var req setUserItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ItemKey == "" || req.Found == nil {
		middleware.WriteErrorResponse(w, model.ErrInvalidRequestBody)
		return
	}

	if err := h.service.Set(r.Context(), user.ID, req.ItemKey, *req.Found); err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, setUserItemResponse{Success: true, Found: *req.Found})
}
