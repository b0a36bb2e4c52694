package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/grailtracker/internal/catalog"
	"github.com/hitoshi/grailtracker/internal/middleware"
	"github.com/hitoshi/grailtracker/internal/model"
)

// ItemCatalog はカタログハンドラーが必要とする読み取り専用インターフェース。
type ItemCatalog interface {
	Item(itemKey string) (any, bool)
	ByTypes(types []string) catalog.Items
	Runewords() map[string]catalog.Runeword
	Runeword(key string) (catalog.Runeword, bool)
}

// errRunewordNotFound はルーンワードが存在しない場合のエラー。
var errRunewordNotFound = &model.APIError{
	Code:    model.ErrCodeItemNotFound,
	Message: "Runeword not found",
	Status:  http.StatusNotFound,
}

// ItemHandler はアイテムカタログのHTTPハンドラー。認証不要。
type ItemHandler struct {
	catalog ItemCatalog
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(c ItemCatalog) *ItemHandler {
	return &ItemHandler{catalog: c}
}

// ListItems は指定種別のカタログを返す。
// GET /items?types=uniqueItems&types=runes
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	types := r.URL.Query()["types"]
	if len(types) == 0 {
		middleware.WriteErrorResponse(w, model.ErrMissingItemTypes)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]catalog.Items{
		"items": h.catalog.ByTypes(types),
	})
}

// GetItem はユニーク、セット、ルーンからアイテムを1件返す。
// GET /items/{itemKey}
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, ok := h.catalog.Item(chi.URLParam(r, "itemKey"))
	if !ok {
		middleware.WriteErrorResponse(w, model.ErrItemNotFound)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{"item": item})
}

// ListRunewords は全ルーンワードを返す。
// GET /runewords
func (h *ItemHandler) ListRunewords(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"runewords": h.catalog.Runewords(),
	})
}

// GetRuneword はルーンワードを1件返す。
// GET /runewords/{runewordKey}
func (h *ItemHandler) GetRuneword(w http.ResponseWriter, r *http.Request) {
	rw, ok := h.catalog.Runeword(chi.URLParam(r, "runewordKey"))
	if !ok {
		middleware.WriteErrorResponse(w, errRunewordNotFound)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{"runeword": rw})
}
