package model

import (
	"fmt"
	"net/http"
)

// APIError はクライアントに返却するエラーを表す。
// 列挙済みのエラーのみがステータスコードとメッセージを持ち、
// それ以外のエラーは汎用的な500として扱われる。
type APIError struct {
	Code    string // エラーコード
	Message string // クライアント向けメッセージ
	Status  int    // HTTPステータスコード
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthenticationRequired   = "AUTHENTICATION_REQUIRED"
	ErrCodeInvalidState             = "INVALID_STATE"
	ErrCodeMissingAuthorizationCode = "MISSING_AUTHORIZATION_CODE"
	ErrCodeUpstreamProvider         = "UPSTREAM_PROVIDER_ERROR"
	ErrCodeUnknownItemKey           = "UNKNOWN_ITEM_KEY"
	ErrCodeEmailAlreadyExists       = "EMAIL_ALREADY_EXISTS"
	ErrCodeInvalidCredentials       = "INVALID_CREDENTIALS"
	ErrCodeInvalidRequestBody       = "INVALID_REQUEST_BODY"
	ErrCodeUnknownProvider          = "UNKNOWN_PROVIDER"
	ErrCodeItemNotFound             = "ITEM_NOT_FOUND"
	ErrCodeMissingItemTypes         = "MISSING_ITEM_TYPES"
)

var (
	// ErrAuthenticationRequired はセッションが存在しない、無効、期限切れ、
	// または検証がタイムアウトした場合のエラー。
	ErrAuthenticationRequired = &APIError{
		Code:    ErrCodeAuthenticationRequired,
		Message: "Authentication required",
		Status:  http.StatusUnauthorized,
	}

	// ErrInvalidState はOAuth stateが存在しない、期限切れ、または再利用された場合のエラー。
	ErrInvalidState = &APIError{
		Code:    ErrCodeInvalidState,
		Message: "Invalid or expired OAuth state",
		Status:  http.StatusBadRequest,
	}

	// ErrMissingAuthorizationCode はコールバックに認可コードが含まれない場合のエラー。
	ErrMissingAuthorizationCode = &APIError{
		Code:    ErrCodeMissingAuthorizationCode,
		Message: "Missing authorization code",
		Status:  http.StatusBadRequest,
	}

	// ErrUpstreamProvider はコード交換またはプロフィール取得に失敗した場合のエラー。
	ErrUpstreamProvider = &APIError{
		Code:    ErrCodeUpstreamProvider,
		Message: "Authentication provider request failed",
		Status:  http.StatusBadGateway,
	}

	// ErrUnknownItemKey はカタログに存在しないitemKeyが指定された場合のエラー。
	ErrUnknownItemKey = &APIError{
		Code:    ErrCodeUnknownItemKey,
		Message: "Unknown item key",
		Status:  http.StatusBadRequest,
	}

	ErrEmailAlreadyExists = &APIError{
		Code:    ErrCodeEmailAlreadyExists,
		Message: "Email already exists",
		Status:  http.StatusBadRequest,
	}

	ErrInvalidCredentials = &APIError{
		Code:    ErrCodeInvalidCredentials,
		Message: "Invalid credentials",
		Status:  http.StatusBadRequest,
	}

	ErrInvalidRequestBody = &APIError{
		Code:    ErrCodeInvalidRequestBody,
		Message: "Invalid request body",
		Status:  http.StatusBadRequest,
	}

	ErrUnknownProvider = &APIError{
		Code:    ErrCodeUnknownProvider,
		Message: "Unknown authentication provider",
		Status:  http.StatusNotFound,
	}

	ErrItemNotFound = &APIError{
		Code:    ErrCodeItemNotFound,
		Message: "Item not found",
		Status:  http.StatusNotFound,
	}

	ErrMissingItemTypes = &APIError{
		Code:    ErrCodeMissingItemTypes,
		Message: "Types parameter is required",
		Status:  http.StatusBadRequest,
	}
)

// InternalErrorMessage は列挙外のエラーに対してクライアントへ返す汎用メッセージ。
const InternalErrorMessage = "Internal Server Error"
