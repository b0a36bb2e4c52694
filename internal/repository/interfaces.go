// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/grailtracker/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByEmailOrProviderID はemailが一致するか、指定プロバイダーのIDが一致するユーザーを検索する。
	// 両方に該当するユーザーが別々に存在する場合はプロバイダーIDの一致を優先する。
	// 見つからない場合はnilを返す。
	FindByEmailOrProviderID(ctx context.Context, provider model.Provider, email, providerID string) (*model.User, error)

	// Create はユーザーを作成する。
	// emailが既に使われている場合はmodel.ErrEmailAlreadyExistsを返す。
	Create(ctx context.Context, user *model.User) error

	// LinkProvider は指定プロバイダーのIDをユーザーに設定する。
	// 既にIDが設定されている場合は変更しない。
	LinkProvider(ctx context.Context, userID string, provider model.Provider, providerID string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindWithUser は指定IDのセッションと所有ユーザーを取得する。
	// 期限切れの判定は行わない。見つからない場合は(nil, nil, nil)を返す。
	FindWithUser(ctx context.Context, id string) (*model.Session, *model.User, error)

	// UpdateExpiresAt はセッションの有効期限を無条件に更新する。
	UpdateExpiresAt(ctx context.Context, id string, expiresAt time.Time) error

	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error

	// DeleteExpired はexpires_atがnowより前のセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// OAuthStateRepository はOAuth stateの永続化インターフェース。
type OAuthStateRepository interface {
	// Create はstateを作成する。
	Create(ctx context.Context, state *model.OAuthState) error

	// DeleteValid は有効期限内のstateを1文で削除し、削除できたかを返す。
	// 存在しない、期限切れ、または既に消費済みの場合はfalseを返す。
	DeleteValid(ctx context.Context, state string, now time.Time) (bool, error)

	// DeleteExpired はexpires_atがnowより前のstateを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// UserItemRepository はユーザーごとのアイテム発見記録の永続化インターフェース。
type UserItemRepository interface {
	// ListByUserID はユーザーの全記録を返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.UserItem, error)

	// ListFoundByUserID はユーザーの発見済み記録のみを返す。
	ListFoundByUserID(ctx context.Context, userID string) ([]*model.UserItem, error)

	// Upsert は(userID, itemKey)の記録を作成または更新する。
	Upsert(ctx context.Context, item *model.UserItem) error

	// Delete は(userID, itemKey)の記録を削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, userID, itemKey string) error
}

// Pinger はストアへの疎通確認インターフェース。*sql.DBが満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// DatabaseInfo は詳細ステータスで返す接続先DBの情報。
type DatabaseInfo struct {
	Name    string
	User    string
	Version string
}

// StatusReporter は接続先DBの情報を取得するインターフェース。
type StatusReporter interface {
	DatabaseInfo(ctx context.Context) (*DatabaseInfo, error)
}
