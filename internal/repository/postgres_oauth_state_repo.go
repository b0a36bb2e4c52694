package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/grailtracker/internal/model"
)

// PostgresOAuthStateRepo はPostgreSQLを使用したOAuth stateリポジトリ。
// ログイン開始とコールバックが別プロセスで処理されても検証できるよう、
// stateはCookieではなくDBに保存する。
type PostgresOAuthStateRepo struct {
	db *sql.DB
}

// NewPostgresOAuthStateRepo はPostgresOAuthStateRepoを生成する。
func NewPostgresOAuthStateRepo(db *sql.DB) *PostgresOAuthStateRepo {
	return &PostgresOAuthStateRepo{db: db}
}

// Create はstateを作成する。
func (r *PostgresOAuthStateRepo) Create(ctx context.Context, state *model.OAuthState) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO oauth_states (state, expires_at) VALUES ($1, $2)`,
		state.State, state.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create oauth state: %w", err)
	}
	return nil
}

// DeleteValid は有効期限内のstateを削除する。
// 検索と削除を1文で行うため、同じstateを同時に消費できるのは1リクエストのみ。
func (r *PostgresOAuthStateRepo) DeleteValid(ctx context.Context, state string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM oauth_states WHERE state = $1 AND expires_at > $2`,
		state, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteExpired は期限切れのstateを削除する。
func (r *PostgresOAuthStateRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM oauth_states WHERE expires_at < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired oauth states: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ OAuthStateRepository = (*PostgresOAuthStateRepo)(nil)
