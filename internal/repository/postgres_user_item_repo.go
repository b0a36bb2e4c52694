package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/grailtracker/internal/model"
)

// PostgresUserItemRepo はPostgreSQLを使用したアイテム発見記録リポジトリ。
type PostgresUserItemRepo struct {
	db *sql.DB
}

// NewPostgresUserItemRepo はPostgresUserItemRepoを生成する。
func NewPostgresUserItemRepo(db *sql.DB) *PostgresUserItemRepo {
	return &PostgresUserItemRepo{db: db}
}

// ListByUserID はユーザーの全記録を返す。
func (r *PostgresUserItemRepo) ListByUserID(ctx context.Context, userID string) ([]*model.UserItem, error) {
	return r.list(ctx,
		`SELECT id, user_id, item_key, found, found_at
		 FROM user_items WHERE user_id = $1 ORDER BY item_key`,
		userID,
	)
}

// ListFoundByUserID はユーザーの発見済み記録のみを返す。
func (r *PostgresUserItemRepo) ListFoundByUserID(ctx context.Context, userID string) ([]*model.UserItem, error) {
	return r.list(ctx,
		`SELECT id, user_id, item_key, found, found_at
		 FROM user_items WHERE user_id = $1 AND found = true ORDER BY item_key`,
		userID,
	)
}

// Upsert はUNIQUE(user_id, item_key)制約を利用したINSERT ON CONFLICTで記録を作成または更新する。
// 競合時は既存行のIDを維持する。
func (r *PostgresUserItemRepo) Upsert(ctx context.Context, item *model.UserItem) error {
	var foundAt sql.NullTime
	if item.FoundAt != nil {
		foundAt = sql.NullTime{Time: *item.FoundAt, Valid: true}
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO user_items (id, user_id, item_key, found, found_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, item_key) DO UPDATE SET
		     found = EXCLUDED.found,
		     found_at = EXCLUDED.found_at
		 RETURNING id`,
		item.ID, item.UserID, item.ItemKey, item.Found, foundAt,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("アイテム記録の保存に失敗しました: %w", err)
	}
	return nil
}

// Delete は(userID, itemKey)の記録を削除する。
func (r *PostgresUserItemRepo) Delete(ctx context.Context, userID, itemKey string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_items WHERE user_id = $1 AND item_key = $2`,
		userID, itemKey,
	)
	if err != nil {
		return fmt.Errorf("アイテム記録の削除に失敗しました: %w", err)
	}
	return nil
}

func (r *PostgresUserItemRepo) list(ctx context.Context, query string, args ...any) ([]*model.UserItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("アイテム記録の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	items := make([]*model.UserItem, 0)
	for rows.Next() {
		item := &model.UserItem{}
		var foundAt sql.NullTime
		if err := rows.Scan(&item.ID, &item.UserID, &item.ItemKey, &item.Found, &foundAt); err != nil {
			return nil, fmt.Errorf("アイテム記録のスキャンに失敗しました: %w", err)
		}
		if foundAt.Valid {
			t := foundAt.Time
			item.FoundAt = &t
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アイテム記録の走査に失敗しました: %w", err)
	}
	return items, nil
}

// compile-time interface check
var _ UserItemRepository = (*PostgresUserItemRepo)(nil)
