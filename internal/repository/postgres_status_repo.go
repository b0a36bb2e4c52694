package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PostgresStatusRepo は接続先PostgreSQLの情報を返す。
type PostgresStatusRepo struct {
	db *sql.DB
}

// NewPostgresStatusRepo はPostgresStatusRepoを生成する。
func NewPostgresStatusRepo(db *sql.DB) *PostgresStatusRepo {
	return &PostgresStatusRepo{db: db}
}

// DatabaseInfo はDB名、接続ユーザー、サーバーバージョンを取得する。
func (r *PostgresStatusRepo) DatabaseInfo(ctx context.Context) (*DatabaseInfo, error) {
	var version string
	info := &DatabaseInfo{}
	err := r.db.QueryRowContext(ctx,
		`SELECT version(), current_database(), current_user`,
	).Scan(&version, &info.Name, &info.User)
	if err != nil {
		return nil, fmt.Errorf("failed to query database info: %w", err)
	}
	info.Version = shortVersion(version)
	return info, nil
}

// shortVersion はversion()の結果からビルド情報を除き"PostgreSQL 16.2"の形にする。
func shortVersion(v string) string {
	fields := strings.Fields(v)
	if len(fields) > 2 {
		fields = fields[:2]
	}
	return strings.Join(fields, " ")
}
