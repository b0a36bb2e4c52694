// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationsFS はusers、sessions、oauth_states、user_itemsのスキーマ定義。
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewMigrator はマイグレーション実行用のmigrateインスタンスを生成する。
// databaseURLはPostgreSQLの接続URLを指定する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// RunMigrations はすべてのマイグレーションを適用する。
// すでに最新の場合はエラーなしで返る。
func RunMigrations(databaseURL string) error {
	_, err := RunMigrationsWithVersion(databaseURL)
	return err
}

// RunMigrationsWithVersion はすべてのマイグレーションを適用し、適用後のスキーマバージョンを返す。
// dirty状態の場合はエラーを返す。
func RunMigrationsWithVersion(databaseURL string) (uint, error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("database is dirty at version %d", version)
	}

	return version, nil
}
