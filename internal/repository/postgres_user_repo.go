package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/grailtracker/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// usersEmailConstraint はusers.emailの一意制約名（マイグレーションで定義）。
const usersEmailConstraint = "users_email_key"

const userColumns = `id, email, google_id, discord_id, hashed_password, created_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// FindByEmailOrProviderID はemailまたはプロバイダーIDが一致するユーザーを検索する。
// 空のemailは一致条件に使わない。
func (r *PostgresUserRepo) FindByEmailOrProviderID(ctx context.Context, provider model.Provider, email, providerID string) (*model.User, error) {
	column, err := providerColumn(provider)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT %s FROM users
		 WHERE ($1 <> '' AND email = $1) OR %s = $2
		 ORDER BY COALESCE(%s = $2, false) DESC, created_at ASC
		 LIMIT 1`,
		userColumns, column, column,
	)

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email, providerID))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email or provider id: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, google_id, discord_id, hashed_password, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID,
		ptrNullString(user.Email),
		ptrNullString(user.GoogleID),
		ptrNullString(user.DiscordID),
		ptrNullString(user.PasswordHash),
		user.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == usersEmailConstraint {
			return model.ErrEmailAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// LinkProvider はプロバイダーIDが未設定の場合のみ設定する。
func (r *PostgresUserRepo) LinkProvider(ctx context.Context, userID string, provider model.Provider, providerID string) error {
	column, err := providerColumn(provider)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE users SET %s = $2 WHERE id = $1 AND %s IS NULL`, column, column)
	if _, err := r.db.ExecContext(ctx, query, userID, providerID); err != nil {
		return fmt.Errorf("failed to link provider: %w", err)
	}
	return nil
}

// providerColumn はプロバイダーに対応するカラム名を返す。
// カラム名はSQLに直接埋め込むため、許可リストで限定する。
func providerColumn(provider model.Provider) (string, error) {
	switch provider {
	case model.ProviderGoogle:
		return "google_id", nil
	case model.ProviderDiscord:
		return "discord_id", nil
	default:
		return "", fmt.Errorf("unsupported provider: %s", provider)
	}
}

// scanUser は1行をUserにスキャンする。行が無い場合は(nil, nil)を返す。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var email, googleID, discordID, passwordHash sql.NullString

	err := row.Scan(&user.ID, &email, &googleID, &discordID, &passwordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	user.Email = nullStringPtr(email)
	user.GoogleID = nullStringPtr(googleID)
	user.DiscordID = nullStringPtr(discordID)
	user.PasswordHash = nullStringPtr(passwordHash)
	return user, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func ptrNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
