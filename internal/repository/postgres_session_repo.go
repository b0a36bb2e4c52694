package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/grailtracker/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, expires_at) VALUES ($1, $2, $3)`,
		session.ID, session.UserID, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindWithUser はセッションと所有ユーザーをJOINして取得する。
// 期限切れの判定は呼び出し側で行う。
func (r *PostgresSessionRepo) FindWithUser(ctx context.Context, id string) (*model.Session, *model.User, error) {
	session := &model.Session{}
	user := &model.User{}
	var email, googleID, discordID, passwordHash sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT s.id, s.user_id, s.expires_at,
		        u.id, u.email, u.google_id, u.discord_id, u.hashed_password, u.created_at
		 FROM sessions s
		 INNER JOIN users u ON u.id = s.user_id
		 WHERE s.id = $1`,
		id,
	).Scan(
		&session.ID, &session.UserID, &session.ExpiresAt,
		&user.ID, &email, &googleID, &discordID, &passwordHash, &user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find session: %w", err)
	}

	user.Email = nullStringPtr(email)
	user.GoogleID = nullStringPtr(googleID)
	user.DiscordID = nullStringPtr(discordID)
	user.PasswordHash = nullStringPtr(passwordHash)

	return session, user, nil
}

// UpdateExpiresAt はセッションの有効期限を更新する。
func (r *PostgresSessionRepo) UpdateExpiresAt(ctx context.Context, id string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = $2 WHERE id = $1`,
		id, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to extend session: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れのセッションを削除する。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
