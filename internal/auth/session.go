package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/grailtracker/internal/metrics"
	"github.com/hitoshi/grailtracker/internal/model"
	"github.com/hitoshi/grailtracker/internal/repository"
)

// SessionTTL はセッションの有効期間。認証済みリクエストごとに延長される。
const SessionTTL = 30 * 24 * time.Hour

// SessionStore はセッションの作成、検証、延長、破棄を提供する。
type SessionStore struct {
	repo    repository.SessionRepository
	now     func() time.Time
	metrics metrics.MetricsCollector
}

// NewSessionStore はSessionStoreを生成する。
func NewSessionStore(repo repository.SessionRepository) *SessionStore {
	return &SessionStore{repo: repo, now: time.Now, metrics: metrics.Nop{}}
}

// WithMetrics は検証結果を記録するコレクターを設定する。
func (s *SessionStore) WithMetrics(mc metrics.MetricsCollector) *SessionStore {
	s.metrics = mc
	return s
}

// Create はトークンに対応するセッションを作成する。有効期限は現在から30日後。
func (s *SessionStore) Create(ctx context.Context, token, userID string) (*model.Session, error) {
	session := &model.Session{
		ID:        SessionIDFromToken(token),
		UserID:    userID,
		ExpiresAt: s.now().Add(SessionTTL),
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

// Validate はトークンを検証し、セッションと所有ユーザーを返す。
// 存在しない場合は(nil, nil, nil)を返す。
// 期限切れの場合はその場で削除してから(nil, nil, nil)を返すため、
// 掃除ジョブが動いていなくても期限切れセッションが有効になることはない。
func (s *SessionStore) Validate(ctx context.Context, token string) (*model.Session, *model.User, error) {
	sessionID := SessionIDFromToken(token)

	session, user, err := s.repo.FindWithUser(ctx, sessionID)
	if err != nil {
		s.metrics.RecordSessionValidation("error")
		return nil, nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		s.metrics.RecordSessionValidation("not_found")
		return nil, nil, nil
	}

	if !s.now().Before(session.ExpiresAt) {
		s.metrics.RecordSessionValidation("expired")
		if err := s.repo.DeleteByID(ctx, sessionID); err != nil {
			slog.Warn("failed to delete expired session", slog.String("error", err.Error()))
		}
		return nil, nil, nil
	}

	s.metrics.RecordSessionValidation("valid")
	return session, user, nil
}

// Extend はセッションの有効期限を無条件に更新する。
func (s *SessionStore) Extend(ctx context.Context, sessionID string, expiresAt time.Time) error {
	if err := s.repo.UpdateExpiresAt(ctx, sessionID, expiresAt); err != nil {
		return fmt.Errorf("failed to extend session: %w", err)
	}
	return nil
}

// Invalidate はセッションを削除する。
func (s *SessionStore) Invalidate(ctx context.Context, sessionID string) error {
	if err := s.repo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	return nil
}

// SweepExpired は期限切れセッションを一括削除し、削除件数を返す。
func (s *SessionStore) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	return n, nil
}

// Now はストアが使う現在時刻を返す。ミドルウェアの延長期限計算に使う。
func (s *SessionStore) Now() time.Time {
	return s.now()
}
