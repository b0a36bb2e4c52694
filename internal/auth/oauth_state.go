package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/grailtracker/internal/model"
	"github.com/hitoshi/grailtracker/internal/repository"
)

// StateTTL はOAuth stateの有効期間。
const StateTTL = 10 * time.Minute

// stateBytes はstateの乱数バイト長。
const stateBytes = 16

// StateStore はOAuthフローのstateを発行・消費する。
// stateはストアに保存されるため、ログイン開始とコールバックが
// 別のプロセスインスタンスで処理されても検証できる。
type StateStore struct {
	repo repository.OAuthStateRepository
	now  func() time.Time
}

// NewStateStore はStateStoreを生成する。
func NewStateStore(repo repository.OAuthStateRepository) *StateStore {
	return &StateStore{repo: repo, now: time.Now}
}

// Issue は新しいstateを発行して保存する。有効期限は10分。
func (s *StateStore) Issue(ctx context.Context) (string, error) {
	state, err := randomHex(stateBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}

	if err := s.repo.Create(ctx, &model.OAuthState{
		State:     state,
		ExpiresAt: s.now().Add(StateTTL),
	}); err != nil {
		return "", fmt.Errorf("failed to save oauth state: %w", err)
	}
	return state, nil
}

// Consume はstateを検証して消費する。
// 未発行、期限切れ、消費済みのいずれもmodel.ErrInvalidStateを返す。
// 空のstateはストアに問い合わせずに拒否する。
func (s *StateStore) Consume(ctx context.Context, state string) error {
	if state == "" {
		return model.ErrInvalidState
	}

	ok, err := s.repo.DeleteValid(ctx, state, s.now())
	if err != nil {
		return fmt.Errorf("failed to consume oauth state: %w", err)
	}
	if !ok {
		return model.ErrInvalidState
	}
	return nil
}

// SweepExpired は期限切れのstateを一括削除し、削除件数を返す。
func (s *StateStore) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep oauth states: %w", err)
	}
	return n, nil
}
