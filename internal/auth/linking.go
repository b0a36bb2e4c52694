package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/grailtracker/internal/model"
	"github.com/hitoshi/grailtracker/internal/repository"
)

// IdentityResolver はプロバイダーのプロフィールをローカルユーザーに解決する。
type IdentityResolver struct {
	users repository.UserRepository
	now   func() time.Time
}

// NewIdentityResolver はIdentityResolverを生成する。
func NewIdentityResolver(users repository.UserRepository) *IdentityResolver {
	return &IdentityResolver{users: users, now: time.Now}
}

// Resolve はプロフィールに対応するユーザーを返す。
// emailまたはプロバイダーIDが一致するユーザーがいればそれを使い、
// プロバイダーIDが未設定なら設定する（以後は永続的に連携される）。
// 見つからなければ新規ユーザーを作成する。何度呼んでも結果は同じ。
func (r *IdentityResolver) Resolve(ctx context.Context, provider model.Provider, profile *Profile) (*model.User, error) {
	user, err := r.users.FindByEmailOrProviderID(ctx, provider, profile.Email, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		created, err := r.create(ctx, provider, profile)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, model.ErrEmailAlreadyExists) {
			return nil, err
		}

		// 同じemailの初回ログインが同時に走り、相手が先に作成した
		user, err = r.users.FindByEmailOrProviderID(ctx, provider, profile.Email, profile.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		if user == nil {
			return nil, fmt.Errorf("failed to create user: %w", model.ErrEmailAlreadyExists)
		}
	}

	if user.ProviderID(provider) == "" {
		if err := r.users.LinkProvider(ctx, user.ID, provider, profile.ID); err != nil {
			return nil, fmt.Errorf("failed to link provider: %w", err)
		}
		setProviderID(user, provider, profile.ID)
		slog.Info("provider linked",
			slog.String("user_id", user.ID),
			slog.String("provider", string(provider)),
		)
	}

	return user, nil
}

func (r *IdentityResolver) create(ctx context.Context, provider model.Provider, profile *Profile) (*model.User, error) {
	user := &model.User{
		ID:        uuid.New().String(),
		CreatedAt: r.now(),
	}
	if profile.Email != "" {
		email := profile.Email
		user.Email = &email
	}
	setProviderID(user, provider, profile.ID)

	if err := r.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("provider", string(provider)),
	)
	return user, nil
}

func setProviderID(user *model.User, provider model.Provider, id string) {
	v := id
	switch provider {
	case model.ProviderGoogle:
		user.GoogleID = &v
	case model.ProviderDiscord:
		user.DiscordID = &v
	}
}
