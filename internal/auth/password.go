package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/grailtracker/internal/model"
	"github.com/hitoshi/grailtracker/internal/repository"
)

// passwordCost はbcryptのコスト。
const passwordCost = 10

// PasswordAuth はメールアドレスとパスワードによる登録・ログインを提供する。
type PasswordAuth struct {
	users    repository.UserRepository
	sessions *SessionStore
	now      func() time.Time
}

// NewPasswordAuth はPasswordAuthを生成する。
func NewPasswordAuth(users repository.UserRepository, sessions *SessionStore) *PasswordAuth {
	return &PasswordAuth{users: users, sessions: sessions, now: time.Now}
}

// Register はユーザーを作成してセッショントークンを返す。
// emailが既に使われている場合はmodel.ErrEmailAlreadyExistsを返す。
func (a *PasswordAuth) Register(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", model.ErrInvalidRequestBody
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	hashed := string(hash)

	user := &model.User{
		ID:           uuid.New().String(),
		Email:        &email,
		PasswordHash: &hashed,
		CreatedAt:    a.now(),
	}
	if err := a.users.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrEmailAlreadyExists) {
			return "", model.ErrEmailAlreadyExists
		}
		return "", err
	}

	return issueSession(ctx, a.sessions, user.ID)
}

// Login は資格情報を検証してセッショントークンを返す。
// ユーザーが存在しない場合とパスワード不一致は区別せずmodel.ErrInvalidCredentialsを返す。
func (a *PasswordAuth) Login(ctx context.Context, email, password string) (string, error) {
	user, err := a.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	// OAuthのみで作成されたユーザーはパスワードを持たない
	if user == nil || user.PasswordHash == nil {
		return "", model.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return "", model.ErrInvalidCredentials
	}

	return issueSession(ctx, a.sessions, user.ID)
}

