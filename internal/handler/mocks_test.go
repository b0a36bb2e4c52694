package handler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hitoshi/grailtracker/internal/auth"
	"github.com/hitoshi/grailtracker/internal/model"
	"github.com/hitoshi/grailtracker/internal/repository"
)

// --- モック定義 ---

type mockFlow struct {
	beginFlowFn    func(ctx context.Context, provider model.Provider) (string, error)
	completeFlowFn func(ctx context.Context, provider model.Provider, params auth.CallbackParams) (*auth.FlowResult, error)
	logoutFn       func(ctx context.Context, token string) error
}

func (m *mockFlow) BeginFlow(ctx context.Context, provider model.Provider) (string, error) {
	if m.beginFlowFn != nil {
		return m.beginFlowFn(ctx, provider)
	}
	return "", nil
}

func (m *mockFlow) CompleteFlow(ctx context.Context, provider model.Provider, params auth.CallbackParams) (*auth.FlowResult, error) {
	if m.completeFlowFn != nil {
		return m.completeFlowFn(ctx, provider, params)
	}
	return nil, nil
}

func (m *mockFlow) Logout(ctx context.Context, token string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, token)
	}
	return nil
}

type mockPasswords struct {
	registerFn func(ctx context.Context, email, password string) (string, error)
	loginFn    func(ctx context.Context, email, password string) (string, error)
}

func (m *mockPasswords) Register(ctx context.Context, email, password string) (string, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, email, password)
	}
	return "", nil
}

func (m *mockPasswords) Login(ctx context.Context, email, password string) (string, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return "", nil
}

type mockUserItems struct {
	listFn      func(ctx context.Context, userID string) ([]*model.UserItem, error)
	listFoundFn func(ctx context.Context, userID string) ([]*model.UserItem, error)
	setFn       func(ctx context.Context, userID, itemKey string, found bool) error
}

func (m *mockUserItems) List(ctx context.Context, userID string) ([]*model.UserItem, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return []*model.UserItem{}, nil
}

func (m *mockUserItems) ListFound(ctx context.Context, userID string) ([]*model.UserItem, error) {
	if m.listFoundFn != nil {
		return m.listFoundFn(ctx, userID)
	}
	return []*model.UserItem{}, nil
}

func (m *mockUserItems) Set(ctx context.Context, userID, itemKey string, found bool) error {
	if m.setFn != nil {
		return m.setFn(ctx, userID, itemKey, found)
	}
	return nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.err
}

type mockStatusReporter struct {
	info *repository.DatabaseInfo
	err  error
}

func (m *mockStatusReporter) DatabaseInfo(ctx context.Context) (*repository.DatabaseInfo, error) {
	return m.info, m.err
}

type mockSweeper struct {
	calls atomic.Int32
}

func (m *mockSweeper) RunDetached() {
	m.calls.Add(1)
}

// tokenValidator は"valid-token"のみを受け付けるセッション検証のスタブ。
type tokenValidator struct {
	extended atomic.Int32
}

func (v *tokenValidator) Validate(ctx context.Context, token string) (*model.Session, *model.User, error) {
	if token != "valid-token" {
		return nil, nil, nil
	}
	email := "player@example.com"
	return &model.Session{ID: "sid-1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)},
		&model.User{ID: "user-1", Email: &email}, nil
}

func (v *tokenValidator) Extend(ctx context.Context, sessionID string, expiresAt time.Time) error {
	v.extended.Add(1)
	return nil
}

func (v *tokenValidator) Now() time.Time {
	return time.Now()
}

// stallingValidator はctxが終わるまでセッション検証を返さないスタブ。
type stallingValidator struct{}

func (stallingValidator) Validate(ctx context.Context, _ string) (*model.Session, *model.User, error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-time.After(3 * time.Second):
		return nil, nil, nil
	}
}

func (stallingValidator) Extend(context.Context, string, time.Time) error { return nil }

func (stallingValidator) Now() time.Time { return time.Now() }
