package auth

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/grailtracker/internal/model"
	"github.com/hitoshi/grailtracker/internal/repository"
)

// --- インメモリのリポジトリ実装 ---

type memStore struct {
	mu       sync.Mutex
	users    map[string]*model.User
	sessions map[string]*model.Session
	states   map[string]*model.OAuthState
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*model.User),
		sessions: make(map[string]*model.Session),
		states:   make(map[string]*model.OAuthState),
	}
}

func cloneUser(u *model.User) *model.User {
	c := *u
	return &c
}

type memUserRepo struct{ s *memStore }

func (r memUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, nil
}

func (r memUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email != nil && *u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r memUserRepo) FindByEmailOrProviderID(_ context.Context, provider model.Provider, email, providerID string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var byEmail *model.User
	for _, u := range r.s.users {
		if providerID != "" && u.ProviderID(provider) == providerID {
			return cloneUser(u), nil
		}
		if email != "" && u.Email != nil && *u.Email == email {
			byEmail = u
		}
	}
	if byEmail != nil {
		return cloneUser(byEmail), nil
	}
	return nil, nil
}

func (r memUserRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if user.Email != nil {
		for _, u := range r.s.users {
			if u.Email != nil && *u.Email == *user.Email {
				return model.ErrEmailAlreadyExists
			}
		}
	}
	r.s.users[user.ID] = cloneUser(user)
	return nil
}

func (r memUserRepo) LinkProvider(_ context.Context, userID string, provider model.Provider, providerID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok || u.ProviderID(provider) != "" {
		return nil
	}
	setProviderID(u, provider, providerID)
	return nil
}

type memSessionRepo struct{ s *memStore }

func (r memSessionRepo) Create(_ context.Context, session *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *session
	r.s.sessions[session.ID] = &c
	return nil
}

func (r memSessionRepo) FindWithUser(_ context.Context, id string) (*model.Session, *model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.sessions[id]
	if !ok {
		return nil, nil, nil
	}
	c := *s
	return &c, cloneUser(r.s.users[s.UserID]), nil
}

func (r memSessionRepo) UpdateExpiresAt(_ context.Context, id string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if s, ok := r.s.sessions[id]; ok {
		s.ExpiresAt = expiresAt
	}
	return nil
}

func (r memSessionRepo) DeleteByID(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, id)
	return nil
}

func (r memSessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, s := range r.s.sessions {
		if s.ExpiresAt.Before(now) {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

type memStateRepo struct{ s *memStore }

func (r memStateRepo) Create(_ context.Context, state *model.OAuthState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *state
	r.s.states[state.State] = &c
	return nil
}

func (r memStateRepo) DeleteValid(_ context.Context, state string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.states[state]
	if !ok || !st.ExpiresAt.After(now) {
		return false, nil
	}
	delete(r.s.states, state)
	return true, nil
}

func (r memStateRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k, st := range r.s.states {
		if st.ExpiresAt.Before(now) {
			delete(r.s.states, k)
			n++
		}
	}
	return n, nil
}

// --- エラー注入用の関数フィールドモック ---

type mockUserRepo struct {
	findFn   func(ctx context.Context, provider model.Provider, email, providerID string) (*model.User, error)
	createFn func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepo) FindByID(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) FindByEmailOrProviderID(ctx context.Context, provider model.Provider, email, providerID string) (*model.User, error) {
	if m.findFn != nil {
		return m.findFn(ctx, provider, email, providerID)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) LinkProvider(_ context.Context, _ string, _ model.Provider, _ string) error {
	return nil
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

type mockSessionRepo struct {
	createFn          func(ctx context.Context, session *model.Session) error
	findWithUserFn    func(ctx context.Context, id string) (*model.Session, *model.User, error)
	updateExpiresAtFn func(ctx context.Context, id string, expiresAt time.Time) error
	deleteByIDFn      func(ctx context.Context, id string) error
	deleteExpiredFn   func(ctx context.Context, now time.Time) (int64, error)
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindWithUser(ctx context.Context, id string) (*model.Session, *model.User, error) {
	if m.findWithUserFn != nil {
		return m.findWithUserFn(ctx, id)
	}
	return nil, nil, nil
}

func (m *mockSessionRepo) UpdateExpiresAt(ctx context.Context, id string, expiresAt time.Time) error {
	if m.updateExpiresAtFn != nil {
		return m.updateExpiresAtFn(ctx, id, expiresAt)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx, now)
	}
	return 0, nil
}

type mockStateRepo struct {
	createFn      func(ctx context.Context, state *model.OAuthState) error
	deleteValidFn func(ctx context.Context, state string, now time.Time) (bool, error)
}

func (m *mockStateRepo) Create(ctx context.Context, state *model.OAuthState) error {
	if m.createFn != nil {
		return m.createFn(ctx, state)
	}
	return nil
}

func (m *mockStateRepo) DeleteValid(ctx context.Context, state string, now time.Time) (bool, error) {
	if m.deleteValidFn != nil {
		return m.deleteValidFn(ctx, state, now)
	}
	return false, nil
}

func (m *mockStateRepo) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type mockProvider struct {
	name              model.Provider
	authCodeURLFn     func(state string) string
	exchangeProfileFn func(ctx context.Context, code string) (*Profile, error)
}

func (m *mockProvider) Name() model.Provider { return m.name }

func (m *mockProvider) AuthCodeURL(state string) string {
	if m.authCodeURLFn != nil {
		return m.authCodeURLFn(state)
	}
	return "https://provider.example/auth?state=" + state
}

func (m *mockProvider) ExchangeProfile(ctx context.Context, code string) (*Profile, error) {
	if m.exchangeProfileFn != nil {
		return m.exchangeProfileFn(ctx, code)
	}
	return nil, nil
}

// --- compile-time interface checks ---
var (
	_ repository.UserRepository       = memUserRepo{}
	_ repository.SessionRepository    = memSessionRepo{}
	_ repository.OAuthStateRepository = memStateRepo{}
	_ repository.SessionRepository    = (*mockSessionRepo)(nil)
	_ repository.OAuthStateRepository = (*mockStateRepo)(nil)
	_ OAuthProvider                   = (*mockProvider)(nil)
)

// fixedClock はテスト用の可変時計。
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fixedClock {
	return &fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
