package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/grailtracker/internal/model"
)

func TestPasswordAuth_RegisterAndLogin(t *testing.T) {
	s := newMemStore()
	sessions := newTestSessionStore(s, newClock())
	a := NewPasswordAuth(memUserRepo{s}, sessions)
	ctx := context.Background()

	token, err := a.Register(ctx, "a@x.com", "hunter22")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if token == "" {
		t.Fatal("Register() should return a session token")
	}

	for _, u := range s.users {
		if u.PasswordHash == nil || *u.PasswordHash == "hunter22" {
			t.Error("password must be stored hashed")
		}
	}

	loginToken, err := a.Login(ctx, "a@x.com", "hunter22")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	_, user, err := sessions.Validate(ctx, loginToken)
	if err != nil || user == nil || *user.Email != "a@x.com" {
		t.Errorf("Validate(login token) = %v, %v", user, err)
	}
}

func TestPasswordAuth_RegisterDuplicateEmail(t *testing.T) {
	s := newMemStore()
	a := NewPasswordAuth(memUserRepo{s}, newTestSessionStore(s, newClock()))
	ctx := context.Background()

	if _, err := a.Register(ctx, "a@x.com", "pw"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := a.Register(ctx, "a@x.com", "pw2"); !errors.Is(err, model.ErrEmailAlreadyExists) {
		t.Errorf("Register() error = %v, want ErrEmailAlreadyExists", err)
	}
}

func TestPasswordAuth_RegisterRejectsEmptyFields(t *testing.T) {
	s := newMemStore()
	a := NewPasswordAuth(memUserRepo{s}, newTestSessionStore(s, newClock()))

	if _, err := a.Register(context.Background(), " ", "pw"); !errors.Is(err, model.ErrInvalidRequestBody) {
		t.Errorf("Register() error = %v, want ErrInvalidRequestBody", err)
	}
}

func TestPasswordAuth_LoginFailures(t *testing.T) {
	s := newMemStore()
	a := NewPasswordAuth(memUserRepo{s}, newTestSessionStore(s, newClock()))
	ctx := context.Background()
	a.Register(ctx, "a@x.com", "correct")
	// OAuthのみのユーザー
	seedUser(s, "oauth-only", "o@x.com")

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "nobody@x.com", "correct"},
		{"wrong password", "a@x.com", "wrong"},
		{"no password set", "o@x.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.Login(ctx, tt.email, tt.password); !errors.Is(err, model.ErrInvalidCredentials) {
				t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}
