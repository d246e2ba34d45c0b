package admin

import (
	"context"
	"errors"
	"testing"
	"time"
)

type memCredentials struct {
	hash string
}

func (m *memCredentials) GetAdminPassword(context.Context) (string, bool, error) {
	return m.hash, m.hash != "", nil
}

func (m *memCredentials) SetAdminPassword(_ context.Context, hash string) error {
	m.hash = hash
	return nil
}

func TestLoginWithDefaultPassword(t *testing.T) {
	svc := NewService(&memCredentials{}, Config{DefaultPassword: "admin123", Secret: "s3cret"})
	ctx := context.Background()

	token, expires, err := svc.Login(ctx, "admin123")
	if err != nil {
		t.Fatalf("Login err: %v", err)
	}
	if token == "" || expires.IsZero() {
		t.Fatalf("expected token and expiry")
	}
	if err := svc.Verify(token); err != nil {
		t.Fatalf("Verify err: %v", err)
	}
	if _, _, err := svc.Login(ctx, "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestChangePasswordReplacesDefault(t *testing.T) {
	store := &memCredentials{}
	svc := NewService(store, Config{DefaultPassword: "admin123"})
	ctx := context.Background()

	if err := svc.ChangePassword(ctx, "abc"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if err := svc.ChangePassword(ctx, "n3w-pass"); err != nil {
		t.Fatalf("ChangePassword err: %v", err)
	}
	if store.hash == "" || store.hash == "n3w-pass" {
		t.Fatalf("password should be stored hashed")
	}
	if _, _, err := svc.Login(ctx, "admin123"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("default password must stop working, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "n3w-pass"); err != nil {
		t.Fatalf("Login with new password err: %v", err)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	svc := NewService(&memCredentials{}, Config{DefaultPassword: "admin123", Secret: "one", TokenTTL: time.Hour})
	other := NewService(&memCredentials{}, Config{DefaultPassword: "admin123", Secret: "two"})

	token, _, err := other.Login(context.Background(), "admin123")
	if err != nil {
		t.Fatalf("Login err: %v", err)
	}
	if err := svc.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign signature should fail, got %v", err)
	}
	if err := svc.Verify("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage should fail, got %v", err)
	}

	token, _, _ = svc.Login(context.Background(), "admin123")
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if err := svc.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token should fail, got %v", err)
	}
}
