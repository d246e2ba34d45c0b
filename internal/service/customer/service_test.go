package customer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/modernsoft/estock-support/backend/internal/model/customer"
	"github.com/modernsoft/estock-support/backend/internal/store/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "customers.db"))
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	svc := NewService(store)
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC) }
	return svc
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	c, err := svc.Register(ctx, "  صيدلية النور ", " 1001 ")
	if err != nil {
		t.Fatalf("Register err: %v", err)
	}
	if c.Name != "صيدلية النور" || c.ContractNumber != "1001" || !c.IsActive {
		t.Fatalf("unexpected customer %+v", c)
	}

	got, err := svc.Authenticate(ctx, "صيدلية النور", "1001 ")
	if err != nil {
		t.Fatalf("Authenticate err: %v", err)
	}
	if got.LastLogin == nil || !got.LastLogin.Equal(svc.now()) {
		t.Fatalf("last login should be refreshed, got %v", got.LastLogin)
	}

	stored, err := svc.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if stored.LastLogin == nil {
		t.Fatalf("last login should be persisted")
	}

	if _, err := svc.Authenticate(ctx, "صيدلية النور", "9999"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRegisterRules(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a", "1"); err != nil {
		t.Fatalf("Register err: %v", err)
	}
	// 合同号重复优先于字段缺失。
	if _, err := svc.Register(ctx, "", "1"); !errors.Is(err, ErrContractExists) {
		t.Fatalf("expected ErrContractExists, got %v", err)
	}
	if _, err := svc.Register(ctx, "b", " "); !errors.Is(err, ErrFieldsRequired) {
		t.Fatalf("expected ErrFieldsRequired, got %v", err)
	}
}

func TestInactiveCustomerCannotLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Save(ctx, customer.Customer{Name: "x", ContractNumber: "7", IsActive: false}); err != nil {
		t.Fatalf("Save err: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "x", "7"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestBulkAddSkipsExistingContracts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a", "1"); err != nil {
		t.Fatalf("Register err: %v", err)
	}
	added, err := svc.BulkAdd(ctx, []customer.Customer{
		{Name: "dup", ContractNumber: "1"},
		{Name: "b", ContractNumber: "2"},
		{Name: "b again", ContractNumber: "2"},
		{Name: "", ContractNumber: "3"},
		{Name: "c", ContractNumber: "4"},
	})
	if err != nil {
		t.Fatalf("BulkAdd err: %v", err)
	}
	if added != 2 {
		t.Fatalf("expected 2 added, got %d", added)
	}
	all, _ := svc.List(ctx)
	if len(all) != 3 {
		t.Fatalf("expected 3 customers, got %d", len(all))
	}
}

func TestDeleteAndGetMissing(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	c, _ := svc.Register(ctx, "a", "1")
	if err := svc.Delete(ctx, c.ID); err != nil {
		t.Fatalf("Delete err: %v", err)
	}
	if _, err := svc.Get(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSettingsDefaultsAndValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	settings, err := svc.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings err: %v", err)
	}
	if settings.SessionTimeoutMinutes != customer.DefaultSessionTimeoutMinutes {
		t.Fatalf("expected default timeout, got %d", settings.SessionTimeoutMinutes)
	}

	if err := svc.SaveSettings(ctx, customer.Settings{SessionTimeoutMinutes: 0}); !errors.Is(err, ErrInvalidTimeout) {
		t.Fatalf("expected ErrInvalidTimeout, got %v", err)
	}
	if err := svc.SaveSettings(ctx, customer.Settings{SessionTimeoutMinutes: 30}); err != nil {
		t.Fatalf("SaveSettings err: %v", err)
	}
	settings, _ = svc.Settings(ctx)
	if settings.SessionTimeoutMinutes != 30 {
		t.Fatalf("expected 30, got %d", settings.SessionTimeoutMinutes)
	}
}
