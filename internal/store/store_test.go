package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/modernsoft/estock-support/backend/internal/model/knowledge"
	"github.com/modernsoft/estock-support/backend/internal/store/sqlite"
)

var errRemoteDown = errors.New("remote down")

// downRemote 模拟远端不可用。
type downRemote struct {
	Shared
	writes int
}

func (d *downRemote) GetManual(context.Context) (string, bool, error) {
	return "", false, errRemoteDown
}

func (d *downRemote) SaveManual(context.Context, string) error {
	d.writes++
	return errRemoteDown
}

func (d *downRemote) GetSnippets(context.Context) ([]knowledge.Snippet, error) {
	return nil, errRemoteDown
}

func (d *downRemote) AddSnippet(context.Context, knowledge.Snippet) error {
	d.writes++
	return errRemoteDown
}

func openSQLite(t *testing.T, name string) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), name))
	if err != nil {
		t.Fatalf("sqlite.Open err: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLayeredFallsBackWhenRemoteDown(t *testing.T) {
	ctx := context.Background()
	remote := &downRemote{}
	layered := NewLayered(remote, openSQLite(t, "local.db"), nil)

	if err := layered.SaveManual(ctx, "local manual"); err != nil {
		t.Fatalf("SaveManual should succeed on local write, got %v", err)
	}
	if err := layered.AddSnippet(ctx, knowledge.Snippet{ID: "s1", Content: "x", Timestamp: time.Now()}); err != nil {
		t.Fatalf("AddSnippet err: %v", err)
	}
	if remote.writes != 2 {
		t.Fatalf("expected remote write attempts, got %d", remote.writes)
	}

	text, found, err := layered.GetManual(ctx)
	if err != nil || !found || text != "local manual" {
		t.Fatalf("unexpected manual %q found=%v err=%v", text, found, err)
	}
	snippets, err := layered.GetSnippets(ctx)
	if err != nil || len(snippets) != 1 {
		t.Fatalf("unexpected snippets %+v err=%v", snippets, err)
	}
}

func TestLayeredPrefersRemote(t *testing.T) {
	ctx := context.Background()
	remote := openSQLite(t, "remote.db")
	local := openSQLite(t, "local.db")
	layered := NewLayered(remote, local, nil)

	if err := local.SaveManual(ctx, "stale"); err != nil {
		t.Fatalf("seed local: %v", err)
	}
	if err := remote.SaveManual(ctx, "fresh"); err != nil {
		t.Fatalf("seed remote: %v", err)
	}

	text, _, err := layered.GetManual(ctx)
	if err != nil || text != "fresh" {
		t.Fatalf("expected remote manual, got %q err=%v", text, err)
	}

	if err := remote.DeleteManual(ctx); err != nil {
		t.Fatalf("DeleteManual err: %v", err)
	}
	text, found, err := layered.GetManual(ctx)
	if err != nil || !found || text != "stale" {
		t.Fatalf("remote miss should fall back to local, got %q found=%v err=%v", text, found, err)
	}
}

func TestLayeredWithoutRemote(t *testing.T) {
	ctx := context.Background()
	layered := NewLayered(nil, openSQLite(t, "local.db"), nil)

	if layered.RemoteEnabled() {
		t.Fatal("remote should be disabled")
	}
	info := knowledge.DefaultCompanyInfo()
	if err := layered.SaveCompanyInfo(ctx, info); err != nil {
		t.Fatalf("SaveCompanyInfo err: %v", err)
	}
	got, found, err := layered.GetCompanyInfo(ctx)
	if err != nil || !found || got != info {
		t.Fatalf("unexpected company %+v found=%v err=%v", got, found, err)
	}
}
