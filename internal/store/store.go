// Package store 组合远端与本地存储：读取优先远端、失败回落本地；写入远端尽力而为、本地必写。
package store

import (
	"context"

	"github.com/modernsoft/estock-support/backend/internal/model/chat"
	"github.com/modernsoft/estock-support/backend/internal/model/customer"
	"github.com/modernsoft/estock-support/backend/internal/model/knowledge"
	"github.com/modernsoft/estock-support/backend/pkg/logger"
)

// Shared is implemented by both the remote and the local backend.
type Shared interface {
	knowledge.Store
	chat.LogStore
	chat.FeedbackStore
	customer.Store
	customer.SettingsStore
	GetAdminPassword(ctx context.Context) (string, bool, error)
	SetAdminPassword(ctx context.Context, hash string) error
}

// Local additionally keeps autosave snapshots, which never leave the process host.
type Local interface {
	Shared
	chat.AutosaveStore
}

// Layered implements every store interface on top of an optional remote and a
// mandatory local backend.
type Layered struct {
	remote Shared
	local  Local
	log    *logger.Logger
}

// NewLayered wires the backends. remote may be nil.
func NewLayered(remote Shared, local Local, log *logger.Logger) *Layered {
	if log == nil {
		log = logger.Nop()
	}
	return &Layered{remote: remote, local: local, log: log.With("component", "store")}
}

// RemoteEnabled reports whether a remote backend is configured.
func (l *Layered) RemoteEnabled() bool {
	return l.remote != nil
}

// writeBoth 先尽力写远端，再写本地，返回本地写入的错误。
func (l *Layered) writeBoth(op string, remote func(Shared) error, local func(Local) error) error {
	if l.remote != nil {
		if err := remote(l.remote); err != nil {
			l.log.Warn("remote write failed, keeping local copy", "op", op, "error", err)
		}
	}
	return local(l.local)
}

func (l *Layered) remoteFailed(op string, err error) {
	l.log.Warn("remote read failed, falling back to local", "op", op, "error", err)
}

// --- knowledge ---

func (l *Layered) GetManual(ctx context.Context) (string, bool, error) {
	if l.remote != nil {
		text, found, err := l.remote.GetManual(ctx)
		if err == nil && found {
			return text, true, nil
		}
		if err != nil {
			l.remoteFailed("get_manual", err)
		}
	}
	return l.local.GetManual(ctx)
}

func (l *Layered) SaveManual(ctx context.Context, text string) error {
	return l.writeBoth("save_manual",
		func(s Shared) error { return s.SaveManual(ctx, text) },
		func(s Local) error { return s.SaveManual(ctx, text) })
}

func (l *Layered) DeleteManual(ctx context.Context) error {
	return l.writeBoth("delete_manual",
		func(s Shared) error { return s.DeleteManual(ctx) },
		func(s Local) error { return s.DeleteManual(ctx) })
}

func (l *Layered) GetSnippets(ctx context.Context) ([]knowledge.Snippet, error) {
	if l.remote != nil {
		snippets, err := l.remote.GetSnippets(ctx)
		if err == nil {
			return snippets, nil
		}
		l.remoteFailed("get_snippets", err)
	}
	return l.local.GetSnippets(ctx)
}

func (l *Layered) AddSnippet(ctx context.Context, snippet knowledge.Snippet) error {
	return l.writeBoth("add_snippet",
		func(s Shared) error { return s.AddSnippet(ctx, snippet) },
		func(s Local) error { return s.AddSnippet(ctx, snippet) })
}

func (l *Layered) DeleteSnippet(ctx context.Context, id string) error {
	return l.writeBoth("delete_snippet",
		func(s Shared) error { return s.DeleteSnippet(ctx, id) },
		func(s Local) error { return s.DeleteSnippet(ctx, id) })
}

func (l *Layered) GetCompanyInfo(ctx context.Context) (knowledge.CompanyInfo, bool, error) {
	if l.remote != nil {
		info, found, err := l.remote.GetCompanyInfo(ctx)
		if err == nil && found {
			return info, true, nil
		}
		if err != nil {
			l.remoteFailed("get_company", err)
		}
	}
	return l.local.GetCompanyInfo(ctx)
}

func (l *Layered) SaveCompanyInfo(ctx context.Context, info knowledge.CompanyInfo) error {
	return l.writeBoth("save_company",
		func(s Shared) error { return s.SaveCompanyInfo(ctx, info) },
		func(s Local) error { return s.SaveCompanyInfo(ctx, info) })
}

func (l *Layered) GetKBItems(ctx context.Context) ([]knowledge.KBItem, bool, error) {
	if l.remote != nil {
		items, found, err := l.remote.GetKBItems(ctx)
		if err == nil && found {
			return items, true, nil
		}
		if err != nil {
			l.remoteFailed("get_kb", err)
		}
	}
	return l.local.GetKBItems(ctx)
}

func (l *Layered) SaveKBItems(ctx context.Context, items []knowledge.KBItem) error {
	return l.writeBoth("save_kb",
		func(s Shared) error { return s.SaveKBItems(ctx, items) },
		func(s Local) error { return s.SaveKBItems(ctx, items) })
}

// --- logs & feedback ---

func (l *Layered) AppendLog(ctx context.Context, log chat.Log) error {
	return l.writeBoth("append_log",
		func(s Shared) error { return s.AppendLog(ctx, log) },
		func(s Local) error { return s.AppendLog(ctx, log) })
}

func (l *Layered) GetLogs(ctx context.Context, limit int) ([]chat.Log, error) {
	if l.remote != nil {
		logs, err := l.remote.GetLogs(ctx, limit)
		if err == nil {
			return logs, nil
		}
		l.remoteFailed("get_logs", err)
	}
	return l.local.GetLogs(ctx, limit)
}

func (l *Layered) AddFeedback(ctx context.Context, fb chat.Feedback) error {
	return l.writeBoth("add_feedback",
		func(s Shared) error { return s.AddFeedback(ctx, fb) },
		func(s Local) error { return s.AddFeedback(ctx, fb) })
}

func (l *Layered) GetFeedback(ctx context.Context, limit int) ([]chat.Feedback, error) {
	if l.remote != nil {
		items, err := l.remote.GetFeedback(ctx, limit)
		if err == nil {
			return items, nil
		}
		l.remoteFailed("get_feedback", err)
	}
	return l.local.GetFeedback(ctx, limit)
}

// --- autosave (local only) ---

func (l *Layered) SaveAutosave(ctx context.Context, snapshot chat.Snapshot) error {
	return l.local.SaveAutosave(ctx, snapshot)
}

func (l *Layered) DeleteAutosave(ctx context.Context, sessionID string) error {
	return l.local.DeleteAutosave(ctx, sessionID)
}

func (l *Layered) ListAutosaves(ctx context.Context) ([]chat.Snapshot, error) {
	return l.local.ListAutosaves(ctx)
}

// --- customers & settings ---

func (l *Layered) GetCustomers(ctx context.Context) ([]customer.Customer, error) {
	if l.remote != nil {
		customers, err := l.remote.GetCustomers(ctx)
		if err == nil {
			return customers, nil
		}
		l.remoteFailed("get_customers", err)
	}
	return l.local.GetCustomers(ctx)
}

func (l *Layered) SaveCustomer(ctx context.Context, c customer.Customer) error {
	return l.writeBoth("save_customer",
		func(s Shared) error { return s.SaveCustomer(ctx, c) },
		func(s Local) error { return s.SaveCustomer(ctx, c) })
}

func (l *Layered) DeleteCustomer(ctx context.Context, id string) error {
	return l.writeBoth("delete_customer",
		func(s Shared) error { return s.DeleteCustomer(ctx, id) },
		func(s Local) error { return s.DeleteCustomer(ctx, id) })
}

func (l *Layered) GetSettings(ctx context.Context) (customer.Settings, bool, error) {
	if l.remote != nil {
		settings, found, err := l.remote.GetSettings(ctx)
		if err == nil && found {
			return settings, true, nil
		}
		if err != nil {
			l.remoteFailed("get_settings", err)
		}
	}
	return l.local.GetSettings(ctx)
}

func (l *Layered) SaveSettings(ctx context.Context, settings customer.Settings) error {
	return l.writeBoth("save_settings",
		func(s Shared) error { return s.SaveSettings(ctx, settings) },
		func(s Local) error { return s.SaveSettings(ctx, settings) })
}

func (l *Layered) GetAdminPassword(ctx context.Context) (string, bool, error) {
	if l.remote != nil {
		hash, found, err := l.remote.GetAdminPassword(ctx)
		if err == nil && found {
			return hash, true, nil
		}
		if err != nil {
			l.remoteFailed("get_admin_password", err)
		}
	}
	return l.local.GetAdminPassword(ctx)
}

func (l *Layered) SetAdminPassword(ctx context.Context, hash string) error {
	return l.writeBoth("set_admin_password",
		func(s Shared) error { return s.SetAdminPassword(ctx, hash) },
		func(s Local) error { return s.SetAdminPassword(ctx, hash) })
}
