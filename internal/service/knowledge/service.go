package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/modernsoft/estock-support/backend/internal/model/knowledge"
)

var (
	ErrSnippetContentRequired = errors.New("snippet content is required")
	ErrSnippetNotFound        = errors.New("snippet not found")
	ErrManualTextRequired     = errors.New("manual text is required")
)

const appendSeparator = "\n\n================================\n"

// Service 管理知识库并为会话组装系统上下文。
type Service struct {
	store   knowledge.Store
	screens knowledge.ScreenCatalog
	company knowledge.CompanyInfo
	limits  Limits
	now     func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithScreens overrides the screen image catalog.
func WithScreens(screens knowledge.ScreenCatalog) Option {
	return func(s *Service) {
		if screens != nil {
			s.screens = screens
		}
	}
}

// WithDefaultCompany sets the company info used when none is stored.
func WithDefaultCompany(info knowledge.CompanyInfo) Option {
	return func(s *Service) { s.company = info }
}

// WithLimits sets the context truncation limits.
func WithLimits(limits Limits) Option {
	return func(s *Service) { s.limits = limits.normalized() }
}

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store knowledge.Store, opts ...Option) *Service {
	svc := &Service{
		store:   store,
		screens: knowledge.DefaultScreenCatalog(),
		company: knowledge.DefaultCompanyInfo(),
		limits:  Limits{}.normalized(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Manual returns the effective manual: the stored override, or the built-in
// default when nothing was ever stored. An explicitly cleared manual is "".
func (s *Service) Manual(ctx context.Context) (string, error) {
	text, found, err := s.store.GetManual(ctx)
	if err != nil {
		return "", fmt.Errorf("load manual: %w", err)
	}
	if !found {
		return knowledge.DefaultManual, nil
	}
	return text, nil
}

func (s *Service) SaveManual(ctx context.Context, text string) error {
	return s.store.SaveManual(ctx, text)
}

// AppendManual 把已提取好的文档文本追加到当前手册末尾，并标注来源。
func (s *Service) AppendManual(ctx context.Context, source, text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrManualTextRequired
	}
	current, err := s.Manual(ctx)
	if err != nil {
		return 0, err
	}

	source = strings.TrimSpace(source)
	if source == "" {
		source = "upload"
	}

	var b strings.Builder
	b.WriteString(current)
	if current != "" {
		b.WriteString(appendSeparator)
	}
	b.WriteString("📚 **source:** ")
	b.WriteString(source)
	b.WriteString("\n")
	b.WriteString(text)

	final := b.String()
	if err := s.store.SaveManual(ctx, final); err != nil {
		return 0, err
	}
	return utf8.RuneCountInString(final), nil
}

// ResetManual clears all manual content, including the default.
func (s *Service) ResetManual(ctx context.Context) error {
	return s.store.SaveManual(ctx, "")
}

// RestoreManual drops the override and returns the default manual length.
func (s *Service) RestoreManual(ctx context.Context) (int, error) {
	if err := s.store.DeleteManual(ctx); err != nil {
		return 0, err
	}
	return utf8.RuneCountInString(knowledge.DefaultManual), nil
}

func (s *Service) ManualLength(ctx context.Context) (int, error) {
	text, err := s.Manual(ctx)
	if err != nil {
		return 0, err
	}
	return utf8.RuneCountInString(text), nil
}

// Export 返回手册与全部知识片段的纯文本，便于下载备份。
func (s *Service) Export(ctx context.Context) (string, error) {
	manual, err := s.Manual(ctx)
	if err != nil {
		return "", err
	}
	snippets, err := s.Snippets(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(manual)
	if len(snippets) > 0 {
		b.WriteString("\n\n=== 🚨 Snippets & Critical Updates ===\n")
		for _, sn := range snippets {
			fmt.Fprintf(&b, "\n[ID: %s] %s \n%s\n-------------------", sn.ID, sn.Timestamp.Format("2006-01-02"), sn.Content)
		}
	}
	return b.String(), nil
}

// Snippets returns snippets newest first.
func (s *Service) Snippets(ctx context.Context) ([]knowledge.Snippet, error) {
	snippets, err := s.store.GetSnippets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snippets: %w", err)
	}
	return snippets, nil
}

// AddSnippet assigns id and timestamp, then persists the snippet.
func (s *Service) AddSnippet(ctx context.Context, content, imageURL string) (knowledge.Snippet, error) {
	if strings.TrimSpace(content) == "" {
		return knowledge.Snippet{}, ErrSnippetContentRequired
	}
	snippet := knowledge.Snippet{
		ID:        uuid.NewString(),
		Content:   content,
		ImageURL:  strings.TrimSpace(imageURL),
		Timestamp: s.now().UTC(),
	}
	if err := s.store.AddSnippet(ctx, snippet); err != nil {
		return knowledge.Snippet{}, err
	}
	return snippet, nil
}

func (s *Service) DeleteSnippet(ctx context.Context, id string) error {
	return s.store.DeleteSnippet(ctx, id)
}

// FindSnippet looks a snippet up by id.
func (s *Service) FindSnippet(ctx context.Context, id string) (knowledge.Snippet, error) {
	snippets, err := s.Snippets(ctx)
	if err != nil {
		return knowledge.Snippet{}, err
	}
	for _, sn := range snippets {
		if sn.ID == id {
			return sn, nil
		}
	}
	return knowledge.Snippet{}, ErrSnippetNotFound
}

// CompanyInfo returns the stored contact info or the configured default.
func (s *Service) CompanyInfo(ctx context.Context) (knowledge.CompanyInfo, error) {
	info, found, err := s.store.GetCompanyInfo(ctx)
	if err != nil {
		return knowledge.CompanyInfo{}, fmt.Errorf("load company info: %w", err)
	}
	if !found {
		return s.company, nil
	}
	return info, nil
}

func (s *Service) SaveCompanyInfo(ctx context.Context, info knowledge.CompanyInfo) error {
	return s.store.SaveCompanyInfo(ctx, info)
}

// KBItems returns the question/answer set, seeded with the defaults.
func (s *Service) KBItems(ctx context.Context) ([]knowledge.KBItem, error) {
	items, found, err := s.store.GetKBItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("load kb: %w", err)
	}
	if !found {
		return knowledge.DefaultKBItems(), nil
	}
	return items, nil
}

func (s *Service) SaveKBItems(ctx context.Context, items []knowledge.KBItem) error {
	return s.store.SaveKBItems(ctx, items)
}

// Search 返回第一个问题文本包含查询（小写化）的条目答案。
func (s *Service) Search(ctx context.Context, query string) (string, bool, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return "", false, nil
	}
	items, err := s.KBItems(ctx)
	if err != nil {
		return "", false, err
	}
	for _, item := range items {
		if strings.Contains(item.Question, q) {
			return item.Answer, true, nil
		}
	}
	return "", false, nil
}

// ScreenImage resolves a screen name to its image URL.
func (s *Service) ScreenImage(name string) (string, bool) {
	return s.screens.Lookup(name)
}

// Assemble reads the current knowledge and builds the session context.
func (s *Service) Assemble(ctx context.Context) (string, error) {
	manual, err := s.Manual(ctx)
	if err != nil {
		return "", err
	}
	snippets, err := s.Snippets(ctx)
	if err != nil {
		return "", err
	}
	info, err := s.CompanyInfo(ctx)
	if err != nil {
		return "", err
	}
	return AssembleContext(manual, snippets, info, s.limits), nil
}
