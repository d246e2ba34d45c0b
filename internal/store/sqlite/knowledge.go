package sqlite

import (
	"context"
	"fmt"

	"github.com/modernsoft/estock-support/backend/internal/model/knowledge"
)

// GetManual 返回自定义手册。空字符串且 found=true 表示管理员显式清空。
func (s *Store) GetManual(ctx context.Context) (string, bool, error) {
	return s.getValue(ctx, keyManual)
}

func (s *Store) SaveManual(ctx context.Context, text string) error {
	return s.setValue(ctx, keyManual, text)
}

// DeleteManual removes the override so the default manual applies again.
func (s *Store) DeleteManual(ctx context.Context) error {
	return s.deleteValue(ctx, keyManual)
}

// GetSnippets returns snippets newest first.
func (s *Store) GetSnippets(ctx context.Context) ([]knowledge.Snippet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, image_url, created_at
		FROM snippets ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query snippets: %w", err)
	}
	defer rows.Close()

	snippets := make([]knowledge.Snippet, 0)
	for rows.Next() {
		var sn knowledge.Snippet
		var createdAt int64
		if err := rows.Scan(&sn.ID, &sn.Content, &sn.ImageURL, &createdAt); err != nil {
			return nil, fmt.Errorf("scan snippet: %w", err)
		}
		sn.Timestamp = fromMillis(createdAt)
		snippets = append(snippets, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snippets: %w", err)
	}
	return snippets, nil
}

func (s *Store) AddSnippet(ctx context.Context, snippet knowledge.Snippet) error {
	query := `
	INSERT INTO snippets (id, content, image_url, created_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		content = excluded.content,
		image_url = excluded.image_url,
		created_at = excluded.created_at`
	if _, err := s.db.ExecContext(ctx, query,
		snippet.ID, snippet.Content, snippet.ImageURL, snippet.Timestamp.UnixMilli(),
	); err != nil {
		return fmt.Errorf("insert snippet: %w", err)
	}
	return nil
}

func (s *Store) DeleteSnippet(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete snippet: %w", err)
	}
	return nil
}

func (s *Store) GetCompanyInfo(ctx context.Context) (knowledge.CompanyInfo, bool, error) {
	var info knowledge.CompanyInfo
	found, err := s.getJSON(ctx, keyCompany, &info)
	return info, found, err
}

func (s *Store) SaveCompanyInfo(ctx context.Context, info knowledge.CompanyInfo) error {
	return s.setJSON(ctx, keyCompany, info)
}

func (s *Store) GetKBItems(ctx context.Context) ([]knowledge.KBItem, bool, error) {
	var items []knowledge.KBItem
	found, err := s.getJSON(ctx, keyKB, &items)
	return items, found, err
}

func (s *Store) SaveKBItems(ctx context.Context, items []knowledge.KBItem) error {
	if items == nil {
		items = []knowledge.KBItem{}
	}
	return s.setJSON(ctx, keyKB, items)
}
