// Package redis 是可选的远端知识库存储，多个实例可以共享同一份手册、片段与日志。
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/modernsoft/estock-support/backend/internal/model/chat"
	"github.com/modernsoft/estock-support/backend/internal/model/customer"
	"github.com/modernsoft/estock-support/backend/internal/model/knowledge"
)

const defaultListLimit = 100

// Options configures the connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store implements the knowledge, log, feedback, customer and settings stores.
type Store struct {
	rdb    *goredis.Client
	prefix string
}

// New dials Redis and verifies the connection with a ping.
func New(ctx context.Context, opts Options) (*Store, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewFromClient(rdb, opts.Prefix), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(rdb *goredis.Client, prefix string) *Store {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "estock"
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func (s *Store) getString(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (s *Store) getJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	raw, found, err := s.getString(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) setJSON(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// --- knowledge ---

func (s *Store) GetManual(ctx context.Context) (string, bool, error) {
	return s.getString(ctx, s.key("manual"))
}

func (s *Store) SaveManual(ctx context.Context, text string) error {
	if err := s.rdb.Set(ctx, s.key("manual"), text, 0).Err(); err != nil {
		return fmt.Errorf("redis save manual: %w", err)
	}
	return nil
}

func (s *Store) DeleteManual(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key("manual")).Err(); err != nil {
		return fmt.Errorf("redis delete manual: %w", err)
	}
	return nil
}

// GetSnippets reads the ordering index newest first and resolves each id.
func (s *Store) GetSnippets(ctx context.Context) ([]knowledge.Snippet, error) {
	ids, err := s.rdb.ZRevRange(ctx, s.key("snippets", "order"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis snippet index: %w", err)
	}
	snippets := make([]knowledge.Snippet, 0, len(ids))
	if len(ids) == 0 {
		return snippets, nil
	}

	values, err := s.rdb.HMGet(ctx, s.key("snippets"), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis snippets: %w", err)
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var sn knowledge.Snippet
		if err := json.Unmarshal([]byte(raw), &sn); err != nil {
			continue
		}
		snippets = append(snippets, sn)
	}
	return snippets, nil
}

func (s *Store) AddSnippet(ctx context.Context, snippet knowledge.Snippet) error {
	raw, err := json.Marshal(snippet)
	if err != nil {
		return fmt.Errorf("encode snippet: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, s.key("snippets"), snippet.ID, raw)
		pipe.ZAdd(ctx, s.key("snippets", "order"), goredis.Z{
			Score:  float64(snippet.Timestamp.UnixMilli()),
			Member: snippet.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis add snippet: %w", err)
	}
	return nil
}

func (s *Store) DeleteSnippet(ctx context.Context, id string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HDel(ctx, s.key("snippets"), id)
		pipe.ZRem(ctx, s.key("snippets", "order"), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete snippet: %w", err)
	}
	return nil
}

func (s *Store) GetCompanyInfo(ctx context.Context) (knowledge.CompanyInfo, bool, error) {
	var info knowledge.CompanyInfo
	found, err := s.getJSON(ctx, s.key("company"), &info)
	return info, found, err
}

func (s *Store) SaveCompanyInfo(ctx context.Context, info knowledge.CompanyInfo) error {
	return s.setJSON(ctx, s.key("company"), info)
}

func (s *Store) GetKBItems(ctx context.Context) ([]knowledge.KBItem, bool, error) {
	var items []knowledge.KBItem
	found, err := s.getJSON(ctx, s.key("kb"), &items)
	return items, found, err
}

func (s *Store) SaveKBItems(ctx context.Context, items []knowledge.KBItem) error {
	if items == nil {
		items = []knowledge.KBItem{}
	}
	return s.setJSON(ctx, s.key("kb"), items)
}

// --- logs & feedback ---

// AppendLog 以 ID 为键覆盖写入，并按时间戳维护排序索引。
func (s *Store) AppendLog(ctx context.Context, log chat.Log) error {
	raw, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("encode log: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, s.key("logs"), log.ID, raw)
		pipe.ZAdd(ctx, s.key("logs", "order"), goredis.Z{
			Score:  float64(log.Timestamp.UnixMilli()),
			Member: log.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append log: %w", err)
	}
	return nil
}

func (s *Store) GetLogs(ctx context.Context, limit int) ([]chat.Log, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	ids, err := s.rdb.ZRevRange(ctx, s.key("logs", "order"), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis log index: %w", err)
	}
	logs := make([]chat.Log, 0, len(ids))
	if len(ids) == 0 {
		return logs, nil
	}

	values, err := s.rdb.HMGet(ctx, s.key("logs"), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis logs: %w", err)
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var l chat.Log
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			continue
		}
		logs = append(logs, l)
	}
	return logs, nil
}

func (s *Store) AddFeedback(ctx context.Context, fb chat.Feedback) error {
	raw, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}
	if err := s.rdb.LPush(ctx, s.key("feedback"), raw).Err(); err != nil {
		return fmt.Errorf("redis add feedback: %w", err)
	}
	return nil
}

func (s *Store) GetFeedback(ctx context.Context, limit int) ([]chat.Feedback, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	values, err := s.rdb.LRange(ctx, s.key("feedback"), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis feedback: %w", err)
	}
	items := make([]chat.Feedback, 0, len(values))
	for _, raw := range values {
		var fb chat.Feedback
		if err := json.Unmarshal([]byte(raw), &fb); err != nil {
			continue
		}
		items = append(items, fb)
	}
	return items, nil
}

// --- customers & settings ---

func (s *Store) GetCustomers(ctx context.Context) ([]customer.Customer, error) {
	values, err := s.rdb.HGetAll(ctx, s.key("customers")).Result()
	if err != nil {
		return nil, fmt.Errorf("redis customers: %w", err)
	}
	customers := make([]customer.Customer, 0, len(values))
	for _, raw := range values {
		var c customer.Customer
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			continue
		}
		customers = append(customers, c)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].Name < customers[j].Name })
	return customers, nil
}

func (s *Store) SaveCustomer(ctx context.Context, c customer.Customer) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode customer: %w", err)
	}
	if err := s.rdb.HSet(ctx, s.key("customers"), c.ID, raw).Err(); err != nil {
		return fmt.Errorf("redis save customer: %w", err)
	}
	return nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	if err := s.rdb.HDel(ctx, s.key("customers"), id).Err(); err != nil {
		return fmt.Errorf("redis delete customer: %w", err)
	}
	return nil
}

func (s *Store) GetSettings(ctx context.Context) (customer.Settings, bool, error) {
	var settings customer.Settings
	found, err := s.getJSON(ctx, s.key("settings"), &settings)
	return settings, found, err
}

func (s *Store) SaveSettings(ctx context.Context, settings customer.Settings) error {
	return s.setJSON(ctx, s.key("settings"), settings)
}

func (s *Store) GetAdminPassword(ctx context.Context) (string, bool, error) {
	return s.getString(ctx, s.key("admin", "password"))
}

func (s *Store) SetAdminPassword(ctx context.Context, hash string) error {
	if err := s.rdb.Set(ctx, s.key("admin", "password"), hash, 0).Err(); err != nil {
		return fmt.Errorf("redis set admin password: %w", err)
	}
	return nil
}
