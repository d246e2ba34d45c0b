package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/modernsoft/estock-support/backend/internal/model/chat"
	"github.com/modernsoft/estock-support/backend/internal/model/customer"
	"github.com/modernsoft/estock-support/backend/internal/model/knowledge"
	"github.com/modernsoft/estock-support/backend/internal/service/summary"
)

// scriptedModel 通过 respond 回调决定每次调用的回复，调用序号从 0 开始。
type scriptedModel struct {
	mu      sync.Mutex
	calls   [][]*schema.Message
	respond func(call int, input []*schema.Message) (*schema.Message, error)
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	idx := len(m.calls)
	m.calls = append(m.calls, input)
	m.mu.Unlock()
	return m.respond(idx, input)
}

func (m *scriptedModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (m *scriptedModel) BindTools([]*schema.ToolInfo) error { return nil }

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *scriptedModel) call(i int) []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[i]
}

// pendingToolCalls 返回输入中没有对应工具结果的调用 ID。兼容 OpenAI 协议的服务会拒绝这样的请求。
func pendingToolCalls(input []*schema.Message) []string {
	answered := map[string]bool{}
	for _, msg := range input {
		if msg.Role == schema.Tool {
			answered[msg.ToolCallID] = true
		}
	}
	var pending []string
	for _, msg := range input {
		for _, call := range msg.ToolCalls {
			if !answered[call.ID] {
				pending = append(pending, call.ID)
			}
		}
	}
	return pending
}

func textReply(text string) (*schema.Message, error) {
	return schema.AssistantMessage(text, nil), nil
}

func toolReply(id, name, args string) (*schema.Message, error) {
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:       id,
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}}), nil
}

type memStore struct {
	mu        sync.Mutex
	logs      map[string]chat.Log
	autosaves map[string]chat.Snapshot
	saves     int
	failLogs  int
}

func newMemStore() *memStore {
	return &memStore{logs: map[string]chat.Log{}, autosaves: map[string]chat.Snapshot{}}
}

func (m *memStore) AppendLog(_ context.Context, entry chat.Log) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLogs > 0 {
		m.failLogs--
		return errors.New("store down")
	}
	m.logs[entry.ID] = entry
	return nil
}

func (m *memStore) GetLogs(context.Context, int) ([]chat.Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]chat.Log, 0, len(m.logs))
	for _, l := range m.logs {
		out = append(out, l)
	}
	return out, nil
}

func (m *memStore) SaveAutosave(_ context.Context, snap chat.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.autosaves[snap.SessionID] = snap
	return nil
}

func (m *memStore) DeleteAutosave(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.autosaves, id)
	return nil
}

func (m *memStore) ListAutosaves(context.Context) ([]chat.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]chat.Snapshot, 0, len(m.autosaves))
	for _, s := range m.autosaves {
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) autosave(id string) (chat.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.autosaves[id]
	return s, ok
}

func (m *memStore) log(id string) (chat.Log, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.logs[id]
	return l, ok
}

type staticDocs struct {
	docs string
	err  error
}

func (s staticDocs) Assemble(context.Context) (string, error) {
	return s.docs, s.err
}

type fakeKnowledge struct{}

func (fakeKnowledge) Search(_ context.Context, query string) (string, bool, error) {
	if query == "invoice" {
		return "Alt+S", true, nil
	}
	return "", false, nil
}

func (fakeKnowledge) ScreenImage(name string) (string, bool) {
	return knowledge.DefaultScreenCatalog().Lookup(name)
}

func (fakeKnowledge) Snippets(context.Context) ([]knowledge.Snippet, error) {
	return []knowledge.Snippet{{ID: "s1", Content: "tip", ImageURL: "https://img/s1.png"}}, nil
}

type fakeExtractor struct {
	details summary.Details
	err     error
	calls   int
}

func (f *fakeExtractor) Extract(context.Context, []chat.Message) (summary.Details, error) {
	f.calls++
	return f.details, f.err
}

type fakeCustomers map[string]customer.Customer

func (f fakeCustomers) Get(_ context.Context, id string) (*customer.Customer, error) {
	c, ok := f[id]
	if !ok {
		return nil, errors.New("customer not found")
	}
	return &c, nil
}

type fakeSettings struct {
	settings customer.Settings
	found    bool
}

func (f fakeSettings) GetSettings(context.Context) (customer.Settings, bool, error) {
	return f.settings, f.found, nil
}

func (f fakeSettings) SaveSettings(context.Context, customer.Settings) error { return nil }
