package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrModelUnavailable 表示未配置模型凭证。
var ErrModelUnavailable = errors.New("chat model not configured")

// FunctionCall is one tool invocation requested by the model.
type FunctionCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"args"`
}

// Reply 是一次 SendMessage 的结果：文本与（可选的）工具调用。
type Reply struct {
	Text          string         `json:"text"`
	FunctionCalls []FunctionCall `json:"functionCalls"`
}

// HasFunctionCalls reports whether the model asked for tools.
func (r *Reply) HasFunctionCalls() bool {
	return r != nil && len(r.FunctionCalls) > 0
}

// Chat is a stateful conversation bound to one system instruction and tool set.
type Chat interface {
	// SendMessage 发送一轮输入。只有调用成功时才把输入与回复写入历史。
	SendMessage(ctx context.Context, input ...*schema.Message) (*Reply, error)
	History() []*schema.Message
	// Checkpoint 返回当前历史长度，配合 Rollback 丢弃一轮未完成的工具往返。
	Checkpoint() int
	Rollback(n int)
}

// Client creates chats on top of an eino chat model.
type Client struct {
	chatModel model.ChatModel
}

// NewClient wraps chatModel. A nil model yields a client whose chats fail with
// ErrModelUnavailable.
func NewClient(chatModel model.ChatModel) *Client {
	return &Client{chatModel: chatModel}
}

// Enabled reports whether a model is available.
func (c *Client) Enabled() bool {
	return c != nil && c.chatModel != nil
}

// ChatModel 返回底层模型，供摘要链等复用。
func (c *Client) ChatModel() model.ChatModel {
	if c == nil {
		return nil
	}
	return c.chatModel
}

// CreateChat opens a new conversation.
func (c *Client) CreateChat(systemInstruction string, tools []*schema.ToolInfo) (Chat, error) {
	if !c.Enabled() {
		return nil, ErrModelUnavailable
	}
	return &conversation{
		chatModel: c.chatModel,
		system:    schema.SystemMessage(systemInstruction),
		tools:     tools,
		history:   make([]*schema.Message, 0, 16),
	}, nil
}

// Complete 是无状态的单轮调用，不保留任何会话历史。
func (c *Client) Complete(ctx context.Context, input []*schema.Message, systemInstruction string, tools []*schema.ToolInfo) (*Reply, error) {
	chat, err := c.CreateChat(systemInstruction, tools)
	if err != nil {
		return nil, err
	}
	return chat.SendMessage(ctx, input...)
}

type conversation struct {
	mu        sync.Mutex
	chatModel model.ChatModel
	system    *schema.Message
	tools     []*schema.ToolInfo
	history   []*schema.Message
}

func (c *conversation) SendMessage(ctx context.Context, input ...*schema.Message) (*Reply, error) {
	if len(input) == 0 {
		return nil, fmt.Errorf("send message: empty input")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	messages := make([]*schema.Message, 0, len(c.history)+len(input)+1)
	if c.system.Content != "" {
		messages = append(messages, c.system)
	}
	messages = append(messages, c.history...)
	messages = append(messages, input...)

	var opts []model.Option
	if len(c.tools) > 0 {
		opts = append(opts, model.WithTools(c.tools))
	}

	resp, err := c.chatModel.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("generate: empty response")
	}

	c.history = append(c.history, input...)
	c.history = append(c.history, resp)

	return toReply(resp), nil
}

func (c *conversation) History() []*schema.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*schema.Message, len(c.history))
	copy(out, c.history)
	return out
}

func (c *conversation) Checkpoint() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// Rollback truncates history to n messages. Out-of-range values are ignored.
func (c *conversation) Rollback(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 || n >= len(c.history) {
		return
	}
	clear(c.history[n:])
	c.history = c.history[:n]
}

func toReply(msg *schema.Message) *Reply {
	reply := &Reply{Text: msg.Content}
	for _, call := range msg.ToolCalls {
		reply.FunctionCalls = append(reply.FunctionCalls, FunctionCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return reply
}
