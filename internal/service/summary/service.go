package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/modernsoft/estock-support/backend/internal/model/chat"
)

const (
	DefaultClientName = "زائر"
	DefaultSummary    = "محادثة عامة"
	// parsedEmptySummary 用于模型返回了 JSON 但摘要为空的情况。
	parsedEmptySummary = "محادثة دعم فني"
)

var (
	ErrExtractorDisabled = errors.New("summary extractor disabled")
	ErrNoJSONObject      = errors.New("missing json object")
)

// Details 是会话结束时提取的客户名与摘要。
type Details struct {
	ClientName string `json:"clientName"`
	Summary    string `json:"summary"`
}

// Defaults returns the values used when extraction fails.
func Defaults() Details {
	return Details{ClientName: DefaultClientName, Summary: DefaultSummary}
}

// Extractor 从会话记录中提取结构化信息。调用方在出错时自行回退到 Defaults。
type Extractor interface {
	Extract(ctx context.Context, transcript []chat.Message) (Details, error)
}

// Service 通过一条 eino 链把会话记录交给模型做摘要。
type Service struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the extraction chain. A nil chatModel yields a disabled
// service whose Extract always fails with ErrExtractorDisabled.
func NewService(ctx context.Context, chatModel model.ChatModel) (*Service, error) {
	if chatModel == nil {
		return &Service{}, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(extractionSystemPrompt),
		schema.UserMessage(extractionUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile summary chain: %w", err)
	}
	return &Service{chain: runnable}, nil
}

// Enabled 返回摘要服务是否可用。
func (s *Service) Enabled() bool {
	return s != nil && s.chain != nil
}

func (s *Service) Extract(ctx context.Context, transcript []chat.Message) (Details, error) {
	if !s.Enabled() {
		return Details{}, ErrExtractorDisabled
	}

	msg, err := s.chain.Invoke(ctx, map[string]any{
		"transcript": chat.FormatTranscript(transcript),
	})
	if err != nil {
		return Details{}, fmt.Errorf("invoke summary chain: %w", err)
	}
	if msg == nil {
		return Details{}, ErrNoJSONObject
	}
	return ParseDetails(msg.Content)
}

// ParseDetails 取第一个 "{" 到最后一个 "}" 之间的内容严格解码；
// 字段为空时填入默认值。
func ParseDetails(content string) (Details, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return Details{}, ErrNoJSONObject
	}

	var payload Details
	dec := json.NewDecoder(strings.NewReader(trimmed[start : end+1]))
	if err := dec.Decode(&payload); err != nil {
		return Details{}, fmt.Errorf("decode details: %w", err)
	}

	payload.ClientName = strings.TrimSpace(payload.ClientName)
	payload.Summary = strings.TrimSpace(payload.Summary)
	if payload.ClientName == "" {
		payload.ClientName = DefaultClientName
	}
	if payload.Summary == "" {
		payload.Summary = parsedEmptySummary
	}
	return payload, nil
}

const extractionSystemPrompt = "SYSTEM_INTERNAL_REQUEST:\nThe session is ending. Please analyze the entire conversation history provided by the user message.\n1. Extract the user's name if they mentioned it (e.g., \"I am Ahmed\", \"My name is...\"). If not found, use \"Unknown Client\".\n2. Create a very brief summary (one sentence) of the technical issue they asked about.\n\nReturn ONLY a JSON object:\n{{ \"clientName\": \"...\", \"summary\": \"...\" }}"

const extractionUserPrompt = "Conversation:\n{transcript}"
