package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/modernsoft/estock-support/backend/internal/service/ai"
	chatService "github.com/modernsoft/estock-support/backend/internal/service/chat"
)

type fakeModel struct {
	reply *schema.Message
	err   error
	input []*schema.Message
	tools []*schema.ToolInfo
}

func (f *fakeModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.input = input
	f.tools = model.GetCommonOptions(&model.Options{}, opts...).Tools
	return f.reply, f.err
}

func (f *fakeModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (f *fakeModel) BindTools([]*schema.ToolInfo) error { return nil }

func serve(h *Handler, method, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	req := httptest.NewRequest(method, "/chat", strings.NewReader(body))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestChatRejectsOtherMethods(t *testing.T) {
	resp := serve(New(ai.NewClient(&fakeModel{}), nil), http.MethodGet, "")
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}

func TestChatRequiresMessage(t *testing.T) {
	resp := serve(New(ai.NewClient(&fakeModel{}), nil), http.MethodPost, `{"systemInstruction":"x"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestChatWithoutCredentials(t *testing.T) {
	resp := serve(New(ai.NewClient(nil), nil), http.MethodPost, `{"message":"hi"}`)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	if body["text"] != chatService.MissingCredentialText {
		t.Fatalf("expected localized credential message, got %v", body)
	}
}

func TestChatModelError(t *testing.T) {
	resp := serve(New(ai.NewClient(&fakeModel{err: errors.New("quota")}), nil), http.MethodPost, `{"message":"hi"}`)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	if !strings.Contains(body["error"], "quota") || body["text"] != chatService.ApologyText {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestChatReturnsTextAndCalls(t *testing.T) {
	fm := &fakeModel{reply: schema.AssistantMessage("", []schema.ToolCall{{
		ID:       "c1",
		Function: schema.FunctionCall{Name: "show_screen_image", Arguments: `{"screen_name":"sales"}`},
	}})}
	body := `{"message":"وريني المبيعات","systemInstruction":"sys","tools":[{"functionDeclarations":[{"name":"show_screen_image","description":"d","parameters":{"type":"OBJECT","properties":{"screen_name":{"type":"STRING"}},"required":["screen_name"]}}]}]}`
	resp := serve(New(ai.NewClient(fm), nil), http.MethodPost, body)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var out response
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.FunctionCalls) != 1 || out.FunctionCalls[0].Name != "show_screen_image" || out.FunctionCalls[0].ID != "c1" {
		t.Fatalf("unexpected calls %+v", out.FunctionCalls)
	}
	if len(fm.tools) != 1 || fm.tools[0].Name != "show_screen_image" {
		t.Fatalf("tools not forwarded: %+v", fm.tools)
	}
	if fm.input[0].Role != schema.System || fm.input[0].Content != "sys" {
		t.Fatalf("system instruction not forwarded: %+v", fm.input[0])
	}
}

func TestParseMessageFunctionResponses(t *testing.T) {
	raw := json.RawMessage(`[{"functionResponse":{"id":"c1","name":"search_knowledge_base","response":{"result":"Alt+S"}}}]`)
	msgs, err := parseMessage(raw)
	if err != nil {
		t.Fatalf("parseMessage err: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != schema.Tool || msgs[0].ToolCallID != "c1" {
		t.Fatalf("unexpected messages %+v", msgs)
	}

	if _, err := parseMessage(json.RawMessage(`[]`)); !errors.Is(err, errMessageRequired) {
		t.Fatalf("expected errMessageRequired, got %v", err)
	}
	if _, err := parseMessage(json.RawMessage(`42`)); err == nil {
		t.Fatalf("expected error for numeric message")
	}
}
