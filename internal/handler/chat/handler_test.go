package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/modernsoft/estock-support/backend/internal/model/chat"
	"github.com/modernsoft/estock-support/backend/internal/service/ai"
	chatService "github.com/modernsoft/estock-support/backend/internal/service/chat"
	"github.com/modernsoft/estock-support/backend/pkg/logger"
)

type echoModel struct{}

func (echoModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	last := input[len(input)-1]
	return schema.AssistantMessage("رد: "+last.Content, nil), nil
}

func (echoModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (echoModel) BindTools([]*schema.ToolInfo) error { return nil }

type memLogs struct {
	mu   sync.Mutex
	logs []chat.Log
}

func (m *memLogs) AppendLog(_ context.Context, l chat.Log) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, l)
	return nil
}

func (m *memLogs) GetLogs(context.Context, int) ([]chat.Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]chat.Log(nil), m.logs...), nil
}

type staticDocs string

func (d staticDocs) Assemble(context.Context) (string, error) { return string(d), nil }

func setupRouter(t *testing.T) (*chi.Mux, *chatService.Service, *memLogs) {
	t.Helper()
	logs := &memLogs{}
	svc := chatService.NewService(chatService.Dependencies{
		Client:    ai.NewClient(echoModel{}),
		Knowledge: staticDocs("docs"),
		Finalizer: chatService.NewFinalizer(logs, nil, nil, logger.Nop()),
	}, chatService.Config{MaxImageBytes: 8}, logger.Nop())

	r := chi.NewRouter()
	New(svc, 8, logger.Nop()).RegisterRoutes(r)
	return r, svc, logs
}

func doJSON(r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func startSession(t *testing.T, r http.Handler) sessionResponse {
	t.Helper()
	resp := doJSON(r, http.MethodPost, "/sessions", "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var out sessionResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return out
}

func TestStartSessionReturnsGreeting(t *testing.T) {
	r, _, _ := setupRouter(t)
	out := startSession(t, r)

	if out.SessionID == "" || out.State != "ready" {
		t.Fatalf("unexpected session %+v", out)
	}
	if len(out.Messages) != 1 || out.Messages[0].Text != chatService.GreetingText {
		t.Fatalf("expected greeting, got %+v", out.Messages)
	}
}

func TestStartSessionUnknownCustomer(t *testing.T) {
	r, _, _ := setupRouter(t)
	// 未配置客户查询时忽略 customerId。
	resp := doJSON(r, http.MethodPost, "/sessions", `{"customerId":"c1"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	resp = doJSON(r, http.MethodPost, "/sessions", `{bad`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.Code)
	}
}

func TestSubmitTurnJSON(t *testing.T) {
	r, _, _ := setupRouter(t)
	sess := startSession(t, r)

	resp := doJSON(r, http.MethodPost, "/sessions/"+sess.SessionID+"/turns", `{"text":"مرحبا"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var out struct {
		Messages []chat.Message `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Messages) != 2 || out.Messages[1].Text != "رد: مرحبا" {
		t.Fatalf("unexpected messages %+v", out.Messages)
	}
}

func TestSubmitTurnErrors(t *testing.T) {
	r, _, _ := setupRouter(t)
	sess := startSession(t, r)
	path := "/sessions/" + sess.SessionID + "/turns"

	if resp := doJSON(r, http.MethodPost, path, `{"text":"  "}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("empty turn: expected 400, got %d", resp.Code)
	}

	// 9 字节超过 8 字节上限；"AAAAAAAAAAAA" 解码为 9 字节。
	resp := doJSON(r, http.MethodPost, path, `{"text":"x","image":{"mimeType":"image/png","data":"AAAAAAAAAAAA"}}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("large image: expected 400, got %d", resp.Code)
	}
	var body struct {
		Text string `json:"text"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	if body.Text != chatService.ImageTooLargeText {
		t.Fatalf("expected localized size message, got %q", body.Text)
	}

	if resp := doJSON(r, http.MethodPost, "/sessions/missing/turns", `{"text":"x"}`); resp.Code != http.StatusNotFound {
		t.Fatalf("unknown session: expected 404, got %d", resp.Code)
	}
}

func TestSubmitTurnEventStream(t *testing.T) {
	r, _, _ := setupRouter(t)
	sess := startSession(t, r)

	resp := doJSON(r, http.MethodPost, "/sessions/"+sess.SessionID+"/turns", `{"text":"hi"}`, "Accept", "text/event-stream")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := resp.Body.String()
	if strings.Count(body, "event: message") != 2 {
		t.Fatalf("expected two message events, got %q", body)
	}
	if !strings.Contains(body, "event: done") || !strings.Contains(body, `"state":"ready"`) {
		t.Fatalf("expected done event, got %q", body)
	}
}

func TestSubmitTurnEventStreamValidationError(t *testing.T) {
	r, _, _ := setupRouter(t)
	sess := startSession(t, r)

	resp := doJSON(r, http.MethodPost, "/sessions/"+sess.SessionID+"/turns", `{}`, "Accept", "text/event-stream")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 before streaming starts, got %d", resp.Code)
	}
}

func TestEndSession(t *testing.T) {
	r, _, logs := setupRouter(t)
	sess := startSession(t, r)

	resp := doJSON(r, http.MethodPost, "/sessions/"+sess.SessionID+"/end", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var out map[string]string
	_ = json.Unmarshal(resp.Body.Bytes(), &out)
	if out["logId"] != sess.SessionID {
		t.Fatalf("unexpected log id %v", out)
	}
	if stored, _ := logs.GetLogs(context.Background(), 10); len(stored) != 1 {
		t.Fatalf("expected one log, got %d", len(stored))
	}

	if resp := doJSON(r, http.MethodGet, "/sessions/"+sess.SessionID, ""); resp.Code != http.StatusNotFound {
		t.Fatalf("ended session should be gone, got %d", resp.Code)
	}
}

func TestSessionErrorStatus(t *testing.T) {
	cases := map[error]int{
		chatService.ErrSessionBusy:        http.StatusConflict,
		chatService.ErrSessionClosed:      http.StatusGone,
		chatService.ErrSessionUnavailable: http.StatusServiceUnavailable,
		errors.New("boom"):                http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got, _ := sessionErrorStatus(err); got != want {
			t.Fatalf("%v: expected %d, got %d", err, want, got)
		}
	}
}

func TestWebSocketTurnAndEnd(t *testing.T) {
	r, _, logs := setupRouter(t)
	sess := startSession(t, r)

	server := httptest.NewServer(r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/" + sess.SessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	read := func() outgoingMessage {
		t.Helper()
		var msg outgoingMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read err: %v", err)
		}
		return msg
	}

	if msg := read(); msg.Type != "session" {
		t.Fatalf("expected session frame, got %+v", msg)
	}

	frame, _ := json.Marshal(map[string]string{"type": "turn", "text": "hi"})
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write err: %v", err)
	}
	for _, want := range []string{"message", "message", "done"} {
		if msg := read(); msg.Type != want {
			t.Fatalf("expected %s frame, got %+v", want, msg)
		}
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)); err != nil {
		t.Fatalf("write err: %v", err)
	}
	if msg := read(); msg.Type != "error" {
		t.Fatalf("expected error frame, got %+v", msg)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"end"}`)); err != nil {
		t.Fatalf("write err: %v", err)
	}
	if msg := read(); msg.Type != "closed" {
		t.Fatalf("expected closed frame, got %+v", msg)
	}
	if stored, _ := logs.GetLogs(context.Background(), 10); len(stored) != 1 {
		t.Fatalf("expected one log after end, got %d", len(stored))
	}
}

// slowModel 模拟多轮工具调用导致的长回合。
type slowModel struct {
	echoModel
	delay time.Duration
}

func (m slowModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	time.Sleep(m.delay)
	return m.echoModel.Generate(ctx, input, opts...)
}

func TestWebSocketSurvivesTurnLongerThanReadTimeout(t *testing.T) {
	svc := chatService.NewService(chatService.Dependencies{
		Client:    ai.NewClient(slowModel{delay: 300 * time.Millisecond}),
		Knowledge: staticDocs("docs"),
	}, chatService.Config{}, logger.Nop())
	h := New(svc, 0, logger.Nop())
	h.readTimeout = 100 * time.Millisecond

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	sess := startSession(t, r)

	server := httptest.NewServer(r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/" + sess.SessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first outgoingMessage
	if err := conn.ReadJSON(&first); err != nil || first.Type != "session" {
		t.Fatalf("expected session frame, got %+v (%v)", first, err)
	}

	for i := 0; i < 2; i++ {
		frame, _ := json.Marshal(map[string]string{"type": "turn", "text": "hi"})
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			t.Fatalf("turn %d: write err: %v", i, err)
		}
		for {
			var msg outgoingMessage
			if err := conn.ReadJSON(&msg); err != nil {
				t.Fatalf("turn %d: connection dropped: %v", i, err)
			}
			if msg.Type == "error" {
				t.Fatalf("turn %d: unexpected error frame %+v", i, msg)
			}
			if msg.Type == "done" {
				break
			}
		}
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	r, _, _ := setupRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/ws/missing", bytes.NewReader(nil))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
