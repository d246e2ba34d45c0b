package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	adminService "github.com/modernsoft/estock-support/backend/internal/service/admin"
	"github.com/modernsoft/estock-support/backend/internal/service/ai"
	chatService "github.com/modernsoft/estock-support/backend/internal/service/chat"
	customerService "github.com/modernsoft/estock-support/backend/internal/service/customer"
	knowledgeService "github.com/modernsoft/estock-support/backend/internal/service/knowledge"
	"github.com/modernsoft/estock-support/backend/internal/store/sqlite"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "estock.db"))
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	kb := knowledgeService.NewService(store)
	client := ai.NewClient(nil)
	chatSvc := chatService.NewService(chatService.Dependencies{
		Client:    client,
		Knowledge: kb,
		Autosave:  store,
	}, chatService.Config{}, nil)

	return NewRouter(Services{
		Chat:        chatSvc,
		AI:          client,
		Knowledge:   kb,
		Customers:   customerService.NewService(store),
		Admin:       adminService.NewService(store, adminService.Config{DefaultPassword: "admin123", Secret: "test"}),
		Logs:        store,
		Feedback:    store,
		CORSOrigins: []string{"https://support.example.com"},
	})
}

func serve(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	resp := serve(router, http.MethodGet, "/healthz", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var out map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["status"] != "ok" || out["modelEnabled"] != false {
		t.Fatalf("unexpected body: %v", out)
	}
}

func TestRoutesMountedUnderAPI(t *testing.T) {
	router := newTestRouter(t)

	if resp := serve(router, http.MethodGet, "/api/company", "", nil); resp.Code != http.StatusOK {
		t.Fatalf("company: expected 200, got %d", resp.Code)
	}
	if resp := serve(router, http.MethodGet, "/api/admin/manual", "", nil); resp.Code != http.StatusUnauthorized {
		t.Fatalf("admin without token: expected 401, got %d", resp.Code)
	}
	if resp := serve(router, http.MethodGet, "/company", "", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("unprefixed path: expected 404, got %d", resp.Code)
	}
}

func TestStartSessionWithoutModel(t *testing.T) {
	router := newTestRouter(t)

	resp := serve(router, http.MethodPost, "/api/sessions", "", nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var out struct {
		SessionID string `json:"sessionId"`
		State     string `json:"state"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SessionID == "" || out.State != "error" {
		t.Fatalf("unexpected session: %+v", out)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	resp := serve(router, http.MethodOptions, "/api/sessions", "", map[string]string{
		"Origin":                        "https://support.example.com",
		"Access-Control-Request-Method": "POST",
	})
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "https://support.example.com" {
		t.Fatalf("unexpected allow origin %q", got)
	}

	resp = serve(router, http.MethodOptions, "/api/sessions", "", map[string]string{"Origin": "https://evil.example.com"})
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin should not be allowed, got %q", got)
	}
}
