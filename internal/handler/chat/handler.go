package chat

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/modernsoft/estock-support/backend/internal/model/chat"
	"github.com/modernsoft/estock-support/backend/internal/service/ai"
	chatService "github.com/modernsoft/estock-support/backend/internal/service/chat"
	"github.com/modernsoft/estock-support/backend/pkg/logger"
	"github.com/modernsoft/estock-support/backend/pkg/utils"
)

// 请求体上限：图片 base64 约膨胀 4/3，预留文本与 JSON 外壳空间。
const bodyOverhead = 64 << 10

// Handler 会话相关的 HTTP 处理器
type Handler struct {
	chatSvc  *chatService.Service
	maxBody  int64
	log      *logger.Logger
	upgrader websocket.Upgrader

	readTimeout time.Duration
}

// New 创建会话处理器
func New(chatSvc *chatService.Service, maxImageBytes int, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	if maxImageBytes <= 0 {
		maxImageBytes = 1 << 20
	}
	return &Handler{
		chatSvc:  chatSvc,
		maxBody:  int64(maxImageBytes)*2 + bodyOverhead,
		log:      log.With("component", "chat_handler"),
		upgrader: newUpgrader(),

		readTimeout: pongWait,
	}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleStartSession)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Post("/sessions/{sessionID}/turns", h.handleSubmitTurn)
	r.Post("/sessions/{sessionID}/end", h.handleEndSession)
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type sessionResponse struct {
	SessionID string         `json:"sessionId"`
	State     string         `json:"state"`
	Messages  []chat.Message `json:"messages"`
}

func toSessionResponse(s *chatService.Session) sessionResponse {
	return sessionResponse{
		SessionID: s.ID(),
		State:     s.State().String(),
		Messages:  s.Messages(),
	}
}

// imagePayload 中 Data 为 base64 编码的图片字节。
type imagePayload struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type turnPayload struct {
	Text  string        `json:"text"`
	Image *imagePayload `json:"image"`
}

func (p turnPayload) input() chatService.TurnInput {
	in := chatService.TurnInput{Text: p.Text}
	if p.Image != nil && len(p.Image.Data) > 0 {
		in.Image = &ai.Image{MimeType: p.Image.MimeType, Data: p.Image.Data}
	}
	return in
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CustomerID string `json:"customerId"`
	}
	// 访客可以不带请求体。
	if err := utils.DecodeJSON(w, r, bodyOverhead, &payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.chatSvc.StartSession(r.Context(), payload.CustomerID)
	if err != nil {
		h.log.Warn("start session failed", "customer_id", payload.CustomerID, "error", err)
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, toSessionResponse(session))
}

// handleSubmitTurn 处理一次提交。Accept: text/event-stream 时逐条推送消息。
func (h *Handler) handleSubmitTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload turnPayload
	if err := utils.DecodeJSON(w, r, h.maxBody, &payload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondLocalizedError(w, http.StatusBadRequest, chatService.ErrImageTooLarge.Error(), chatService.ImageTooLargeText)
			return
		}
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if wantsEventStream(r) {
		h.streamTurn(w, r, sessionID, payload)
		return
	}

	messages, err := h.chatSvc.SubmitTurn(r.Context(), sessionID, payload.input(), nil)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handler) streamTurn(w http.ResponseWriter, r *http.Request, sessionID string, payload turnPayload) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// 首条消息产生前不写响应头，以便校验错误仍能返回正常的状态码。
	started := false
	emit := func(msg chat.Message) {
		if !started {
			utils.SetupSSEHeaders(w)
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if err := utils.SendSSEEvent(w, flusher, "message", msg); err != nil {
			h.log.Debug("sse write failed", "session_id", sessionID, "error", err)
		}
	}

	_, err := h.chatSvc.SubmitTurn(r.Context(), sessionID, payload.input(), emit)
	if err != nil && !started {
		respondSessionError(w, err)
		return
	}
	if err != nil {
		_ = utils.SendSSEEvent(w, flusher, "error", map[string]string{"error": err.Error()})
		return
	}

	state := ""
	if session, getErr := h.chatSvc.GetSession(sessionID); getErr == nil {
		state = session.State().String()
	}
	_ = utils.SendSSEEvent(w, flusher, "done", map[string]string{"state": state})
}

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	logID, err := h.chatSvc.EndSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"logId": logID})
}

func wantsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// sessionErrorStatus 把会话错误映射为 HTTP 状态码与本地化提示。
func sessionErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound, ""
	case errors.Is(err, chatService.ErrEmptyTurn):
		return http.StatusBadRequest, ""
	case errors.Is(err, chatService.ErrImageTooLarge):
		return http.StatusBadRequest, chatService.ImageTooLargeText
	case errors.Is(err, chatService.ErrSessionBusy):
		return http.StatusConflict, ""
	case errors.Is(err, chatService.ErrSessionClosed):
		return http.StatusGone, ""
	case errors.Is(err, chatService.ErrSessionUnavailable):
		return http.StatusServiceUnavailable, chatService.InitErrorText
	default:
		return http.StatusInternalServerError, chatService.ApologyText
	}
}

func respondSessionError(w http.ResponseWriter, err error) {
	status, text := sessionErrorStatus(err)
	utils.RespondLocalizedError(w, status, err.Error(), text)
}
