package completion

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/modernsoft/estock-support/backend/internal/service/ai"
	chatService "github.com/modernsoft/estock-support/backend/internal/service/chat"
	"github.com/modernsoft/estock-support/backend/pkg/logger"
	"github.com/modernsoft/estock-support/backend/pkg/utils"
)

const maxBody = 4 << 20

var errMessageRequired = errors.New("Message required")

// Handler 提供无状态的单轮模型调用，供前端自行编排会话时使用。
type Handler struct {
	client *ai.Client
	log    *logger.Logger
}

func New(client *ai.Client, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{client: client, log: log.With("component", "completion")}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.HandleFunc("/chat", h.handleChat)
}

type request struct {
	Message           json.RawMessage `json:"message"`
	SystemInstruction string          `json:"systemInstruction"`
	Tools             json.RawMessage `json:"tools"`
}

// functionResponsePart 是以工具结果作为输入时的消息片段。
type functionResponsePart struct {
	FunctionResponse *struct {
		ID       string         `json:"id"`
		Name     string         `json:"name"`
		Response map[string]any `json:"response"`
	} `json:"functionResponse"`
	Text string `json:"text"`
}

type response struct {
	Text          string            `json:"text"`
	FunctionCalls []ai.FunctionCall `json:"functionCalls"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if h.client == nil || !h.client.Enabled() {
		utils.RespondLocalizedError(w, http.StatusInternalServerError, "API key not configured", chatService.MissingCredentialText)
		return
	}

	var req request
	if err := utils.DecodeJSON(w, r, maxBody, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input, err := parseMessage(req.Message)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	tools, err := ai.DeclarationsFromJSON(req.Tools)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := h.client.Complete(r.Context(), input, req.SystemInstruction, tools)
	if err != nil {
		h.log.Error("completion failed", "error", err)
		utils.RespondLocalizedError(w, http.StatusInternalServerError, err.Error(), chatService.ApologyText)
		return
	}

	utils.RespondJSON(w, http.StatusOK, response{Text: reply.Text, FunctionCalls: reply.FunctionCalls})
}

// parseMessage 支持纯文本消息，或由文本/函数结果片段组成的数组。
func parseMessage(raw json.RawMessage) ([]*schema.Message, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == `""` {
		return nil, errMessageRequired
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if strings.TrimSpace(text) == "" {
			return nil, errMessageRequired
		}
		return []*schema.Message{schema.UserMessage(text)}, nil
	}

	var parts []functionResponsePart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, errors.New("message must be a string or a list of parts")
	}

	messages := make([]*schema.Message, 0, len(parts))
	for _, p := range parts {
		switch {
		case p.FunctionResponse != nil:
			fr := p.FunctionResponse
			messages = append(messages, ai.ToolResultMessage(fr.Name, fr.ID, fr.Response))
		case strings.TrimSpace(p.Text) != "":
			messages = append(messages, schema.UserMessage(p.Text))
		}
	}
	if len(messages) == 0 {
		return nil, errMessageRequired
	}
	return messages, nil
}
