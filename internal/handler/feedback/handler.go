package feedback

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/modernsoft/estock-support/backend/internal/model/chat"
	"github.com/modernsoft/estock-support/backend/pkg/logger"
	"github.com/modernsoft/estock-support/backend/pkg/utils"
)

const maxBody = 16 << 10

// Handler 接收会话结束后的用户评价。
type Handler struct {
	store chat.FeedbackStore
	log   *logger.Logger
	now   func() time.Time
}

func New(store chat.FeedbackStore, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{store: store, log: log.With("component", "feedback_handler"), now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/feedback", h.handleSubmit)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ChatID  string `json:"chatId"`
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := utils.DecodeJSON(w, r, maxBody, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fb := chat.Feedback{
		ID:        uuid.NewString(),
		Timestamp: h.now().UTC(),
		ChatID:    strings.TrimSpace(payload.ChatID),
		Rating:    payload.Rating,
		Comment:   strings.TrimSpace(payload.Comment),
	}
	if err := fb.Validate(); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.AddFeedback(r.Context(), fb); err != nil {
		h.log.Error("save feedback failed", "chat_id", fb.ChatID, "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to save feedback")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, fb)
}
