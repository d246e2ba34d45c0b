package company

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modernsoft/estock-support/backend/internal/model/knowledge"
	"github.com/modernsoft/estock-support/backend/pkg/logger"
	"github.com/modernsoft/estock-support/backend/pkg/utils"
)

// InfoSource 返回对外展示的公司联系方式。
type InfoSource interface {
	CompanyInfo(ctx context.Context) (knowledge.CompanyInfo, error)
}

type Handler struct {
	source InfoSource
	log    *logger.Logger
}

func New(source InfoSource, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{source: source, log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/company", h.handleGet)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	info, err := h.source.CompanyInfo(r.Context())
	if err != nil {
		h.log.Warn("load company info failed", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load company info")
		return
	}
	utils.RespondJSON(w, http.StatusOK, info)
}
