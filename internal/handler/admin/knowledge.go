package admin

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modernsoft/estock-support/backend/internal/model/knowledge"
	knowledgeService "github.com/modernsoft/estock-support/backend/internal/service/knowledge"
	"github.com/modernsoft/estock-support/backend/pkg/utils"
)

func (h *Handler) handleGetManual(w http.ResponseWriter, r *http.Request) {
	text, err := h.deps.Knowledge.Manual(r.Context())
	if err != nil {
		h.internalError(w, "load manual failed", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"text": text, "length": len([]rune(text))})
}

func (h *Handler) handleSaveManual(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(w, r, maxBody, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.deps.Knowledge.SaveManual(r.Context(), payload.Text); err != nil {
		h.internalError(w, "save manual failed", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]int{"length": len([]rune(payload.Text))})
}

// handleResetManual 清空手册（包括默认内容）。
func (h *Handler) handleResetManual(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Knowledge.ResetManual(r.Context()); err != nil {
		h.internalError(w, "reset manual failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAppendManual(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Source string `json:"source"`
		Text   string `json:"text"`
	}
	if err := utils.DecodeJSON(w, r, maxBody, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	length, err := h.deps.Knowledge.AppendManual(r.Context(), payload.Source, payload.Text)
	if err != nil {
		if errors.Is(err, knowledgeService.ErrManualTextRequired) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.internalError(w, "append manual failed", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]int{"length": length})
}

func (h *Handler) handleRestoreManual(w http.ResponseWriter, r *http.Request) {
	length, err := h.deps.Knowledge.RestoreManual(r.Context())
	if err != nil {
		h.internalError(w, "restore manual failed", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]int{"length": length})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	text, err := h.deps.Knowledge.Export(r.Context())
	if err != nil {
		h.internalError(w, "export knowledge failed", err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="estock-knowledge.md"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

func (h *Handler) handleListSnippets(w http.ResponseWriter, r *http.Request) {
	snippets, err := h.deps.Knowledge.Snippets(r.Context())
	if err != nil {
		h.internalError(w, "load snippets failed", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snippets)
}

func (h *Handler) handleAddSnippet(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content  string `json:"content"`
		ImageURL string `json:"imageUrl"`
	}
	if err := utils.DecodeJSON(w, r, maxBody, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	snippet, err := h.deps.Knowledge.AddSnippet(r.Context(), payload.Content, payload.ImageURL)
	if err != nil {
		if errors.Is(err, knowledgeService.ErrSnippetContentRequired) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.internalError(w, "add snippet failed", err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, snippet)
}

func (h *Handler) handleDeleteSnippet(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Knowledge.DeleteSnippet(r.Context(), chi.URLParam(r, "snippetID")); err != nil {
		h.internalError(w, "delete snippet failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	info, err := h.deps.Knowledge.CompanyInfo(r.Context())
	if err != nil {
		h.internalError(w, "load company info failed", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, info)
}

func (h *Handler) handleSaveCompany(w http.ResponseWriter, r *http.Request) {
	var info knowledge.CompanyInfo
	if err := utils.DecodeJSON(w, r, maxBody, &info); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.deps.Knowledge.SaveCompanyInfo(r.Context(), info); err != nil {
		h.internalError(w, "save company info failed", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, info)
}

func (h *Handler) handleGetKB(w http.ResponseWriter, r *http.Request) {
	items, err := h.deps.Knowledge.KBItems(r.Context())
	if err != nil {
		h.internalError(w, "load kb failed", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, items)
}

func (h *Handler) handleSaveKB(w http.ResponseWriter, r *http.Request) {
	var items []knowledge.KBItem
	if err := utils.DecodeJSON(w, r, maxBody, &items); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.deps.Knowledge.SaveKBItems(r.Context(), items); err != nil {
		h.internalError(w, "save kb failed", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, items)
}
