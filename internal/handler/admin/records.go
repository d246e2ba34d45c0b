package admin

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modernsoft/estock-support/backend/internal/model/customer"
	customerService "github.com/modernsoft/estock-support/backend/internal/service/customer"
	"github.com/modernsoft/estock-support/backend/pkg/utils"
)

func (h *Handler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.deps.Logs.GetLogs(r.Context(), queryLimit(r))
	if err != nil {
		h.internalError(w, "load logs failed", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, logs)
}

func (h *Handler) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	items, err := h.deps.Feedback.GetFeedback(r.Context(), queryLimit(r))
	if err != nil {
		h.internalError(w, "load feedback failed", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, items)
}

func (h *Handler) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.deps.Customers.List(r.Context())
	if err != nil {
		h.internalError(w, "load customers failed", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, customers)
}

func (h *Handler) handleSaveCustomer(w http.ResponseWriter, r *http.Request) {
	var c customer.Customer
	if err := utils.DecodeJSON(w, r, maxBody, &c); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	saved, err := h.deps.Customers.Save(r.Context(), c)
	if err != nil {
		if errors.Is(err, customerService.ErrFieldsRequired) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.internalError(w, "save customer failed", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, saved)
}

func (h *Handler) handleBulkCustomers(w http.ResponseWriter, r *http.Request) {
	var incoming []customer.Customer
	if err := utils.DecodeJSON(w, r, maxBody, &incoming); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	added, err := h.deps.Customers.BulkAdd(r.Context(), incoming)
	if err != nil {
		h.internalError(w, "bulk add customers failed", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]int{"added": added, "skipped": len(incoming) - added})
}

func (h *Handler) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Customers.Delete(r.Context(), chi.URLParam(r, "customerID")); err != nil {
		h.internalError(w, "delete customer failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.deps.Customers.Settings(r.Context())
	if err != nil {
		h.internalError(w, "load settings failed", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, settings)
}

func (h *Handler) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var settings customer.Settings
	if err := utils.DecodeJSON(w, r, maxBody, &settings); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.deps.Customers.SaveSettings(r.Context(), settings); err != nil {
		if errors.Is(err, customerService.ErrInvalidTimeout) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.internalError(w, "save settings failed", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, settings)
}
