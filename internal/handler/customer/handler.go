package customer

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	customerService "github.com/modernsoft/estock-support/backend/internal/service/customer"
	"github.com/modernsoft/estock-support/backend/pkg/logger"
	"github.com/modernsoft/estock-support/backend/pkg/utils"
)

const maxBody = 16 << 10

// 面向客户的本地化错误提示。
const (
	textInvalidLogin    = "بيانات الدخول غير صحيحة أو الحساب غير نشط"
	textContractExists  = "رقم التعاقد مسجل بالفعل"
	textFieldsRequired  = "يرجى إدخال الاسم ورقم التعاقد"
	textUnexpectedError = "بعتذر جداً، حصل خطأ تقني بسيط. ممكن تحاول تاني؟"
)

// Handler 客户登录与注册
type Handler struct {
	svc *customerService.Service
	log *logger.Logger
}

func New(svc *customerService.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{svc: svc, log: log.With("component", "customer_handler")}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/customers/login", h.handleLogin)
	r.Post("/customers/register", h.handleRegister)
}

type credentials struct {
	Name           string `json:"name"`
	ContractNumber string `json:"contractNumber"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload credentials
	if err := utils.DecodeJSON(w, r, maxBody, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.svc.Authenticate(r.Context(), payload.Name, payload.ContractNumber)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, c)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload credentials
	if err := utils.DecodeJSON(w, r, maxBody, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.svc.Register(r.Context(), payload.Name, payload.ContractNumber)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, c)
}

func respondError(w http.ResponseWriter, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, customerService.ErrInvalidCredentials):
		utils.RespondLocalizedError(w, http.StatusUnauthorized, err.Error(), textInvalidLogin)
	case errors.Is(err, customerService.ErrContractExists):
		utils.RespondLocalizedError(w, http.StatusConflict, err.Error(), textContractExists)
	case errors.Is(err, customerService.ErrFieldsRequired):
		utils.RespondLocalizedError(w, http.StatusBadRequest, err.Error(), textFieldsRequired)
	default:
		log.Error("customer request failed", "error", err)
		utils.RespondLocalizedError(w, http.StatusInternalServerError, "internal error", textUnexpectedError)
	}
}
