package admin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/modernsoft/estock-support/backend/internal/middleware"
	"github.com/modernsoft/estock-support/backend/internal/model/chat"
	adminService "github.com/modernsoft/estock-support/backend/internal/service/admin"
	customerService "github.com/modernsoft/estock-support/backend/internal/service/customer"
	knowledgeService "github.com/modernsoft/estock-support/backend/internal/service/knowledge"
	"github.com/modernsoft/estock-support/backend/pkg/logger"
	"github.com/modernsoft/estock-support/backend/pkg/utils"
)

const (
	maxBody         = 8 << 20
	defaultLogLimit = 100
)

const (
	textWrongPassword = "كلمة المرور غير صحيحة"
	textShortPassword = "كلمة المرور يجب أن تكون 4 أحرف على الأقل"
)

// Dependencies 管理后台需要的服务。
type Dependencies struct {
	Auth      *adminService.Service
	Knowledge *knowledgeService.Service
	Customers *customerService.Service
	Logs      chat.LogStore
	Feedback  chat.FeedbackStore
}

// Handler 管理后台接口
type Handler struct {
	deps Dependencies
	log  *logger.Logger
}

func New(deps Dependencies, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{deps: deps, log: log.With("component", "admin_handler")}
}

// RegisterRoutes 注册 /admin 路由，除登录外均需要管理员令牌。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(ar chi.Router) {
		ar.Post("/login", h.handleLogin)

		ar.Group(func(pr chi.Router) {
			pr.Use(middleware.AdminAuth(h.deps.Auth))

			pr.Put("/password", h.handleChangePassword)

			pr.Get("/manual", h.handleGetManual)
			pr.Put("/manual", h.handleSaveManual)
			pr.Delete("/manual", h.handleResetManual)
			pr.Post("/manual/append", h.handleAppendManual)
			pr.Post("/manual/restore", h.handleRestoreManual)
			pr.Get("/export", h.handleExport)

			pr.Get("/snippets", h.handleListSnippets)
			pr.Post("/snippets", h.handleAddSnippet)
			pr.Delete("/snippets/{snippetID}", h.handleDeleteSnippet)

			pr.Get("/company", h.handleGetCompany)
			pr.Put("/company", h.handleSaveCompany)

			pr.Get("/kb", h.handleGetKB)
			pr.Put("/kb", h.handleSaveKB)

			pr.Get("/logs", h.handleListLogs)
			pr.Get("/feedback", h.handleListFeedback)

			pr.Get("/customers", h.handleListCustomers)
			pr.Post("/customers", h.handleSaveCustomer)
			pr.Post("/customers/bulk", h.handleBulkCustomers)
			pr.Delete("/customers/{customerID}", h.handleDeleteCustomer)

			pr.Get("/settings", h.handleGetSettings)
			pr.Put("/settings", h.handleSaveSettings)
		})
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Password string `json:"password"`
	}
	if err := utils.DecodeJSON(w, r, maxBody, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, expires, err := h.deps.Auth.Login(r.Context(), payload.Password)
	if err != nil {
		if errors.Is(err, adminService.ErrInvalidPassword) {
			utils.RespondLocalizedError(w, http.StatusUnauthorized, err.Error(), textWrongPassword)
			return
		}
		h.internalError(w, "admin login failed", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresAt": expires.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Password string `json:"password"`
	}
	if err := utils.DecodeJSON(w, r, maxBody, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.deps.Auth.ChangePassword(r.Context(), payload.Password); err != nil {
		if errors.Is(err, adminService.ErrPasswordTooShort) {
			utils.RespondLocalizedError(w, http.StatusBadRequest, err.Error(), textShortPassword)
			return
		}
		h.internalError(w, "change admin password failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error) {
	h.log.Error(msg, "error", err)
	utils.RespondError(w, http.StatusInternalServerError, msg)
}

// queryLimit 解析 ?limit=，非法或缺省时使用默认值。
func queryLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLogLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultLogLimit
	}
	return n
}
