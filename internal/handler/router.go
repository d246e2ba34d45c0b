package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/modernsoft/estock-support/backend/internal/handler/admin"
	"github.com/modernsoft/estock-support/backend/internal/handler/chat"
	"github.com/modernsoft/estock-support/backend/internal/handler/company"
	"github.com/modernsoft/estock-support/backend/internal/handler/completion"
	"github.com/modernsoft/estock-support/backend/internal/handler/customer"
	"github.com/modernsoft/estock-support/backend/internal/handler/feedback"
	middlewarePkg "github.com/modernsoft/estock-support/backend/internal/middleware"
	chatModel "github.com/modernsoft/estock-support/backend/internal/model/chat"
	adminService "github.com/modernsoft/estock-support/backend/internal/service/admin"
	"github.com/modernsoft/estock-support/backend/internal/service/ai"
	chatService "github.com/modernsoft/estock-support/backend/internal/service/chat"
	customerService "github.com/modernsoft/estock-support/backend/internal/service/customer"
	knowledgeService "github.com/modernsoft/estock-support/backend/internal/service/knowledge"
	"github.com/modernsoft/estock-support/backend/pkg/logger"
	"github.com/modernsoft/estock-support/backend/pkg/utils"
)

// Services 汇总路由需要的核心服务。
type Services struct {
	Chat      *chatService.Service
	AI        *ai.Client
	Knowledge *knowledgeService.Service
	Customers *customerService.Service
	Admin     *adminService.Service
	Logs      chatModel.LogStore
	Feedback  chatModel.FeedbackStore

	MaxImageBytes int
	CORSOrigins   []string
	Log           *logger.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(svc Services) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(svc.CORSOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":         "ok",
			"activeSessions": svc.Chat.Active(),
			"modelEnabled":   svc.AI.Enabled(),
		})
	})

	r.Route("/api", func(api chi.Router) {
		chat.New(svc.Chat, svc.MaxImageBytes, svc.Log).RegisterRoutes(api)
		completion.New(svc.AI, svc.Log).RegisterRoutes(api)
		customer.New(svc.Customers, svc.Log).RegisterRoutes(api)
		feedback.New(svc.Feedback, svc.Log).RegisterRoutes(api)
		company.New(svc.Knowledge, svc.Log).RegisterRoutes(api)

		admin.New(admin.Dependencies{
			Auth:      svc.Admin,
			Knowledge: svc.Knowledge,
			Customers: svc.Customers,
			Logs:      svc.Logs,
			Feedback:  svc.Feedback,
		}, svc.Log).RegisterRoutes(api)
	})

	return r
}
