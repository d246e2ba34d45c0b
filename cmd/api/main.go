package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/modernsoft/estock-support/backend/internal/config"
	"github.com/modernsoft/estock-support/backend/internal/handler"
	"github.com/modernsoft/estock-support/backend/internal/service/admin"
	"github.com/modernsoft/estock-support/backend/internal/service/ai"
	"github.com/modernsoft/estock-support/backend/internal/service/chat"
	"github.com/modernsoft/estock-support/backend/internal/service/customer"
	"github.com/modernsoft/estock-support/backend/internal/service/knowledge"
	"github.com/modernsoft/estock-support/backend/internal/service/summary"
	"github.com/modernsoft/estock-support/backend/internal/service/tools"
	"github.com/modernsoft/estock-support/backend/internal/store"
	"github.com/modernsoft/estock-support/backend/internal/store/redis"
	"github.com/modernsoft/estock-support/backend/internal/store/sqlite"
	"github.com/modernsoft/estock-support/backend/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if envErr != nil {
		log.Warn("failed to load .env file, continuing with system environment variables only", "error", envErr)
	}

	local, err := sqlite.Open(cfg.Store.SQLitePath)
	if err != nil {
		log.Fatal("failed to open local store", "path", cfg.Store.SQLitePath, "error", err)
	}
	defer local.Close()

	// 远端不可用时仅使用本地存储。注意不要把 nil *redis.Store 赋给接口。
	var remote store.Shared
	if cfg.Store.RemoteEnabled() {
		rs, err := redis.New(ctx, redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
			Prefix:   cfg.Store.RedisPrefix,
		})
		if err != nil {
			log.Warn("remote store unavailable, falling back to local store", "addr", cfg.Store.RedisAddr, "error", err)
		} else {
			defer rs.Close()
			remote = rs
			log.Info("remote store connected", "addr", cfg.Store.RedisAddr)
		}
	}
	layered := store.NewLayered(remote, local, log)

	recovered, err := chat.Recover(ctx, layered, layered, time.Now(), log)
	if err != nil {
		log.Warn("abandoned session recovery failed", "error", err)
	} else if recovered > 0 {
		log.Info("abandoned sessions recovered", "count", recovered)
	}

	screens, company, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		log.Fatal("failed to load catalog", "path", cfg.CatalogPath, "error", err)
	}
	knowledgeSvc := knowledge.NewService(layered,
		knowledge.WithScreens(screens),
		knowledge.WithDefaultCompany(company),
		knowledge.WithLimits(knowledge.Limits{Manual: cfg.Chat.ContextLimit, Snippet: cfg.Chat.SnippetLimit}),
	)

	client := newAIClient(ctx, cfg.AI, log)

	var extractor summary.Extractor
	summarySvc, err := summary.NewService(ctx, client.ChatModel())
	if err != nil {
		log.Warn("failed to initialize summary service", "error", err)
	} else if summarySvc.Enabled() {
		extractor = summarySvc
	}

	customerSvc := customer.NewService(layered)
	chatSvc := chat.NewService(chat.Dependencies{
		Client:     client,
		Knowledge:  knowledgeSvc,
		Dispatcher: tools.NewDispatcher(knowledgeSvc, log),
		Finalizer:  chat.NewFinalizer(layered, layered, extractor, log),
		Autosave:   layered,
		Customers:  customerSvc,
		Settings:   layered,
	}, chat.Config{
		MaxToolRounds:  cfg.Chat.MaxToolRounds,
		MaxImageBytes:  cfg.Chat.MaxImageBytes,
		SessionTimeout: cfg.Chat.SessionTimeout,
	}, log)

	adminSvc := admin.NewService(layered, admin.Config{
		DefaultPassword: cfg.Admin.DefaultPassword,
		Secret:          cfg.Admin.JWTSecret,
		TokenTTL:        cfg.Admin.TokenTTL,
	})
	if cfg.Admin.JWTSecret == "" {
		log.Warn("ADMIN_JWT_SECRET not set, admin tokens will not survive a restart")
	}

	sweeper, err := chat.StartSweeper(ctx, chatSvc, cfg.Chat.SweepSchedule, log)
	if err != nil {
		log.Fatal("failed to start idle session sweeper", "schedule", cfg.Chat.SweepSchedule, "error", err)
	}
	defer sweeper.Stop()

	router := handler.NewRouter(handler.Services{
		Chat:          chatSvc,
		AI:            client,
		Knowledge:     knowledgeSvc,
		Customers:     customerSvc,
		Admin:         adminSvc,
		Logs:          layered,
		Feedback:      layered,
		MaxImageBytes: cfg.Chat.MaxImageBytes,
		CORSOrigins:   cfg.Server.CORSOrigins,
		Log:           log,
	})

	startServer(ctx, cfg.Server, router, log)

	if n := chatSvc.EndAll(context.Background()); n > 0 {
		log.Info("live sessions finalized on shutdown", "count", n)
	}
}

func newAIClient(ctx context.Context, cfg config.AIConfig, log *logger.Logger) *ai.Client {
	if !cfg.Enabled() {
		log.Warn("Ark 凭证未配置，会话将以错误状态启动")
		return ai.NewClient(nil)
	}
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		log.Warn("failed to initialize chat model, continuing without AI functionality", "error", err)
		return ai.NewClient(nil)
	}
	log.Info("chat model initialized", "model", cfg.Model)
	return ai.NewClient(chatModel)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, log *logger.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info("e-stock support backend listening", "addr", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Error("server error", "error", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
