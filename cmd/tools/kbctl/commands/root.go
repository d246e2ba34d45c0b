// Package commands 实现 kbctl 的子命令，直接读写与服务端相同的分层存储。
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modernsoft/estock-support/backend/internal/config"
	"github.com/modernsoft/estock-support/backend/internal/service/knowledge"
	"github.com/modernsoft/estock-support/backend/internal/store"
	"github.com/modernsoft/estock-support/backend/internal/store/redis"
	"github.com/modernsoft/estock-support/backend/internal/store/sqlite"
	"github.com/modernsoft/estock-support/backend/pkg/logger"
)

// env 持有一次命令执行期间打开的存储。
type env struct {
	store     *store.Layered
	knowledge *knowledge.Service
	log       *logger.Logger
	closers   []func() error
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
	e.closers = nil
}

// NewRootCmd 创建根命令并注册所有子命令。
func NewRootCmd() *cobra.Command {
	e := &env{}
	var sqlitePath string
	var localOnly bool
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "kbctl",
		Short: "e-stock support knowledge base maintenance",
		Long: `kbctl 直接操作客服知识库存储（SQLite 与可选的 Redis）。

Examples:
  kbctl manual show
  kbctl manual import ./manual.txt
  kbctl snippets add "رقم الدعم الجديد 0100"
  kbctl logs list --limit 20
  kbctl recover`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Runnable() || cmd.Name() == "help" {
				return nil
			}
			return e.open(cmd.Context(), sqlitePath, localOnly, verbose)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			e.close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&sqlitePath, "db", "", "SQLite 文件路径，默认读取 SQLITE_PATH")
	rootCmd.PersistentFlags().BoolVar(&localOnly, "local-only", false, "忽略 REDIS_ADDR，只操作本地存储")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "输出存储层日志")

	rootCmd.AddCommand(
		newManualCmd(e),
		newSnippetsCmd(e),
		newLogsCmd(e),
		newRecoverCmd(e),
	)
	return rootCmd
}

func (e *env) open(ctx context.Context, sqlitePath string, localOnly, verbose bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if sqlitePath == "" {
		sqlitePath = cfg.Store.SQLitePath
	}

	e.log = logger.Nop()
	if verbose {
		if e.log, err = logger.New("dev"); err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
	}

	local, err := sqlite.Open(sqlitePath)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	e.closers = append(e.closers, local.Close)

	var remote store.Shared
	if cfg.Store.RemoteEnabled() && !localOnly {
		rs, err := redis.New(ctx, redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
			Prefix:   cfg.Store.RedisPrefix,
		})
		if err != nil {
			e.log.Warn("remote store unavailable, using local store only", "error", err)
		} else {
			e.closers = append(e.closers, rs.Close)
			remote = rs
		}
	}

	screens, company, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		e.close()
		return err
	}

	e.store = store.NewLayered(remote, local, e.log)
	e.knowledge = knowledge.NewService(e.store,
		knowledge.WithScreens(screens),
		knowledge.WithDefaultCompany(company),
		knowledge.WithLimits(knowledge.Limits{Manual: cfg.Chat.ContextLimit, Snippet: cfg.Chat.SnippetLimit}),
	)
	return nil
}
