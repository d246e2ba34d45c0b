package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/modernsoft/estock-support/backend/internal/service/chat"
	"github.com/modernsoft/estock-support/backend/internal/store/sqlite"
)

func newRecoverCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "把残留的自动保存转换为会话日志",
		Long: `扫描本地自动保存，把未正常结束的会话写成日志并删除快照。
服务端启动时会自动执行同样的流程，请勿在服务运行期间使用。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := chat.Recover(cmd.Context(), e.store, e.store, time.Now(), e.log)
			if err != nil {
				if sqlite.IsConflictError(err) {
					return fmt.Errorf("database is locked, stop the server first: %w", err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recovered %d sessions\n", n)
			return nil
		},
	}
}
