package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newLogsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "查看会话日志",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "按时间倒序列出会话日志",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logs, err := e.store.GetLogs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tDURATION\tCLIENT\tQUERY\tRESPONSE")
			for _, l := range logs {
				fmt.Fprintf(tw, "%s\t%.0fs\t%s\t%s\t%s\n",
					l.Timestamp.Format("2006-01-02 15:04"), l.Duration, l.ClientName,
					oneLine(l.UserQuery, 40), oneLine(l.BotResponse, 40))
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 50, "最多显示的条数")

	cmd.AddCommand(list)
	return cmd
}
