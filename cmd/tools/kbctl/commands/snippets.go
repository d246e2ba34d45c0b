package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSnippetsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snippets",
		Short: "管理快速知识片段",
	}

	var imageURL string
	add := &cobra.Command{
		Use:   "add <content>",
		Short: "添加一条片段",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snippet, err := e.knowledge.AddSnippet(cmd.Context(), strings.Join(args, " "), imageURL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), snippet.ID)
			return nil
		},
	}
	add.Flags().StringVar(&imageURL, "image", "", "附带的图片地址")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "列出所有片段",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				snippets, err := e.knowledge.Snippets(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTIME\tIMAGE\tCONTENT")
				for _, s := range snippets {
					fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", s.ID, s.Timestamp.Format("2006-01-02 15:04"), s.HasImage(), oneLine(s.Content, 60))
				}
				return tw.Flush()
			},
		},
		add,
		&cobra.Command{
			Use:   "delete <id>",
			Short: "删除一条片段",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := e.knowledge.DeleteSnippet(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "deleted")
				return nil
			},
		},
	)
	return cmd
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
