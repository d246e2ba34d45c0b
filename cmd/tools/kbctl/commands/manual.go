package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newManualCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manual",
		Short: "查看或修改使用手册",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "打印当前手册全文",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				text, err := e.knowledge.Manual(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			},
		},
		&cobra.Command{
			Use:   "import <file>",
			Short: "把文本文件追加到手册末尾",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				raw, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read %s: %w", args[0], err)
				}
				length, err := e.knowledge.AppendManual(cmd.Context(), filepath.Base(args[0]), string(raw))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "manual updated, %d characters\n", length)
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "清空手册",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := e.knowledge.ResetManual(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "manual cleared")
				return nil
			},
		},
		&cobra.Command{
			Use:   "restore",
			Short: "恢复内置的默认手册",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				length, err := e.knowledge.RestoreManual(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "manual restored, %d characters\n", length)
				return nil
			},
		},
	)
	return cmd
}
