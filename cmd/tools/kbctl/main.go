// Package main 是知识库运维工具 kbctl 的入口。
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/modernsoft/estock-support/backend/cmd/tools/kbctl/commands"
)

func main() {
	_ = godotenv.Load()

	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
