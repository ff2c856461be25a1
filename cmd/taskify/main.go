// Package main implements the taskify CLI, a terminal client for the
// Taskify backend.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "taskify",
	Short: "Taskify - a task board in your terminal",
	Long: `Taskify keeps your tasks on a Taskify backend and shows them as a list
or as a board with Todo, In Progress, On Hold and Completed columns.

The backend address comes from --server, then $TASKIFY_SERVER_URL, then
server-url in ~/.config/taskify/config.toml.`,
	SilenceUsage: true,
}

var (
	serverURLFlag string
	verboseFlag   bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURLFlag, "server", "", "Taskify backend URL")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log requests and change feed activity")
}
