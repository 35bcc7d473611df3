// Package main is the entrypoint for chat-worker.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/morezero/chat-worker/internal/server"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chat-worker",
		Short: "Background worker for the chat export viewer: parse, search and analyse chat messages",
		Long: `chat-worker answers tagged work requests ({id, action, data}) with {id, result} or
{id, error, code}. Without a subcommand it runs the server.

Environment: COMMS_URL, WORKER_SUBJECT, WORKER_QUEUE_GROUP, WORKER_EVENT_SUBJECT,
DATABASE_URL (optional dispatch journal), MIGRATION_PATH, HTTP_PORT, LOG_LEVEL.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run()
		},
	}

	root.AddCommand(serveCmd())
	root.AddCommand(dispatchCmd())
	root.AddCommand(parseCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(journalCmd())
	root.AddCommand(requestCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the worker (COMMS subscription, WebSocket and HTTP status endpoints)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run()
		},
	}
}
