package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/morezero/chat-worker/internal/config"
	"github.com/morezero/chat-worker/pkg/commsutil"
	"github.com/morezero/chat-worker/pkg/dispatcher"
)

func requestCmd() *cobra.Command {
	var id string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "request <action> [data]",
		Short: "Send one work request to a running worker over COMMS and print the response",
		Long: `Send one work request on WORKER_SUBJECT and print the response. data is a JSON value
and defaults to null. Example:

  chat-worker request search '{"messages":[{"content":"Hi"}],"query":"hi"}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			req := &dispatcher.WorkRequest{Action: args[0]}
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("request: data is not valid JSON")
				}
				req.Data = json.RawMessage(args[1])
			}
			if id == "" {
				id = uuid.NewString()
			}
			req.ID = dispatcher.StringID(id)

			payload, err := commsutil.EncodePayload(req)
			if err != nil {
				return fmt.Errorf("request: %w", err)
			}

			nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			msg, err := nc.Request(cfg.WorkerSubject, payload, timeout)
			if err != nil {
				return fmt.Errorf("request %s on %s: %w", req.Action, cfg.WorkerSubject, err)
			}

			var resp dispatcher.WorkResponse
			if err := commsutil.DecodePayload(msg.Data, &resp); err != nil {
				return fmt.Errorf("request: undecodable response: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(&resp); err != nil {
				return err
			}
			if resp.Failed() {
				return fmt.Errorf("%s: %s", resp.Code, resp.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Request id (default: random UUID)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for the response")
	return cmd
}
