package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/morezero/chat-worker/pkg/commsutil"
	"github.com/morezero/chat-worker/pkg/dispatcher"
)

func dispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Answer work requests read from stdin, one JSON response per line on stdout",
		Long: `Reads a stream of JSON work requests from stdin and writes one JSON response per
request, in order, to stdout. Example:

  echo '{"id":"1","action":"search","data":{"messages":[{"content":"Hi there"}],"query":"hi"}}' | chat-worker dispatch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(cmd, dispatcher.NewDispatcher(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// runDispatch answers each JSON value in in. A frame that is JSON but not a request gets
// an INVALID_REQUEST response; input that is not JSON at all ends the stream.
func runDispatch(cmd *cobra.Command, disp *dispatcher.Dispatcher, in io.Reader, out io.Writer) error {
	dec := json.NewDecoder(in)
	enc := json.NewEncoder(out)

	for {
		var frame json.RawMessage
		if err := dec.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("dispatch: unreadable input: %w", err)
		}

		var resp *dispatcher.WorkResponse
		if req, err := commsutil.DecodeRequest(frame); err != nil {
			resp = commsutil.InvalidRequestResponse(req, err)
		} else {
			resp = disp.Dispatch(cmd.Context(), req)
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("dispatch: write response: %w", err)
		}
	}
}
