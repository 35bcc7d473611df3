// Package dispatcher routes incoming work requests to action handlers.
package dispatcher

import (
	"encoding/json"

	"github.com/morezero/chat-worker/pkg/chat"
)

// WorkRequest is the JSON envelope for incoming work requests.
type WorkRequest struct {
	// ID is chosen by the caller and echoed back verbatim; any JSON value is accepted.
	ID     json.RawMessage `json:"id"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// WorkResponse is the JSON envelope for work responses. Exactly one of Result or Error is set.
type WorkResponse struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

// Failed reports whether the response carries an error.
func (r *WorkResponse) Failed() bool {
	return r.Code != "" || r.Error != ""
}

// StringID encodes s as a request id.
func StringID(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// SearchInput is the data of a search request. Messages are kept raw so matches are
// returned exactly as sent.
type SearchInput struct {
	Messages []json.RawMessage `json:"messages"`
	Query    string            `json:"query"`
}

// ParseInput is the data of a parse request.
type ParseInput struct {
	Text          string `json:"text"`
	IncludeSystem bool   `json:"includeSystem,omitempty"`
}

// ParseOutput is the result of a parse request.
type ParseOutput struct {
	Messages []chat.Message `json:"messages"`
	Senders  []string       `json:"senders"`
}

// MessagesInput is the data of a stats or sentiment request.
type MessagesInput struct {
	Messages []chat.Message `json:"messages"`
}

// KeywordsInput is the data of a keywords request.
type KeywordsInput struct {
	Messages []chat.Message `json:"messages"`
	Limit    int            `json:"limit,omitempty"`
}
