// Package events defines the dispatch events the worker emits after answering a request.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/morezero/chat-worker/pkg/dispatcher"
)

// DispatchEvent describes one answered work request. Payloads are never included.
type DispatchEvent struct {
	EventID    string          `json:"eventId"`
	RequestID  json.RawMessage `json:"requestId"`
	Action     string          `json:"action"`
	OK         bool            `json:"ok"`
	Code       string          `json:"code,omitempty"`
	DurationMs int64           `json:"durationMs"`
	Timestamp  string          `json:"timestamp"`
}

// NewDispatchEvent builds the event for req answered by resp after elapsed.
func NewDispatchEvent(req *dispatcher.WorkRequest, resp *dispatcher.WorkResponse, elapsed time.Duration, at time.Time) *DispatchEvent {
	ev := &DispatchEvent{
		EventID:    uuid.NewString(),
		OK:         !resp.Failed(),
		Code:       resp.Code,
		DurationMs: elapsed.Milliseconds(),
		Timestamp:  at.UTC().Format(time.RFC3339Nano),
	}
	if req != nil {
		ev.RequestID = req.ID
		ev.Action = req.Action
	}
	if len(ev.RequestID) == 0 {
		ev.RequestID = json.RawMessage("null")
	}
	return ev
}
