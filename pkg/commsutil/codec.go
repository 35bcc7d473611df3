package commsutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/morezero/chat-worker/pkg/dispatcher"
)

var (
	// ErrEmptyPayload is returned for a frame with no content.
	ErrEmptyPayload = errors.New("empty payload")
	// ErrNotObject is returned for a frame that is JSON but not an object.
	ErrNotObject = errors.New("request must be a JSON object")
)

// EncodePayload serializes a value to JSON bytes.
func EncodePayload(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// DecodePayload deserializes JSON bytes into the given target.
func DecodePayload(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// DecodeRequest reads a work request frame. On error the returned request, if non-nil,
// carries whatever id could be recovered so the caller can echo it. A missing action is
// not an error here: it reaches the dispatcher as an unrecognized empty tag.
func DecodeRequest(data []byte) (*dispatcher.WorkRequest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmptyPayload
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("invalid request: %w", ErrNotObject)
	}
	var req dispatcher.WorkRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return RecoverID(data), fmt.Errorf("invalid request: %w", err)
	}
	return &req, nil
}

// RecoverID extracts only the id of a frame whose other fields did not decode.
func RecoverID(data []byte) *dispatcher.WorkRequest {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil
	}
	return &dispatcher.WorkRequest{ID: probe.ID}
}

// InvalidRequestResponse builds the response for a frame DecodeRequest rejected.
func InvalidRequestResponse(req *dispatcher.WorkRequest, err error) *dispatcher.WorkResponse {
	var id json.RawMessage
	if req != nil {
		id = req.ID
	}
	return dispatcher.ErrorResponse(id, dispatcher.CodeInvalidRequest, fmt.Sprintf("Invalid request: %v", err))
}
