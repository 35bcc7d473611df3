package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

const logPrefix = "dispatcher:dispatch"

// Action tags understood by the default dispatcher.
const (
	ActionProcess   = "process"
	ActionSearch    = "search"
	ActionParse     = "parse"
	ActionStats     = "stats"
	ActionKeywords  = "keywords"
	ActionSentiment = "sentiment"
)

var nullResult = json.RawMessage("null")

// HandlerFunc executes one action. data is the request's raw data (possibly empty).
type HandlerFunc func(ctx context.Context, data json.RawMessage) (json.RawMessage, error)

// Dispatcher routes work requests to action handlers. It keeps no per-request state, so a
// single Dispatcher may be shared by any number of transports.
type Dispatcher struct {
	handlers map[string]HandlerFunc
}

// NewDispatcher creates a Dispatcher with the built-in actions registered.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{handlers: make(map[string]HandlerFunc)}
	d.Handle(ActionProcess, handleProcess)
	d.Handle(ActionSearch, handleSearch)
	d.Handle(ActionParse, Typed(ActionParse, handleParse))
	d.Handle(ActionStats, Typed(ActionStats, handleStats))
	d.Handle(ActionKeywords, Typed(ActionKeywords, handleKeywords))
	d.Handle(ActionSentiment, Typed(ActionSentiment, handleSentiment))
	return d
}

// Handle registers h for action, replacing any previous handler. Call it before the
// dispatcher is shared between goroutines.
func (d *Dispatcher) Handle(action string, h HandlerFunc) {
	d.handlers[action] = h
}

// Actions returns the registered action tags, sorted.
func (d *Dispatcher) Actions() []string {
	out := make([]string, 0, len(d.handlers))
	for a := range d.handlers {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Dispatch runs the handler for req.Action and always returns exactly one response
// carrying req.ID.
func (d *Dispatcher) Dispatch(ctx context.Context, req *WorkRequest) *WorkResponse {
	slog.Debug(fmt.Sprintf("%s - action=%s id=%s", logPrefix, req.Action, req.ID))

	h, ok := d.handlers[req.Action]
	if !ok {
		return errorResponse(req.ID, CodeUnrecognizedAction, fmt.Sprintf("Unknown action: %s", req.Action))
	}

	result, err := invoke(ctx, h, req)
	if err != nil {
		var actionErr *ActionError
		if errors.As(err, &actionErr) {
			return errorResponse(req.ID, actionErr.Code, actionErr.Message)
		}
		return errorResponse(req.ID, CodeInternal, err.Error())
	}
	if len(result) == 0 {
		result = nullResult
	}
	return &WorkResponse{ID: req.ID, Result: result}
}

// invoke runs h, turning a panic into an error so the caller still gets a response.
func invoke(ctx context.Context, h HandlerFunc, req *WorkRequest) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - handler for %s panicked: %v", logPrefix, req.Action, r))
			result = nil
			err = &ActionError{Code: CodeInternal, Message: fmt.Sprintf("action %s failed: %v", req.Action, r)}
		}
	}()
	return h(ctx, req.Data)
}

// Typed adapts a handler with a concrete input and output type. Missing or null data
// decodes to the zero input; undecodable data is an INVALID_ARGUMENT error.
func Typed[In, Out any](action string, fn func(ctx context.Context, in *In) (Out, error)) HandlerFunc {
	return func(ctx context.Context, data json.RawMessage) (json.RawMessage, error) {
		var in In
		if !isNull(data) {
			if err := json.Unmarshal(data, &in); err != nil {
				return nil, invalidArgument(action, err)
			}
		}
		out, err := fn(ctx, &in)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to encode %s result: %w", logPrefix, action, err)
		}
		return b, nil
	}
}

// --- helpers ---

func errorResponse(id json.RawMessage, code, message string) *WorkResponse {
	return &WorkResponse{
		ID:    id,
		Error: message,
		Code:  code,
	}
}

// ErrorResponse builds a failed response, for transports that reject a request before dispatch.
func ErrorResponse(id json.RawMessage, code, message string) *WorkResponse {
	return errorResponse(id, code, message)
}

func isNull(data json.RawMessage) bool {
	return len(data) == 0 || string(data) == "null"
}
