package dispatcher

import "fmt"

// Error codes carried in WorkResponse.Code.
const (
	CodeUnrecognizedAction = "UNRECOGNIZED_ACTION"
	CodeInvalidArgument    = "INVALID_ARGUMENT"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInternal           = "INTERNAL_ERROR"
)

// ActionError is a handler failure with a response code.
type ActionError struct {
	Code    string
	Message string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func invalidArgument(action string, err error) *ActionError {
	return &ActionError{
		Code:    CodeInvalidArgument,
		Message: fmt.Sprintf("Failed to parse %s data: %v", action, err),
	}
}
