// Package protocol defines the wire types exchanged between clients and the
// tool server: requests naming a tool and its arguments, and responses
// carrying either a result payload or a structured error descriptor.
//
// Every request id produces exactly one response with the same id. Result and
// error are mutually exclusive on a response, never both.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Request is a single tool-call request.
type Request struct {
	// ID correlates the request to exactly one response.
	ID string `json:"id"`

	// Tool is the registered tool name to invoke.
	Tool string `json:"tool"`

	// Args is the argument payload, validated against the tool's schema.
	Args map[string]interface{} `json:"args,omitempty"`

	// SessionID optionally targets an existing browser session.
	SessionID string `json:"session_id,omitempty"`

	// DeadlineMs optionally bounds the operation; the server default applies
	// when zero.
	DeadlineMs int64 `json:"deadline_ms,omitempty"`
}

// Response is the outcome of a single request.
type Response struct {
	ID     string           `json:"id"`
	Result interface{}      `json:"result,omitempty"`
	Error  *ErrorDescriptor `json:"error,omitempty"`
}

// ErrorDescriptor is the structured error surface of a failed request.
type ErrorDescriptor struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`

	// Field names the first violated argument for InvalidRequest errors.
	Field string `json:"field,omitempty"`
}

// ErrorKind categorizes request failures.
type ErrorKind string

const (
	// KindInvalidRequest covers malformed payloads and schema violations.
	KindInvalidRequest ErrorKind = "InvalidRequest"

	// KindUnknownTool indicates the requested tool name is not registered.
	KindUnknownTool ErrorKind = "UnknownTool"

	// KindPoolExhausted indicates no session slot freed within the wait timeout.
	KindPoolExhausted ErrorKind = "PoolExhausted"

	// KindOperationTimeout indicates the handler exceeded its deadline.
	KindOperationTimeout ErrorKind = "OperationTimeout"

	// KindEngineFault indicates the browser engine crashed or became unreachable.
	KindEngineFault ErrorKind = "EngineFault"

	// KindTransportFault indicates a framing or channel failure.
	KindTransportFault ErrorKind = "TransportFault"

	// KindToolFailed covers domain-level handler failures that are neither
	// engine faults nor protocol violations (e.g. a selector matched nothing).
	KindToolFailed ErrorKind = "ToolFailed"
)

// Sentinel errors for kind classification across package boundaries.
var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrUnknownTool      = errors.New("unknown tool")
	ErrPoolExhausted    = errors.New("pool exhausted")
	ErrOperationTimeout = errors.New("operation timeout")
	ErrEngineFault      = errors.New("engine fault")
	ErrTransportFault   = errors.New("transport fault")
)

// FieldError is an argument validation failure naming the violated field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Message)
}

// Unwrap ties field errors into the InvalidRequest kind.
func (e *FieldError) Unwrap() error { return ErrInvalidRequest }

// ClassifyError maps an error chain to its protocol kind. Errors outside the
// taxonomy classify as ToolFailed.
func ClassifyError(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrUnknownTool):
		return KindUnknownTool
	case errors.Is(err, ErrPoolExhausted):
		return KindPoolExhausted
	case errors.Is(err, ErrOperationTimeout):
		return KindOperationTimeout
	case errors.Is(err, ErrEngineFault):
		return KindEngineFault
	case errors.Is(err, ErrTransportFault):
		return KindTransportFault
	default:
		return KindToolFailed
	}
}

// NewErrorResponse builds the error response for a request id, deriving the
// kind and field from the error chain.
func NewErrorResponse(id string, err error) *Response {
	desc := &ErrorDescriptor{
		Kind:    ClassifyError(err),
		Message: err.Error(),
	}

	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		desc.Field = fieldErr.Field
	}

	return &Response{ID: id, Error: desc}
}

// NewResultResponse builds the success response for a request id.
func NewResultResponse(id string, result interface{}) *Response {
	return &Response{ID: id, Result: result}
}

// DecodeRequest parses a framed request payload. On a validation failure the
// partially decoded request is returned alongside the error so the transport
// can still correlate its error response to the request id.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: malformed request payload: %v", ErrInvalidRequest, err)
	}
	if req.ID == "" {
		return &req, &FieldError{Field: "id", Message: "request id is required"}
	}
	if req.Tool == "" {
		return &req, &FieldError{Field: "tool", Message: "tool name is required"}
	}
	return &req, nil
}

// EncodeResponse serializes a response for framing onto the wire.
func EncodeResponse(resp *Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response %s: %w", resp.ID, err)
	}
	return data, nil
}
