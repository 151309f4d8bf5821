package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/go-i2p/go-onion/lib/protocol"
)

// JSON-RPC 2.0 specification error codes
// Reference: https://www.jsonrpc.org/specification
const (
	ErrCodeParseError     = -32700 // Invalid JSON received by server
	ErrCodeInvalidRequest = -32600 // JSON is not a valid Request object
	ErrCodeMethodNotFound = -32601 // Method does not exist
	ErrCodeInvalidParams  = protocol.CodeValidation
	ErrCodeInternalError  = -32603 // Internal JSON-RPC error
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	// JSONRPC must be exactly "2.0".
	JSONRPC string `json:"jsonrpc"`

	// ID is the request identifier established by the caller. A request
	// without an ID is a notification.
	ID interface{} `json:"id,omitempty"`

	Method string `json:"method"`

	// Params is decoded by the method handler.
	Params json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response. Either Result or Error is
// set, never both.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface for RPCError
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("JSON-RPC error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// ParseRequest parses a JSON-RPC 2.0 request from raw bytes.
//
// Validation performed:
//   - Valid JSON structure
//   - "jsonrpc" field equals "2.0"
//   - "method" field is present and non-empty
func ParseRequest(data []byte) (*Request, error) {
	if len(data) == 0 {
		return nil, &RPCError{
			Code:    ErrCodeParseError,
			Message: "empty request",
		}
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &RPCError{
			Code:    ErrCodeParseError,
			Message: "invalid JSON",
			Data:    err.Error(),
		}
	}

	if req.JSONRPC != "2.0" {
		return nil, &RPCError{
			Code:    ErrCodeInvalidRequest,
			Message: "invalid JSON-RPC version",
			Data:    fmt.Sprintf("expected \"2.0\", got %q", req.JSONRPC),
		}
	}

	if req.Method == "" {
		return nil, &RPCError{
			Code:    ErrCodeInvalidRequest,
			Message: "missing method name",
		}
	}

	return &req, nil
}

// IsNotification reports whether the request carries no ID.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// Marshal serializes the response to JSON.
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// NewSuccessResponse creates a successful JSON-RPC response.
func NewSuccessResponse(id interface{}, result interface{}) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse creates an error JSON-RPC response.
func NewErrorResponse(id interface{}, err *RPCError) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   err,
	}
}

// NewRPCError creates a new RPCError with the given code and message.
func NewRPCError(code int, message string) *RPCError {
	return &RPCError{
		Code:    code,
		Message: message,
	}
}

// NewRPCErrorWithData creates a new RPCError with additional data.
func NewRPCErrorWithData(code int, message string, data interface{}) *RPCError {
	return &RPCError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// ToRPCError converts a handler error to its wire form. Errors wrapping a
// protocol sentinel keep the sentinel's code; anything else is reported as
// an internal error.
func ToRPCError(err error) *RPCError {
	if rpcErr, ok := err.(*RPCError); ok {
		return rpcErr
	}
	if code, ok := protocol.Code(err); ok {
		return NewRPCError(code, err.Error())
	}
	return NewRPCErrorWithData(ErrCodeInternalError, "internal error", err.Error())
}

// DecodeParams unmarshals params into v. A missing params member decodes as
// an empty object.
func DecodeParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return NewRPCErrorWithData(ErrCodeInvalidParams, "invalid parameters", err.Error())
	}
	return nil
}
