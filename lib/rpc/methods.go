package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/go-i2p/logger"
)

// RPCHandler is the interface that RPC method handlers must implement.
//
// Handle receives the raw "params" member and returns the value serialized as
// "result". Returned errors are converted with ToRPCError, so handlers may
// return protocol sentinels directly.
type RPCHandler interface {
	Handle(ctx context.Context, params json.RawMessage) (interface{}, error)
}

// RPCHandlerFunc is a function adapter for RPCHandler interface.
type RPCHandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Handle calls the underlying function.
func (f RPCHandlerFunc) Handle(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return f(ctx, params)
}

// MethodRegistry maps method names to their handlers. It is safe for
// concurrent registration and dispatch.
type MethodRegistry struct {
	handlers map[string]RPCHandler
	mu       sync.RWMutex
}

// NewMethodRegistry creates an empty method registry.
func NewMethodRegistry() *MethodRegistry {
	return &MethodRegistry{
		handlers: make(map[string]RPCHandler),
	}
}

// Register adds a handler for the given method name, replacing any existing one.
func (mr *MethodRegistry) Register(method string, handler RPCHandler) {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	mr.handlers[method] = handler

	log.WithFields(logger.Fields{
		"at":     "MethodRegistry.Register",
		"method": method,
	}).Debug("registered RPC method")
}

// ListMethods returns the registered method names in sorted order.
func (mr *MethodRegistry) ListMethods() []string {
	mr.mu.RLock()
	defer mr.mu.RUnlock()

	methods := make([]string, 0, len(mr.handlers))
	for method := range mr.handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return methods
}

// Dispatch invokes the handler for the given method with the provided parameters.
//
// Error handling:
//   - Returns RPCError with ErrCodeMethodNotFound if method not registered
//   - Converts handler errors with ToRPCError
func (mr *MethodRegistry) Dispatch(ctx context.Context, method string, params json.RawMessage) (interface{}, *RPCError) {
	mr.mu.RLock()
	handler, exists := mr.handlers[method]
	mr.mu.RUnlock()

	if !exists {
		log.WithFields(logger.Fields{
			"at":     "MethodRegistry.Dispatch",
			"method": method,
			"reason": "method_not_found",
		}).Warn("attempted to call unregistered method")

		return nil, NewRPCError(ErrCodeMethodNotFound, fmt.Sprintf("method %q not found", method))
	}

	log.WithFields(logger.Fields{
		"at":     "MethodRegistry.Dispatch",
		"method": method,
	}).Debug("dispatching RPC method")

	result, err := handler.Handle(ctx, params)
	if err != nil {
		rpcErr := ToRPCError(err)
		log.WithFields(logger.Fields{
			"at":     "MethodRegistry.Dispatch",
			"method": method,
			"code":   rpcErr.Code,
			"reason": err.Error(),
		}).Debug("method handler returned error")
		return nil, rpcErr
	}

	return result, nil
}

// HandleRequest parses requestData and dispatches it. It returns nil for
// notifications; every other outcome, including parse errors, is encoded in
// the returned Response.
func (mr *MethodRegistry) HandleRequest(ctx context.Context, requestData []byte) *Response {
	req, err := ParseRequest(requestData)
	if err != nil {
		return NewErrorResponse(nil, ToRPCError(err))
	}
	return mr.HandleParsedRequest(ctx, req)
}

// HandleParsedRequest processes an already-parsed JSON-RPC request and returns a response.
func (mr *MethodRegistry) HandleParsedRequest(ctx context.Context, req *Request) *Response {
	if req.IsNotification() {
		log.WithFields(logger.Fields{
			"at":     "MethodRegistry.HandleParsedRequest",
			"method": req.Method,
		}).Debug("received notification (no response will be sent)")

		_, _ = mr.Dispatch(ctx, req.Method, req.Params)
		return nil
	}

	result, rpcErr := mr.Dispatch(ctx, req.Method, req.Params)
	if rpcErr != nil {
		return NewErrorResponse(req.ID, rpcErr)
	}
	return NewSuccessResponse(req.ID, result)
}
