package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// maxRequestBody bounds a JSON-RPC request. Onions grow by one sealed key and
// one IV per hop, far below this limit for any sane path length.
const maxRequestBody = 1 << 20

// ServerConfig holds the HTTP timeouts of a node's RPC server and the
// optional metrics handler.
type ServerConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Metrics is served at /metrics when non-nil.
	Metrics http.Handler
}

// DefaultServerConfig returns the timeouts used when a node is not configured
// otherwise.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server exposes a MethodRegistry as JSON-RPC 2.0 over HTTP at /jsonrpc,
// plus a plain-text liveness route at /status.
type Server struct {
	registry   *MethodRegistry
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer prepares a server for registry. Nothing listens until Serve.
func NewServer(cfg ServerConfig, registry *MethodRegistry) *Server {
	s := &Server{registry: registry}

	mux := http.NewServeMux()
	mux.HandleFunc("/jsonrpc", s.handleRPC)
	mux.HandleFunc("/status", handleStatus)
	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}

	s.httpServer = &http.Server{
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Listen binds a TCP listener on address ("host:port"; port 0 picks a free
// port).
func Listen(address string) (net.Listener, error) {
	l, err := net.Listen("tcp", address)
	if err != nil {
		log.WithFields(logger.Fields{
			"at":      "rpc.Listen",
			"address": address,
			"reason":  err.Error(),
		}).Error("Failed to bind listener")
		return nil, oops.Wrapf(err, "listen on %s", address)
	}
	return l, nil
}

// Serve starts answering requests on l in a background goroutine and returns
// immediately. The server takes ownership of l.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return oops.Errorf("server already serving on %s", s.listener.Addr())
	}
	s.listener = l

	log.WithFields(logger.Fields{
		"at":       "(Server).Serve",
		"address":  l.Addr().String(),
		"protocol": "HTTP",
	}).Info("Starting JSON-RPC server")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(l); err != nil && err != http.ErrServerClosed {
			log.WithFields(logger.Fields{
				"at":     "(Server).Serve",
				"reason": err.Error(),
			}).Error("JSON-RPC server error")
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully shuts down the server, waiting up to five seconds for
// active requests to complete.
func (s *Server) Stop() error {
	log.WithFields(logger.Fields{
		"at": "(Server).Stop",
	}).Info("Stopping JSON-RPC server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		log.WithFields(logger.Fields{
			"at":     "(Server).Stop",
			"reason": err.Error(),
		}).Error("Error during server shutdown")
	}

	s.wg.Wait()

	log.WithFields(logger.Fields{
		"at": "(Server).Stop",
	}).Info("JSON-RPC server stopped")
	return err
}

func handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "live")
}

// handleRPC processes JSON-RPC requests on the /jsonrpc endpoint.
// Request flow:
// 1. Verify HTTP method is POST
// 2. Verify Content-Type is application/json
// 3. Parse JSON-RPC request
// 4. Dispatch to method handler
// 5. Serialize and return response
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if rpcErr := validateHTTPRequest(r); rpcErr != nil {
		writeResponse(w, NewErrorResponse(nil, rpcErr))
		return
	}

	body, rpcErr := readRequestBody(r)
	if rpcErr != nil {
		writeResponse(w, NewErrorResponse(nil, rpcErr))
		return
	}

	resp := s.registry.HandleRequest(r.Context(), body)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeResponse(w, resp)
}

// validateHTTPRequest checks that the HTTP method is POST and Content-Type is application/json.
func validateHTTPRequest(r *http.Request) *RPCError {
	if r.Method != http.MethodPost {
		return NewRPCError(ErrCodeInvalidRequest, "Method must be POST")
	}

	contentType := r.Header.Get("Content-Type")
	if contentType != "application/json" && contentType != "application/json; charset=utf-8" {
		return NewRPCError(ErrCodeInvalidRequest, "Content-Type must be application/json")
	}

	return nil
}

// readRequestBody reads the HTTP request body up to maxRequestBody bytes.
func readRequestBody(r *http.Request) ([]byte, *RPCError) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return nil, NewRPCError(ErrCodeInternalError, "Failed to read request body")
	}
	if len(body) > maxRequestBody {
		return nil, NewRPCError(ErrCodeInvalidRequest, "Request body too large")
	}
	return body, nil
}

// writeResponse serializes resp. JSON-RPC errors are still HTTP 200.
func writeResponse(w http.ResponseWriter, resp *Response) {
	w.Header().Set("Content-Type", "application/json")

	data, err := resp.Marshal()
	if err != nil {
		log.WithFields(logger.Fields{
			"at":     "rpc.writeResponse",
			"reason": err.Error(),
		}).Error("Failed to marshal response")
		data, err = json.Marshal(NewErrorResponse(resp.ID, NewRPCError(ErrCodeInternalError, "Failed to serialize response")))
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.WithFields(logger.Fields{
			"at":     "rpc.writeResponse",
			"reason": err.Error(),
		}).Error("Failed to write response")
	}
}
