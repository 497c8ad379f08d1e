package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/mcpruntime/core/pkg/protocol"
	"github.com/mcpruntime/core/pkg/transport"
)

// HTTPHandler implements http.Handler for MCP, accepting one JSON-RPC
// request or notification per POST and replying with a single JSON
// response. It does not stream partial results or track sessions across
// requests; callers that need persistent server push use the client's
// SSE-backed HTTPTransport instead.
type HTTPHandler struct {
	transport      transport.Transport
	allowedOrigins []string
	mu             sync.RWMutex
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler() *HTTPHandler {
	return &HTTPHandler{
		allowedOrigins: []string{"http://localhost", "https://localhost"}, // Secure defaults per MCP spec
	}
}

// ServeHTTP handles HTTP requests.
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Validate Origin header for security (prevent DNS rebinding attacks)
	if !h.isOriginAllowed(r.Header.Get("Origin")) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprintf(w, "Origin not allowed")
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.handlePostRequest(w, r)
	case http.MethodOptions:
		h.handleOptionsRequest(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		fmt.Fprintf(w, "Method not allowed")
	}
}

// handlePostRequest handles HTTP POST requests carrying a single JSON-RPC
// request or notification.
func (h *HTTPHandler) handlePostRequest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", r.Header.Get("Origin"))
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error reading request body: %v", err)
		return
	}

	h.mu.RLock()
	t := h.transport
	h.mu.RUnlock()

	if t == nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Transport not set")
		return
	}

	switch {
	case protocol.IsRequest(body):
		var req protocol.Request
		if err := json.Unmarshal(body, &req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Invalid JSON-RPC request: %v", err)
			return
		}
		h.handleRequest(w, r, t, &req)

	case protocol.IsNotification(body):
		var notif protocol.Notification
		if err := json.Unmarshal(body, &notif); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Invalid JSON-RPC notification: %v", err)
			return
		}
		h.handleNotification(r, t, &notif)
		w.WriteHeader(http.StatusAccepted) // 202 Accepted for notifications per spec

	default:
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Invalid JSON-RPC message")
	}
}

// handleRequest dispatches a request through the transport and writes the
// JSON-RPC response in a single reply.
func (h *HTTPHandler) handleRequest(w http.ResponseWriter, r *http.Request, t transport.Transport, req *protocol.Request) {
	w.Header().Set("Content-Type", "application/json")

	response, err := t.HandleRequest(r.Context(), req)
	if err != nil {
		response, err = protocol.NewErrorResponse(req.ID, protocol.InternalError, err.Error(), nil)
	}
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Error creating response: %v", err)
		return
	}

	jsonResp, err := json.Marshal(response)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Error marshaling response: %v", err)
		return
	}

	if _, err := w.Write(jsonResp); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

// handleNotification dispatches a notification through the transport. No
// response body is written; the caller replies with 202 Accepted.
func (h *HTTPHandler) handleNotification(r *http.Request, t transport.Transport, notif *protocol.Notification) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[HTTPHandler] panic handling notification: %v", rec)
			}
		}()
		_ = t.HandleNotification(r.Context(), notif)
	}()
}

// handleOptionsRequest handles CORS preflight requests.
func (h *HTTPHandler) handleOptionsRequest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", r.Header.Get("Origin"))
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours
	w.WriteHeader(http.StatusNoContent)
}

// SetTransport sets the transport for this handler.
func (h *HTTPHandler) SetTransport(t transport.Transport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transport = t
}

// SetAllowedOrigins sets the allowed origins for CORS and security validation.
func (h *HTTPHandler) SetAllowedOrigins(origins []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.allowedOrigins = origins
}

// AddAllowedOrigin adds an allowed origin for CORS and security validation.
func (h *HTTPHandler) AddAllowedOrigin(origin string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.allowedOrigins = append(h.allowedOrigins, origin)
}

// isOriginAllowed checks if the given origin is allowed per MCP specification.
func (h *HTTPHandler) isOriginAllowed(origin string) bool {
	// Per MCP specification, servers MUST validate Origin headers for security.
	// An empty Origin is rejected.
	if origin == "" {
		return false
	}

	h.mu.RLock()
	origins := h.allowedOrigins
	h.mu.RUnlock()

	for _, allowed := range origins {
		if allowed == "*" {
			return true
		}
		if h.matchOrigin(allowed, origin) {
			return true
		}
	}

	return false
}

// matchOrigin performs origin matching with support for localhost patterns.
func (h *HTTPHandler) matchOrigin(allowed, origin string) bool {
	if allowed == origin {
		return true
	}
	if h.isLocalhostPattern(allowed) && h.isLocalhostOrigin(origin) {
		return true
	}
	return false
}

// isLocalhostPattern checks if the allowed origin is a localhost pattern.
func (h *HTTPHandler) isLocalhostPattern(allowed string) bool {
	return allowed == "http://localhost" || allowed == "https://localhost" ||
		allowed == "http://127.0.0.1" || allowed == "https://127.0.0.1" ||
		allowed == "http://::1" || allowed == "https://::1"
}

// isLocalhostOrigin checks if the origin is from localhost.
func (h *HTTPHandler) isLocalhostOrigin(origin string) bool {
	localhostPatterns := []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
		"http://::1",
		"https://::1",
	}

	for _, pattern := range localhostPatterns {
		if origin == pattern {
			return true
		}
		if strings.HasPrefix(origin, pattern+":") {
			return true
		}
	}

	return false
}

// SetAllowWildcardOrigin allows wildcard origins (use with caution).
func (h *HTTPHandler) SetAllowWildcardOrigin(allow bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if allow {
		for _, origin := range h.allowedOrigins {
			if origin == "*" {
				return
			}
		}
		h.allowedOrigins = append(h.allowedOrigins, "*")
		return
	}

	newOrigins := make([]string, 0, len(h.allowedOrigins))
	for _, origin := range h.allowedOrigins {
		if origin != "*" {
			newOrigins = append(newOrigins, origin)
		}
	}
	h.allowedOrigins = newOrigins
}
