// Package fallback implements the local short-circuit endpoints a
// circuit breaker redirects to when it is OPEN, or that the route
// store's unavailability forces a route onto. Every handler here returns 503
// synchronously and unconditionally, and never invokes the proxy.
package fallback

import (
	"encoding/json"
	"net/http"
	"time"
)

// Message is the JSON body every fallback endpoint returns.
type Message struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Reason    string `json:"reason,omitempty"`
	Service   string `json:"service,omitempty"`
	Action    string `json:"action,omitempty"`
}

func write(w http.ResponseWriter, msg Message) {
	msg.Status = "unavailable"
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(msg)
}

// GenericHandler serves /fallback/message: a generic 503.
func GenericHandler(reason string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		write(w, Message{Message: "the requested service is temporarily unavailable", Reason: reason})
	})
}

// BackendHandler serves /fallback/backend: specialized for the
// backendService breaker.
func BackendHandler(reason string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		write(w, Message{Message: "backend service is temporarily unavailable", Reason: reason, Service: "backend"})
	})
}

// CriticalHandler serves /fallback/critical: specialized for the
// criticalService breaker, flagged as critical severity.
func CriticalHandler(reason string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		write(w, Message{Message: "critical service is temporarily unavailable", Reason: reason, Service: "critical", Action: "paging on-call"})
	})
}

// ByName resolves a breaker's configured fallback path (e.g.
// "/fallback/backend") to the handler that serves it.
func ByName(path, reason string) http.Handler {
	switch path {
	case "/fallback/backend":
		return BackendHandler(reason)
	case "/fallback/critical":
		return CriticalHandler(reason)
	default:
		return GenericHandler(reason)
	}
}

// Mux returns an http.ServeMux wiring the three fallback paths, used
// directly by the lifecycle wiring as a standalone mux and by
// breakers indirectly via ByName.
func Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/fallback/message", GenericHandler("circuit breaker open"))
	mux.Handle("/fallback/backend", BackendHandler("circuit breaker open"))
	mux.Handle("/fallback/critical", CriticalHandler("circuit breaker open"))
	return mux
}
