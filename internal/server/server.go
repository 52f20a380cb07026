package server

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/zoneclock/meeting-sync/internal/handlers"
	"github.com/zoneclock/meeting-sync/internal/ws"
)

// NewRouter creates and configures a mux.Router with all routes and
// middleware for the meeting sync service.
func NewRouter(h *handlers.Handlers, hub *ws.Hub) *mux.Router {
	r := mux.NewRouter()

	// Global middleware.
	r.Use(corsMiddleware)
	r.Use(loggingMiddleware)

	// Health check.
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// WebSocket endpoint; origin policy is enforced by the hub's upgrader.
	r.HandleFunc("/ws", hub.ServeWS).Methods("GET")

	// REST facade.
	// OPTIONS is matched so preflight requests reach the CORS middleware.
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/meetings", h.CreateMeeting).Methods("POST", "OPTIONS")
	api.HandleFunc("/meetings/{id}", h.GetMeeting).Methods("GET", "OPTIONS")
	api.HandleFunc("/meetings/{id}/privacy", h.UpdatePrivacy).Methods("PATCH", "OPTIONS")
	api.HandleFunc("/meetings/{id}/participants/{participantId}/attendance", h.UpdateAttendance).Methods("PATCH", "OPTIONS")

	return r
}

// NewHTTPServer wraps the router in an http.Server. There is no write
// timeout because WebSocket connections are long-lived.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// corsMiddleware adds permissive CORS headers for development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each incoming request with method, path, status, and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker so WebSocket upgrades work through the logging middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
	}
	return h.Hijack()
}
