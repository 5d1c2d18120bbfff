// internal/handlers/server.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pvprelay/internal/lobby"
	"github.com/jason-s-yu/pvprelay/internal/middleware"
	"github.com/jason-s-yu/pvprelay/internal/relay"
)

// ServerConfig holds what the HTTP surface needs.
type ServerConfig struct {
	Logger     *logrus.Logger
	Registry   *lobby.Registry
	Router     *relay.Router
	OutboxSize int
}

// NewServer builds the HTTP handler: the websocket relay plus health and
// lobby listing endpoints.
func NewServer(cfg ServerConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.LogMiddleware(cfg.Logger))

	r.HandleFunc("/ws", RelayWSHandler(cfg.Logger, cfg.Router, cfg.OutboxSize)).Methods(http.MethodGet)
	r.HandleFunc("/healthz", HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/lobbies", ListLobbiesHandler(cfg.Registry)).Methods(http.MethodGet)

	return r
}

// HealthHandler reports liveness.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// ListLobbiesHandler returns every active lobby as JSON.
func ListLobbiesHandler(registry *lobby.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lobbies := registry.List()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(lobbies)
	}
}
