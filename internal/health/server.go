// Package health exposes liveness and readiness endpoints.
package health

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Pinger checks reachability of the relational store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnChecker checks the queue connection.
type ConnChecker interface {
	IsConnected() bool
}

// NewRouter builds the ops router. /healthz answers as long as the process
// is up; /readyz requires both backing stores.
func NewRouter(db Pinger, queue ConnChecker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if err := db.Ping(req.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		if !queue.IsConnected() {
			http.Error(w, "queue unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	return r
}
