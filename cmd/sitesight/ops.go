// cmd/sitesight/ops.go
package main

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"sitesight/internal/common/database"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// newOpsRouter serves liveness, readiness and Prometheus metrics.
func newOpsRouter(checks database.Checks, metricsHandler http.Handler, accessLog io.Writer) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	}).Methods(http.MethodGet)

	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		status, ok := checks.Run(r.Context(), 2*time.Second)
		code, state := http.StatusOK, "ready"
		if !ok {
			code, state = http.StatusServiceUnavailable, "not ready"
		}
		writeJSON(w, code, map[string]interface{}{
			"status": state,
			"checks": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	}).Methods(http.MethodGet)

	r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)

	return handlers.RecoveryHandler()(handlers.LoggingHandler(accessLog, r))
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
