package api

import (
	"net/http"
	"time"

	"github.com/mmrzaf/tablefill/internal/logging"
)

func NewRouter(h *Handler, logger *logging.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/schemas", h.ListSchemas)

	mux.HandleFunc("GET /api/v1/targets", h.ListTargets)
	mux.HandleFunc("POST /api/v1/targets", h.CreateTarget)
	mux.HandleFunc("GET /api/v1/targets/{id}", h.GetTarget)
	mux.HandleFunc("PUT /api/v1/targets/{id}", h.UpdateTarget)
	mux.HandleFunc("DELETE /api/v1/targets/{id}", h.DeleteTarget)
	mux.HandleFunc("POST /api/v1/targets/{id}/test", h.TestTarget)
	mux.HandleFunc("GET /api/v1/targets/{id}/checks", h.ListTargetChecks)

	mux.HandleFunc("POST /api/v1/tables/inspect", h.InspectTable)
	mux.HandleFunc("POST /api/v1/tables/preview", h.Preview)

	mux.HandleFunc("POST /api/v1/runs", h.Populate)
	mux.HandleFunc("GET /api/v1/runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.GetRun)

	return loggingMiddleware(logging.OrDiscard(logger).WithComponent("http"), mux)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		fields := map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      sw.status,
			"duration_ms": time.Since(started).Milliseconds(),
			"remote":      r.RemoteAddr,
		}
		if sw.status >= 500 {
			logger.Errorw("request.completed", fields)
			return
		}
		if sw.status >= 400 {
			logger.Warnw("request.completed", fields)
			return
		}
		logger.Infow("request.completed", fields)
	})
}
