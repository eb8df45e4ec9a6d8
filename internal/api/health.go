package api

import (
	"context"
	"net/http"
	"time"

	"github.com/kjannette/trahn-analytics/internal/cache"
)

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Services  healthServices `json:"services"`
}

type healthServices struct {
	Database string      `json:"database"`
	Cache    cache.Stats `json:"cache"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, dbStatus := "ok", "connected"
	if err := s.db.Ping(ctx); err != nil {
		s.log.Warn("[API] health check: database unreachable", "error", err)
		status, dbStatus = "degraded", "disconnected"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services: healthServices{
			Database: dbStatus,
			Cache:    s.orch.CacheStats(),
		},
	})
}
