package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/kjannette/trahn-analytics/internal/aggregation"
	"github.com/kjannette/trahn-analytics/internal/analytics"
	"github.com/kjannette/trahn-analytics/internal/logging"
	"github.com/kjannette/trahn-analytics/internal/models"
)

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	assetType, ok := s.assetTypeParam(w, r)
	if !ok {
		return
	}
	out, err := s.orch.TryVolumeStats(r.Context(), aggregation.VolumeQuery{
		Period:    r.URL.Query().Get("period"),
		Symbols:   parseSymbols(r),
		AssetType: assetType,
		Limit:     parseLimit(r),
		Offset:    parseOffset(r),
	})
	s.respond(w, r, "volume_stats", out, err, []models.VolumeStats{})
}

func (s *Server) handleVolumeWindow(w http.ResponseWriter, r *http.Request) {
	assetType, ok := s.assetTypeParam(w, r)
	if !ok {
		return
	}
	out, err := s.orch.TryVolumeStatsForWindow(r.Context(), r.PathValue("window"), parseSymbols(r), assetType)
	s.respond(w, r, "volume_stats", out, err, []models.VolumeStats{})
}

// handleTrends requires symbols. Without start and end the named window
// (default "week") supplies the range and the default period.
func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	symbols := parseSymbols(r)
	if len(symbols) == 0 {
		writeError(w, http.StatusBadRequest, "symbols is required")
		return
	}
	start, end, period, ok := s.rangeParams(w, r)
	if !ok {
		return
	}
	out, err := s.orch.TryPriceTrends(r.Context(), aggregation.PriceTrendQuery{
		Symbols: symbols,
		Start:   start,
		End:     end,
		Period:  period,
		Limit:   parseLimit(r),
		Offset:  parseOffset(r),
	})
	s.respond(w, r, "price_trends", out, err, []models.PriceTrends{})
}

func (s *Server) handleVolatility(w http.ResponseWriter, r *http.Request) {
	assetType, ok := s.assetTypeParam(w, r)
	if !ok {
		return
	}
	out, err := s.orch.TryVolatilityMetrics(r.Context(), aggregation.VolatilityQuery{
		AssetType: assetType,
		Period:    r.URL.Query().Get("period"),
		Limit:     parseLimit(r),
		Offset:    parseOffset(r),
	})
	s.respond(w, r, "volatility_metrics", out, err, []models.VolatilityMetrics{})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	start, end, period, ok := s.rangeParams(w, r)
	if !ok {
		return
	}
	res, err := s.orch.TryCompareSymbols(r.Context(), aggregation.CompareQuery{
		Symbols: parseSymbols(r),
		Start:   start,
		End:     end,
		Period:  period,
	})
	switch {
	case errors.Is(err, analytics.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.degraded(r, "compare_symbols", err)
		writeError(w, http.StatusNotFound, "no comparison available")
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	assetType, ok := s.assetTypeParam(w, r)
	if !ok {
		return
	}
	out, err := s.orch.TrySymbols(r.Context(), assetType)
	s.respond(w, r, "symbols", out, err, []models.Symbol{})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.CacheStats())
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.orch.InvalidateCache()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// --- helpers ---

// respond maps an orchestrator result onto HTTP. Invalid requests are 400.
// Store failures are recorded and degrade to empty with 200.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, op string, out any, err error, empty any) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, out)
	case errors.Is(err, analytics.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.degraded(r, op, err)
		writeJSON(w, http.StatusOK, empty)
	}
}

func (s *Server) degraded(r *http.Request, op string, err error) {
	logging.FromContext(r.Context(), s.log).Warn("[API] degraded response", "operation", op, "error", err)
	s.orch.RecordFailure(op, err)
}

func (s *Server) assetTypeParam(w http.ResponseWriter, r *http.Request) (models.AssetType, bool) {
	raw := r.URL.Query().Get("assetType")
	if raw == "" {
		return "", true
	}
	at, ok := models.ParseAssetType(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, "assetType must be one of stock, forex, crypto")
		return "", false
	}
	return at, true
}

// rangeParams reads start/end/period, falling back to the named window for
// whatever is missing. Both bounds must be given together.
func (s *Server) rangeParams(w http.ResponseWriter, r *http.Request) (start, end time.Time, period string, ok bool) {
	q := r.URL.Query()
	win := s.orch.Window(q.Get("window"))
	start, end, period = win.Start, win.End, q.Get("period")
	if period == "" {
		period = win.Period.Label
	}

	rawStart, rawEnd := q.Get("start"), q.Get("end")
	if rawStart == "" && rawEnd == "" {
		return start, end, period, true
	}
	if rawStart == "" || rawEnd == "" {
		writeError(w, http.StatusBadRequest, "start and end must be given together")
		return time.Time{}, time.Time{}, "", false
	}

	var err error
	if start, err = parseTime(rawStart); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return time.Time{}, time.Time{}, "", false
	}
	if end, err = parseTime(rawEnd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return time.Time{}, time.Time{}, "", false
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end is before start")
		return time.Time{}, time.Time{}, "", false
	}
	return start, end, period, true
}
