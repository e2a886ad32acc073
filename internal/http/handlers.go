package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"finpulse/internal/analytics"
	"finpulse/internal/core"
	"finpulse/internal/log"
	"finpulse/internal/middleware/trace"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	_ = NewResponse().JSON(map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}).Write(w)
}

type checkResult struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// handleReadyz runs every dependency check concurrently and answers 503 if
// any of them fails.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.checkTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make([]checkResult, 0, len(s.checks))
	)
	for name, check := range s.checks {
		wg.Add(1)
		go func(name string, check Check) {
			defer wg.Done()
			res := checkResult{Name: name, OK: true}
			if err := check(ctx); err != nil {
				res.OK = false
				res.Error = err.Error()
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	status, code := "ready", http.StatusOK
	for _, res := range results {
		if !res.OK {
			status, code = "not_ready", http.StatusServiceUnavailable
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed",
				"check", res.Name, log.FieldError, res.Error)
		}
	}
	_ = NewResponse().Status(code).JSON(map[string]any{"status": status, "checks": results}).Write(w)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	serveAnalytics(w, r, log.OpAnalyze, s.engine.GenerateUserAnalytics, bundleCached)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	serveAnalytics(w, r, log.OpRefresh, s.engine.RefreshAnalytics, bundleCached)
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	serveAnalytics(w, r, "patterns", s.engine.DetectSpendingPatterns, nil)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	serveAnalytics(w, r, "health", s.engine.CalculateFinancialHealth, nil)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	serveAnalytics(w, r, "insights", s.engine.GenerateInsights, nil)
}

func (s *Server) handleForecasts(w http.ResponseWriter, r *http.Request) {
	serveAnalytics(w, r, "forecasts", s.engine.GenerateForecasts, nil)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	serveAnalytics(w, r, "recommendations", func(ctx context.Context, userID int64, period core.Period) (recommendationsBody, error) {
		recs, err := s.engine.GenerateRecommendations(ctx, userID, period)
		if recs == nil {
			recs = []analytics.Recommendation{}
		}
		return recommendationsBody{UserID: userID, Period: period, Recommendations: recs}, err
	}, nil)
}

type recommendationsBody struct {
	UserID          int64                      `json:"user_id"`
	Period          core.Period                `json:"period"`
	Recommendations []analytics.Recommendation `json:"recommendations"`
}

func bundleCached(b analytics.Bundle) bool { return b.Cached }

// serveAnalytics parses the request, runs fn and writes its result as JSON.
// cached reports whether the result came from the cache, for logging.
func serveAnalytics[T any](w http.ResponseWriter, r *http.Request, op string,
	fn func(context.Context, int64, core.Period) (T, error), cached func(T) bool) {
	ctx := r.Context()
	requestID := trace.GetRequestID(ctx)

	params, err := ParseAnalyticsParams(r)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	start := time.Now()
	result, err := fn(ctx, params.UserID, params.Period)
	var warnings []string
	switch {
	case err == nil:
	case analytics.IsPersistenceOnly(err):
		log.FromContext(ctx).WarnContext(ctx, "Analytics result computed but not saved",
			log.FieldOperation, op, log.FieldUserID, params.UserID, log.FieldError, err)
		warnings = []string{err.Error()}
	default:
		writeAnalyticsError(w, r, op, params, err)
		return
	}

	hit := cached != nil && cached(result)
	log.NewStructuredLogger(log.FromContext(ctx)).
		LogAnalytics(ctx, op, params.UserID, string(params.Period), time.Since(start).Milliseconds(), hit)

	_ = NewResponse().JSON(withWarnings(result, warnings)).Write(w)
}

// withWarnings adds a top-level "warnings" array to the JSON object v.
// Values that do not encode to an object are returned unchanged.
func withWarnings(v any, warnings []string) any {
	if len(warnings) == 0 {
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return v
	}
	w, _ := json.Marshal(warnings)
	obj["warnings"] = w
	return obj
}

// writeAnalyticsError maps engine failures to status codes. Details stay in
// the log; the body carries a short message and the request id.
func writeAnalyticsError(w http.ResponseWriter, r *http.Request, op string, params AnalyticsParams, err error) {
	ctx := r.Context()
	status, message := statusForError(err)

	fields := log.NewFields().WithAnalytics(params.UserID, string(params.Period))
	var ce *analytics.ComputationError
	if errors.As(err, &ce) {
		fields[log.FieldStage] = string(ce.Stage)
	}
	log.NewStructuredLogger(log.FromContext(ctx)).
		LogError(ctx, "Analytics request failed", err, log.ComponentHTTP, op, fields)

	ErrorResponse(w, status, message, trace.GetRequestID(ctx))
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request cancelled before analytics completed"
	case errors.Is(err, analytics.ErrDataAccess):
		return http.StatusServiceUnavailable, "ledger data is temporarily unavailable"
	case errors.Is(err, analytics.ErrPersistence):
		return http.StatusInternalServerError, "analytics could not be saved"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
