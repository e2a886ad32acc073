package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finpulse/internal/analytics"
	"finpulse/internal/core"
	"finpulse/internal/log"
	"finpulse/internal/middleware/ratelimit"
	"finpulse/internal/middleware/trace"
)

type fakeEngine struct {
	err       error
	calls     []string
	gotUser   int64
	gotPeriod core.Period
}

func (f *fakeEngine) record(op string, userID int64, period core.Period) {
	f.calls = append(f.calls, op)
	f.gotUser = userID
	f.gotPeriod = period
}

func (f *fakeEngine) GenerateUserAnalytics(_ context.Context, userID int64, period core.Period) (analytics.Bundle, error) {
	f.record("analytics", userID, period)
	return analytics.Bundle{UserID: userID, Period: period, Cached: true}, f.err
}

func (f *fakeEngine) RefreshAnalytics(_ context.Context, userID int64, period core.Period) (analytics.Bundle, error) {
	f.record("refresh", userID, period)
	return analytics.Bundle{UserID: userID, Period: period}, f.err
}

func (f *fakeEngine) DetectSpendingPatterns(_ context.Context, userID int64, period core.Period) (analytics.DetectedPatterns, error) {
	f.record("patterns", userID, period)
	return analytics.DetectedPatterns{}, f.err
}

func (f *fakeEngine) CalculateFinancialHealth(_ context.Context, userID int64, period core.Period) (core.HealthScore, error) {
	f.record("health", userID, period)
	return core.HealthScore{UserID: userID, Overall: 72.5}, f.err
}

func (f *fakeEngine) GenerateInsights(_ context.Context, userID int64, period core.Period) (analytics.InsightBundle, error) {
	f.record("insights", userID, period)
	return analytics.InsightBundle{}, f.err
}

func (f *fakeEngine) GenerateForecasts(_ context.Context, userID int64, period core.Period) (analytics.ForecastBundle, error) {
	f.record("forecasts", userID, period)
	return analytics.ForecastBundle{}, f.err
}

func (f *fakeEngine) GenerateRecommendations(_ context.Context, userID int64, period core.Period) ([]analytics.Recommendation, error) {
	f.record("recommendations", userID, period)
	return nil, f.err
}

func newTestServer(engine Analytics, opts Options) *Server {
	opts.Logger = log.Discard()
	return NewServer(":0", engine, opts)
}

func do(s *Server, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func TestAnalyticsRoutes(t *testing.T) {
	tests := []struct {
		path string
		op   string
	}{
		{"/api/analytics", "analytics"},
		{"/api/analytics/patterns", "patterns"},
		{"/api/analytics/health", "health"},
		{"/api/analytics/insights", "insights"},
		{"/api/analytics/forecasts", "forecasts"},
		{"/api/analytics/recommendations", "recommendations"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			engine := &fakeEngine{}
			s := newTestServer(engine, Options{})

			rec := do(s, http.MethodGet, tt.path+"?period=quarterly", map[string]string{HeaderUserID: "42"})
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if len(engine.calls) != 1 || engine.calls[0] != tt.op {
				t.Fatalf("calls = %v, want [%s]", engine.calls, tt.op)
			}
			if engine.gotUser != 42 || engine.gotPeriod != core.PeriodQuarterly {
				t.Errorf("engine got user %d period %s", engine.gotUser, engine.gotPeriod)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
				t.Errorf("Content-Type = %q", ct)
			}
			if !json.Valid(rec.Body.Bytes()) {
				t.Errorf("invalid json body: %s", rec.Body.String())
			}
			if rec.Header().Get(trace.HeaderRequestID) == "" {
				t.Error("missing request id header")
			}
			if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("security headers not applied")
			}
		})
	}
}

func TestUserAndPeriodParsing(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		header     string
		wantStatus int
		wantUser   int64
		wantPeriod core.Period
	}{
		{"header user, default period", "/api/analytics", "7", http.StatusOK, 7, core.PeriodMonthly},
		{"query user", "/api/analytics?user_id=9&period=weekly", "", http.StatusOK, 9, core.PeriodWeekly},
		{"header wins over query", "/api/analytics?user_id=9", "3", http.StatusOK, 3, core.PeriodMonthly},
		{"unknown period falls back", "/api/analytics?period=fortnightly", "7", http.StatusOK, 7, core.PeriodMonthly},
		{"missing user", "/api/analytics", "", http.StatusBadRequest, 0, ""},
		{"zero user", "/api/analytics?user_id=0", "", http.StatusBadRequest, 0, ""},
		{"non numeric user", "/api/analytics", "abc", http.StatusBadRequest, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{}
			s := newTestServer(engine, Options{})
			headers := map[string]string{}
			if tt.header != "" {
				headers[HeaderUserID] = tt.header
			}
			rec := do(s, http.MethodGet, tt.target, headers)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				if len(engine.calls) != 0 {
					t.Errorf("engine called on bad request")
				}
				var body ErrorBody
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Error == "" {
					t.Errorf("error body = %s", rec.Body.String())
				}
				return
			}
			if engine.gotUser != tt.wantUser || engine.gotPeriod != tt.wantPeriod {
				t.Errorf("got user %d period %s, want %d %s", engine.gotUser, engine.gotPeriod, tt.wantUser, tt.wantPeriod)
			}
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"data access", &analytics.ComputationError{UserID: 1, Stage: analytics.StageLoadTransactions, Kind: analytics.KindDataAccess, Err: errors.New("db down")}, http.StatusServiceUnavailable},
		{"persistence", fmt.Errorf("save: %w", analytics.ErrPersistence), http.StatusInternalServerError},
		{"cancelled", fmt.Errorf("load: %w", context.Canceled), http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeEngine{err: tt.err}, Options{})
			rec := do(s, http.MethodGet, "/api/analytics/health", map[string]string{HeaderUserID: "1"})
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			var body ErrorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.RequestID == "" || body.RequestID != rec.Header().Get(trace.HeaderRequestID) {
				t.Errorf("request id %q not echoed", body.RequestID)
			}
		})
	}
}

func TestPersistenceFailureReturnsResultWithWarning(t *testing.T) {
	saveErr := &analytics.ComputationError{UserID: 1, Period: core.PeriodMonthly, Stage: analytics.StageSaveHealthScore, Kind: analytics.KindPersistence, Err: errors.New("disk full")}
	s := newTestServer(&fakeEngine{err: saveErr}, Options{})

	rec := do(s, http.MethodGet, "/api/analytics/health", map[string]string{HeaderUserID: "1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Overall  float64  `json:"overall_score"`
		Warnings []string `json:"warnings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	if body.Overall != 72.5 {
		t.Errorf("overall = %v, want the computed score", body.Overall)
	}
	if len(body.Warnings) != 1 || !strings.Contains(body.Warnings[0], "disk full") {
		t.Errorf("warnings = %v", body.Warnings)
	}

	rec = do(s, http.MethodGet, "/api/analytics/recommendations", map[string]string{HeaderUserID: "1"})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"warnings"`) {
		t.Errorf("recommendations = %d %s", rec.Code, rec.Body.String())
	}
}

func TestRefresh(t *testing.T) {
	engine := &fakeEngine{}
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerWindow: 1, Window: time.Minute})
	s := newTestServer(engine, Options{RefreshLimiter: limiter, RefreshWindow: time.Minute})
	defer s.Shutdown(context.Background())

	if rec := do(s, http.MethodGet, "/api/analytics/refresh", map[string]string{HeaderUserID: "5"}); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET refresh = %d, want 405", rec.Code)
	}

	rec := do(s, http.MethodPost, "/api/analytics/refresh?period=yearly", map[string]string{HeaderUserID: "5"})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh = %d", rec.Code)
	}
	if engine.calls[len(engine.calls)-1] != "refresh" || engine.gotPeriod != core.PeriodYearly {
		t.Errorf("calls = %v period %s", engine.calls, engine.gotPeriod)
	}

	rec = do(s, http.MethodPost, "/api/analytics/refresh", map[string]string{HeaderUserID: "5"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second refresh = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}

	if rec := do(s, http.MethodPost, "/api/analytics/refresh", map[string]string{HeaderUserID: "6"}); rec.Code != http.StatusOK {
		t.Errorf("other user refresh = %d", rec.Code)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	t.Run("healthz", func(t *testing.T) {
		s := newTestServer(&fakeEngine{}, Options{})
		rec := do(s, http.MethodGet, "/healthz", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("healthz = %d", rec.Code)
		}
	})

	t.Run("ready", func(t *testing.T) {
		s := newTestServer(&fakeEngine{}, Options{Checks: map[string]Check{
			"store": func(context.Context) error { return nil },
			"cache": func(context.Context) error { return nil },
		}})
		rec := do(s, http.MethodGet, "/readyz", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("readyz = %d", rec.Code)
		}
	})

	t.Run("not ready", func(t *testing.T) {
		s := newTestServer(&fakeEngine{}, Options{Checks: map[string]Check{
			"store": func(context.Context) error { return nil },
			"cache": func(context.Context) error { return errors.New("connection refused") },
		}})
		rec := do(s, http.MethodGet, "/readyz", nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("readyz = %d", rec.Code)
		}
		var body struct {
			Status string        `json:"status"`
			Checks []checkResult `json:"checks"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Status != "not_ready" || len(body.Checks) != 2 || body.Checks[0].Name != "cache" || body.Checks[0].OK {
			t.Errorf("body = %+v", body)
		}
	})
}

func TestResponseBuilder(t *testing.T) {
	rec := httptest.NewRecorder()
	err := NewResponse().Status(http.StatusCreated).Header("X-Test", "1").JSON(map[string]int{"n": 1}).Write(rec)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusCreated || rec.Header().Get("X-Test") != "1" || rec.Body.String() != "{\"n\":1}\n" {
		t.Errorf("got %d %q %q", rec.Code, rec.Header().Get("X-Test"), rec.Body.String())
	}

	rec = httptest.NewRecorder()
	if err := NewResponse().JSON(make(chan int)).Write(rec); err == nil {
		t.Error("expected encode error")
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("unencodable body status = %d", rec.Code)
	}
}
