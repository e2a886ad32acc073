package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"finpulse/internal/core"
)

// HeaderUserID carries the caller's user id.
const HeaderUserID = "X-User-ID"

var (
	ErrMissingUser = errors.New("user id is required")
	ErrInvalidUser = errors.New("user id must be a positive integer")
)

// AnalyticsParams holds the parsed target of an analytics request.
type AnalyticsParams struct {
	UserID int64
	Period core.Period
}

// ParseUserID reads the user from the X-User-ID header, falling back to the
// user_id query parameter.
func ParseUserID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("user_id"))
	}
	if raw == "" {
		return 0, ErrMissingUser
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidUser
	}
	return id, nil
}

// ParseAnalyticsParams extracts user and period. An unknown or missing
// period falls back to monthly.
func ParseAnalyticsParams(r *http.Request) (AnalyticsParams, error) {
	userID, err := ParseUserID(r)
	if err != nil {
		return AnalyticsParams{}, err
	}
	return AnalyticsParams{
		UserID: userID,
		Period: core.ParsePeriod(strings.TrimSpace(r.URL.Query().Get("period"))),
	}, nil
}

// userKey is the rate limit key for per-user limits. Requests without a
// valid user are left to the handler to reject.
func userKey(r *http.Request) string {
	id, err := ParseUserID(r)
	if err != nil {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
