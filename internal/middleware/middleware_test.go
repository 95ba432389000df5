package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"salesdash/internal/observability"
)

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	m := observability.NewMetrics()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/kpis", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {})

	handler := Metrics(m)(mux)

	paths := []string{
		"/api/kpis",
		"/some/random/path",
		"/another/one",
		"/yet/another/unregistered/url",
	}
	for _, path := range paths {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	}

	// The three unregistered paths all collapse into the catch-all pattern,
	// so only two series exist however many URLs are requested.
	if got := testutil.CollectAndCount(m.RequestsTotal); got != 2 {
		t.Errorf("requests_total series = %d, want 2", got)
	}
	if got := testutil.CollectAndCount(m.RequestDuration); got != 2 {
		t.Errorf("request_duration series = %d, want 2", got)
	}
}
