package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareRecordsStatusAndRoute(t *testing.T) {
	Init()

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/news/{ticker}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	ts := httptest.NewServer(r)
	defer ts.Close()

	for _, path := range []string{"/v1/news/TSLA", "/missing"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
	}

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200")); got < 1 {
		t.Errorf("requests with code 200 = %f, want >= 1", got)
	}
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "404")); got < 1 {
		t.Errorf("requests with code 404 = %f, want >= 1", got)
	}

	// The duration histogram is labeled by the chi route pattern, not the
	// concrete URL.
	if got := testutil.CollectAndCount(httpRequestDurationSeconds); got < 2 {
		t.Errorf("duration series = %d, want >= 2", got)
	}
}
