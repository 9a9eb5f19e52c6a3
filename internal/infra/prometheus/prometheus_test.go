package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wikihashtags/hashtagd/config"
)

func TestNewServerDefaultsPort(t *testing.T) {
	srv := NewServer(config.PrometheusConfig{}, nil)
	if srv.Addr != ":9090" {
		t.Fatalf("Addr = %q, want %q", srv.Addr, ":9090")
	}
}

func TestNewServerServesMetrics(t *testing.T) {
	srv := NewServer(config.PrometheusConfig{Port: 9188}, nil)
	if srv.Addr != ":9188" {
		t.Fatalf("Addr = %q, want %q", srv.Addr, ":9188")
	}

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want %d", rec.Code, http.StatusOK)
	}
}
