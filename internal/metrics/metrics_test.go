package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fleveque/image-service/internal/model"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveOperation("resize", model.FormatJPEG, nil)
	m.ObserveOperation("resize", model.FormatJPEG, nil)
	m.ObserveOperation("compress", model.FormatPNG, errors.New("boom"))
	m.IncRateLimitRejected()

	if got := testutil.ToFloat64(m.operationsTotal.WithLabelValues("resize", "jpeg", "ok")); got != 2 {
		t.Errorf("expected 2 ok resizes, got %v", got)
	}
	if got := testutil.ToFloat64(m.operationsTotal.WithLabelValues("compress", "png", "error")); got != 1 {
		t.Errorf("expected 1 failed compress, got %v", got)
	}
	if got := testutil.ToFloat64(m.rateLimitRejected); got != 1 {
		t.Errorf("expected 1 rejection, got %v", got)
	}
}

// Each Metrics owns its registry, so two instances never collide.
func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveRequest("GET", "/api/health", 200, time.Millisecond)

	if got := testutil.ToFloat64(b.requestTotal.WithLabelValues("GET", "/api/health", "200")); got != 0 {
		t.Errorf("expected second registry untouched, got %v", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveCodecStep("native", "encode", 5*time.Millisecond, nil)
	m.ObserveUpload(2048)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	for _, want := range []string{"image_service_codec_duration_seconds", "image_service_upload_bytes", "go_goroutines"} {
		if !strings.Contains(w.Body.String(), want) {
			t.Errorf("expected exposition to contain %q", want)
		}
	}
}
