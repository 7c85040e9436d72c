package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.IncUploads()
	m.ObserveRebuild(time.Millisecond, nil)
	m.ObserveRebuild(time.Millisecond, errors.New("boom"))

	out := scrape(t, m.Handler(func() {
		m.SetPendingFragments(3)
		m.SetDocumentFragments(5)
	}))

	for _, want := range []string{
		"media_uploads_total 1",
		"media_rebuilds_total 1",
		"media_rebuild_failures_total 1",
		"media_rebuild_duration_seconds_count 2",
		"media_pending_fragments 3",
		"media_document_fragments 5",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte("ok"))
	}))

	for _, p := range []string{"/ok", "/bad", "/ok"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	out := scrape(t, m.Handler(nil))
	if !strings.Contains(out, "media_requests_total 3") {
		t.Errorf("expected 3 requests: %s", out)
	}
	if !strings.Contains(out, "media_errors_total 1") {
		t.Errorf("expected 1 error: %s", out)
	}
}
