package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSPAHandlerFallsBackToIndex(t *testing.T) {
	h := SPAHandler()

	for _, path := range []string{"/", "/sessions/RPR-2025-001-SESSION"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), "RPR-KONTROL") {
			t.Errorf("GET %s: expected index.html body", path)
		}
	}
}

func TestSPAHandlerServerPathsAreNotRewritten(t *testing.T) {
	h := SPAHandler()

	for _, path := range []string{"/api/unknown", "/ws/other"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("GET %s: expected 404, got %d", path, w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("GET %s: content-type = %q", path, ct)
		}
	}
}
