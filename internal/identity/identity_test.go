package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serve(req *http.Request) (*httptest.ResponseRecorder, string) {
	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = OperatorFromContext(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestMiddlewareDefaultsToFounder(t *testing.T) {
	rec, op := serve(httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || op != "founder" {
		t.Fatalf("code=%d operator=%q", rec.Code, op)
	}
}

func TestMiddlewareHeaderAndQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?operator=team_member_query", nil)
	req.Header.Set(OperatorHeaderName, "team_member_ada")
	if _, op := serve(req); op != "team_member_ada" {
		t.Errorf("header should win, got %q", op)
	}

	req = httptest.NewRequest(http.MethodGet, "/?operator=team_member_query", nil)
	if _, op := serve(req); op != "team_member_query" {
		t.Errorf("query fallback, got %q", op)
	}
}

func TestMiddlewareRejectsMalformedOperator(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(OperatorHeaderName, "team_member_")
	rec, _ := serve(req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIPFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	if got := IPFromRequest(req); got != "10.1.2.3" {
		t.Errorf("ip = %q", got)
	}
	req.RemoteAddr = "unix"
	if got := IPFromRequest(req); got != "unix" {
		t.Errorf("ip = %q", got)
	}
}
