package apicors

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serve(mw func(http.Handler) http.Handler, method, origin string) (*httptest.ResponseRecorder, bool) {
	called := false
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, "/api/templates", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, called
}

func TestMiddleware_AnyOrigin(t *testing.T) {
	rec, called := serve(Middleware(), http.MethodGet, "https://app.example.com")
	if !called {
		t.Fatal("handler not called")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, OPTIONS" {
		t.Errorf("Allow-Methods = %q", got)
	}
}

func TestMiddleware_Preflight(t *testing.T) {
	rec, called := serve(Middleware(), http.MethodOptions, "https://app.example.com")
	if called {
		t.Error("preflight should not reach the handler")
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("Status = %d, want 204", rec.Code)
	}
}

func TestMiddleware_RestrictedOrigins(t *testing.T) {
	mw := Middleware("https://app.example.com")

	rec, _ := serve(mw, http.MethodGet, "https://app.example.com")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allowed origin echoed as %q", got)
	}
	if rec.Header().Get("Vary") != "Origin" {
		t.Error("Vary: Origin missing")
	}

	rec, called := serve(mw, http.MethodGet, "https://evil.example.com")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Allow-Origin %q", got)
	}
	if !called {
		t.Error("request without allowed origin still reaches the handler")
	}
}
