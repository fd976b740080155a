package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return body["error"]
}

func TestNotFound_Returns404(t *testing.T) {
	h := NewHandler(zap.NewNop())

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if got := decodeError(t, rec); got != "not found" {
		t.Errorf("error = %q", got)
	}
}

func TestMethodNotAllowed_Returns405(t *testing.T) {
	h := NewHandler(zap.NewNop())

	rec := httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodPatch, "/templates", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestCSRFFailure_Returns403(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	h := NewHandler(zap.New(core))

	rec := httptest.NewRecorder()
	h.CSRFFailure(rec, httptest.NewRequest(http.MethodPost, "/templates/sessions/x/save", nil))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if logs.Len() != 1 {
		t.Errorf("expected one warning, got %d", logs.Len())
	}
}

func TestErrorLogger_Log(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	errLog := NewErrorLogger(zap.New(core))

	req := httptest.NewRequest(http.MethodPost, "/templates/sessions/abc/save", nil)
	errLog.Log(req, "save failed", errors.New("boom"))

	if logs.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", logs.Len())
	}
	fields := logs.All()[0].ContextMap()
	if fields["path"] != "/templates/sessions/abc/save" || fields["method"] != http.MethodPost {
		t.Errorf("fields = %v", fields)
	}
}

func TestErrorLogger_LogWithFields(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	errLog := NewErrorLogger(zap.New(core))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	errLog.LogWithFields(req, "test error", nil, zap.String("trigger_type", "user_created"))

	if got := logs.All()[0].ContextMap()["trigger_type"]; got != "user_created" {
		t.Errorf("trigger_type field = %v", got)
	}
}
