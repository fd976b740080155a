package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/dalemusser/stratanotify/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestOperator represents a signed-in operator for testing HTTP handlers.
type TestOperator struct {
	ID   string
	Name string
	Role string
}

// AdminOperator returns a TestOperator with the admin role.
func AdminOperator() TestOperator {
	return TestOperator{
		ID:   primitive.NewObjectID().Hex(),
		Name: "Test Admin",
		Role: auth.RoleAdmin,
	}
}

// WithOperator adds an operator to the request context. This bypasses the
// session middleware and injects the operator directly.
func WithOperator(r *http.Request, op TestOperator) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{
		ID:   op.ID,
		Name: op.Name,
		Role: op.Role,
	})
}

// NewJSONRequest creates a request whose body is body encoded as JSON.
// A nil body sends no body.
func NewJSONRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			panic(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewOperatorRequest creates a JSON request with op in context.
func NewOperatorRequest(method, target string, body any, op TestOperator) *http.Request {
	return WithOperator(NewJSONRequest(method, target, body), op)
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d (body %s)", r.Code, expected, strings.TrimSpace(r.Body.String()))
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	body := r.Body.String()
	if !strings.Contains(body, expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}

// DecodeJSON decodes the response body into v.
func (r *ResponseRecorder) DecodeJSON(t interface {
	Fatalf(string, ...any)
}, v any) {
	if err := json.Unmarshal(r.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON response %q: %v", r.Body.String(), err)
	}
}
