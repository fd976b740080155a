package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const testKey = "xK8nP2mQ9rT5vW7yB3cF6hJ0lN4sU1wZ"

func TestNewSessionManager(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		secure  bool
		wantErr bool
	}{
		{"strong key in prod", testKey, true, false},
		{"strong key in dev", testKey, false, false},
		{"empty key", "", false, true},
		{"short key allowed in dev", "short", false, false},
		{"short key refused in prod", "short", true, true},
		{"placeholder refused in prod", "dev-only-change-me-please-0123456789ABCDEF", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm, err := NewSessionManager(tt.key, "", "", time.Hour, tt.secure, zap.NewNop())
			if tt.wantErr {
				var cfgErr *SessionConfigError
				if !errors.As(err, &cfgErr) {
					t.Errorf("error = %v, want *SessionConfigError", err)
				}
				return
			}
			if err != nil || sm == nil {
				t.Fatalf("NewSessionManager() = %v, %v", sm, err)
			}
			if sm.name != DefaultSessionName {
				t.Errorf("name = %q, want default", sm.name)
			}
		})
	}
}

func TestIsDefaultKey(t *testing.T) {
	for _, key := range []string{"dev-only-key", "CHANGE-ME", "my-placeholder", "example.com-key", "password1"} {
		if !isDefaultKey(key) {
			t.Errorf("isDefaultKey(%q) = false, want true", key)
		}
	}
	for _, key := range []string{testKey, "secure-random-key-that-is-long-enough"} {
		if isDefaultKey(key) {
			t.Errorf("isDefaultKey(%q) = true, want false", key)
		}
	}
}

func TestCurrentUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if u, ok := CurrentUser(req); ok || u != nil {
		t.Errorf("CurrentUser() on anonymous request = %v, %v", u, ok)
	}

	want := &SessionUser{ID: primitive.NewObjectID().Hex(), Name: "Ada", Role: RoleAdmin}
	got, ok := CurrentUser(WithTestUser(req, want))
	if !ok || got != want {
		t.Errorf("CurrentUser() = %v, %v, want %v", got, ok, want)
	}
}

func TestRequireSignedIn(t *testing.T) {
	sm, _ := NewSessionManager(testKey, "", "", time.Hour, false, zap.NewNop())

	called := false
	protected := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/templates", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if called {
		t.Error("handler should not be called without an operator")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	req = WithTestUser(httptest.NewRequest("GET", "/templates", nil), &SessionUser{ID: primitive.NewObjectID().Hex(), Role: RoleAdmin})
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if !called || rec.Code != http.StatusOK {
		t.Errorf("signed-in request: called=%v status=%d", called, rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	sm, _ := NewSessionManager(testKey, "", "", time.Hour, false, zap.NewNop())

	protected := sm.RequireRole("Admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name string
		user *SessionUser
		want int
	}{
		{"admin", &SessionUser{ID: primitive.NewObjectID().Hex(), Role: "admin"}, http.StatusOK},
		{"admin upper case", &SessionUser{ID: primitive.NewObjectID().Hex(), Role: " ADMIN "}, http.StatusOK},
		{"wrong role", &SessionUser{ID: primitive.NewObjectID().Hex(), Role: "viewer"}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/templates", nil)
			if tt.user != nil {
				req = WithTestUser(req, tt.user)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("Status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCreateSession_LoadSessionUser(t *testing.T) {
	sm, _ := NewSessionManager(testKey, "", "", time.Hour, false, zap.NewNop())

	id := primitive.NewObjectID().Hex()
	req := httptest.NewRequest("POST", "/auth/login", nil)
	rec := httptest.NewRecorder()
	signedIn := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	if err := sm.CreateSession(rec, req, SessionUser{ID: id, Name: "Ada", Role: "Admin", SignedInAt: signedIn}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("CreateSession() set no cookie")
	}

	var got *SessionUser
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = CurrentUser(r)
	}))

	next := httptest.NewRequest("GET", "/templates", nil)
	for _, c := range cookies {
		next.AddCookie(c)
	}
	h.ServeHTTP(httptest.NewRecorder(), next)

	if got == nil {
		t.Fatal("LoadSessionUser() did not load the operator")
	}
	if got.ID != id || got.Name != "Ada" || got.Role != "admin" {
		t.Errorf("loaded operator = %+v", got)
	}
	if !got.SignedInAt.Equal(signedIn) {
		t.Errorf("SignedInAt = %v, want %v", got.SignedInAt, signedIn)
	}
}

func TestLoadSessionUser_NoCookie(t *testing.T) {
	sm, _ := NewSessionManager(testKey, "", "", time.Hour, false, zap.NewNop())

	found := true
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = CurrentUser(r)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if found {
		t.Error("LoadSessionUser() should not inject an operator without a session")
	}
}

func TestDestroySession(t *testing.T) {
	sm, _ := NewSessionManager(testKey, "", "", time.Hour, false, zap.NewNop())

	rec := httptest.NewRecorder()
	if err := sm.CreateSession(rec, httptest.NewRequest("POST", "/", nil), SessionUser{ID: primitive.NewObjectID().Hex(), Role: RoleAdmin}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	req := httptest.NewRequest("POST", "/auth/logout", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	out := httptest.NewRecorder()
	sm.DestroySession(out, req)

	cookies := out.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("DestroySession() should write an expiring cookie")
	}
	if cookies[0].MaxAge >= 0 {
		t.Errorf("cookie MaxAge = %d, want negative", cookies[0].MaxAge)
	}
}

// signIn creates a session and returns a follow-up request carrying its cookie.
func signIn(t *testing.T, sm *SessionManager, u SessionUser) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := sm.CreateSession(rec, httptest.NewRequest("POST", "/auth/login", nil), u); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	req := httptest.NewRequest("GET", "/templates", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func loadedUser(sm *SessionManager, req *http.Request) *SessionUser {
	var got *SessionUser
	sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = CurrentUser(r)
	})).ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestLoadSessionUser_CredentialEpoch(t *testing.T) {
	sm, _ := NewSessionManager(testKey, "", "", time.Hour, false, zap.NewNop())
	sm.SetCredentialEpoch(CredentialEpoch("first-admin-token"))

	req := signIn(t, sm, SessionUser{ID: primitive.NewObjectID().Hex(), Name: "Ada", Role: RoleAdmin})
	if loadedUser(sm, req) == nil {
		t.Fatal("session should load under the epoch it was created with")
	}

	sm.SetCredentialEpoch(CredentialEpoch("second-admin-token"))
	if u := loadedUser(sm, req); u != nil {
		t.Errorf("session from a rotated token should be ignored, got %+v", u)
	}

	sm.SetCredentialEpoch(CredentialEpoch("first-admin-token"))
	if loadedUser(sm, req) == nil {
		t.Error("restoring the token should accept the session again")
	}
}

func TestLoadSessionUser_SignedInAtDefaultsToNow(t *testing.T) {
	sm, _ := NewSessionManager(testKey, "", "", time.Hour, false, zap.NewNop())

	before := time.Now().Add(-time.Second)
	u := loadedUser(sm, signIn(t, sm, SessionUser{ID: primitive.NewObjectID().Hex(), Role: RoleAdmin}))
	if u == nil {
		t.Fatal("LoadSessionUser() did not load the operator")
	}
	if u.SignedInAt.Before(before.Truncate(time.Second)) || u.SignedInAt.After(time.Now().Add(time.Second)) {
		t.Errorf("SignedInAt = %v, want about now", u.SignedInAt)
	}
}

func TestCredentialEpoch(t *testing.T) {
	if CredentialEpoch("") != "" {
		t.Error("empty secret should have an empty epoch")
	}
	a, b := CredentialEpoch("token-a"), CredentialEpoch("token-b")
	if len(a) != 16 {
		t.Errorf("epoch length = %d, want 16", len(a))
	}
	if a == b {
		t.Error("different secrets should have different epochs")
	}
	if a != CredentialEpoch("token-a") {
		t.Error("epoch should be stable for a secret")
	}
}

type fakeCookieError struct {
	msg    string
	decode bool
}

func (e fakeCookieError) Error() string    { return e.msg }
func (e fakeCookieError) IsDecode() bool   { return e.decode }
func (e fakeCookieError) IsUsage() bool    { return false }
func (e fakeCookieError) IsInternal() bool { return !e.decode }
func (e fakeCookieError) Cause() error     { return nil }

func TestClassifySessionError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fakeCookieError{"securecookie: expired timestamp", true}, "expired"},
		{fakeCookieError{"securecookie: the value is not valid (mac)", true}, "mac_invalid"},
		{fakeCookieError{"hash mismatch", true}, "mac_invalid"},
		{fakeCookieError{"decrypt error", true}, "decrypt_failed"},
		{fakeCookieError{"base64 payload", true}, "decode_failed"},
		{fakeCookieError{"something odd", true}, "decode_other"},
		{fakeCookieError{"store unavailable", false}, "backend"},
		{errors.New("plain"), "backend"},
	}
	for _, tt := range tests {
		if got := classifySessionError(tt.err); got != tt.want {
			t.Errorf("classifySessionError(%q) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
