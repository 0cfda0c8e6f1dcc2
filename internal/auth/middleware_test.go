package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func issueTestToken(t *testing.T, codec *TokenCodec) string {
	t.Helper()
	token, _, err := codec.Issue(testIdentity())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func newTestAuthorizer(t *testing.T) (*Authorizer, *TokenCodec) {
	t.Helper()
	codec, err := NewTokenCodec(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	return NewAuthorizer(codec, nil, false), codec
}

func TestAuthorizerInjectsIdentity(t *testing.T) {
	authz, codec := newTestAuthorizer(t)

	var seen *Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/registers", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: issueTestToken(t, codec)})
	rec := httptest.NewRecorder()
	authz.Middleware(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if seen == nil || seen.ActorID != 7 {
		t.Fatalf("identity = %+v, want actor 7", seen)
	}
}

func TestAuthorizerAcceptsBearerFallback(t *testing.T) {
	authz, codec := newTestAuthorizer(t)

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/registers", nil)
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, codec))
	authz.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Fatal("bearer token was not accepted")
	}
}

func TestAuthorizerPrefersCookieOverBearer(t *testing.T) {
	authz, codec := newTestAuthorizer(t)

	var seen *Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/registers", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: issueTestToken(t, codec)})
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	authz.Middleware(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || seen == nil {
		t.Fatalf("cookie token should win; status = %d identity = %v", rec.Code, seen)
	}
}

func TestAuthorizerAPIPathGets401(t *testing.T) {
	authz, _ := newTestAuthorizer(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/registers", nil)
	rec := httptest.NewRecorder()
	authz.Middleware(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q, want application/json", ct)
	}
}

func TestAuthorizerPagePathRedirects(t *testing.T) {
	authz, _ := newTestAuthorizer(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})

	// Token signed with a different secret: rejected as malformed.
	otherCodec, _ := NewTokenCodec("ffffffffffffffffffffffffffffffff", time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/registre", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: issueTestToken(t, otherCodec)})
	rec := httptest.NewRecorder()
	authz.Middleware(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/auth/login" {
		t.Fatalf("location = %q, want /auth/login", loc)
	}

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("invalid session cookie was not cleared")
	}
}

func TestAuthorizerStripsIdentityHeaders(t *testing.T) {
	authz, codec := newTestAuthorizer(t)

	var headers http.Header
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/registers", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: issueTestToken(t, codec)})
	req.Header.Set("X-User-Id", "999")
	req.Header.Set("X-Primaria-Id", "999")
	req.Header.Set("X-User-Permissions", "roluri_administrare")
	authz.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)

	for _, name := range []string{"X-User-Id", "X-Primaria-Id", "X-User-Permissions"} {
		if headers.Get(name) != "" {
			t.Fatalf("header %s survived the boundary", name)
		}
	}
}

func TestAuthorizerPublicPaths(t *testing.T) {
	authz, _ := newTestAuthorizer(t)

	for _, path := range []string{"/healthz", "/metrics", "/auth/login", "/static/app.css"} {
		called := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
		req := httptest.NewRequest(http.MethodGet, path, nil)
		authz.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)
		if !called {
			t.Fatalf("public path %s was blocked", path)
		}
	}
}
