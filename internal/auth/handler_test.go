package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func newTestHandler(t *testing.T, repo *stubRepo) (*Handler, *memRecorder, *TokenCodec) {
	t.Helper()
	codec, err := NewTokenCodec(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	rec := &memRecorder{}
	svc := NewService(repo, codec, rec, nil, time.Second)
	return NewHandler(nil, svc, codec, rec, nil, false), rec, codec
}

func mountAuth(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/auth", h.MountRoutes)
	return r
}

func postLogin(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func problemDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var problem struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &problem); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	return problem.Detail
}

func TestLoginResponseIdenticalForUnknownAndWrongPassword(t *testing.T) {
	unknownHandler, _, _ := newTestHandler(t, &stubRepo{findErr: ErrUnknownActor})
	unknown := postLogin(t, mountAuth(unknownHandler), `{"email":"nimeni@primarie.ro","password":"parola"}`)

	wrongHandler, _, _ := newTestHandler(t, &stubRepo{actor: &Actor{
		ID:           4,
		Email:        "ana@primarie.ro",
		PasswordHash: hashPassword(t, "parola"),
		IsActive:     true,
	}})
	wrong := postLogin(t, mountAuth(wrongHandler), `{"email":"ana@primarie.ro","password":"gresita"}`)

	if unknown.Code != http.StatusUnauthorized || wrong.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d/%d, want 401/401", unknown.Code, wrong.Code)
	}
	if unknown.Body.String() != wrong.Body.String() {
		t.Fatalf("bodies differ:\n%s\n%s", unknown.Body.String(), wrong.Body.String())
	}
}

func TestLoginDisabledAccountMessageIsDistinct(t *testing.T) {
	handler, _, _ := newTestHandler(t, &stubRepo{actor: &Actor{
		ID:           4,
		Email:        "ana@primarie.ro",
		PasswordHash: hashPassword(t, "parola"),
		IsActive:     false,
	}})
	rec := postLogin(t, mountAuth(handler), `{"email":"ana@primarie.ro","password":"parola"}`)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if detail := problemDetail(t, rec); detail != msgAccountDisabled {
		t.Fatalf("detail = %q, want %q", detail, msgAccountDisabled)
	}
}

func TestMissingCredentialsMapsToUnauthorized(t *testing.T) {
	handler, _, _ := newTestHandler(t, &stubRepo{})

	// Whitespace-only credentials pass request validation but fail in
	// the service; the result is still an authentication error, not a
	// malformed request.
	rec := httptest.NewRecorder()
	handler.respondLoginError(rec, ErrMissingCredentials)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLoginSuccessSetsCookie(t *testing.T) {
	handler, auditRec, _ := newTestHandler(t, &stubRepo{
		actor: &Actor{
			ID:           4,
			Email:        "ana@primarie.ro",
			Name:         "Ana Pop",
			PrimariaID:   1,
			PasswordHash: hashPassword(t, "parola"),
			IsActive:     true,
		},
		assignments: []Assignment{{
			Role:        Role{ID: 2, Name: "functionar", AccessLevel: 3, IsActive: true},
			Active:      true,
			Permissions: []string{"registre_vizualizare"},
		}},
	})
	rec := postLogin(t, mountAuth(handler), `{"email":"ana@primarie.ro","password":"parola"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			found = c
		}
	}
	if found == nil || found.Value == "" {
		t.Fatal("auth cookie not set")
	}
	if !found.HttpOnly {
		t.Fatal("auth cookie must be http-only")
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Actor.Email != "ana@primarie.ro" || len(resp.Permissions) != 1 {
		t.Fatalf("response = %+v", resp)
	}

	entries := auditRec.all()
	if len(entries) != 1 || entries[0].Action != "autentificare" {
		t.Fatalf("audit entries = %+v", entries)
	}
}

func TestLoginValidationFailureAuditsOnce(t *testing.T) {
	handler, auditRec, _ := newTestHandler(t, &stubRepo{})
	rec := postLogin(t, mountAuth(handler), `{"email":"","password":""}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	entries := auditRec.all()
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want exactly 1", len(entries))
	}
}

func TestLogoutWithInvalidTokenStillClearsCookie(t *testing.T) {
	handler, auditRec, _ := newTestHandler(t, &stubRepo{})
	router := mountAuth(handler)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("cookie not cleared")
	}
	entries := auditRec.all()
	if len(entries) != 1 || entries[0].Action != "delogare_token_invalid" {
		t.Fatalf("audit entries = %+v", entries)
	}
}

func TestSessionEndpoint(t *testing.T) {
	handler, _, codec := newTestHandler(t, &stubRepo{})
	router := mountAuth(handler)

	// Anonymous: 200 with authenticated=false, never an error status.
	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var anon sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &anon); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if anon.Authenticated {
		t.Fatal("anonymous session reported as authenticated")
	}

	// With a valid token: identity echoed back.
	req = httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: issueTestToken(t, codec)})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var authed sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &authed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !authed.Authenticated || authed.Actor == nil || authed.Actor.ID != 7 {
		t.Fatalf("session = %+v", authed)
	}
}
