package departments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/primaria-digitala/registru/internal/audit"
	"github.com/primaria-digitala/registru/internal/auth"
)

type memRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memRecorder) Record(ctx context.Context, entry audit.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
}

func (m *memRecorder) all() []audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audit.Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

type stubRepo struct {
	departments []Department
	nextID      int64
}

func (s *stubRepo) List(ctx context.Context, primariaID int64) ([]Department, error) {
	return s.departments, nil
}

func (s *stubRepo) Insert(ctx context.Context, primariaID int64, name string) (Department, error) {
	s.nextID++
	d := Department{ID: s.nextID, PrimariaID: primariaID, Name: name, CreatedAt: time.Now()}
	s.departments = append(s.departments, d)
	return d, nil
}

func postCreate(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/departments", strings.NewReader(body))
	actor := &auth.Actor{ID: 4, Email: "ana@primarie.ro", PrimariaID: 1}
	identity := auth.NewIdentity(actor, auth.ResolvedAccess{AccessLevel: 7}, nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	return rec
}

func TestCreateAuditsSuccess(t *testing.T) {
	auditor := &memRecorder{}
	h := NewHandler(nil, &stubRepo{}, auditor)

	rec := postCreate(h, `{"name":"Stare Civila"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	entries := auditor.all()
	if len(entries) != 1 || entries[0].Action != audit.ActionDepartmentCreate {
		t.Fatalf("audit entries = %+v, want one department-create entry", entries)
	}
}

func TestCreateAuditsFailedAttempt(t *testing.T) {
	auditor := &memRecorder{}
	h := NewHandler(nil, &stubRepo{}, auditor)

	rec := postCreate(h, `{"name":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	entries := auditor.all()
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want exactly 1 for the failed attempt", len(entries))
	}
	entry := entries[0]
	if entry.Action != audit.ActionDepartmentCreate {
		t.Fatalf("action = %s, want %s", entry.Action, audit.ActionDepartmentCreate)
	}
	if entry.Detail["motiv"] != "nume_lipsa" || entry.Detail["esuat"] != true {
		t.Fatalf("detail = %+v, want failure marker with reason", entry.Detail)
	}
	if entry.ActorID == nil || *entry.ActorID != 4 {
		t.Fatalf("actor id = %v, want 4", entry.ActorID)
	}
}
