package registers

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/primaria-digitala/registru/internal/audit"
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
	registers map[int64]Register
	entries   map[int64]RecordEntry
	files     []RecordFile
	nextReg   int64
	nextEntry int64
	nextFile  int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		registers: map[int64]Register{},
		entries:   map[int64]RecordEntry{},
		nextReg:   1,
		nextEntry: 1,
		nextFile:  1,
	}
}

func (s *stubRepo) List(ctx context.Context, primariaID int64) ([]Register, error) {
	var out []Register
	for _, r := range s.registers {
		if r.PrimariaID == primariaID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubRepo) Get(ctx context.Context, id int64) (Register, error) {
	reg, ok := s.registers[id]
	if !ok {
		return Register{}, ErrNotFound
	}
	return reg, nil
}

func (s *stubRepo) Insert(ctx context.Context, in CreateRegisterInput) (Register, error) {
	reg := Register{
		ID:           s.nextReg,
		PrimariaID:   in.PrimariaID,
		DepartmentID: in.DepartmentID,
		Name:         in.Name,
		Year:         in.Year,
		NextNumber:   1,
		IsOpen:       true,
		CreatedAt:    time.Now(),
	}
	s.registers[reg.ID] = reg
	s.nextReg++
	return reg, nil
}

func (s *stubRepo) SetOpen(ctx context.Context, id int64, open bool) (Register, error) {
	reg, ok := s.registers[id]
	if !ok {
		return Register{}, ErrNotFound
	}
	reg.IsOpen = open
	s.registers[id] = reg
	return reg, nil
}

func (s *stubRepo) CreateEntry(ctx context.Context, in CreateEntryInput) (RecordEntry, error) {
	reg, ok := s.registers[in.RegisterID]
	if !ok {
		return RecordEntry{}, ErrNotFound
	}
	if !reg.IsOpen {
		return RecordEntry{}, ErrRegisterClosed
	}
	entry := RecordEntry{
		ID:          s.nextEntry,
		RegisterID:  in.RegisterID,
		Number:      reg.NextNumber,
		Subject:     in.Subject,
		Petitioner:  in.Petitioner,
		CreatedByID: in.CreatedByID,
		CreatedAt:   time.Now(),
	}
	reg.NextNumber++
	s.registers[in.RegisterID] = reg
	s.entries[entry.ID] = entry
	s.nextEntry++
	return entry, nil
}

func (s *stubRepo) ListEntries(ctx context.Context, registerID int64, limit, offset int) ([]RecordEntry, error) {
	var out []RecordEntry
	for _, e := range s.entries {
		if e.RegisterID == registerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *stubRepo) GetEntry(ctx context.Context, id int64) (RecordEntry, error) {
	entry, ok := s.entries[id]
	if !ok {
		return RecordEntry{}, ErrNotFound
	}
	return entry, nil
}

func (s *stubRepo) InsertFile(ctx context.Context, f RecordFile) (RecordFile, error) {
	f.ID = s.nextFile
	f.CreatedAt = time.Now()
	s.files = append(s.files, f)
	s.nextFile++
	return f, nil
}

func (s *stubRepo) ListFiles(ctx context.Context, recordID int64) ([]RecordFile, error) {
	var out []RecordFile
	for _, f := range s.files {
		if f.RecordID == recordID {
			out = append(out, f)
		}
	}
	return out, nil
}

func newTestService(t *testing.T) (*Service, *stubRepo, *memRecorder) {
	t.Helper()
	repo := newStubRepo()
	rec := &memRecorder{}
	return NewService(repo, rec, nil, t.TempDir()), repo, rec
}

func TestCreateRegisterAuditsOnce(t *testing.T) {
	svc, _, rec := newTestService(t)

	reg, err := svc.Create(context.Background(), CreateRegisterInput{
		PrimariaID:   1,
		DepartmentID: 2,
		Name:         "Registru petitii",
	}, Meta{ActorID: 4})
	require.NoError(t, err)
	require.Equal(t, time.Now().Year(), reg.Year)

	entries := rec.all()
	require.Len(t, entries, 1)
	require.Equal(t, audit.ActionRegisterCreate, entries[0].Action)
}

func TestCreateEntrySequentialNumbering(t *testing.T) {
	svc, _, rec := newTestService(t)

	reg, err := svc.Create(context.Background(), CreateRegisterInput{PrimariaID: 1, DepartmentID: 2, Name: "Petitii", Year: 2026}, Meta{ActorID: 4})
	require.NoError(t, err)

	first, err := svc.CreateEntry(context.Background(), CreateEntryInput{RegisterID: reg.ID, Subject: "Cerere 1", CreatedByID: 4}, Meta{ActorID: 4})
	require.NoError(t, err)
	second, err := svc.CreateEntry(context.Background(), CreateEntryInput{RegisterID: reg.ID, Subject: "Cerere 2", CreatedByID: 4}, Meta{ActorID: 4})
	require.NoError(t, err)

	require.EqualValues(t, 1, first.Number)
	require.EqualValues(t, 2, second.Number)

	var recordEntries int
	for _, e := range rec.all() {
		if e.Action == audit.ActionRecordCreate {
			recordEntries++
			require.NotNil(t, e.Ref.RecordID)
			require.Nil(t, e.Ref.FileID)
		}
	}
	require.Equal(t, 2, recordEntries)
}

func TestCreateEntryClosedRegister(t *testing.T) {
	svc, _, _ := newTestService(t)

	reg, err := svc.Create(context.Background(), CreateRegisterInput{PrimariaID: 1, DepartmentID: 2, Name: "Petitii", Year: 2026}, Meta{ActorID: 4})
	require.NoError(t, err)
	_, err = svc.SetOpen(context.Background(), reg.ID, false, Meta{ActorID: 4})
	require.NoError(t, err)

	_, err = svc.CreateEntry(context.Background(), CreateEntryInput{RegisterID: reg.ID, Subject: "Respins"}, Meta{ActorID: 4})
	require.ErrorIs(t, err, ErrRegisterClosed)
}

func TestCreateEntryRequiresSubject(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.CreateEntry(context.Background(), CreateEntryInput{RegisterID: 1, Subject: "  "}, Meta{ActorID: 4})
	require.Error(t, err)
}

func TestAttachFileStoresAndAudits(t *testing.T) {
	svc, repo, rec := newTestService(t)

	reg, err := svc.Create(context.Background(), CreateRegisterInput{PrimariaID: 1, DepartmentID: 2, Name: "Petitii", Year: 2026}, Meta{ActorID: 4})
	require.NoError(t, err)
	entry, err := svc.CreateEntry(context.Background(), CreateEntryInput{RegisterID: reg.ID, Subject: "Cerere"}, Meta{ActorID: 4})
	require.NoError(t, err)

	body := strings.NewReader("continut document")
	file, err := svc.AttachFile(context.Background(), entry.ID, "cerere.pdf", "application/pdf", body, Meta{ActorID: 4})
	require.NoError(t, err)
	require.Equal(t, "cerere.pdf", file.FileName)
	require.EqualValues(t, len("continut document"), file.SizeBytes)

	// Bytes actually landed on disk under a generated name.
	data, err := os.ReadFile(file.StoragePath)
	require.NoError(t, err)
	require.Equal(t, "continut document", string(data))
	require.NotContains(t, file.StoragePath, "cerere.pdf")

	require.Len(t, repo.files, 1)

	var attachAudits int
	for _, e := range rec.all() {
		if e.Action == audit.ActionFileAttach {
			attachAudits++
			require.NotNil(t, e.Ref.FileID)
			require.Nil(t, e.Ref.RecordID)
		}
	}
	require.Equal(t, 1, attachAudits)
}

func TestAttachFileUnknownEntry(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.AttachFile(context.Background(), 99, "cerere.pdf", "application/pdf", strings.NewReader("x"), Meta{ActorID: 4})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAttachFileTooLarge(t *testing.T) {
	svc, _, _ := newTestService(t)

	reg, err := svc.Create(context.Background(), CreateRegisterInput{PrimariaID: 1, DepartmentID: 2, Name: "Petitii", Year: 2026}, Meta{ActorID: 4})
	require.NoError(t, err)
	entry, err := svc.CreateEntry(context.Background(), CreateEntryInput{RegisterID: reg.ID, Subject: "Cerere"}, Meta{ActorID: 4})
	require.NoError(t, err)

	oversized := io.LimitReader(zeroReader{}, MaxFileSize+2)
	_, err = svc.AttachFile(context.Background(), entry.ID, "mare.bin", "application/octet-stream", oversized, Meta{ActorID: 4})
	require.ErrorIs(t, err, ErrFileTooLarge)
}

func TestFailedMutationsAuditExactlyOnce(t *testing.T) {
	svc, _, rec := newTestService(t)

	reg, err := svc.Create(context.Background(), CreateRegisterInput{PrimariaID: 1, DepartmentID: 2, Name: "Petitii", Year: 2026}, Meta{ActorID: 4})
	require.NoError(t, err)
	_, err = svc.SetOpen(context.Background(), reg.ID, false, Meta{ActorID: 4})
	require.NoError(t, err)
	before := len(rec.all())

	// Blank subject: rejected before storage.
	_, err = svc.CreateEntry(context.Background(), CreateEntryInput{RegisterID: reg.ID, Subject: "  "}, Meta{ActorID: 4})
	require.Error(t, err)

	// Closed register: rejected by storage.
	_, err = svc.CreateEntry(context.Background(), CreateEntryInput{RegisterID: reg.ID, Subject: "Cerere"}, Meta{ActorID: 4})
	require.ErrorIs(t, err, ErrRegisterClosed)

	failed := rec.all()[before:]
	require.Len(t, failed, 2)
	require.Equal(t, audit.ActionRecordCreate, failed[0].Action)
	require.Equal(t, "subiect_lipsa", failed[0].Detail["motiv"])
	require.Equal(t, true, failed[0].Detail["esuat"])
	require.Equal(t, audit.ActionRecordCreate, failed[1].Action)
	require.Equal(t, "registru_inchis", failed[1].Detail["motiv"])
}

func TestFailedAttachFileAudits(t *testing.T) {
	svc, _, rec := newTestService(t)

	_, err := svc.AttachFile(context.Background(), 99, "cerere.pdf", "application/pdf", strings.NewReader("x"), Meta{ActorID: 4})
	require.ErrorIs(t, err, ErrNotFound)

	entries := rec.all()
	require.Len(t, entries, 1)
	require.Equal(t, audit.ActionFileAttach, entries[0].Action)
	require.Equal(t, "negasit", entries[0].Detail["motiv"])
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
