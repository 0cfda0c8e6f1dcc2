package registers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/primaria-digitala/registru/internal/audit"
)

// ErrFileTooLarge indicates the upload exceeds the configured limit.
var ErrFileTooLarge = errors.New("registers: file exceeds size limit")

// MaxFileSize caps a single attached document.
const MaxFileSize = 25 << 20

// RepositoryPort defines the persistence contract the service needs.
type RepositoryPort interface {
	List(ctx context.Context, primariaID int64) ([]Register, error)
	Get(ctx context.Context, id int64) (Register, error)
	Insert(ctx context.Context, in CreateRegisterInput) (Register, error)
	SetOpen(ctx context.Context, id int64, open bool) (Register, error)
	CreateEntry(ctx context.Context, in CreateEntryInput) (RecordEntry, error)
	ListEntries(ctx context.Context, registerID int64, limit, offset int) ([]RecordEntry, error)
	GetEntry(ctx context.Context, id int64) (RecordEntry, error)
	InsertFile(ctx context.Context, f RecordFile) (RecordFile, error)
	ListFiles(ctx context.Context, recordID int64) ([]RecordFile, error)
}

// Meta identifies the actor performing the operation.
type Meta struct {
	ActorID   int64
	IP        string
	UserAgent string
}

// Service manages registers, record entries and attached documents.
type Service struct {
	repo        RepositoryPort
	auditor     audit.Recorder
	logger      *slog.Logger
	storageRoot string
}

// NewService constructs a Service. storageRoot is the directory that
// receives uploaded documents.
func NewService(repo RepositoryPort, auditor audit.Recorder, logger *slog.Logger, storageRoot string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, auditor: auditor, logger: logger, storageRoot: storageRoot}
}

// List returns the registers of one primarie.
func (s *Service) List(ctx context.Context, primariaID int64) ([]Register, error) {
	return s.repo.List(ctx, primariaID)
}

// Get fetches a register by ID.
func (s *Service) Get(ctx context.Context, id int64) (Register, error) {
	return s.repo.Get(ctx, id)
}

// Create opens a new register.
func (s *Service) Create(ctx context.Context, in CreateRegisterInput, meta Meta) (Register, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		s.recordFailure(ctx, audit.ActionRegisterCreate, meta, "nume_lipsa", nil)
		return Register{}, errors.New("registers: name required")
	}
	if in.Year == 0 {
		in.Year = time.Now().Year()
	}
	reg, err := s.repo.Insert(ctx, in)
	if err != nil {
		s.recordFailure(ctx, audit.ActionRegisterCreate, meta, failureReason(err), map[string]any{"nume": in.Name})
		return Register{}, err
	}
	s.record(ctx, audit.ActionRegisterCreate, meta, nil,
		map[string]any{"registru_id": reg.ID, "nume": reg.Name, "an": reg.Year})
	return reg, nil
}

// SetOpen opens or closes a register. A closed register keeps its
// entries readable but rejects new ones.
func (s *Service) SetOpen(ctx context.Context, id int64, open bool, meta Meta) (Register, error) {
	reg, err := s.repo.SetOpen(ctx, id, open)
	if err != nil {
		s.recordFailure(ctx, audit.ActionRegisterUpdate, meta, failureReason(err), map[string]any{"registru_id": id})
		return Register{}, err
	}
	s.record(ctx, audit.ActionRegisterUpdate, meta, nil,
		map[string]any{"registru_id": reg.ID, "deschis": reg.IsOpen})
	return reg, nil
}

// CreateEntry allocates the next sequential number and stores the
// entry.
func (s *Service) CreateEntry(ctx context.Context, in CreateEntryInput, meta Meta) (RecordEntry, error) {
	in.Subject = strings.TrimSpace(in.Subject)
	if in.Subject == "" {
		s.recordFailure(ctx, audit.ActionRecordCreate, meta, "subiect_lipsa", map[string]any{"registru_id": in.RegisterID})
		return RecordEntry{}, errors.New("registers: subject required")
	}
	entry, err := s.repo.CreateEntry(ctx, in)
	if err != nil {
		s.recordFailure(ctx, audit.ActionRecordCreate, meta, failureReason(err), map[string]any{"registru_id": in.RegisterID})
		return RecordEntry{}, err
	}
	s.record(ctx, audit.ActionRecordCreate, meta, &audit.EntityRef{RecordID: &entry.ID},
		map[string]any{"registru_id": entry.RegisterID, "numar": entry.Number})
	return entry, nil
}

// ListEntries returns a page of entries.
func (s *Service) ListEntries(ctx context.Context, registerID int64, limit, offset int) ([]RecordEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListEntries(ctx, registerID, limit, offset)
}

// GetEntry fetches a single entry.
func (s *Service) GetEntry(ctx context.Context, id int64) (RecordEntry, error) {
	return s.repo.GetEntry(ctx, id)
}

// AttachFile streams an uploaded document to disk and records its
// metadata. The stored name is a generated UUID; the original name is
// kept only as metadata.
func (s *Service) AttachFile(ctx context.Context, recordID int64, fileName, contentType string, body io.Reader, meta Meta) (RecordFile, error) {
	attachDetail := map[string]any{"inregistrare_id": recordID}
	if _, err := s.repo.GetEntry(ctx, recordID); err != nil {
		s.recordFailure(ctx, audit.ActionFileAttach, meta, failureReason(err), attachDetail)
		return RecordFile{}, err
	}
	fileName = filepath.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." {
		s.recordFailure(ctx, audit.ActionFileAttach, meta, "nume_fisier_lipsa", attachDetail)
		return RecordFile{}, errors.New("registers: file name required")
	}

	stored := uuid.NewString() + filepath.Ext(fileName)
	dir := filepath.Join(s.storageRoot, fmt.Sprintf("record-%d", recordID))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		s.recordFailure(ctx, audit.ActionFileAttach, meta, failureReason(err), attachDetail)
		return RecordFile{}, err
	}
	path := filepath.Join(dir, stored)

	dst, err := os.Create(path)
	if err != nil {
		s.recordFailure(ctx, audit.ActionFileAttach, meta, failureReason(err), attachDetail)
		return RecordFile{}, err
	}
	size, err := io.Copy(dst, io.LimitReader(body, MaxFileSize+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && size > MaxFileSize {
		err = ErrFileTooLarge
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			s.logger.Warn("remove partial upload", slog.Any("error", rmErr))
		}
		s.recordFailure(ctx, audit.ActionFileAttach, meta, failureReason(err), attachDetail)
		return RecordFile{}, err
	}

	file, err := s.repo.InsertFile(ctx, RecordFile{
		RecordID:    recordID,
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   size,
		StoragePath: path,
		UploadedBy:  meta.ActorID,
	})
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			s.logger.Warn("remove orphaned upload", slog.Any("error", rmErr))
		}
		s.recordFailure(ctx, audit.ActionFileAttach, meta, failureReason(err), attachDetail)
		return RecordFile{}, err
	}
	s.record(ctx, audit.ActionFileAttach, meta, &audit.EntityRef{FileID: &file.ID},
		map[string]any{"inregistrare_id": recordID, "fisier": fileName, "dimensiune": size})
	return file, nil
}

// ListFiles returns the documents attached to an entry.
func (s *Service) ListFiles(ctx context.Context, recordID int64) ([]RecordFile, error) {
	return s.repo.ListFiles(ctx, recordID)
}

// recordFailure writes the single audit entry owed to a rejected
// mutation attempt. The action stays the same as on success; the
// detail carries the failure marker and reason.
func (s *Service) recordFailure(ctx context.Context, action audit.Action, meta Meta, reason string, detail map[string]any) {
	if detail == nil {
		detail = map[string]any{}
	}
	detail["esuat"] = true
	detail["motiv"] = reason
	s.record(ctx, action, meta, nil, detail)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "negasit"
	case errors.Is(err, ErrRegisterClosed):
		return "registru_inchis"
	case errors.Is(err, ErrFileTooLarge):
		return "fisier_prea_mare"
	default:
		return "eroare_interna"
	}
}

func (s *Service) record(ctx context.Context, action audit.Action, meta Meta, ref *audit.EntityRef, detail map[string]any) {
	if s.auditor == nil {
		return
	}
	entry := audit.Entry{
		Action:    action,
		ActorID:   &meta.ActorID,
		Detail:    detail,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	}
	if ref != nil {
		entry.Ref = *ref
	}
	s.auditor.Record(ctx, entry)
}
