package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/primaria-digitala/registru/internal/audit"
)

// ErrWeakPassword indicates the password is below the minimum length.
var ErrWeakPassword = errors.New("users: password must be at least 8 characters")

// RepositoryPort defines the persistence contract the service needs.
type RepositoryPort interface {
	List(ctx context.Context, primariaID int64) ([]User, error)
	Get(ctx context.Context, id int64) (User, error)
	Insert(ctx context.Context, in CreateInput, passwordHash string) (User, error)
	SetActive(ctx context.Context, id int64, active bool) (User, error)
}

// Meta identifies the administrator performing the operation.
type Meta struct {
	ActorID   int64
	IP        string
	UserAgent string
}

// Service manages actor accounts.
type Service struct {
	repo       RepositoryPort
	auditor    audit.Recorder
	logger     *slog.Logger
	bcryptCost int
}

// NewService constructs a Service. A cost of 0 falls back to
// bcrypt.DefaultCost.
func NewService(repo RepositoryPort, auditor audit.Recorder, logger *slog.Logger, bcryptCost int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, auditor: auditor, logger: logger, bcryptCost: bcryptCost}
}

// List returns the accounts of one primarie.
func (s *Service) List(ctx context.Context, primariaID int64) ([]User, error) {
	return s.repo.List(ctx, primariaID)
}

// Get fetches a single account.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// Create provisions a new account. The password is hashed here; the
// plaintext is never stored or logged.
func (s *Service) Create(ctx context.Context, in CreateInput, meta Meta) (User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if in.Email == "" || in.Name == "" {
		s.recordFailure(ctx, audit.ActionUserCreate, meta, "date_lipsa", map[string]any{"email": in.Email})
		return User{}, errors.New("users: email and name required")
	}
	if len(in.Password) < 8 {
		s.recordFailure(ctx, audit.ActionUserCreate, meta, "parola_slaba", map[string]any{"email": in.Email})
		return User{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		s.recordFailure(ctx, audit.ActionUserCreate, meta, "eroare_interna", map[string]any{"email": in.Email})
		return User{}, err
	}
	user, err := s.repo.Insert(ctx, in, string(hash))
	if err != nil {
		s.recordFailure(ctx, audit.ActionUserCreate, meta, failureReason(err), map[string]any{"email": in.Email})
		return User{}, err
	}
	s.record(ctx, audit.ActionUserCreate, meta, map[string]any{"utilizator_id": user.ID, "email": user.Email})
	return user, nil
}

// Deactivate disables the account. Tokens already issued to the actor
// stay verifiable until they expire; the login path rejects the
// account from the next attempt on.
func (s *Service) Deactivate(ctx context.Context, id int64, meta Meta) (User, error) {
	user, err := s.repo.SetActive(ctx, id, false)
	if err != nil {
		s.recordFailure(ctx, audit.ActionUserDeactivate, meta, failureReason(err), map[string]any{"utilizator_id": id})
		return User{}, err
	}
	s.record(ctx, audit.ActionUserDeactivate, meta, map[string]any{"utilizator_id": user.ID})
	return user, nil
}

// Reactivate re-enables the account.
func (s *Service) Reactivate(ctx context.Context, id int64, meta Meta) (User, error) {
	user, err := s.repo.SetActive(ctx, id, true)
	if err != nil {
		s.recordFailure(ctx, audit.ActionUserReactivate, meta, failureReason(err), map[string]any{"utilizator_id": id})
		return User{}, err
	}
	s.record(ctx, audit.ActionUserReactivate, meta, map[string]any{"utilizator_id": user.ID})
	return user, nil
}

// recordFailure writes the single audit entry owed to a rejected
// mutation attempt.
func (s *Service) recordFailure(ctx context.Context, action audit.Action, meta Meta, reason string, detail map[string]any) {
	if detail == nil {
		detail = map[string]any{}
	}
	detail["esuat"] = true
	detail["motiv"] = reason
	s.record(ctx, action, meta, detail)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrEmailTaken):
		return "email_existent"
	case errors.Is(err, ErrNotFound):
		return "negasit"
	default:
		return "eroare_interna"
	}
}

func (s *Service) record(ctx context.Context, action audit.Action, meta Meta, detail map[string]any) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(ctx, audit.Entry{
		Action:    action,
		ActorID:   &meta.ActorID,
		Detail:    detail,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})
}
