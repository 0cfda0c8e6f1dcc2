package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/primaria-digitala/registru/internal/audit"
)

// DefaultLoginTimeout bounds the credential-check path (storage query
// plus bcrypt comparison). The hash comparison is deliberately slow,
// which makes login the main cost-amplification point under load.
const DefaultLoginTimeout = 5 * time.Second

// RequestMeta carries the request attributes recorded with each audit
// entry.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Actor     *Actor
	Identity  *Identity
	Token     string
	ExpiresAt time.Time
}

// Service verifies credentials and issues session tokens.
type Service struct {
	repo    Repository
	codec   *TokenCodec
	auditor audit.Recorder
	logger  *slog.Logger
	timeout time.Duration
}

// NewService constructs a Service.
func NewService(repo Repository, codec *TokenCodec, auditor audit.Recorder, logger *slog.Logger, timeout time.Duration) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultLoginTimeout
	}
	return &Service{repo: repo, codec: codec, auditor: auditor, logger: logger, timeout: timeout}
}

// Login authenticates email/password credentials and issues a signed
// session token carrying the actor's roles and flattened permissions
// as of this moment. Every failure path writes exactly one audit entry
// with a distinguishing reason before the error is returned; the
// HTTP-facing message for unknown actor and wrong password must stay
// identical (the handler owns that mapping).
func (s *Service) Login(ctx context.Context, email, password string, meta RequestMeta) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		s.auditFailure(ctx, nil, email, audit.ReasonMissingCredentials, meta)
		return nil, ErrMissingCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	actor, err := s.repo.FindActorByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUnknownActor) {
			s.auditFailure(ctx, nil, email, audit.ReasonUnknownActor, meta)
			return nil, ErrUnknownActor
		}
		return nil, err
	}
	if !actor.IsActive {
		s.auditFailure(ctx, actor, email, audit.ReasonAccountDisabled, meta)
		return nil, ErrAccountDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(actor.PasswordHash), []byte(password)); err != nil {
		s.auditFailure(ctx, actor, email, audit.ReasonWrongPassword, meta)
		return nil, ErrWrongPassword
	}

	assignments, err := s.repo.Assignments(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	access := ResolveAccess(assignments)
	roles := activeRoleClaims(assignments)
	identity := NewIdentity(actor, access, roles)

	token, expiresAt, err := s.codec.Issue(identity)
	if err != nil {
		return nil, err
	}

	if err := s.repo.TouchLastLogin(ctx, actor.ID); err != nil {
		s.logger.Warn("touch last login", slog.Int64("actor_id", actor.ID), slog.Any("error", err))
	}

	s.auditor.Record(ctx, audit.Entry{
		Action:    audit.ActionLogin,
		ActorID:   &actor.ID,
		Detail:    map[string]any{"email": actor.Email},
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})

	return &LoginResult{Actor: actor, Identity: identity, Token: token, ExpiresAt: expiresAt}, nil
}

// auditFailure records one failed-login entry. When the actor is known
// the entry carries its id and primaria so the trail can be grouped
// per tenant; unknown-email attempts have neither.
func (s *Service) auditFailure(ctx context.Context, actor *Actor, email, reason string, meta RequestMeta) {
	detail := map[string]any{"email": email, "motiv": reason}
	var actorID *int64
	if actor != nil {
		actorID = &actor.ID
		detail["primaria_id"] = actor.PrimariaID
	}
	s.auditor.Record(ctx, audit.Entry{
		Action:    audit.ActionLoginFailed,
		ActorID:   actorID,
		Detail:    detail,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})
}

func activeRoleClaims(assignments []Assignment) []RoleClaim {
	claims := make([]RoleClaim, 0, len(assignments))
	for _, a := range assignments {
		if !a.Active || !a.Role.IsActive {
			continue
		}
		claims = append(claims, RoleClaim{
			ID:          a.Role.ID,
			Name:        a.Role.Name,
			AccessLevel: a.Role.AccessLevel,
		})
	}
	return claims
}
