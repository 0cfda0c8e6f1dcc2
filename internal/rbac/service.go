package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/primaria-digitala/registru/internal/audit"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// ErrInvalidAccessLevel indicates a level outside the 1..10 range.
var ErrInvalidAccessLevel = errors.New("rbac: access level must be between 1 and 10")

const catalogCacheKey = "rbac:permission_catalog"

// RepositoryPort defines the persistence contract the service needs.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	InsertRole(ctx context.Context, name string, accessLevel int) (Role, error)
	UpdateRole(ctx context.Context, id int64, name string, accessLevel int, isActive bool) (Role, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	EnsurePermission(ctx context.Context, name, module, action string) (Permission, error)
	ListRolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error)
	AttachPermission(ctx context.Context, roleID, permissionID int64) error
	DetachPermission(ctx context.Context, roleID, permissionID int64) error
	UpsertAssignment(ctx context.Context, actorID, roleID int64, isActive bool) error
	DeleteAssignment(ctx context.Context, actorID, roleID int64) error
}

// Service orchestrates role and permission management. Note that
// changes made here never touch already-issued tokens: an actor keeps
// the permission snapshot signed at login until the token expires or
// is re-issued.
type Service struct {
	repo     RepositoryPort
	cache    *redis.Client
	cacheTTL time.Duration
	auditor  audit.Recorder
	logger   *slog.Logger
	group    singleflight.Group
}

// NewService constructs a Service. The cache client is optional; when
// nil the permission catalog is read from storage on every call.
func NewService(repo RepositoryPort, cache *redis.Client, cacheTTL time.Duration, auditor audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Service{repo: repo, cache: cache, cacheTTL: cacheTTL, auditor: auditor, logger: logger}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new role after validating its access level.
func (s *Service) CreateRole(ctx context.Context, name string, accessLevel int, meta Meta) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		s.recordFailure(ctx, audit.ActionRoleCreate, meta, "nume_lipsa", nil)
		return Role{}, errors.New("rbac: role name required")
	}
	if accessLevel < 1 || accessLevel > 10 {
		s.recordFailure(ctx, audit.ActionRoleCreate, meta, "nivel_invalid", map[string]any{"nivel": accessLevel})
		return Role{}, ErrInvalidAccessLevel
	}
	role, err := s.repo.InsertRole(ctx, name, accessLevel)
	if err != nil {
		s.recordFailure(ctx, audit.ActionRoleCreate, meta, failureReason(err), map[string]any{"rol": name})
		return Role{}, err
	}
	s.record(ctx, audit.ActionRoleCreate, meta, map[string]any{"rol": role.Name, "nivel": role.AccessLevel})
	return role, nil
}

// UpdateRole updates an existing role.
func (s *Service) UpdateRole(ctx context.Context, id int64, name string, accessLevel int, isActive bool, meta Meta) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		s.recordFailure(ctx, audit.ActionRoleUpdate, meta, "nume_lipsa", map[string]any{"rol_id": id})
		return Role{}, errors.New("rbac: role name required")
	}
	if accessLevel < 1 || accessLevel > 10 {
		s.recordFailure(ctx, audit.ActionRoleUpdate, meta, "nivel_invalid", map[string]any{"rol_id": id, "nivel": accessLevel})
		return Role{}, ErrInvalidAccessLevel
	}
	role, err := s.repo.UpdateRole(ctx, id, name, accessLevel, isActive)
	if err != nil {
		s.recordFailure(ctx, audit.ActionRoleUpdate, meta, failureReason(err), map[string]any{"rol_id": id})
		return Role{}, err
	}
	s.record(ctx, audit.ActionRoleUpdate, meta, map[string]any{"rol": role.Name, "nivel": role.AccessLevel, "activ": role.IsActive})
	return role, nil
}

// PermissionCatalog returns the full permission catalog, served from
// the Redis cache when possible. Concurrent cache misses collapse into
// a single storage query.
func (s *Service) PermissionCatalog(ctx context.Context) ([]Permission, error) {
	if s.cache == nil {
		return s.repo.ListPermissions(ctx)
	}
	if data, err := s.cache.Get(ctx, catalogCacheKey).Bytes(); err == nil {
		var perms []Permission
		if err := json.Unmarshal(data, &perms); err == nil {
			return perms, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warn("permission catalog cache read", slog.Any("error", err))
	}

	result, err, _ := s.group.Do(catalogCacheKey, func() (any, error) {
		perms, err := s.repo.ListPermissions(ctx)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(perms); err == nil {
			if err := s.cache.Set(ctx, catalogCacheKey, data, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("permission catalog cache write", slog.Any("error", err))
			}
		}
		return perms, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]Permission), nil
}

// EnsurePermission upserts a catalog entry and invalidates the cache.
func (s *Service) EnsurePermission(ctx context.Context, name, module, action string) (Permission, error) {
	perm, err := s.repo.EnsurePermission(ctx, strings.TrimSpace(name), module, action)
	if err != nil {
		return Permission{}, err
	}
	s.invalidateCatalog(ctx)
	return perm, nil
}

// SetRolePermissions replaces the permission set of a role with the
// given IDs, attaching what is missing and detaching what is no
// longer wanted.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64, meta Meta) error {
	existing, err := s.repo.ListRolePermissionIDs(ctx, roleID)
	if err != nil {
		s.recordFailure(ctx, audit.ActionRoleUpdate, meta, failureReason(err), map[string]any{"rol_id": roleID})
		return err
	}
	current := make(map[int64]struct{}, len(existing))
	for _, id := range existing {
		current[id] = struct{}{}
	}
	keep := make(map[int64]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		keep[id] = struct{}{}
		if _, ok := current[id]; !ok {
			if err := s.repo.AttachPermission(ctx, roleID, id); err != nil {
				s.recordFailure(ctx, audit.ActionRoleUpdate, meta, failureReason(err), map[string]any{"rol_id": roleID})
				return err
			}
		}
	}
	for id := range current {
		if _, ok := keep[id]; !ok {
			if err := s.repo.DetachPermission(ctx, roleID, id); err != nil {
				s.recordFailure(ctx, audit.ActionRoleUpdate, meta, failureReason(err), map[string]any{"rol_id": roleID})
				return err
			}
		}
	}
	s.record(ctx, audit.ActionRoleUpdate, meta, map[string]any{"rol_id": roleID, "permisiuni": len(permissionIDs)})
	return nil
}

// AssignRole assigns a role to an actor (or reactivates a suspended
// assignment).
func (s *Service) AssignRole(ctx context.Context, actorID, roleID int64, meta Meta) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		s.recordFailure(ctx, audit.ActionRoleAssign, meta, failureReason(err), map[string]any{"actor_id": actorID, "rol_id": roleID})
		return err
	}
	if err := s.repo.UpsertAssignment(ctx, actorID, roleID, true); err != nil {
		s.recordFailure(ctx, audit.ActionRoleAssign, meta, failureReason(err), map[string]any{"actor_id": actorID, "rol_id": roleID})
		return err
	}
	s.record(ctx, audit.ActionRoleAssign, meta, map[string]any{"actor_id": actorID, "rol_id": roleID})
	return nil
}

// SuspendAssignment deactivates an assignment without deleting it.
func (s *Service) SuspendAssignment(ctx context.Context, actorID, roleID int64, meta Meta) error {
	if err := s.repo.UpsertAssignment(ctx, actorID, roleID, false); err != nil {
		s.recordFailure(ctx, audit.ActionRoleRevoke, meta, failureReason(err), map[string]any{"actor_id": actorID, "rol_id": roleID})
		return err
	}
	s.record(ctx, audit.ActionRoleRevoke, meta, map[string]any{"actor_id": actorID, "rol_id": roleID, "suspendat": true})
	return nil
}

// RemoveRole deletes the assignment entirely.
func (s *Service) RemoveRole(ctx context.Context, actorID, roleID int64, meta Meta) error {
	if err := s.repo.DeleteAssignment(ctx, actorID, roleID); err != nil {
		s.recordFailure(ctx, audit.ActionRoleRevoke, meta, failureReason(err), map[string]any{"actor_id": actorID, "rol_id": roleID})
		return err
	}
	s.record(ctx, audit.ActionRoleRevoke, meta, map[string]any{"actor_id": actorID, "rol_id": roleID})
	return nil
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, catalogCacheKey).Err(); err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn("permission catalog cache invalidate", slog.Any("error", err))
	}
}

// Meta identifies the actor performing a management operation, for
// the audit trail.
type Meta struct {
	ActorID   int64
	IP        string
	UserAgent string
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
	case errors.Is(err, ErrNotFound):
		return "negasit"
	case errors.Is(err, ErrInvalidAccessLevel):
		return "nivel_invalid"
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

