package rbac

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/primaria-digitala/registru/internal/audit"
)

type stubRepo struct {
	roles       map[int64]Role
	nextID      int64
	permissions []Permission
	listCalls   atomic.Int64
	attached    [][2]int64
	detached    [][2]int64
	assignments map[[2]int64]bool
	rolePerms   map[int64][]int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		roles:       map[int64]Role{},
		nextID:      1,
		assignments: map[[2]int64]bool{},
		rolePerms:   map[int64][]int64{},
	}
}

func (s *stubRepo) ListRoles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, r)
	}
	return out, nil
}

func (s *stubRepo) GetRole(ctx context.Context, id int64) (Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (s *stubRepo) InsertRole(ctx context.Context, name string, accessLevel int) (Role, error) {
	role := Role{ID: s.nextID, Name: name, AccessLevel: accessLevel, IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.roles[role.ID] = role
	s.nextID++
	return role, nil
}

func (s *stubRepo) UpdateRole(ctx context.Context, id int64, name string, accessLevel int, isActive bool) (Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	role.Name = name
	role.AccessLevel = accessLevel
	role.IsActive = isActive
	s.roles[id] = role
	return role, nil
}

func (s *stubRepo) ListPermissions(ctx context.Context) ([]Permission, error) {
	s.listCalls.Add(1)
	return s.permissions, nil
}

func (s *stubRepo) EnsurePermission(ctx context.Context, name, module, action string) (Permission, error) {
	perm := Permission{ID: int64(len(s.permissions) + 1), Name: name, Module: module, Action: action}
	s.permissions = append(s.permissions, perm)
	return perm, nil
}

func (s *stubRepo) ListRolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	return s.rolePerms[roleID], nil
}

func (s *stubRepo) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	s.attached = append(s.attached, [2]int64{roleID, permissionID})
	s.rolePerms[roleID] = append(s.rolePerms[roleID], permissionID)
	return nil
}

func (s *stubRepo) DetachPermission(ctx context.Context, roleID, permissionID int64) error {
	s.detached = append(s.detached, [2]int64{roleID, permissionID})
	return nil
}

func (s *stubRepo) UpsertAssignment(ctx context.Context, actorID, roleID int64, isActive bool) error {
	s.assignments[[2]int64{actorID, roleID}] = isActive
	return nil
}

func (s *stubRepo) DeleteAssignment(ctx context.Context, actorID, roleID int64) error {
	key := [2]int64{actorID, roleID}
	if _, ok := s.assignments[key]; !ok {
		return ErrNotFound
	}
	delete(s.assignments, key)
	return nil
}

func newCacheClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestCreateRoleValidatesLevel(t *testing.T) {
	svc := NewService(newStubRepo(), nil, 0, nil, nil)

	_, err := svc.CreateRole(context.Background(), "administrator", 0, Meta{ActorID: 1})
	require.ErrorIs(t, err, ErrInvalidAccessLevel)

	_, err = svc.CreateRole(context.Background(), "administrator", 11, Meta{ActorID: 1})
	require.ErrorIs(t, err, ErrInvalidAccessLevel)

	role, err := svc.CreateRole(context.Background(), "administrator", 10, Meta{ActorID: 1})
	require.NoError(t, err)
	require.Equal(t, 10, role.AccessLevel)
	require.True(t, role.IsActive)
}

func TestPermissionCatalogUsesCache(t *testing.T) {
	repo := newStubRepo()
	repo.permissions = []Permission{{ID: 1, Name: "registre_creare", Module: "registre", Action: "creare"}}
	svc := NewService(repo, newCacheClient(t), time.Minute, nil, nil)

	first, err := svc.PermissionCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.PermissionCatalog(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)

	// Second read is served from Redis, not from storage.
	require.EqualValues(t, 1, repo.listCalls.Load())
}

func TestPermissionCatalogWithoutCache(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil, 0, nil, nil)

	_, err := svc.PermissionCatalog(context.Background())
	require.NoError(t, err)
	_, err = svc.PermissionCatalog(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, repo.listCalls.Load())
}

func TestEnsurePermissionInvalidatesCatalogCache(t *testing.T) {
	repo := newStubRepo()
	repo.permissions = []Permission{{ID: 1, Name: "registre_creare"}}
	svc := NewService(repo, newCacheClient(t), time.Minute, nil, nil)

	_, err := svc.PermissionCatalog(context.Background())
	require.NoError(t, err)

	_, err = svc.EnsurePermission(context.Background(), "audit_vizualizare", "audit", "vizualizare")
	require.NoError(t, err)

	catalog, err := svc.PermissionCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, catalog, 2)
	// Cache was invalidated, so storage was consulted again.
	require.EqualValues(t, 2, repo.listCalls.Load())
}

func TestSetRolePermissionsDiffs(t *testing.T) {
	repo := newStubRepo()
	repo.rolePerms[1] = []int64{10, 11}
	svc := NewService(repo, nil, 0, nil, nil)

	err := svc.SetRolePermissions(context.Background(), 1, []int64{11, 12}, Meta{ActorID: 1})
	require.NoError(t, err)
	require.Equal(t, [][2]int64{{1, 12}}, repo.attached)
	require.Equal(t, [][2]int64{{1, 10}}, repo.detached)
}

func TestAssignRoleUnknownRole(t *testing.T) {
	svc := NewService(newStubRepo(), nil, 0, nil, nil)
	err := svc.AssignRole(context.Background(), 4, 99, Meta{ActorID: 1})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFailedRoleMutationsAudit(t *testing.T) {
	rec := &memRecorder{}
	svc := NewService(newStubRepo(), nil, 0, rec, nil)

	_, err := svc.CreateRole(context.Background(), "administrator", 11, Meta{ActorID: 1})
	require.ErrorIs(t, err, ErrInvalidAccessLevel)

	err = svc.AssignRole(context.Background(), 4, 99, Meta{ActorID: 1})
	require.ErrorIs(t, err, ErrNotFound)

	entries := rec.all()
	require.Len(t, entries, 2)

	require.Equal(t, audit.ActionRoleCreate, entries[0].Action)
	require.Equal(t, "nivel_invalid", entries[0].Detail["motiv"])
	require.Equal(t, true, entries[0].Detail["esuat"])

	require.Equal(t, audit.ActionRoleAssign, entries[1].Action)
	require.Equal(t, "negasit", entries[1].Detail["motiv"])
}

func TestAssignAndRemoveRole(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil, 0, nil, nil)

	role, err := svc.CreateRole(context.Background(), "functionar", 3, Meta{ActorID: 1})
	require.NoError(t, err)

	require.NoError(t, svc.AssignRole(context.Background(), 4, role.ID, Meta{ActorID: 1}))
	require.True(t, repo.assignments[[2]int64{4, role.ID}])

	require.NoError(t, svc.SuspendAssignment(context.Background(), 4, role.ID, Meta{ActorID: 1}))
	require.False(t, repo.assignments[[2]int64{4, role.ID}])

	require.NoError(t, svc.RemoveRole(context.Background(), 4, role.ID, Meta{ActorID: 1}))
	_, ok := repo.assignments[[2]int64{4, role.ID}]
	require.False(t, ok)

	require.ErrorIs(t, svc.RemoveRole(context.Background(), 4, role.ID, Meta{ActorID: 1}), ErrNotFound)
}
