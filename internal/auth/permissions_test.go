package auth

import (
	"reflect"
	"testing"
)

func TestResolveAccessUnionsActiveAssignments(t *testing.T) {
	assignments := []Assignment{
		{
			Role:        Role{ID: 1, Name: "functionar", AccessLevel: 3, IsActive: true},
			Active:      true,
			Permissions: []string{"registre_vizualizare", "inregistrari_creare"},
		},
		{
			Role:        Role{ID: 2, Name: "sef_serviciu", AccessLevel: 7, IsActive: true},
			Active:      true,
			Permissions: []string{"registre_creare", "registre_vizualizare"},
		},
	}

	access := ResolveAccess(assignments)

	want := []string{"inregistrari_creare", "registre_creare", "registre_vizualizare"}
	if !reflect.DeepEqual(access.Permissions, want) {
		t.Fatalf("permissions = %v, want %v", access.Permissions, want)
	}
	if access.AccessLevel != 7 {
		t.Fatalf("access level = %d, want 7", access.AccessLevel)
	}
}

func TestResolveAccessSkipsInactiveRole(t *testing.T) {
	assignments := []Assignment{
		{
			Role:        Role{ID: 1, Name: "administrator", AccessLevel: 10, IsActive: false},
			Active:      true,
			Permissions: []string{"roluri_administrare"},
		},
		{
			Role:        Role{ID: 2, Name: "functionar", AccessLevel: 3, IsActive: true},
			Active:      true,
			Permissions: []string{"registre_vizualizare"},
		},
	}

	access := ResolveAccess(assignments)

	if access.AccessLevel != 3 {
		t.Fatalf("access level = %d, want 3", access.AccessLevel)
	}
	for _, p := range access.Permissions {
		if p == "roluri_administrare" {
			t.Fatalf("inactive role contributed permission %q", p)
		}
	}
}

func TestResolveAccessSkipsSuspendedAssignment(t *testing.T) {
	assignments := []Assignment{
		{
			Role:        Role{ID: 1, Name: "sef_serviciu", AccessLevel: 7, IsActive: true},
			Active:      false,
			Permissions: []string{"registre_creare"},
		},
	}

	access := ResolveAccess(assignments)

	if len(access.Permissions) != 0 {
		t.Fatalf("suspended assignment contributed permissions %v", access.Permissions)
	}
	if access.AccessLevel != 0 {
		t.Fatalf("access level = %d, want 0", access.AccessLevel)
	}
}

func TestResolveAccessEmpty(t *testing.T) {
	access := ResolveAccess(nil)
	if len(access.Permissions) != 0 || access.AccessLevel != 0 {
		t.Fatalf("empty input resolved to %+v", access)
	}
}
