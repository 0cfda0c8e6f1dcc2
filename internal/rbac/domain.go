package rbac

import "time"

// Role is a named permission grouping carrying a coarse access level.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	AccessLevel int       `json:"access_level"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is an atomic capability scoped to a module and action,
// identified by a stable name such as "registre_creare".
type Permission struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Module string `json:"module"`
	Action string `json:"action"`
}

// Assignment links an actor to a role; the link carries its own
// active flag so a role can be suspended per actor without losing the
// assignment.
type Assignment struct {
	ActorID  int64 `json:"actor_id"`
	RoleID   int64 `json:"role_id"`
	IsActive bool  `json:"is_active"`
}

// Core permission names used by the application routes.
const (
	PermRegistreCreare      = "registre_creare"
	PermRegistreVizualizare = "registre_vizualizare"
	PermRegistreEditare     = "registre_editare"

	PermInregistrariCreare = "inregistrari_creare"
	PermFisiereIncarcare   = "fisiere_incarcare"

	PermUtilizatoriAdministrare = "utilizatori_administrare"
	PermRoluriAdministrare      = "roluri_administrare"
	PermAuditVizualizare        = "audit_vizualizare"
)

// CoreScopes lists the permissions the platform itself depends on.
func CoreScopes() []string {
	return []string{
		PermRegistreCreare,
		PermRegistreVizualizare,
		PermRegistreEditare,
		PermInregistrariCreare,
		PermFisiereIncarcare,
		PermUtilizatoriAdministrare,
		PermRoluriAdministrare,
		PermAuditVizualizare,
	}
}
