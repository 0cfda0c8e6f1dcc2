package audit

import "time"

// Action identifies a security-relevant event in the audit taxonomy.
type Action string

// Audit actions. Names follow the Romanian vocabulary used across the
// application so the trail stays consistent with permission names.
const (
	ActionLogin              Action = "autentificare"
	ActionLoginFailed        Action = "autentificare_esuata"
	ActionLogout             Action = "delogare"
	ActionLogoutInvalidToken Action = "delogare_token_invalid"
	ActionAccessDenied       Action = "acces_interzis"

	ActionUserCreate     Action = "utilizator_creare"
	ActionUserDeactivate Action = "utilizator_dezactivare"
	ActionUserReactivate Action = "utilizator_reactivare"

	ActionRoleCreate Action = "rol_creare"
	ActionRoleUpdate Action = "rol_actualizare"
	ActionRoleAssign Action = "rol_atribuire"
	ActionRoleRevoke Action = "rol_revocare"

	ActionRegisterCreate Action = "registru_creare"
	ActionRegisterUpdate Action = "registru_actualizare"
	ActionRecordCreate   Action = "inregistrare_creare"
	ActionFileAttach     Action = "fisier_incarcare"

	ActionDepartmentCreate Action = "departament_creare"
)

// Failure reasons recorded in the detail payload of failed-login
// entries. The client-facing message stays generic; only the trail
// distinguishes them.
const (
	ReasonUnknownActor       = "utilizator_inexistent"
	ReasonAccountDisabled    = "cont_dezactivat"
	ReasonWrongPassword      = "parola_incorecta"
	ReasonMissingCredentials = "credentiale_lipsa"
)

// EntityRef links an entry to at most one domain entity. Both fields
// nil is valid (login events, for example, reference nothing).
type EntityRef struct {
	FileID   *int64
	RecordID *int64
}

// Valid reports whether the reference respects mutual exclusivity.
func (r EntityRef) Valid() bool {
	return r.FileID == nil || r.RecordID == nil
}

// Entry is one append-only audit record. ActorID is nil for anonymous
// or failed-authentication attempts. Entries are never mutated or
// deleted by the application.
type Entry struct {
	Action    Action
	ActorID   *int64
	Ref       EntityRef
	Detail    map[string]any
	IP        string
	UserAgent string
	At        time.Time
}
