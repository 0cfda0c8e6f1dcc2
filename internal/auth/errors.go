package auth

import "errors"

// Authentication failure taxonomy. Credential errors map to the audit
// reasons recorded on failed logins; token errors distinguish why a
// presented token was rejected. The handler collapses ErrUnknownActor
// and ErrWrongPassword into one client-facing message, but the
// sentinels stay distinct so the trail and the metrics can tell them
// apart.
var (
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrUnknownActor       = errors.New("auth: unknown actor")
	ErrAccountDisabled    = errors.New("auth: account disabled")
	ErrWrongPassword      = errors.New("auth: wrong password")

	ErrMissingToken   = errors.New("auth: missing token")
	ErrExpiredToken   = errors.New("auth: token expired")
	ErrMalformedToken = errors.New("auth: malformed token")
)
