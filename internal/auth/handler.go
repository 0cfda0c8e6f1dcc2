package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/primaria-digitala/registru/internal/audit"
	"github.com/primaria-digitala/registru/internal/observability"
	"github.com/primaria-digitala/registru/internal/platform/httpx"
)

// The same message is returned for unknown actors and wrong passwords
// so a caller cannot probe which accounts exist. A disabled account
// gets a distinct message: login already required knowing the account.
const (
	msgInvalidCredentials = "Email sau parola incorecta"
	msgAccountDisabled    = "Contul este dezactivat"
)

// Handler wires the authentication HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	codec    *TokenCodec
	auditor  audit.Recorder
	metrics  *observability.Metrics
	secure   bool
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, codec *TokenCodec, auditor audit.Recorder, metrics *observability.Metrics, secure bool) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		codec:    codec,
		auditor:  auditor,
		metrics:  metrics,
		secure:   secure,
		validate: validator.New(),
	}
}

// MountRoutes registers the public auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/session", h.handleSession)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type actorPayload struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	PrimariaID int64  `json:"primaria_id"`
}

type loginResponse struct {
	Actor       actorPayload `json:"actor"`
	Roles       []RoleClaim  `json:"roles"`
	Permissions []string     `json:"permissions"`
	ExpiresAt   string       `json:"expires_at"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "corp JSON invalid")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.auditor.Record(r.Context(), audit.Entry{
			Action:    audit.ActionLoginFailed,
			Detail:    map[string]any{"email": req.Email, "motiv": audit.ReasonMissingCredentials},
			IP:        r.RemoteAddr,
			UserAgent: r.UserAgent(),
		})
		h.metrics.IncAuthFailure(audit.ReasonMissingCredentials)
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email si parola sunt obligatorii")
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password, RequestMeta{IP: r.RemoteAddr, UserAgent: r.UserAgent()})
	if err != nil {
		h.respondLoginError(w, err)
		return
	}

	SetSessionCookie(w, result.Token, result.ExpiresAt, h.secure)
	httpx.JSON(w, http.StatusOK, loginResponse{
		Actor: actorPayload{
			ID:         result.Actor.ID,
			Email:      result.Actor.Email,
			Name:       result.Actor.Name,
			PrimariaID: result.Actor.PrimariaID,
		},
		Roles:       result.Identity.Roles,
		Permissions: result.Identity.Permissions,
		ExpiresAt:   result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) respondLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAccountDisabled):
		h.metrics.IncAuthFailure(audit.ReasonAccountDisabled)
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", msgAccountDisabled)
	case errors.Is(err, ErrUnknownActor):
		h.metrics.IncAuthFailure(audit.ReasonUnknownActor)
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", msgInvalidCredentials)
	case errors.Is(err, ErrWrongPassword):
		h.metrics.IncAuthFailure(audit.ReasonWrongPassword)
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", msgInvalidCredentials)
	case errors.Is(err, ErrMissingCredentials):
		h.metrics.IncAuthFailure(audit.ReasonMissingCredentials)
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "email si parola sunt obligatorii")
	default:
		h.logger.Error("login", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := ExtractToken(r)
	claims, err := h.codec.Verify(token)
	if err == nil {
		h.auditor.Record(r.Context(), audit.Entry{
			Action:    audit.ActionLogout,
			ActorID:   &claims.ActorID,
			Detail:    map[string]any{"email": claims.Email},
			IP:        r.RemoteAddr,
			UserAgent: r.UserAgent(),
		})
	} else {
		// The cookie is cleared regardless; a bad token at logout is
		// recorded but never surfaced as an error to the caller.
		h.auditor.Record(r.Context(), audit.Entry{
			Action:    audit.ActionLogoutInvalidToken,
			IP:        r.RemoteAddr,
			UserAgent: r.UserAgent(),
		})
	}
	ClearSessionCookie(w, h.secure)
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	Actor         *actorPayload `json:"actor,omitempty"`
	Roles         []RoleClaim   `json:"roles,omitempty"`
	Permissions   []string      `json:"permissions,omitempty"`
}

// handleSession reports the current session state. "No session" is an
// expected state, so it answers 200 with authenticated=false rather
// than an error status.
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	claims, err := h.codec.Verify(ExtractToken(r))
	if err != nil {
		httpx.JSON(w, http.StatusOK, sessionResponse{Authenticated: false})
		return
	}
	identity := IdentityFromClaims(claims)
	httpx.JSON(w, http.StatusOK, sessionResponse{
		Authenticated: true,
		Actor: &actorPayload{
			ID:         identity.ActorID,
			Email:      identity.Email,
			Name:       identity.Name,
			PrimariaID: identity.PrimariaID,
		},
		Roles:       identity.Roles,
		Permissions: identity.Permissions,
	})
}
