package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/primaria-digitala/registru/internal/auth"
	"github.com/primaria-digitala/registru/internal/platform/httpx"
)

// Handler exposes account administration endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the account routes. The caller guards the
// group with the user administration permission.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{userID}", h.get)
	r.Post("/{userID}/deactivate", h.deactivate)
	r.Post("/{userID}/reactivate", h.reactivate)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "autentificare necesara")
		return
	}
	users, err := h.service.List(r.Context(), identity.PrimariaID)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "identificator utilizator invalid")
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

type createRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "autentificare necesara")
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "corp JSON invalid")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email, nume si parola (minim 8 caractere) sunt obligatorii")
		return
	}
	user, err := h.service.Create(r.Context(), CreateInput{
		Email:      req.Email,
		Name:       req.Name,
		PrimariaID: identity.PrimariaID,
		Password:   req.Password,
	}, h.meta(r))
	if err != nil {
		h.respondError(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) reactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := pathID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "identificator utilizator invalid")
		return
	}
	var user User
	if active {
		user, err = h.service.Reactivate(r.Context(), id, h.meta(r))
	} else {
		user, err = h.service.Deactivate(r.Context(), id, h.meta(r))
	}
	if err != nil {
		h.respondError(w, "set user active", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "utilizatorul nu exista")
	case errors.Is(err, ErrEmailTaken):
		httpx.Problem(w, http.StatusConflict, "Conflict", "adresa de email este deja folosita")
	case errors.Is(err, ErrWeakPassword):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "parola trebuie sa aiba minim 8 caractere")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) meta(r *http.Request) Meta {
	meta := Meta{IP: r.RemoteAddr, UserAgent: r.UserAgent()}
	if identity := auth.IdentityFromContext(r.Context()); identity != nil {
		meta.ActorID = identity.ActorID
	}
	return meta
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
