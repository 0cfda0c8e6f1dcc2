package registers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/primaria-digitala/registru/internal/auth"
	"github.com/primaria-digitala/registru/internal/platform/httpx"
	"github.com/primaria-digitala/registru/internal/rbac"
)

// Handler exposes the register, entry and file endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    rbac.Middleware
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, validate: validator.New()}
}

// MountRoutes registers the routes with per-operation permission
// guards.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAny(rbac.PermRegistreVizualizare)).Get("/", h.list)
	r.With(h.guard.RequireAny(rbac.PermRegistreCreare)).Post("/", h.create)
	r.With(h.guard.RequireAny(rbac.PermRegistreVizualizare)).Get("/{registerID}", h.get)
	r.With(h.guard.RequireAny(rbac.PermRegistreEditare)).Post("/{registerID}/close", h.close)
	r.With(h.guard.RequireAny(rbac.PermRegistreEditare)).Post("/{registerID}/reopen", h.reopen)

	r.With(h.guard.RequireAny(rbac.PermRegistreVizualizare)).Get("/{registerID}/entries", h.listEntries)
	r.With(h.guard.RequireAny(rbac.PermInregistrariCreare)).Post("/{registerID}/entries", h.createEntry)

	r.With(h.guard.RequireAny(rbac.PermRegistreVizualizare)).Get("/entries/{entryID}", h.getEntry)
	r.With(h.guard.RequireAny(rbac.PermRegistreVizualizare)).Get("/entries/{entryID}/files", h.listFiles)
	r.With(h.guard.RequireAny(rbac.PermFisiereIncarcare)).Post("/entries/{entryID}/files", h.attachFile)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	regs, err := h.service.List(r.Context(), identity.PrimariaID)
	if err != nil {
		h.logger.Error("list registers", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"registers": regs})
}

type createRegisterRequest struct {
	DepartmentID int64  `json:"department_id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Year         int    `json:"year"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	var req createRegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "corp JSON invalid")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "departament si nume sunt obligatorii")
		return
	}
	reg, err := h.service.Create(r.Context(), CreateRegisterInput{
		PrimariaID:   identity.PrimariaID,
		DepartmentID: req.DepartmentID,
		Name:         req.Name,
		Year:         req.Year,
	}, h.meta(r))
	if err != nil {
		h.respondError(w, "create register", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reg)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "registerID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "identificator registru invalid")
		return
	}
	reg, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get register", err)
		return
	}
	httpx.JSON(w, http.StatusOK, reg)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	h.setOpen(w, r, false)
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	h.setOpen(w, r, true)
}

func (h *Handler) setOpen(w http.ResponseWriter, r *http.Request, open bool) {
	id, err := pathID(r, "registerID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "identificator registru invalid")
		return
	}
	reg, err := h.service.SetOpen(r.Context(), id, open, h.meta(r))
	if err != nil {
		h.respondError(w, "set register open", err)
		return
	}
	httpx.JSON(w, http.StatusOK, reg)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "registerID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "identificator registru invalid")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	entries, err := h.service.ListEntries(r.Context(), id, limit, offset)
	if err != nil {
		h.respondError(w, "list entries", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type createEntryRequest struct {
	Subject    string `json:"subject" validate:"required"`
	Petitioner string `json:"petitioner"`
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	registerID, err := pathID(r, "registerID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "identificator registru invalid")
		return
	}
	var req createEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "corp JSON invalid")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "subiectul este obligatoriu")
		return
	}
	entry, err := h.service.CreateEntry(r.Context(), CreateEntryInput{
		RegisterID:  registerID,
		Subject:     req.Subject,
		Petitioner:  req.Petitioner,
		CreatedByID: identity.ActorID,
	}, h.meta(r))
	if err != nil {
		h.respondError(w, "create entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "entryID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "identificator inregistrare invalid")
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.respondError(w, "get entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) listFiles(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "entryID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "identificator inregistrare invalid")
		return
	}
	files, err := h.service.ListFiles(r.Context(), id)
	if err != nil {
		h.respondError(w, "list files", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"files": files})
}

func (h *Handler) attachFile(w http.ResponseWriter, r *http.Request) {
	entryID, err := pathID(r, "entryID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "identificator inregistrare invalid")
		return
	}
	if err := r.ParseMultipartForm(MaxFileSize); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "formular multipart invalid")
		return
	}
	upload, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "campul 'file' este obligatoriu")
		return
	}
	defer upload.Close()

	file, err := h.service.AttachFile(r.Context(), entryID, header.Filename,
		header.Header.Get("Content-Type"), upload, h.meta(r))
	if err != nil {
		h.respondError(w, "attach file", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, file)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "resursa nu exista")
	case errors.Is(err, ErrRegisterClosed):
		httpx.Problem(w, http.StatusConflict, "Conflict", "registrul este inchis")
	case errors.Is(err, ErrFileTooLarge):
		httpx.Problem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "fisierul depaseste limita admisa")
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
