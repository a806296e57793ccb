package person

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry-go/internal/contact"
	"github.com/ovaphlow/pitchfork/service-registry-go/internal/validation"
	"github.com/ovaphlow/pitchfork/service-registry-go/pkg/sentinel"
	"github.com/ovaphlow/pitchfork/service-registry-go/pkg/utilities"
)

// Handler exposes HTTP endpoints for the person registry.
type Handler struct {
	registry *Registry
	logger   *zap.SugaredLogger
}

func NewHandler(registry *Registry, logger *zap.SugaredLogger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// RenameRequest is the body of the rename endpoint.
type RenameRequest struct {
	Name string `json:"name"`
}

// RegisterResponse echoes the new person with its display national id.
type RegisterResponse struct {
	ID         int64  `json:"id"`
	NationalID string `json:"national_id"`
	Formatted  string `json:"national_id_formatted"`
	Name       string `json:"name"`
	Role       string `json:"role"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid register payload", "err", err)
		utilities.WriteError(w, fmt.Errorf("invalid payload: %w", sentinel.ErrInvalidArgument))
		return
	}
	p, err := h.registry.Register(r.Context(), req)
	if err != nil {
		utilities.WriteError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, RegisterResponse{
		ID:         p.ID,
		NationalID: p.NationalID,
		Formatted:  validation.FormatNationalID(p.NationalID),
		Name:       p.Name,
		Role:       string(p.Role),
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := contact.PathID(r, "id")
	if err != nil {
		utilities.WriteError(w, err)
		return
	}
	d, err := h.registry.Details(r.Context(), id)
	if err != nil {
		utilities.WriteError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, d)
}

// List serves ?page=N; a missing or malformed page means the first one.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		page = 1
	}
	p, err := h.registry.Page(r.Context(), page, 0)
	if err != nil {
		utilities.WriteError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	list, err := h.registry.Search(r.Context(), name, 0)
	if err != nil {
		utilities.WriteError(w, err)
		return
	}
	total, err := h.registry.SearchCount(r.Context(), name)
	if err != nil {
		utilities.WriteError(w, err)
		return
	}
	items, err := h.registry.Overviews(r.Context(), list)
	if err != nil {
		utilities.WriteError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{"persons": items, "total": total})
}

func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := contact.PathID(r, "id")
	if err != nil {
		utilities.WriteError(w, err)
		return
	}
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utilities.WriteError(w, fmt.Errorf("invalid payload: %w", sentinel.ErrInvalidArgument))
		return
	}
	if err := h.registry.Rename(r.Context(), id, req.Name); err != nil {
		utilities.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := contact.PathID(r, "id")
	if err != nil {
		utilities.WriteError(w, err)
		return
	}
	if err := h.registry.Delete(r.Context(), id); err != nil {
		utilities.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.registry.Summary(r.Context())
	if err != nil {
		utilities.WriteError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, s)
}
