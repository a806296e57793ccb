package contact

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry-go/internal/contact/entity"
	"github.com/ovaphlow/pitchfork/service-registry-go/pkg/sentinel"
	"github.com/ovaphlow/pitchfork/service-registry-go/pkg/utilities"
)

// Handler exposes HTTP endpoints for one contact kind. Routes carry the owner
// in {id} and the contact in {contactID}.
type Handler struct {
	svc    *Service
	kind   entity.Kind
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, kind entity.Kind, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, kind: kind, logger: logger}
}

// AddRequest is the body of the add endpoint.
type AddRequest struct {
	Value   string `json:"value"`
	Primary bool   `json:"primary"`
}

// PathID parses the named path value as a positive id.
func PathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s %q: %w", name, raw, sentinel.ErrInvalidArgument)
	}
	return id, nil
}

func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	personID, err := PathID(r, "id")
	if err != nil {
		utilities.WriteError(w, err)
		return
	}
	var req AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid contact payload", "kind", h.kind, "err", err)
		utilities.WriteError(w, fmt.Errorf("invalid payload: %w", sentinel.ErrInvalidArgument))
		return
	}
	c, err := h.svc.Add(r.Context(), h.kind, personID, req.Value, req.Primary)
	if err != nil {
		utilities.WriteError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	personID, err := PathID(r, "id")
	if err != nil {
		utilities.WriteError(w, err)
		return
	}
	list, err := h.svc.List(r.Context(), h.kind, personID)
	if err != nil {
		utilities.WriteError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	personID, err := PathID(r, "id")
	if err != nil {
		utilities.WriteError(w, err)
		return
	}
	contactID, err := PathID(r, "contactID")
	if err != nil {
		utilities.WriteError(w, err)
		return
	}
	if err := h.svc.SetPrimary(r.Context(), h.kind, personID, contactID); err != nil {
		utilities.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	contactID, err := PathID(r, "contactID")
	if err != nil {
		utilities.WriteError(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), h.kind, contactID); err != nil {
		utilities.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
