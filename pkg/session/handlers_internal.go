package session

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/previewbox/orchestrator/internal/httpapi"
)

// InternalHandler exposes the gateway-internal surface (spec §4.1, §6):
// resolveSession plus the three lifecycle transitions. Every route here is
// expected to sit behind signing.Middleware in the composition root.
type InternalHandler struct {
	svc *Service
}

// NewInternalHandler wraps a Service for mounting behind HMAC verification.
func NewInternalHandler(svc *Service) *InternalHandler {
	return &InternalHandler{svc: svc}
}

// Routes returns the gateway-internal chi.Router.
func (h *InternalHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/api/preview/sessions/{token}", h.resolveSession)
	r.Post("/internal/sessions/{token}/claim", h.markProvisioning)
	r.Post("/internal/sessions/{token}/ready", h.markReady)
	r.Post("/internal/sessions/{token}/failed", h.markFailed)
	r.Post("/internal/capacity/report", h.reportCapacity)
	r.Get("/internal/sessions/active-schemas", h.activeSchemaNames)
	return r
}

func (h *InternalHandler) activeSchemaNames(w http.ResponseWriter, r *http.Request) {
	names, err := h.svc.ActiveSchemaNames(r.Context())
	if err != nil {
		httpapi.InternalError(w, http.StatusInternalServerError, "INTERNAL")
		return
	}
	schemaNames := make([]string, 0, len(names))
	for name := range names {
		schemaNames = append(schemaNames, name)
	}
	httpapi.InternalOK(w, http.StatusOK, map[string][]string{"schemaNames": schemaNames})
}

func (h *InternalHandler) resolveSession(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	resolved, err := h.svc.ResolveSession(r.Context(), token)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpapi.InternalOK(w, http.StatusOK, resolved)
}

func (h *InternalHandler) markProvisioning(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	err := h.svc.MarkProvisioning(r.Context(), token)
	switch {
	case err == nil:
		httpapi.InternalAck(w)
	case errors.Is(err, ErrAlreadyClaimed):
		httpapi.InternalError(w, http.StatusConflict, "ALREADY_CLAIMED")
	case errors.Is(err, ErrNotFound):
		httpapi.InternalError(w, http.StatusNotFound, "NOT_FOUND")
	default:
		httpapi.InternalError(w, http.StatusInternalServerError, "INTERNAL")
	}
}

type markReadyRequest struct {
	SchemaName string `json:"schemaName" validate:"required"`
}

func (h *InternalHandler) markReady(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	var req markReadyRequest
	if !httpapi.DecodeAndValidate(w, r, &req) {
		return
	}
	if err := h.svc.MarkReady(r.Context(), token, req.SchemaName); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpapi.InternalError(w, http.StatusNotFound, "NOT_FOUND")
			return
		}
		httpapi.InternalError(w, http.StatusInternalServerError, "INTERNAL")
		return
	}
	httpapi.InternalAck(w)
}

func (h *InternalHandler) markFailed(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := h.svc.MarkFailed(r.Context(), token); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpapi.InternalError(w, http.StatusNotFound, "NOT_FOUND")
			return
		}
		httpapi.InternalError(w, http.StatusInternalServerError, "INTERNAL")
		return
	}
	httpapi.InternalAck(w)
}

func (h *InternalHandler) reportCapacity(w http.ResponseWriter, r *http.Request) {
	var report CapacityReport
	if !httpapi.DecodeAndValidate(w, r, &report) {
		return
	}
	h.svc.RecordCapacity(report)
	httpapi.InternalAck(w)
}
