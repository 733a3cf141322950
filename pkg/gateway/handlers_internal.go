package gateway

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/previewbox/orchestrator/internal/httpapi"
	"github.com/previewbox/orchestrator/pkg/sandbox"
	"github.com/previewbox/orchestrator/pkg/schema"
)

// InternalHandler exposes the Gateway's internal routes called by the
// Authority (spec §6 "Gateway internal routes").
type InternalHandler struct {
	provisioner *schema.Provisioner
	pipeline    *Pipeline
	mockEmail   *sandbox.MockEmailProvider
}

// NewInternalHandler wires the Schema Manager, the pipeline (for session
// cache invalidation), and the mock email store (for the inspection route).
func NewInternalHandler(provisioner *schema.Provisioner, pipeline *Pipeline, mockEmail *sandbox.MockEmailProvider) *InternalHandler {
	return &InternalHandler{provisioner: provisioner, pipeline: pipeline, mockEmail: mockEmail}
}

// Routes returns the gateway-internal chi.Router, expected to sit behind
// signing.Middleware in the composition root.
func (h *InternalHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/internal/schemas/provision", h.provision)
	r.Delete("/internal/schemas/{schemaName}", h.drop)
	r.Post("/internal/sessions/invalidate", h.invalidateSession)
	r.Get("/internal/emails/{sessionToken}", h.getEmails)
	return r
}

type provisionRequest struct {
	SessionToken string   `json:"sessionToken" validate:"required"`
	Features     []string `json:"features"`
	Tier         string   `json:"tier" validate:"required"`
}

func (h *InternalHandler) provision(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if !httpapi.DecodeAndValidate(w, r, &req) {
		return
	}

	schemaName, err := h.provisioner.Provision(r.Context(), req.SessionToken, req.Features, req.Tier)
	if err != nil {
		if errors.Is(err, schema.ErrCapacityExhausted) {
			httpapi.InternalError(w, http.StatusServiceUnavailable, "CAPACITY_EXHAUSTED")
			return
		}
		httpapi.InternalError(w, http.StatusInternalServerError, "PROVISION_FAILED")
		return
	}

	httpapi.InternalOK(w, http.StatusCreated, map[string]string{"schemaName": schemaName})
}

func (h *InternalHandler) drop(w http.ResponseWriter, r *http.Request) {
	schemaName := chi.URLParam(r, "schemaName")
	if err := h.provisioner.Drop(r.Context(), schemaName); err != nil {
		httpapi.InternalError(w, http.StatusInternalServerError, "DROP_FAILED")
		return
	}
	httpapi.InternalAck(w)
}

type invalidateRequest struct {
	SessionToken string `json:"sessionToken" validate:"required"`
}

func (h *InternalHandler) invalidateSession(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if !httpapi.DecodeAndValidate(w, r, &req) {
		return
	}
	h.pipeline.InvalidateSession(req.SessionToken)
	httpapi.InternalAck(w)
}

func (h *InternalHandler) getEmails(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "sessionToken")
	httpapi.InternalOK(w, http.StatusOK, h.mockEmail.GetEmails(token))
}
