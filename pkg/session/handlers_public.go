package session

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/previewbox/orchestrator/internal/httpapi"
)

// PublicHandler exposes the configurator-facing surface (spec §4.1): create,
// read, heartbeat, and list sessions, plus a read-only capacity probe.
type PublicHandler struct {
	svc *Service
}

// NewPublicHandler wraps a Service for mounting into a chi router.
func NewPublicHandler(svc *Service) *PublicHandler {
	return &PublicHandler{svc: svc}
}

// Routes returns the configurator-facing chi.Router.
func (h *PublicHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/sessions", h.createSession)
	r.Get("/sessions", h.listSessionsForIp)
	r.Get("/sessions/{token}", h.getSession)
	r.Post("/sessions/{token}/heartbeat", h.heartbeat)
	r.Get("/capacity", h.capacity)
	return r
}

type createSessionRequest struct {
	Features []string `json:"features" validate:"required,min=1,dive,required"`
	Tier     string   `json:"tier" validate:"required"`
}

type createSessionResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

func (h *PublicHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !httpapi.DecodeAndValidate(w, r, &req) {
		return
	}

	sess, err := h.svc.CreateSession(r.Context(), CreateParams{
		Features: req.Features,
		Tier:     req.Tier,
		OriginIP: clientIP(r),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpapi.OK(w, http.StatusCreated, createSessionResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt.Format(timeLayout),
	})
}

func (h *PublicHandler) getSession(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	sess, err := h.svc.GetSession(r.Context(), token)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpapi.OK(w, http.StatusOK, sessionView(sess))
}

func (h *PublicHandler) heartbeat(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	newExpiry, err := h.svc.Heartbeat(r.Context(), token)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpapi.OK(w, http.StatusOK, map[string]string{"expiresAt": newExpiry.Format(timeLayout)})
}

func (h *PublicHandler) listSessionsForIp(w http.ResponseWriter, r *http.Request) {
	ip := r.URL.Query().Get("ip")
	if ip == "" {
		ip = clientIP(r)
	}
	sessions, err := h.svc.ListSessionsForIp(r.Context(), ip)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	views := make([]sessionViewDTO, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView(s))
	}
	httpapi.OK(w, http.StatusOK, views)
}

func (h *PublicHandler) capacity(w http.ResponseWriter, r *http.Request) {
	httpapi.OK(w, http.StatusOK, h.svc.CapacitySnapshot())
}

type sessionViewDTO struct {
	Token        string   `json:"token"`
	Features     []string `json:"features"`
	Tier         string   `json:"tier"`
	SchemaStatus Status   `json:"schemaStatus"`
	ExpiresAt    string   `json:"expiresAt"`
}

func sessionView(s *Session) sessionViewDTO {
	return sessionViewDTO{
		Token:        s.Token,
		Features:     s.Features,
		Tier:         s.Tier,
		SchemaStatus: s.SchemaStatus,
		ExpiresAt:    s.ExpiresAt.Format(timeLayout),
	}
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpapi.Fail(w, http.StatusNotFound, "NOT_FOUND", "session not found")
	case errors.Is(err, ErrExpired):
		httpapi.Fail(w, http.StatusGone, "EXPIRED", "session has expired")
	case errors.Is(err, ErrAlreadyClaimed):
		httpapi.Fail(w, http.StatusConflict, "ALREADY_CLAIMED", "session is already being provisioned")
	case errors.Is(err, ErrTooManySessionsForIp):
		httpapi.Fail(w, http.StatusTooManyRequests, "TOO_MANY_SESSIONS_FOR_IP", "too many concurrent sessions for this ip")
	case errors.Is(err, ErrCapacityExhausted):
		httpapi.Fail(w, http.StatusServiceUnavailable, "CAPACITY_EXHAUSTED", "no preview capacity available")
	case errors.Is(err, ErrInvalidFeatures):
		httpapi.Fail(w, http.StatusBadRequest, "INVALID_FEATURES", "one or more requested features is invalid")
	default:
		httpapi.Fail(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

// clientIP extracts the origin IP, preferring a forwarded header set by a
// trusted proxy in front of the configurator surface.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host := r.RemoteAddr
	if idx := lastColon(host); idx >= 0 {
		return host[:idx]
	}
	return host
}

func lastColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return i
		}
	}
	return -1
}
