// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/vigil/internal/app"
	"github.com/okian/vigil/internal/domain/identity"
	"github.com/okian/vigil/internal/domain/types"
)

// SessionsHandler handles the session lifecycle routes.
type SessionsHandler struct {
	deps Dependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps Dependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// HandleCreate handles POST /sessions. An empty or absent token gets a
// generated one; registering an existing token is a no-op acknowledged with
// 200 rather than 201.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		token = uuid.NewString()
	}

	created, err := h.deps.Register(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrServe, err))
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]string{"token": token})
}

// HandleSession dispatches /sessions/{token} and its subroutes.
func (h *SessionsHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	token, rest, ok := splitSessionPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch {
	case rest == "" && r.Method == http.MethodDelete:
		h.handleRemove(w, r, token)
	case rest == "calibrate" && r.Method == http.MethodPost:
		h.handleCalibrate(w, r, token)
	case rest == "detection/start" && r.Method == http.MethodPost:
		h.handleStart(w, r, token)
	case rest == "detection/stop" && r.Method == http.MethodPost:
		h.handleStop(w, r, token)
	case rest == "frames" && r.Method == http.MethodPost:
		h.handleFrame(w, r, token)
	case rest == "status" && r.Method == http.MethodGet:
		h.handleStatus(w, r, token)
	default:
		http.NotFound(w, r)
	}
}

// splitSessionPath turns /sessions/{token}[/rest...] into its parts.
func splitSessionPath(path string) (token, rest string, ok bool) {
	trimmed := strings.TrimPrefix(path, "/sessions/")
	if trimmed == path || trimmed == "" {
		return "", "", false
	}
	token, rest, _ = strings.Cut(trimmed, "/")
	if token == "" {
		return "", "", false
	}
	return token, strings.TrimSuffix(rest, "/"), true
}

func (h *SessionsHandler) handleCalibrate(w http.ResponseWriter, r *http.Request, token string) {
	const op = "api.calibrate"
	var req calibrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, errors.New("missing samples")))
		return
	}

	res, err := h.deps.Calibrate(r.Context(), token, req.Samples)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, app.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, identity.ErrInsufficientSamples):
		// The client can retry with a longer hold-still phase.
		writeJSON(w, http.StatusUnprocessableEntity, res)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}

func (h *SessionsHandler) handleStart(w http.ResponseWriter, r *http.Request, token string) {
	const op = "api.start_detection"
	var overrides *types.StartOverrides
	if r.ContentLength != 0 {
		overrides = &types.StartOverrides{}
		if err := json.NewDecoder(r.Body).Decode(overrides); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	if err := h.deps.StartDetection(r.Context(), token, overrides); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "detecting"})
}

func (h *SessionsHandler) handleStop(w http.ResponseWriter, r *http.Request, token string) {
	if err := h.deps.StopDetection(r.Context(), token); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (h *SessionsHandler) handleStatus(w http.ResponseWriter, r *http.Request, token string) {
	st, err := h.deps.Status(r.Context(), token)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *SessionsHandler) handleRemove(w http.ResponseWriter, r *http.Request, token string) {
	if err := h.deps.Remove(r.Context(), token); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionsHandler) handleFrame(w http.ResponseWriter, r *http.Request, token string) {
	const op = "api.post_frame"
	var req frameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	// Idempotency check - mark as seen first
	if h.deps.SeenAndRecord(r.Context(), req.FrameID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	if err := h.deps.OfferFrame(r.Context(), token, req.toFrame(token)); err != nil {
		// Rollback the "seen" status since delivery failed
		h.deps.Unrecord(r.Context(), req.FrameID)
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Duplicate: false})
}

// writeSessionError translates registry errors into HTTP responses.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, app.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}
