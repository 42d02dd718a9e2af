// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/vigil/internal/domain/behavior"
	"github.com/okian/vigil/internal/domain/geometry"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Frame idempotency. SeenAndRecord marks a frame id seen and reports
	// whether it already was; Unrecord rolls the mark back when delivery
	// fails downstream.
	SeenAndRecord(ctx context.Context, id string) bool
	Unrecord(ctx context.Context, id string)

	// Session lifecycle.
	Register(ctx context.Context, token string) (bool, error)
	Remove(ctx context.Context, token string) error

	// Calibration and detection control.
	Calibrate(ctx context.Context, token string, sets []behavior.Faces) (types.CalibrationResult, error)
	StartDetection(ctx context.Context, token string, overrides *types.StartOverrides) error
	StopDetection(ctx context.Context, token string) error

	// Frame ingest.
	OfferFrame(ctx context.Context, token string, f model.Frame) error

	// Read operations expose session state.
	Status(ctx context.Context, token string) (types.SessionStatus, error)
	TopSuspects(ctx context.Context, n int) []types.SessionStatus
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	sessionsHandler *SessionsHandler
	monitorHandler  *MonitorHandler
	streamHandler   *StreamHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		sessionsHandler: NewSessionsHandler(deps),
		monitorHandler:  NewMonitorHandler(deps),
		streamHandler:   NewStreamHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/monitor", MetricsMiddleware(s.monitorHandler.HandleMonitor, "monitor"))
	mux.HandleFunc("/sessions", MetricsMiddleware(s.sessionsHandler.HandleCreate, "sessions"))
	mux.HandleFunc("/sessions/", s.routeSession)
}

// routeSession dispatches /sessions/{token}/... requests. The WebSocket
// stream bypasses the metrics middleware: the upgrade needs the raw
// ResponseWriter's Hijacker.
func (s *Server) routeSession(w http.ResponseWriter, r *http.Request) {
	if _, rest, ok := splitSessionPath(r.URL.Path); ok && rest == "stream" {
		s.streamHandler.HandleStream(w, r)
		return
	}
	MetricsMiddleware(s.sessionsHandler.HandleSession, "session")(w, r)
}

// frameRequest mirrors the OpenAPI schema for POST /sessions/{token}/frames
// and the WebSocket frame stream. Snapshot carries an optional base64 JPEG.
type frameRequest struct {
	FrameID  string                 `json:"frame_id"`
	Faces    []geometry.LandmarkSet `json:"faces"`
	Snapshot []byte                 `json:"snapshot,omitempty"`
	TS       string                 `json:"ts"`
}

func (f frameRequest) validate() error {
	switch {
	case strings.TrimSpace(f.FrameID) == "":
		return errors.New("missing frame_id")
	case strings.TrimSpace(f.TS) == "":
		return errors.New("missing ts")
	}
	if _, err := time.Parse(time.RFC3339, f.TS); err != nil {
		return errors.New("invalid ts; must be RFC3339")
	}
	return nil
}

func (f frameRequest) toFrame(token string) model.Frame {
	ts, _ := time.Parse(time.RFC3339, f.TS)
	return model.Frame{
		FrameID:   f.FrameID,
		Token:     token,
		Faces:     f.Faces,
		Snapshot:  f.Snapshot,
		Timestamp: ts,
	}
}

// calibrateRequest carries the landmark sets collected during the hold-still
// phase at the client.
type calibrateRequest struct {
	Samples []geometry.LandmarkSet `json:"samples"`
}

type createSessionRequest struct {
	Token string `json:"token"`
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
