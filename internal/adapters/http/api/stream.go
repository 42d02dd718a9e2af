// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/vigil/internal/app"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"
)

// Stream timing constants.
const (
	streamWriteTimeout = 10 * time.Second
	streamReadLimit    = 4 << 20 // snapshot JPEGs ride along with landmarks
)

// StreamHandler serves the WebSocket frame stream at
// GET /sessions/{token}/stream. Each inbound message is one frame; after
// every accepted frame the current session status is pushed back, so the
// client sees level changes without polling.
type StreamHandler struct {
	deps     Dependencies
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(deps Dependencies) *StreamHandler {
	return &StreamHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The engine sits behind the exam platform's gateway, which
			// owns origin policy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.Get().Named("stream"),
	}
}

// streamAck is the per-frame reply on the WebSocket stream.
type streamAck struct {
	Status    string `json:"status"`
	FrameID   string `json:"frame_id"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Error     string `json:"error,omitempty"`
	Session   any    `json:"session,omitempty"`
}

// HandleStream upgrades the connection and pumps frames into the session.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	token, rest, ok := splitSessionPath(r.URL.Path)
	if !ok || rest != "stream" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		metrics.RecordErrorByComponent("stream", "upgrade_failed")
		return
	}
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(streamReadLimit)

	ctx := r.Context()
	h.logger.Info(ctx, "frame stream opened", logger.String("token", token))

	for {
		var req frameRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn(ctx, "frame stream aborted", logger.String("token", token), logger.Error(err))
			}
			return
		}

		ack := h.ingest(r, token, req)
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(ack); err != nil {
			return
		}
	}
}

func (h *StreamHandler) ingest(r *http.Request, token string, req frameRequest) streamAck {
	if err := req.validate(); err != nil {
		return streamAck{Status: "rejected", FrameID: req.FrameID, Error: err.Error()}
	}
	if h.deps.SeenAndRecord(r.Context(), req.FrameID) {
		return streamAck{Status: "duplicate", FrameID: req.FrameID, Duplicate: true}
	}
	if err := h.deps.OfferFrame(r.Context(), token, req.toFrame(token)); err != nil {
		h.deps.Unrecord(r.Context(), req.FrameID)
		if errors.Is(err, app.ErrSessionNotFound) {
			return streamAck{Status: "rejected", FrameID: req.FrameID, Error: "session not found"}
		}
		return streamAck{Status: "rejected", FrameID: req.FrameID, Error: err.Error()}
	}

	ack := streamAck{Status: "accepted", FrameID: req.FrameID}
	if st, err := h.deps.Status(r.Context(), token); err == nil {
		ack.Session = st
	}
	return ack
}
