// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/vigil/internal/domain/geometry"
)

// Frame is one landmark payload for a session: the faces the detector found
// in a single video frame. FrameID provides idempotency for retried
// submissions; Timestamp orders frames and lets the scheduler skip stalled
// or duplicate deliveries.
type Frame struct {
	FrameID   string                 // unique id for idempotency
	Token     string                 // owning session token
	Faces     []geometry.LandmarkSet // zero or more detected faces
	Snapshot  []byte                 // optional JPEG/PNG evidence capture
	Timestamp time.Time              // capture time at the client
}

// Violation record types reported to the proctoring backend.
const (
	ViolationImpersonation = "IMPERSONATION"
	ViolationNoFace        = "NO_FACE"
	ViolationBehavior      = "SUSPICIOUS_BEHAVIOR"
)

// Violation is a structured record handed to the reporting sink.
type Violation struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// Evidence is a rate-limited snapshot capture uploaded while a session sits
// at the warning level.
type Evidence struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Image     []byte    `json:"image"`
	Timestamp time.Time `json:"timestamp"`
}
