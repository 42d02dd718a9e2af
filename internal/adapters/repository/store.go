// Package repository persists per-session identity baselines and
// calibration data so a later page or process can recover them without
// recomputation.
package repository

import (
	"context"

	"github.com/okian/vigil/internal/domain/behavior"
	"github.com/okian/vigil/internal/domain/identity"
)

// Record bundles everything calibration produces for one session token.
// Serialized as plain numeric arrays; a length mismatch against the current
// feature schema on load is treated as corrupt (equivalent to absent).
type Record struct {
	Baseline    identity.Baseline        `json:"baseline"`
	Calibration behavior.CalibrationData `json:"calibration"`
}

// Store provides read/write access to persisted calibration records.
type Store interface {
	// Save persists the record for token, replacing any previous one.
	Save(ctx context.Context, token string, rec Record) error

	// Load returns the record for token. Returns ErrNotFound when the
	// token has no record or the stored record fails schema validation.
	Load(ctx context.Context, token string) (Record, error)

	// Delete removes the record for token. Deleting an absent record is
	// a no-op.
	Delete(ctx context.Context, token string) error

	// Close releases the underlying storage.
	Close() error
}
