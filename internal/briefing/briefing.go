// Package briefing renders the verdict as a spoken audio summary.
package briefing

import (
	"context"

	"sorot-backend/internal/synthesis"
)

// Delivery modes for the generated audio.
const (
	DeliveryInline = "inline" // base64 data URI in the result payload
	DeliveryStore  = "store"  // persisted to the object store, key returned
)

// Generator produces an audio briefing for a finished verdict and returns
// either a data URI or a storage key, depending on delivery mode.
type Generator interface {
	Generate(ctx context.Context, analysisID string, verdict synthesis.Verdict) (string, error)
}
