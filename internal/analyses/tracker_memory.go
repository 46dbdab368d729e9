package analyses

import (
	"context"
	"sync"
	"time"
)

// retention is how long terminal entries stay readable before being purged.
const retention = 30 * time.Minute

// MemoryTracker stores progress in memory and is safe for concurrent use.
// Terminal entries are purged opportunistically once they age past the
// retention window.
type MemoryTracker struct {
	mu        sync.RWMutex
	entries   map[string]Progress
	now       func() time.Time
	lastPurge time.Time
}

// NewMemoryTracker constructs a MemoryTracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		entries: make(map[string]Progress),
		now:     time.Now,
	}
}

// Update records a non-terminal step transition. A completed or failed run
// is never moved back to processing.
func (t *MemoryTracker) Update(ctx context.Context, analysisID string, step int, stepName string, pct int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.entries[analysisID]; ok && existing.Terminal() {
		return nil
	}
	t.entries[analysisID] = Progress{
		Status:      StatusProcessing,
		CurrentStep: step,
		TotalSteps:  TotalSteps,
		StepName:    stepName,
		Progress:    pct,
		UpdatedAt:   t.now(),
	}
	t.purgeLocked()
	return nil
}

// Complete moves the run to its successful terminal state with the result.
// An already settled run keeps its first terminal state.
func (t *MemoryTracker) Complete(ctx context.Context, analysisID string, result FilmAnalysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.entries[analysisID]; ok && existing.Terminal() {
		return nil
	}
	t.entries[analysisID] = Progress{
		Status:      StatusCompleted,
		CurrentStep: TotalSteps,
		TotalSteps:  TotalSteps,
		StepName:    "Analysis Complete",
		Progress:    100,
		Result:      &result,
		UpdatedAt:   t.now(),
	}
	t.purgeLocked()
	return nil
}

// Fail moves the run to its failed terminal state with a user-facing message.
// An already settled run keeps its first terminal state.
func (t *MemoryTracker) Fail(ctx context.Context, analysisID string, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.entries[analysisID]; ok && existing.Terminal() {
		return nil
	}
	t.entries[analysisID] = Progress{
		Status:      StatusFailed,
		CurrentStep: 0,
		TotalSteps:  TotalSteps,
		StepName:    "Analysis Failed",
		Progress:    0,
		Error:       message,
		UpdatedAt:   t.now(),
	}
	t.purgeLocked()
	return nil
}

// Get returns the progress for an analysis, or ErrNotFound for unknown or
// already purged IDs.
func (t *MemoryTracker) Get(ctx context.Context, analysisID string) (Progress, error) {
	if err := ctx.Err(); err != nil {
		return Progress{}, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.entries[analysisID]
	if !ok {
		return Progress{}, ErrNotFound
	}
	if p.Terminal() && t.now().Sub(p.UpdatedAt) > retention {
		return Progress{}, ErrNotFound
	}
	return p, nil
}

// purgeLocked drops aged terminal entries. Throttled so a hot store does not
// rescan the map on every write. Caller holds the write lock.
func (t *MemoryTracker) purgeLocked() {
	now := t.now()
	if now.Sub(t.lastPurge) < time.Minute {
		return
	}
	t.lastPurge = now
	for id, p := range t.entries {
		if p.Terminal() && now.Sub(p.UpdatedAt) > retention {
			delete(t.entries, id)
		}
	}
}

var _ Tracker = (*MemoryTracker)(nil)
