package analyses

import "context"

// Tracker is the progress store the pipeline reports into and pollers read
// from. Complete and Fail are the only calls that move a run to a terminal
// state; the orchestrator guarantees exactly one of them per run.
type Tracker interface {
	Update(ctx context.Context, analysisID string, step int, stepName string, pct int) error
	Complete(ctx context.Context, analysisID string, result FilmAnalysis) error
	Fail(ctx context.Context, analysisID string, message string) error
	Get(ctx context.Context, analysisID string) (Progress, error)
}
