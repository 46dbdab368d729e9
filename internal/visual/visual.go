// Package visual critiques a trailer's visual storytelling with a
// multimodal model, independent of any transcript.
package visual

import "context"

// Timestamp marks a notable visual moment in the trailer, MM:SS format.
type Timestamp struct {
	Time        string `json:"time"`
	Description string `json:"description"`
}

// Analysis is the structured visual critique of a trailer.
type Analysis struct {
	VisualAnalysis string      `json:"visualAnalysis"`
	Timestamps     []Timestamp `json:"timestamps"`
	EmotionalTone  string      `json:"emotionalTone"`
	VisualStyle    string      `json:"visualStyle"`
}

// Analyzer produces a visual critique from a trailer watch URL.
type Analyzer interface {
	AnalyzeTrailer(ctx context.Context, watchURL string) (Analysis, error)
}
