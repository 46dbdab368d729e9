// Package synthesis builds the structured film verdict by prompting a
// large language model with synopsis, transcript, and visual critique.
package synthesis

import (
	"context"
	"errors"
	"strings"

	"sorot-backend/internal/visual"
)

var (
	// ErrCredentials means the provider rejected the platform credentials.
	ErrCredentials = errors.New("provider credentials not configured properly")
	// ErrAccessDenied means the caller lacks permission for the model.
	ErrAccessDenied = errors.New("access denied to model provider")
	// ErrBadRequest means the provider rejected the request shape.
	ErrBadRequest = errors.New("invalid request to model provider")
	// ErrBadFormat means no valid verdict JSON could be recovered from the
	// model output.
	ErrBadFormat = errors.New("model returned unparseable verdict")
)

// Scores are the six numeric verdict fields, each on a 0-100 scale.
type Scores struct {
	Overall          float64 `json:"overall"`
	Genre            float64 `json:"genre"`
	Theme            float64 `json:"theme"`
	TargetAudience   float64 `json:"targetAudience"`
	TechnicalQuality float64 `json:"technicalQuality"`
	EmotionalImpact  float64 `json:"emotionalImpact"`
}

// Insights are the six structured critique fields.
type Insights struct {
	Genre          []string `json:"genre"`
	Themes         []string `json:"themes"`
	TargetAudience string   `json:"targetAudience"`
	KeyMoments     []string `json:"keyMoments"`
	Strengths      []string `json:"strengths"`
	Suggestions    []string `json:"suggestions"`
}

// Verdict is the assembled model judgment, tagged with the model that
// produced it.
type Verdict struct {
	Scores   Scores   `json:"scores"`
	Insights Insights `json:"insights"`
	AIModel  string   `json:"aiModel"`
}

// Input carries everything a provider may draw on. Visual is nil when no
// visual critique was produced.
type Input struct {
	Synopsis   string
	Transcript string
	TrailerURL string
	Visual     *visual.Analysis
}

// Provider produces a verdict from the assembled input.
type Provider interface {
	Synthesize(ctx context.Context, in Input) (Verdict, error)
}

// ProviderTag identifies which backend a routing decision selected.
type ProviderTag string

const (
	ProviderPrimary ProviderTag = "deepseek"
	ProviderVisual  ProviderTag = "gemini"
)

// DefaultWordThreshold is the transcript quality cutoff for routing.
const DefaultWordThreshold = 50

// ChooseProvider picks a backend from transcript quality alone. A thin
// transcript routes to the visually grounded provider; anything richer goes
// to the primary LLM.
func ChooseProvider(transcriptWordCount, threshold int) ProviderTag {
	if threshold <= 0 {
		threshold = DefaultWordThreshold
	}
	if transcriptWordCount < threshold {
		return ProviderVisual
	}
	return ProviderPrimary
}

// WordCount counts whitespace-separated words in a transcript.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
