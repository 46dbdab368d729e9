package analyses

import (
	"time"
	"unicode/utf8"

	"sorot-backend/internal/synopsis"
	"sorot-backend/internal/synthesis"
	"sorot-backend/internal/trailer"
	"sorot-backend/internal/visual"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// TotalSteps is the number of coarse pipeline steps reported to pollers.
const TotalSteps = 5

// transcriptPreviewLen caps the transcript carried in the final result.
const transcriptPreviewLen = 1000

// Progress is the poller-visible state of one analysis run. Result is set
// only in the completed state, Error only in the failed state.
type Progress struct {
	Status      string        `json:"status"`
	CurrentStep int           `json:"currentStep"`
	TotalSteps  int           `json:"totalSteps"`
	StepName    string        `json:"stepName"`
	Progress    int           `json:"progress"`
	Result      *FilmAnalysis `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`

	UpdatedAt time.Time `json:"-"`
}

// Terminal reports whether the run has finished, successfully or not.
func (p Progress) Terminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed
}

// AudioBriefing points at the spoken summary of the verdict.
type AudioBriefing struct {
	URL         string    `json:"url"`
	Duration    float64   `json:"duration"`
	Voice       string    `json:"voice"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// ProcessingStats records per-stage wall time in milliseconds.
type ProcessingStats struct {
	TranscriptionTime   int64 `json:"transcriptionTime"`
	AnalysisTime        int64 `json:"analysisTime"`
	AudioGenerationTime int64 `json:"audioGenerationTime"`
	TotalTime           int64 `json:"totalTime"`
}

// FilmAnalysis is the assembled pipeline result. Scores and Insights are
// populated together or not at all.
type FilmAnalysis struct {
	ID             string             `json:"id"`
	Synopsis       synopsis.Synopsis  `json:"synopsis"`
	TrailerURL     string             `json:"trailerUrl"`
	Trailer        trailer.Trailer    `json:"trailer"`
	Transcript     string             `json:"transcript,omitempty"`
	VisualAnalysis *visual.Analysis   `json:"visualAnalysis,omitempty"`
	Scores         synthesis.Scores   `json:"scores"`
	Insights       synthesis.Insights `json:"insights"`
	AudioBriefing  *AudioBriefing     `json:"audioBriefing,omitempty"`
	ModelUsed      string             `json:"modelUsed"`
	Stats          ProcessingStats    `json:"processingStats"`
	CreatedAt      time.Time          `json:"createdAt"`
	CompletedAt    time.Time          `json:"completedAt"`
}

// transcriptPreview trims a transcript for inclusion in the result payload.
func transcriptPreview(transcript string) string {
	if len(transcript) <= transcriptPreviewLen {
		return transcript
	}
	return truncateRunes(transcript, transcriptPreviewLen) + "..."
}

// truncateRunes caps s at max bytes, backing up so a multi-byte rune is
// never split.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
