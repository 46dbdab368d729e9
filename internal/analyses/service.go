package analyses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sorot-backend/internal/briefing"
	"sorot-backend/internal/media"
	"sorot-backend/internal/queue"
	"sorot-backend/internal/shared/metrics"
	"sorot-backend/internal/shared/telemetry"
	"sorot-backend/internal/synopsis"
	"sorot-backend/internal/synthesis"
	"sorot-backend/internal/trailer"
	"sorot-backend/internal/transcribe"
	"sorot-backend/internal/visual"
)

const mockTranscript = "Mock transcription: This is a sample transcript from the film trailer. The story follows a young filmmaker discovering the magic of Indonesian cinema."

// Service runs the film analysis pipeline. Every external dependency comes
// in as an interface so policies and providers can be swapped per
// deployment.
type Service struct {
	Tracker     Tracker
	Downloader  media.Downloader
	Transcriber transcribe.Transcriber
	Visual      visual.Analyzer
	Primary     synthesis.Provider
	Fallback    synthesis.Provider
	Briefing    briefing.Generator

	// Queue, when set, hands runs to an external worker instead of an
	// in-process goroutine.
	Queue queue.Client

	// UseRealAPIs false short-circuits every provider with canned output.
	UseRealAPIs bool
	// VisualFirst makes the visual critique mandatory and fatal, and always
	// synthesizes with the primary provider. Off, routing is by transcript
	// word count.
	VisualFirst bool
	// StrictBriefing turns a briefing failure into a pipeline failure
	// instead of a degraded result.
	StrictBriefing bool
	// WordThreshold is the transcript word count below which the fallback
	// provider is chosen. Zero means the default.
	WordThreshold int
	// Voice is recorded on the audio briefing metadata.
	Voice string
}

// StartRequest is the validated input for one analysis run.
type StartRequest struct {
	Payload    string // base64 synopsis document or text
	Kind       string // synopsis.KindFile or synopsis.KindText
	TrailerURL string
}

// Start validates the trailer URL, registers initial progress, and launches
// the pipeline in the background. The returned ID is immediately pollable.
func (s *Service) Start(ctx context.Context, req StartRequest) (string, error) {
	if err := trailer.Validate(req.TrailerURL); err != nil {
		return "", err
	}

	analysisID := uuid.NewString()
	if err := s.Tracker.Update(ctx, analysisID, 1, "Processing PDF", 0); err != nil {
		return "", fmt.Errorf("register progress: %w", err)
	}

	s.dispatch(ctx, analysisID, req)

	telemetry.Info("analysis.started", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": analysisID,
		"trailer_url": req.TrailerURL,
		"input_type":  req.Kind,
	})
	return analysisID, nil
}

// dispatch enqueues the run when a queue is configured, falling back to an
// in-process goroutine when enqueueing fails or no queue is set.
func (s *Service) dispatch(ctx context.Context, analysisID string, req StartRequest) {
	if s.Queue != nil {
		msg := queue.Message{
			AnalysisID: analysisID,
			RequestID:  requestIDFromContext(ctx),
			Payload:    req.Payload,
			InputType:  req.Kind,
			TrailerURL: req.TrailerURL,
			EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
			Version:    1,
		}
		err := s.Queue.Send(ctx, msg)
		if err == nil {
			return
		}
		telemetry.Warn("analysis.enqueue", map[string]any{
			"analysis_id": analysisID, "error": err.Error(),
		})
	}
	go s.run(backgroundWithRequestID(ctx), analysisID, req)
}

// Get returns the progress for an analysis.
func (s *Service) Get(ctx context.Context, analysisID string) (Progress, error) {
	if analysisID == "" {
		return Progress{}, errors.New("analysisID is required")
	}
	return s.Tracker.Get(ctx, analysisID)
}

// Run executes the pipeline synchronously for an already registered
// analysis. Queue consumers call this instead of Start. A redelivered run
// whose record is already terminal is skipped so the settled outcome stands.
func (s *Service) Run(ctx context.Context, analysisID string, req StartRequest) error {
	if existing, err := s.Tracker.Get(ctx, analysisID); err == nil && existing.Terminal() {
		telemetry.Info("analysis.redelivery_skipped", map[string]any{
			"analysis_id": analysisID, "status": existing.Status,
		})
		return nil
	}
	if err := trailer.Validate(req.TrailerURL); err != nil {
		s.fail(ctx, analysisID, err, nil)
		return err
	}
	return s.run(ctx, analysisID, req)
}

// run drives the five pipeline steps and settles the tracker exactly once.
func (s *Service) run(ctx context.Context, analysisID string, req StartRequest) (runErr error) {
	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("panic: %v", r)
			s.fail(ctx, analysisID, runErr, nil)
		}
	}()

	startedAt := time.Now().UTC()
	metrics.IncPipelineStarted()

	update := func(step int, stepName string, pct int) {
		if err := s.Tracker.Update(ctx, analysisID, step, stepName, pct); err != nil {
			telemetry.Warn("analysis.progress_update", map[string]any{
				"analysis_id": analysisID, "step": step, "error": err.Error(),
			})
		}
	}

	// Step 1: synopsis extraction and trailer resolution.
	update(1, "Processing PDF", 20)
	syn, err := synopsis.Extract(req.Payload, req.Kind)
	if err != nil {
		s.fail(ctx, analysisID, err, &startedAt)
		return err
	}
	update(1, "Extracting Synopsis", 40)

	tr, err := trailer.Resolve(req.TrailerURL)
	if err != nil {
		s.fail(ctx, analysisID, err, &startedAt)
		return err
	}
	watchURL := trailer.WatchURL(tr.VideoID)

	// Step 2: trailer audio download, best effort.
	update(2, "Downloading Trailer", 50)
	var audio *media.AudioFile
	if s.UseRealAPIs {
		audio, err = s.Downloader.DownloadAudio(ctx, req.TrailerURL)
		if err != nil {
			telemetry.Warn("analysis.audio_download", map[string]any{
				"analysis_id": analysisID, "error": err.Error(),
			})
			audio = nil
		}
	}
	if audio != nil {
		defer audio.Cleanup()
	}
	update(2, "Downloading Trailer", 70)

	// Step 3: transcription, best effort with a fixed fallback.
	update(3, "Transcribing Audio", 75)
	transcript, transcribeMs := s.transcribeStep(ctx, analysisID, audio)
	update(3, "Transcribing Audio", 85)

	// Step 4: visual critique and verdict synthesis.
	update(4, "AI Analysis", 90)
	synthStart := time.Now()
	verdict, vis, err := s.synthesizeStep(ctx, analysisID, syn, transcript, watchURL)
	if err != nil {
		s.fail(ctx, analysisID, err, &startedAt)
		return err
	}
	synthMs := time.Since(synthStart).Milliseconds()
	metrics.ObserveSynthesisDurationMs(float64(synthMs))
	update(4, "AI Analysis", 95)

	// Step 5: audio briefing.
	update(5, "Generating Audio Brief", 98)
	briefStart := time.Now()
	audioBriefing, err := s.briefingStep(ctx, analysisID, verdict)
	if err != nil {
		s.fail(ctx, analysisID, err, &startedAt)
		return err
	}
	briefMs := time.Since(briefStart).Milliseconds()

	completedAt := time.Now().UTC()
	result := FilmAnalysis{
		ID:             analysisID,
		Synopsis:       syn,
		TrailerURL:     req.TrailerURL,
		Trailer:        tr,
		Transcript:     transcriptPreview(transcript),
		VisualAnalysis: vis,
		Scores:         verdict.Scores,
		Insights:       verdict.Insights,
		AudioBriefing:  audioBriefing,
		ModelUsed:      verdict.AIModel,
		Stats: ProcessingStats{
			TranscriptionTime:   transcribeMs,
			AnalysisTime:        synthMs,
			AudioGenerationTime: briefMs,
			TotalTime:           completedAt.Sub(startedAt).Milliseconds(),
		},
		CreatedAt:   startedAt,
		CompletedAt: completedAt,
	}

	if err := s.Tracker.Complete(ctx, analysisID, result); err != nil {
		telemetry.Error("analysis.complete_update", map[string]any{
			"analysis_id": analysisID, "error": err.Error(),
		})
		return err
	}

	metrics.IncPipelineCompleted()
	metrics.ObservePipelineDurationMs(float64(result.Stats.TotalTime))
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       analysisID,
		"status":            StatusCompleted,
		"status_transition": "processing->completed",
		"model_used":        verdict.AIModel,
		"duration_ms":       result.Stats.TotalTime,
	})
	return nil
}

// transcribeStep returns the transcript and elapsed milliseconds. It never
// fails the pipeline; a missing or broken transcript degrades to the fixed
// fallback string.
func (s *Service) transcribeStep(ctx context.Context, analysisID string, audio *media.AudioFile) (string, int64) {
	if !s.UseRealAPIs {
		return mockTranscript, 0
	}
	if audio == nil {
		metrics.IncTranscriptFallback()
		return transcribe.Fallback, 0
	}

	start := time.Now()
	transcript, err := s.Transcriber.Transcribe(ctx, audio.Path)
	elapsed := time.Since(start).Milliseconds()
	metrics.ObserveTranscribeDurationMs(float64(elapsed))
	if err != nil {
		telemetry.Warn("analysis.transcription", map[string]any{
			"analysis_id": analysisID, "error": err.Error(),
		})
		metrics.IncTranscriptFallback()
		return transcribe.Fallback, elapsed
	}
	return transcript, elapsed
}

// synthesizeStep produces the verdict, plus the visual critique when the
// policy calls for one. Synthesis failure is fatal for the run.
func (s *Service) synthesizeStep(ctx context.Context, analysisID string, syn synopsis.Synopsis, transcript, watchURL string) (synthesis.Verdict, *visual.Analysis, error) {
	if !s.UseRealAPIs {
		return synthesis.MockVerdict(), nil, nil
	}

	in := synthesis.Input{
		Synopsis:   syn.Content,
		Transcript: transcript,
		TrailerURL: watchURL,
	}

	if s.VisualFirst {
		vis, err := s.Visual.AnalyzeTrailer(ctx, watchURL)
		if err != nil {
			return synthesis.Verdict{}, nil, fmt.Errorf("visual analysis: %w", err)
		}
		in.Visual = &vis
		verdict, err := s.synthesizeWithFallback(ctx, analysisID, in)
		if err != nil {
			return synthesis.Verdict{}, nil, err
		}
		return verdict, &vis, nil
	}

	words := synthesis.WordCount(transcript)
	tag := synthesis.ChooseProvider(words, s.WordThreshold)
	telemetry.Info("analysis.routing", map[string]any{
		"analysis_id": analysisID, "transcript_words": words, "provider": string(tag),
	})

	if tag == synthesis.ProviderVisual {
		verdict, err := s.Fallback.Synthesize(ctx, in)
		if err != nil {
			return synthesis.Verdict{}, nil, fmt.Errorf("synthesis: %w", err)
		}
		return verdict, nil, nil
	}

	verdict, err := s.synthesizeWithFallback(ctx, analysisID, in)
	if err != nil {
		return synthesis.Verdict{}, nil, err
	}
	return verdict, nil, nil
}

// synthesizeWithFallback tries the primary provider, then the visually
// grounded one before giving up.
func (s *Service) synthesizeWithFallback(ctx context.Context, analysisID string, in synthesis.Input) (synthesis.Verdict, error) {
	verdict, err := s.Primary.Synthesize(ctx, in)
	if err == nil {
		return verdict, nil
	}
	telemetry.Warn("analysis.primary_synthesis", map[string]any{
		"analysis_id": analysisID, "error": err.Error(),
	})
	if s.Fallback == nil {
		return synthesis.Verdict{}, fmt.Errorf("synthesis: %w", err)
	}
	verdict, fbErr := s.Fallback.Synthesize(ctx, in)
	if fbErr != nil {
		return synthesis.Verdict{}, fmt.Errorf("synthesis: %w (fallback: %v)", err, fbErr)
	}
	return verdict, nil
}

// briefingStep renders the spoken summary. Failure is fatal only under the
// strict briefing policy; otherwise the result ships without audio.
func (s *Service) briefingStep(ctx context.Context, analysisID string, verdict synthesis.Verdict) (*AudioBriefing, error) {
	generate := s.Briefing.Generate
	if !s.UseRealAPIs {
		generate = (&briefing.Static{}).Generate
	}

	url, err := generate(ctx, analysisID, verdict)
	if err != nil {
		if s.StrictBriefing {
			return nil, fmt.Errorf("audio briefing generation failed: %w", err)
		}
		telemetry.Warn("analysis.briefing", map[string]any{
			"analysis_id": analysisID, "error": err.Error(),
		})
		metrics.IncBriefingDegraded()
		return nil, nil
	}
	return &AudioBriefing{
		URL:         url,
		Voice:       s.Voice,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// fail settles the run in its failed terminal state.
func (s *Service) fail(ctx context.Context, analysisID string, err error, startedAt *time.Time) {
	msg := sanitizeError(err)
	if updateErr := s.Tracker.Fail(context.Background(), analysisID, msg); updateErr != nil {
		telemetry.Error("analysis.fail_update", map[string]any{
			"analysis_id": analysisID, "error": updateErr.Error(), "cause": msg,
		})
	}
	metrics.IncPipelineFailed()

	entry := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       analysisID,
		"status":            StatusFailed,
		"status_transition": "processing->failed",
		"error_code":        classifyFailure(err),
		"error":             msg,
	}
	if startedAt != nil {
		duration := time.Since(*startedAt).Milliseconds()
		entry["duration_ms"] = duration
		metrics.ObservePipelineDurationMs(float64(duration))
	}
	telemetry.Error("analysis.status", entry)
}

// classifyFailure maps a pipeline error onto a coarse code for logs.
func classifyFailure(err error) string {
	switch {
	case err == nil:
		return ErrorCodeInternal
	case errors.Is(err, trailer.ErrInvalidURL),
		errors.Is(err, synopsis.ErrDecode),
		errors.Is(err, synopsis.ErrUnsupported),
		errors.Is(err, synopsis.ErrEmptyText):
		return ErrorCodeValidation
	case errors.Is(err, visual.ErrAPIKey), errors.Is(err, visual.ErrQuota), errors.Is(err, visual.ErrRateLimited):
		return ErrorCodeVisual
	case errors.Is(err, synthesis.ErrBadFormat),
		errors.Is(err, synthesis.ErrCredentials),
		errors.Is(err, synthesis.ErrAccessDenied),
		errors.Is(err, synthesis.ErrBadRequest):
		return ErrorCodeSynthesis
	case strings.Contains(err.Error(), "briefing"):
		return ErrorCodeBriefing
	case strings.Contains(err.Error(), "progress"):
		return ErrorCodeStorage
	default:
		return ErrorCodeInternal
	}
}

// sanitizeError flattens an error into a single-line, bounded message safe
// to hand to pollers.
func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	return truncateRunes(msg, maxLen)
}
