package analyses

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"sorot-backend/internal/briefing"
	"sorot-backend/internal/media"
	"sorot-backend/internal/queue"
	"sorot-backend/internal/synthesis"
	"sorot-backend/internal/trailer"
	"sorot-backend/internal/transcribe"
	"sorot-backend/internal/visual"
)

const testTrailerURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func textPayload(t *testing.T, text string) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString([]byte(text))
}

type fakeDownloader struct {
	err   error
	calls atomic.Int32
}

func (f *fakeDownloader) DownloadAudio(_ context.Context, _ string) (*media.AudioFile, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	file, err := os.CreateTemp("", "audio-test-*.m4a")
	if err != nil {
		return nil, err
	}
	if _, err := file.WriteString("audio"); err != nil {
		return nil, err
	}
	file.Close()
	return &media.AudioFile{Path: file.Name(), Size: 5}, nil
}

type recordingProvider struct {
	verdict synthesis.Verdict
	err     error
	calls   atomic.Int32
	lastIn  synthesis.Input
}

func (r *recordingProvider) Synthesize(_ context.Context, in synthesis.Input) (synthesis.Verdict, error) {
	r.calls.Add(1)
	r.lastIn = in
	if r.err != nil {
		return synthesis.Verdict{}, r.err
	}
	return r.verdict, nil
}

func testVerdict(model string) synthesis.Verdict {
	v := synthesis.MockVerdict()
	v.AIModel = model
	return v
}

func newTestService() (*Service, *MemoryTracker) {
	tracker := NewMemoryTracker()
	svc := &Service{
		Tracker:     tracker,
		Downloader:  &fakeDownloader{},
		Transcriber: &transcribe.Static{Transcript: strings.Repeat("word ", 100)},
		Visual:      &visual.Static{Result: visual.MockAnalysis()},
		Primary:     &recordingProvider{verdict: testVerdict("deepseek")},
		Fallback:    &recordingProvider{verdict: testVerdict("gemini")},
		Briefing:    &briefing.Static{},
		UseRealAPIs: true,
		Voice:       "Joanna",
	}
	return svc, tracker
}

func waitTerminal(t *testing.T, tracker Tracker, id string) Progress {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		p, err := tracker.Get(context.Background(), id)
		if err == nil && p.Terminal() {
			return p
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("pipeline did not reach a terminal state")
	return Progress{}
}

func TestStartRejectsInvalidTrailerURL(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Start(context.Background(), StartRequest{
		Payload:    textPayload(t, "synopsis"),
		Kind:       "text",
		TrailerURL: "https://vimeo.com/12345",
	})
	if !errors.Is(err, trailer.ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
}

func TestStartIsImmediatelyPollable(t *testing.T) {
	svc, tracker := newTestService()
	id, err := svc.Start(context.Background(), StartRequest{
		Payload:    textPayload(t, "A drifter returns to her coastal hometown."),
		Kind:       "text",
		TrailerURL: testTrailerURL,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := tracker.Get(context.Background(), id); err != nil {
		t.Fatalf("progress not registered at start: %v", err)
	}
	waitTerminal(t, tracker, id)
}

func TestPipelineCompletes(t *testing.T) {
	svc, tracker := newTestService()
	id, err := svc.Start(context.Background(), StartRequest{
		Payload:    textPayload(t, "A drifter returns to her coastal hometown and reopens the family cinema."),
		Kind:       "text",
		TrailerURL: testTrailerURL,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	p := waitTerminal(t, tracker, id)
	if p.Status != StatusCompleted {
		t.Fatalf("status = %q, error = %q", p.Status, p.Error)
	}
	if p.CurrentStep != 5 || p.Progress != 100 || p.StepName != "Analysis Complete" {
		t.Fatalf("unexpected terminal progress %+v", p)
	}
	r := p.Result
	if r == nil {
		t.Fatal("completed without result")
	}
	if r.ID != id {
		t.Fatalf("result id = %q, want %q", r.ID, id)
	}
	if r.Trailer.VideoID != "dQw4w9WgXcQ" {
		t.Fatalf("trailer videoId = %q", r.Trailer.VideoID)
	}
	if r.Scores.Overall == 0 {
		t.Fatal("scores not populated")
	}
	if r.ModelUsed != "deepseek" {
		t.Fatalf("modelUsed = %q", r.ModelUsed)
	}
	if r.AudioBriefing == nil || !strings.HasPrefix(r.AudioBriefing.URL, "data:audio/mp3;base64,") {
		t.Fatalf("audio briefing missing or malformed: %+v", r.AudioBriefing)
	}
	if r.AudioBriefing.Voice != "Joanna" {
		t.Fatalf("voice = %q", r.AudioBriefing.Voice)
	}
	if r.Stats.TotalTime < 0 {
		t.Fatalf("total time %d", r.Stats.TotalTime)
	}
	if r.CompletedAt.Before(r.CreatedAt) {
		t.Fatal("completedAt before createdAt")
	}
}

func TestPipelineMockMode(t *testing.T) {
	svc, tracker := newTestService()
	svc.UseRealAPIs = false
	downloader := svc.Downloader.(*fakeDownloader)

	id, err := svc.Start(context.Background(), StartRequest{
		Payload:    textPayload(t, "A drifter returns home."),
		Kind:       "text",
		TrailerURL: testTrailerURL,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	p := waitTerminal(t, tracker, id)
	if p.Status != StatusCompleted {
		t.Fatalf("status = %q, error = %q", p.Status, p.Error)
	}
	if downloader.calls.Load() != 0 {
		t.Fatal("mock mode must not download audio")
	}
	if p.Result.ModelUsed != "mock" {
		t.Fatalf("modelUsed = %q", p.Result.ModelUsed)
	}
	if !strings.HasPrefix(p.Result.Transcript, "Mock transcription:") {
		t.Fatalf("transcript = %q", p.Result.Transcript)
	}
}

func TestPipelineInvalidSynopsisFails(t *testing.T) {
	svc, tracker := newTestService()
	id, err := svc.Start(context.Background(), StartRequest{
		Payload:    "not base64 at all!!!",
		Kind:       "text",
		TrailerURL: testTrailerURL,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	p := waitTerminal(t, tracker, id)
	if p.Status != StatusFailed {
		t.Fatalf("status = %q", p.Status)
	}
	if p.CurrentStep != 0 || p.Progress != 0 || p.StepName != "Analysis Failed" {
		t.Fatalf("unexpected failed shape %+v", p)
	}
	if p.Error == "" {
		t.Fatal("failed without error message")
	}
}

func TestPipelineTranscriptionFallback(t *testing.T) {
	svc, tracker := newTestService()
	svc.Transcriber = &transcribe.Static{Err: errors.New("job timed out")}

	id, err := svc.Start(context.Background(), StartRequest{
		Payload:    textPayload(t, "A drifter returns home."),
		Kind:       "text",
		TrailerURL: testTrailerURL,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	p := waitTerminal(t, tracker, id)
	if p.Status != StatusCompleted {
		t.Fatalf("transcription failure must not fail the run: %q %q", p.Status, p.Error)
	}
	if p.Result.Transcript != transcribe.Fallback {
		t.Fatalf("transcript = %q, want fallback", p.Result.Transcript)
	}
	if p.Result.Scores.Overall == 0 {
		t.Fatal("scores missing on degraded run")
	}
}

func TestPipelineDownloadFailureFallsBack(t *testing.T) {
	svc, tracker := newTestService()
	svc.Downloader = &fakeDownloader{err: errors.New("Video unavailable")}

	id, err := svc.Start(context.Background(), StartRequest{
		Payload:    textPayload(t, "A drifter returns home."),
		Kind:       "text",
		TrailerURL: testTrailerURL,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	p := waitTerminal(t, tracker, id)
	if p.Status != StatusCompleted {
		t.Fatalf("download failure must not fail the run: %q %q", p.Status, p.Error)
	}
	if p.Result.Transcript != transcribe.Fallback {
		t.Fatalf("transcript = %q, want fallback", p.Result.Transcript)
	}
}

func TestPipelineSynthesisFailureIsFatal(t *testing.T) {
	svc, tracker := newTestService()
	svc.Primary = &recordingProvider{err: errors.New("ValidationException: bad body")}
	svc.Fallback = &recordingProvider{err: errors.New("QUOTA_EXCEEDED")}

	id, err := svc.Start(context.Background(), StartRequest{
		Payload:    textPayload(t, "A drifter returns home."),
		Kind:       "text",
		TrailerURL: testTrailerURL,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	p := waitTerminal(t, tracker, id)
	if p.Status != StatusFailed {
		t.Fatalf("status = %q", p.Status)
	}
	if !strings.Contains(p.Error, "synthesis") {
		t.Fatalf("error = %q", p.Error)
	}
}

func TestPipelinePrimaryFailureFallsBackToVisualProvider(t *testing.T) {
	svc, tracker := newTestService()
	svc.Primary = &recordingProvider{err: errors.New("AccessDeniedException")}

	id, err := svc.Start(context.Background(), StartRequest{
		Payload:    textPayload(t, "A drifter returns home."),
		Kind:       "text",
		TrailerURL: testTrailerURL,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	p := waitTerminal(t, tracker, id)
	if p.Status != StatusCompleted {
		t.Fatalf("status = %q, error = %q", p.Status, p.Error)
	}
	if p.Result.ModelUsed != "gemini" {
		t.Fatalf("modelUsed = %q, want gemini", p.Result.ModelUsed)
	}
}

func TestPipelineRoutesThinTranscriptToVisualProvider(t *testing.T) {
	svc, tracker := newTestService()
	svc.Transcriber = &transcribe.Static{Transcript: "only a few words here"}
	primary := svc.Primary.(*recordingProvider)
	fallback := svc.Fallback.(*recordingProvider)

	id, err := svc.Start(context.Background(), StartRequest{
		Payload:    textPayload(t, "A drifter returns home."),
		Kind:       "text",
		TrailerURL: testTrailerURL,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	p := waitTerminal(t, tracker, id)
	if p.Status != StatusCompleted {
		t.Fatalf("status = %q, error = %q", p.Status, p.Error)
	}
	if primary.calls.Load() != 0 {
		t.Fatal("thin transcript should skip the primary provider")
	}
	if fallback.calls.Load() != 1 {
		t.Fatalf("fallback calls = %d", fallback.calls.Load())
	}
}

func TestPipelineVisualFirstPolicy(t *testing.T) {
	svc, tracker := newTestService()
	svc.VisualFirst = true
	primary := svc.Primary.(*recordingProvider)

	id, err := svc.Start(context.Background(), StartRequest{
		Payload:    textPayload(t, "A drifter returns home."),
		Kind:       "text",
		TrailerURL: testTrailerURL,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	p := waitTerminal(t, tracker, id)
	if p.Status != StatusCompleted {
		t.Fatalf("status = %q, error = %q", p.Status, p.Error)
	}
	if p.Result.VisualAnalysis == nil {
		t.Fatal("visual-first run must carry the visual critique")
	}
	if primary.calls.Load() != 1 {
		t.Fatalf("primary calls = %d", primary.calls.Load())
	}
	if primary.lastIn.Visual == nil {
		t.Fatal("primary provider must receive the visual critique")
	}
}

func TestPipelineVisualFirstFailureIsFatal(t *testing.T) {
	svc, tracker := newTestService()
	svc.VisualFirst = true
	svc.Visual = &visual.Static{Err: errors.New("RESOURCE_EXHAUSTED")}

	id, err := svc.Start(context.Background(), StartRequest{
		Payload:    textPayload(t, "A drifter returns home."),
		Kind:       "text",
		TrailerURL: testTrailerURL,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	p := waitTerminal(t, tracker, id)
	if p.Status != StatusFailed {
		t.Fatalf("status = %q", p.Status)
	}
}

func TestPipelineBriefingPolicies(t *testing.T) {
	t.Run("lenient degrades", func(t *testing.T) {
		svc, tracker := newTestService()
		svc.Briefing = &briefing.Static{Err: errors.New("ThrottlingException")}

		id, err := svc.Start(context.Background(), StartRequest{
			Payload:    textPayload(t, "A drifter returns home."),
			Kind:       "text",
			TrailerURL: testTrailerURL,
		})
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		p := waitTerminal(t, tracker, id)
		if p.Status != StatusCompleted {
			t.Fatalf("status = %q, error = %q", p.Status, p.Error)
		}
		if p.Result.AudioBriefing != nil {
			t.Fatal("degraded run should omit audio briefing")
		}
	})

	t.Run("strict fails", func(t *testing.T) {
		svc, tracker := newTestService()
		svc.StrictBriefing = true
		svc.Briefing = &briefing.Static{Err: errors.New("ThrottlingException")}

		id, err := svc.Start(context.Background(), StartRequest{
			Payload:    textPayload(t, "A drifter returns home."),
			Kind:       "text",
			TrailerURL: testTrailerURL,
		})
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		p := waitTerminal(t, tracker, id)
		if p.Status != StatusFailed {
			t.Fatalf("status = %q", p.Status)
		}
		if !strings.Contains(p.Error, "briefing") {
			t.Fatalf("error = %q", p.Error)
		}
	})
}

func TestPipelineTranscriptPreviewTruncation(t *testing.T) {
	svc, tracker := newTestService()
	long := strings.Repeat("verylongword ", 200)
	svc.Transcriber = &transcribe.Static{Transcript: long}

	id, err := svc.Start(context.Background(), StartRequest{
		Payload:    textPayload(t, "A drifter returns home."),
		Kind:       "text",
		TrailerURL: testTrailerURL,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	p := waitTerminal(t, tracker, id)
	if p.Status != StatusCompleted {
		t.Fatalf("status = %q, error = %q", p.Status, p.Error)
	}
	if got := p.Result.Transcript; len(got) != transcriptPreviewLen+3 || !strings.HasSuffix(got, "...") {
		t.Fatalf("transcript preview len = %d", len(got))
	}
}

func TestPipelineCleansUpAudioFile(t *testing.T) {
	svc, tracker := newTestService()

	captured := make(chan string, 1)
	svc.Downloader = downloaderFunc(func(ctx context.Context) (*media.AudioFile, error) {
		p := filepath.Join(t.TempDir(), "audio.m4a")
		if err := os.WriteFile(p, []byte("audio"), 0o644); err != nil {
			return nil, err
		}
		captured <- p
		return &media.AudioFile{Path: p, Size: 5}, nil
	})

	id, err := svc.Start(context.Background(), StartRequest{
		Payload:    textPayload(t, "A drifter returns home."),
		Kind:       "text",
		TrailerURL: testTrailerURL,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitTerminal(t, tracker, id)

	path := <-captured
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("audio temp file was not cleaned up")
}

type downloaderFunc func(ctx context.Context) (*media.AudioFile, error)

func (f downloaderFunc) DownloadAudio(ctx context.Context, _ string) (*media.AudioFile, error) {
	return f(ctx)
}

func TestClassifyFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"invalid url", trailer.ErrInvalidURL, ErrorCodeValidation},
		{"bad format", synthesis.ErrBadFormat, ErrorCodeSynthesis},
		{"visual quota", visual.ErrQuota, ErrorCodeVisual},
		{"briefing", errors.New("audio briefing generation failed: boom"), ErrorCodeBriefing},
		{"unknown", errors.New("boom"), ErrorCodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyFailure(tc.err); got != tc.want {
				t.Fatalf("classifyFailure = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSanitizeError(t *testing.T) {
	err := errors.New("line one\nline two\r\n" + strings.Repeat("x", 600))
	got := sanitizeError(err)
	if strings.ContainsAny(got, "\n\r") {
		t.Fatal("sanitized error contains newlines")
	}
	if len(got) > 500 {
		t.Fatalf("sanitized error too long: %d", len(got))
	}

	// Non-ASCII provider errors must still truncate to valid UTF-8.
	got = sanitizeError(errors.New("x" + strings.Repeat("é", 400)))
	if len(got) > 500 {
		t.Fatalf("sanitized error too long: %d", len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatal("sanitized error split a multi-byte rune")
	}
}

func TestTranscriptPreviewKeepsRunesIntact(t *testing.T) {
	short := "a short transcript"
	if got := transcriptPreview(short); got != short {
		t.Fatalf("short transcript altered: %q", got)
	}

	long := "x" + strings.Repeat("é", transcriptPreviewLen)
	got := transcriptPreview(long)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("long transcript not marked truncated: %q", got[len(got)-10:])
	}
	if !utf8.ValidString(got) {
		t.Fatal("preview split a multi-byte rune")
	}
	if len(got) > transcriptPreviewLen+3 {
		t.Fatalf("preview too long: %d", len(got))
	}
}

func TestRunKeepsFirstTerminalStateOnRedelivery(t *testing.T) {
	svc, tracker := newTestService()
	ctx := context.Background()
	id := "redelivered-1"

	if err := tracker.Update(ctx, id, 1, "Processing PDF", 0); err != nil {
		t.Fatalf("Update: %v", err)
	}
	bad := StartRequest{Payload: "not base64 at all!!!", Kind: "text", TrailerURL: testTrailerURL}
	if err := svc.Run(ctx, id, bad); err == nil {
		t.Fatal("expected Run to fail on undecodable payload")
	}
	p, err := tracker.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Status != StatusFailed {
		t.Fatalf("status = %q", p.Status)
	}
	failedAt := p.UpdatedAt

	// A redelivered message for the same analysis must not rerun the
	// pipeline or disturb the settled outcome, even when it would succeed.
	good := StartRequest{Payload: textPayload(t, "A drifter returns home."), Kind: "text", TrailerURL: testTrailerURL}
	if err := svc.Run(ctx, id, good); err != nil {
		t.Fatalf("redelivered Run: %v", err)
	}
	p, err = tracker.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get after redelivery: %v", err)
	}
	if p.Status != StatusFailed {
		t.Fatalf("settled record flipped to %q", p.Status)
	}
	if !p.UpdatedAt.Equal(failedAt) {
		t.Fatal("settled record was rewritten on redelivery")
	}
}

type fakeQueue struct {
	err  error
	sent []queue.Message
}

func (f *fakeQueue) Send(_ context.Context, msg queue.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestStartEnqueuesWhenQueueConfigured(t *testing.T) {
	svc, tracker := newTestService()
	q := &fakeQueue{}
	svc.Queue = q

	id, err := svc.Start(context.Background(), StartRequest{
		Payload:    textPayload(t, "A drifter returns home."),
		Kind:       "text",
		TrailerURL: testTrailerURL,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if len(q.sent) != 1 {
		t.Fatalf("expected 1 enqueued message, got %d", len(q.sent))
	}
	msg := q.sent[0]
	if msg.AnalysisID != id || msg.TrailerURL != testTrailerURL || msg.InputType != "text" {
		t.Fatalf("unexpected message %+v", msg)
	}

	// The run stays pending until a worker picks it up.
	p, err := tracker.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if p.Status != StatusProcessing || p.Progress != 0 {
		t.Fatalf("expected registered processing entry, got %+v", p)
	}
}

func TestStartFallsBackInlineOnEnqueueFailure(t *testing.T) {
	svc, tracker := newTestService()
	svc.Queue = &fakeQueue{err: errors.New("sqs down")}

	id, err := svc.Start(context.Background(), StartRequest{
		Payload:    textPayload(t, "A drifter returns home."),
		Kind:       "text",
		TrailerURL: testTrailerURL,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	p := waitTerminal(t, tracker, id)
	if p.Status != StatusCompleted {
		t.Fatalf("expected completed run, got %+v", p)
	}
}
