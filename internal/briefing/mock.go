package briefing

import (
	"context"

	"sorot-backend/internal/synthesis"
)

// MockAudioURL is the canned briefing served when live providers are off.
// A short silent mp3 header keeps clients that decode the URI happy.
const MockAudioURL = "data:audio/mp3;base64,SUQzBAAAAAAAI1RTU0UAAAAPAAADTGF2ZjU4Ljc2LjEwMAAAAAAAAAAAAAAA"

// Static returns a fixed briefing URL. Used in mock mode and in tests.
type Static struct {
	URL string
	Err error
}

func (s *Static) Generate(_ context.Context, _ string, _ synthesis.Verdict) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	if s.URL == "" {
		return MockAudioURL, nil
	}
	return s.URL, nil
}

var _ Generator = (*Static)(nil)
