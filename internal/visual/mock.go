package visual

import "context"

// Static returns a fixed critique. Used in mock mode and in tests.
type Static struct {
	Result Analysis
	Err    error
}

func (s *Static) AnalyzeTrailer(_ context.Context, _ string) (Analysis, error) {
	if s.Err != nil {
		return Analysis{}, s.Err
	}
	return s.Result, nil
}

// MockAnalysis is the canned critique served when live providers are off.
func MockAnalysis() Analysis {
	return Analysis{
		VisualAnalysis: "The trailer opens with sweeping establishing shots in muted tones before tightening into handheld close-ups. Editing rhythm accelerates through the midpoint, intercutting quiet character beats with bursts of movement.",
		Timestamps: []Timestamp{
			{Time: "00:05", Description: "Wide establishing shot of the town at dawn"},
			{Time: "00:18", Description: "Close-up on the protagonist's reaction, shallow focus"},
			{Time: "00:41", Description: "Rapid montage building to the title card"},
		},
		EmotionalTone: "Restrained tension giving way to urgency",
		VisualStyle:   "Naturalistic lighting, desaturated palette, handheld camera work",
	}
}

var _ Analyzer = (*Static)(nil)
