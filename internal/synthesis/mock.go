package synthesis

import "context"

// Static returns a fixed verdict. Used in mock mode and in tests.
type Static struct {
	Result Verdict
	Err    error
}

func (s *Static) Synthesize(_ context.Context, _ Input) (Verdict, error) {
	if s.Err != nil {
		return Verdict{}, s.Err
	}
	return s.Result, nil
}

// MockVerdict is the canned verdict served when live providers are off.
func MockVerdict() Verdict {
	return Verdict{
		Scores: Scores{
			Overall:          85,
			Genre:            80,
			Theme:            90,
			TargetAudience:   75,
			TechnicalQuality: 88,
			EmotionalImpact:  92,
		},
		Insights: Insights{
			Genre:          []string{"Drama", "Indie Film", "Coming of Age"},
			Themes:         []string{"Identity", "Cultural Heritage", "Personal Growth", "Artistic Expression"},
			TargetAudience: "Young adults aged 18-35 interested in indie cinema",
			KeyMoments: []string{
				"Opening scene showing traditional village life",
				"Character discovering old film reels in the attic",
				"Emotional climax with family reconciliation",
				"Powerful ending with hope for future generations",
			},
			Strengths: []string{
				"Authentic cultural portrayal",
				"Strong character development",
				"Beautiful cinematography capturing rural landscapes",
			},
			Suggestions: []string{
				"Consider tightening the pacing in the middle act",
				"Add more visual metaphors for the character's internal journey",
			},
		},
		AIModel: "mock",
	}
}

var _ Provider = (*Static)(nil)
