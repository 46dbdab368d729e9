package visual

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"sorot-backend/internal/shared/jsonx"
	"sorot-backend/internal/shared/telemetry"
)

var (
	// ErrAPIKey means the Gemini API key is missing or rejected.
	ErrAPIKey = errors.New("invalid gemini api key")
	// ErrQuota means the Gemini quota is exhausted.
	ErrQuota = errors.New("gemini api quota exceeded")
	// ErrRateLimited means Gemini rejected the call for request rate.
	ErrRateLimited = errors.New("gemini api rate limit exceeded")
)

const visualPrompt = `You are an expert film critic specializing in visual storytelling analysis. Analyze this film trailer's visual elements comprehensively.

Focus on:
1. VISUAL STORYTELLING: Describe key visual elements, color palette, composition, camera work, editing rhythm
2. EMOTIONAL TONE: Analyze mood, atmosphere, character expressions, lighting effects
3. CINEMATOGRAPHIC TECHNIQUES: Camera angles, movement, transitions, visual effects
4. KEY SCENES: Provide timestamps (MM:SS format) for important visual moments
5. VISUAL STYLE: Overall aesthetic, genre indicators, production quality

Return a detailed analysis in the following JSON format:

{
  "visualAnalysis": "Comprehensive description of visual storytelling and cinematography",
  "timestamps": [
    {"time": "00:05", "description": "Opening scene visual description"},
    {"time": "00:15", "description": "Key emotional moment description"},
    {"time": "00:30", "description": "Climax scene visual description"}
  ],
  "emotionalTone": "Overall emotional atmosphere and mood",
  "visualStyle": "Cinematography style, color palette, production aesthetic"
}

Guidelines:
- Use timestamps in MM:SS format for specific moments
- Focus on visual elements that reveal story, character, and theme
- Analyze how cinematography supports emotional narrative
- Consider festival appeal based on visual innovation and artistry

Return ONLY valid JSON, no additional text.`

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiAnalyzer asks Gemini to watch the trailer video directly. Calls are
// rate limited client-side so a burst of pipelines cannot trip the
// provider's per-minute quota.
type GeminiAnalyzer struct {
	model   contentGenerator
	limiter *rate.Limiter
}

// NewGemini builds an analyzer backed by the given Gemini model name.
func NewGemini(ctx context.Context, apiKey, modelName string, requestsPerMinute int) (*GeminiAnalyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is required", ErrAPIKey)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 10
	}
	return &GeminiAnalyzer{
		model:   client.GenerativeModel(modelName),
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute),
	}, nil
}

// AnalyzeTrailer sends the watch URL as video input and parses the critique.
func (g *GeminiAnalyzer) AnalyzeTrailer(ctx context.Context, watchURL string) (Analysis, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return Analysis{}, err
		}
	}

	resp, err := g.model.GenerateContent(ctx,
		genai.Text(visualPrompt),
		genai.FileData{MIMEType: "video/*", URI: watchURL},
	)
	if err != nil {
		return Analysis{}, ClassifyError(err)
	}

	raw := ResponseText(resp)
	telemetry.Info("visual.response", map[string]any{"chars": len(raw)})

	var analysis Analysis
	if err := jsonx.Recover(raw, &analysis); err != nil {
		return Analysis{}, fmt.Errorf("parse visual analysis: %w", err)
	}
	if strings.TrimSpace(analysis.VisualAnalysis) == "" {
		return Analysis{}, fmt.Errorf("visual analysis response missing visualAnalysis field")
	}
	return analysis, nil
}

// ResponseText flattens the text parts of a Gemini response.
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return sb.String()
}

// ClassifyError maps a Gemini API error onto the package's error kinds so
// callers can surface a precise user message.
func ClassifyError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "API key not valid") || strings.Contains(msg, "API_KEY_INVALID"):
		return fmt.Errorf("%w: %v", ErrAPIKey, err)
	case strings.Contains(msg, "QUOTA_EXCEEDED") || strings.Contains(msg, "RESOURCE_EXHAUSTED"):
		return fmt.Errorf("%w: %v", ErrQuota, err)
	case strings.Contains(msg, "RATE_LIMIT_EXCEEDED") || strings.Contains(msg, "429"):
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	default:
		return fmt.Errorf("gemini visual analysis failed: %w", err)
	}
}

var _ Analyzer = (*GeminiAnalyzer)(nil)
