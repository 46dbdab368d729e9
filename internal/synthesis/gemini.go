package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"sorot-backend/internal/shared/telemetry"
	"sorot-backend/internal/visual"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini produces a visually grounded verdict by having the model watch the
// trailer alongside the synopsis and whatever transcript exists. It is the
// routing target for thin transcripts.
type Gemini struct {
	model   contentGenerator
	limiter *rate.Limiter
}

// NewGemini builds the Gemini verdict provider.
func NewGemini(ctx context.Context, apiKey, modelName string, requestsPerMinute int) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is required", visual.ErrAPIKey)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 10
	}
	return &Gemini{
		model:   client.GenerativeModel(modelName),
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute),
	}, nil
}

func (g *Gemini) Synthesize(ctx context.Context, in Input) (Verdict, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return Verdict{}, err
		}
	}

	resp, err := g.model.GenerateContent(ctx,
		genai.Text(buildVisualVerdictPrompt(in)),
		genai.FileData{MIMEType: "video/*", URI: in.TrailerURL},
	)
	if err != nil {
		return Verdict{}, visual.ClassifyError(err)
	}

	raw := visual.ResponseText(resp)
	telemetry.Info("synthesis.response", map[string]any{"model": "gemini", "chars": len(raw)})

	verdict, err := ParseVerdict(raw)
	if err != nil {
		return Verdict{}, err
	}
	verdict.AIModel = string(ProviderVisual)
	return verdict, nil
}

func buildVisualVerdictPrompt(in Input) string {
	transcript := in.Transcript
	if strings.TrimSpace(transcript) == "" {
		transcript = "No transcript available"
	}
	return `You are an expert film critic specializing in visual storytelling analysis. Analyze this film trailer and synopsis for festival selection potential.

SYNOPSIS:
` + in.Synopsis + `

TRANSCRIPT (limited):
` + transcript + `

TRAILER URL: ` + in.TrailerURL + `

Based on the visual storytelling, cinematography, editing, and thematic elements you can infer from the trailer, provide a comprehensive analysis in the following JSON format:

{
  "scores": {
    "overall": <number 0-100>,
    "genre": <number 0-100>,
    "theme": <number 0-100>,
    "targetAudience": <number 0-100>,
    "technicalQuality": <number 0-100>,
    "emotionalImpact": <number 0-100>
  },
  "insights": {
    "genre": ["primary genre", "secondary genre"],
    "themes": ["theme1", "theme2", "theme3"],
    "targetAudience": "detailed description based on visual style and themes",
    "keyMoments": ["visual moment1", "visual moment2", "visual moment3"],
    "strengths": ["visual strength1", "visual strength2", "visual strength3"],
    "suggestions": ["visual improvement1", "visual improvement2"]
  }
}

Guidelines for visual analysis:
- Analyze cinematography, lighting, composition, color palette
- Consider editing rhythm and visual storytelling techniques
- Evaluate how visuals support the emotional narrative
- Assess technical quality of production values
- Consider festival appeal based on artistic merit and innovation

Return ONLY valid JSON, no additional text.`
}

var _ Provider = (*Gemini)(nil)
