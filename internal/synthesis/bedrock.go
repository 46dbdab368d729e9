package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"sorot-backend/internal/shared/telemetry"
)

type bedrockAPI interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// DeepSeek synthesizes verdicts with DeepSeek-R1 hosted on AWS Bedrock.
type DeepSeek struct {
	client  bedrockAPI
	modelID string
}

// NewDeepSeek builds the Bedrock-backed provider.
func NewDeepSeek(ctx context.Context, region, modelID string) (*DeepSeek, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &DeepSeek{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
	}, nil
}

// deepseekRequest follows the DeepSeek-R1 text-completion contract on
// Bedrock, which takes a raw prompt with the model's chat special tokens.
type deepseekRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

func (d *DeepSeek) Synthesize(ctx context.Context, in Input) (Verdict, error) {
	prompt := buildSynthesisPrompt(in)
	formatted := "<｜begin▁of▁sentence｜><｜User｜>" + prompt + "<｜Assistant｜><think>\n"

	body, err := json.Marshal(deepseekRequest{
		Prompt:      formatted,
		MaxTokens:   1500,
		Temperature: 0.7,
		TopP:        0.9,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("encode bedrock request: %w", err)
	}

	out, err := d.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(d.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return Verdict{}, classifyBedrockError(err)
	}

	text := extractCompletionText(out.Body)
	telemetry.Info("synthesis.response", map[string]any{"model": d.modelID, "chars": len(text)})

	verdict, err := ParseVerdict(text)
	if err != nil {
		return Verdict{}, err
	}
	verdict.AIModel = string(ProviderPrimary)
	return verdict, nil
}

// bedrockResponse covers the response shapes DeepSeek models have been
// observed to return on Bedrock.
type bedrockResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Completions []struct {
		Data struct {
			Text string `json:"text"`
		} `json:"data"`
		Text string `json:"text"`
	} `json:"completions"`
	Text    string `json:"text"`
	Content string `json:"content"`
}

func extractCompletionText(body []byte) string {
	var resp bedrockResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return string(body)
	}
	switch {
	case len(resp.Choices) > 0 && resp.Choices[0].Message.Content != "":
		return resp.Choices[0].Message.Content
	case len(resp.Choices) > 0 && resp.Choices[0].Text != "":
		return resp.Choices[0].Text
	case len(resp.Completions) > 0 && resp.Completions[0].Data.Text != "":
		return resp.Completions[0].Data.Text
	case len(resp.Completions) > 0 && resp.Completions[0].Text != "":
		return resp.Completions[0].Text
	case resp.Text != "":
		return resp.Text
	case resp.Content != "":
		return resp.Content
	default:
		return string(body)
	}
}

func classifyBedrockError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(strings.ToLower(msg), "credential"):
		return fmt.Errorf("%w: %v", ErrCredentials, err)
	case strings.Contains(msg, "AccessDenied"):
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	case strings.Contains(msg, "ValidationException"):
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	default:
		return fmt.Errorf("model synthesis failed: %w", err)
	}
}

func buildSynthesisPrompt(in Input) string {
	var content strings.Builder
	content.WriteString("Film Synopsis:\n")
	content.WriteString(in.Synopsis)

	if in.Visual != nil {
		content.WriteString("\n\nVisual Analysis:\n")
		content.WriteString(in.Visual.VisualAnalysis)
		content.WriteString("\n\nEmotional Tone: ")
		content.WriteString(in.Visual.EmotionalTone)
		content.WriteString("\nVisual Style: ")
		content.WriteString(in.Visual.VisualStyle)
		if len(in.Visual.Timestamps) > 0 {
			content.WriteString("\n\nKey Timestamps:")
			for _, ts := range in.Visual.Timestamps {
				content.WriteString("\n")
				content.WriteString(ts.Time)
				content.WriteString(": ")
				content.WriteString(ts.Description)
			}
		}
	}

	content.WriteString("\n\nTranscript:\n")
	if strings.TrimSpace(in.Transcript) == "" {
		content.WriteString("No transcript available")
	} else {
		content.WriteString(in.Transcript)
	}

	return `You are an expert film critic and festival selector. Analyze the following comprehensive film content that combines synopsis, visual analysis, and transcript data.

CONTENT TO ANALYZE:
` + content.String() + `

Please provide a detailed analysis in the following JSON format:
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
    "targetAudience": "detailed description of target audience",
    "keyMoments": ["moment1", "moment2", "moment3"],
    "strengths": ["strength1", "strength2", "strength3"],
    "suggestions": ["suggestion1", "suggestion2"]
  }
}

Guidelines:
- Overall score should reflect festival selection potential
- Be specific and detailed in your analysis
- Consider artistic merit, technical quality, and market potential
- Provide constructive feedback for improvement
- Focus on elements that would matter to festival selectors

Return ONLY valid JSON, no additional text.`
}

var _ Provider = (*DeepSeek)(nil)
