package briefing

import (
	"fmt"
	"strings"

	"sorot-backend/internal/synthesis"
)

// BuildSSML renders the verdict as an SSML document for speech synthesis.
// Prosody and breaks keep the reading at a natural briefing pace.
func BuildSSML(v synthesis.Verdict) string {
	s := v.Scores
	i := v.Insights

	var b strings.Builder
	b.WriteString("<speak>\n<prosody rate=\"medium\" volume=\"default\">\n")
	b.WriteString("Film Analysis Briefing.\n")
	b.WriteString("<break time=\"500ms\"/>\n")
	fmt.Fprintf(&b, "Overall Score: %s out of 100.\n", formatScore(s.Overall))
	b.WriteString("<break time=\"300ms\"/>\n")
	fmt.Fprintf(&b, "Genre Classification: %s out of 100.\n", formatScore(s.Genre))
	fmt.Fprintf(&b, "Primary genres identified: %s.\n", escapeText(strings.Join(i.Genre, ", ")))
	b.WriteString("<break time=\"300ms\"/>\n")
	fmt.Fprintf(&b, "Thematic Depth: %s out of 100.\n", formatScore(s.Theme))
	fmt.Fprintf(&b, "Key themes: %s.\n", escapeText(strings.Join(i.Themes, ", ")))
	b.WriteString("<break time=\"300ms\"/>\n")
	fmt.Fprintf(&b, "Target Audience Fit: %s out of 100.\n", formatScore(s.TargetAudience))
	fmt.Fprintf(&b, "Target audience: %s.\n", escapeText(i.TargetAudience))
	b.WriteString("<break time=\"300ms\"/>\n")
	fmt.Fprintf(&b, "Technical Quality: %s out of 100.\n", formatScore(s.TechnicalQuality))
	b.WriteString("<break time=\"300ms\"/>\n")
	fmt.Fprintf(&b, "Emotional Impact: %s out of 100.\n", formatScore(s.EmotionalImpact))
	b.WriteString("<break time=\"500ms\"/>\n")
	fmt.Fprintf(&b, "Key strengths: %s.\n", escapeText(strings.Join(i.Strengths, ". ")))
	b.WriteString("<break time=\"500ms\"/>\n")
	fmt.Fprintf(&b, "Areas for improvement: %s.\n", escapeText(strings.Join(i.Suggestions, ". ")))
	b.WriteString("<break time=\"700ms\"/>\n")
	fmt.Fprintf(&b, "This analysis was generated using %s artificial intelligence.\n", modelDisplayName(v.AIModel))
	b.WriteString("</prosody>\n</speak>")
	return b.String()
}

func formatScore(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.1f", f), "0"), ".")
}

// escapeText guards against model output breaking the SSML document.
func escapeText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func modelDisplayName(tag string) string {
	switch tag {
	case string(synthesis.ProviderPrimary):
		return "DeepSeek R1"
	case string(synthesis.ProviderVisual):
		return "Google Gemini"
	default:
		return "a development stand-in"
	}
}
