package synthesis

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"sorot-backend/internal/shared/jsonx"
)

// previewLen bounds how much of an unparseable response is echoed back in
// the error message.
const previewLen = 200

// ParseVerdict recovers a Verdict from raw model output. It tolerates code
// fences, reasoning preambles, and trailing prose, and restructures
// responses that put the score fields at the root instead of under a nested
// scores object. AIModel is left for the caller to tag.
func ParseVerdict(raw string) (Verdict, error) {
	var root map[string]json.RawMessage
	if err := jsonx.Recover(raw, &root); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v: %s", ErrBadFormat, err, preview(jsonx.StripWrappers(raw)))
	}

	insightsRaw, ok := root["insights"]
	if !ok {
		return Verdict{}, fmt.Errorf("%w: missing insights", ErrBadFormat)
	}

	var v Verdict
	if err := json.Unmarshal(insightsRaw, &v.Insights); err != nil {
		return Verdict{}, fmt.Errorf("%w: decode insights: %v", ErrBadFormat, err)
	}

	if scoresRaw, ok := root["scores"]; ok {
		if err := json.Unmarshal(scoresRaw, &v.Scores); err != nil {
			return Verdict{}, fmt.Errorf("%w: decode scores: %v", ErrBadFormat, err)
		}
		return v, nil
	}

	// Some model outputs flatten the scores to the root level.
	if _, ok := root["overall"]; !ok {
		return Verdict{}, fmt.Errorf("%w: missing scores", ErrBadFormat)
	}
	fields := map[string]*float64{
		"overall":          &v.Scores.Overall,
		"genre":            &v.Scores.Genre,
		"theme":            &v.Scores.Theme,
		"targetAudience":   &v.Scores.TargetAudience,
		"technicalQuality": &v.Scores.TechnicalQuality,
		"emotionalImpact":  &v.Scores.EmotionalImpact,
	}
	for name, dst := range fields {
		fieldRaw, ok := root[name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(fieldRaw, dst); err != nil {
			return Verdict{}, fmt.Errorf("%w: decode root-level %s: %v", ErrBadFormat, name, err)
		}
	}
	return v, nil
}

// preview returns the head of text bounded to previewLen bytes, backing up
// so a multi-byte rune is never split.
func preview(text string) string {
	if len(text) <= previewLen {
		return text
	}
	cut := previewLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
