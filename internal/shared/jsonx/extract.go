package jsonx

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoObject indicates no balanced JSON object could be found in the text.
var ErrNoObject = errors.New("no JSON object found")

// StripWrappers removes the decoration models wrap around JSON payloads:
// markdown code fences and <reasoning>/<think> preambles.
func StripWrappers(raw string) string {
	text := strings.TrimSpace(raw)

	for _, tag := range []string{"reasoning", "think"} {
		open := "<" + tag + ">"
		closing := "</" + tag + ">"
		if strings.HasPrefix(text, open) {
			if end := strings.Index(text, closing); end != -1 {
				text = strings.TrimSpace(text[end+len(closing):])
			}
		}
	}

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
	}
	if idx := strings.LastIndex(text, "```"); idx != -1 && strings.TrimSpace(text[idx+3:]) == "" {
		text = text[:idx]
	}

	return strings.TrimSpace(text)
}

// FirstObject scans text for the first balanced {...} span using a depth
// counter and returns it. Brace characters inside JSON strings are skipped.
func FirstObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", ErrNoObject
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", ErrNoObject
}

// Recover unmarshals raw into v, falling back to stripping wrappers and
// extracting the first balanced object when a direct parse fails.
func Recover(raw string, v any) error {
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}

	cleaned := StripWrappers(raw)
	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}

	obj, err := FirstObject(cleaned)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(obj), v)
}
