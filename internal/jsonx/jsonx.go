// Package jsonx extracts structured data from free-form model output.
// AI evaluators are asked for pure JSON but routinely wrap it in prose or
// markdown fences; callers treat extraction failure as a stage failure, never
// as an exception.
package jsonx

import "encoding/json"

// ExtractObject returns the first well-formed JSON object found in raw text,
// or "" when none exists. Brace matching skips braces inside string literals.
func ExtractObject(text string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate
				}
				start = -1
			}
		}
	}
	return ""
}

// DecodeObject extracts the first JSON object from text and unmarshals it
// into v. Returns false when no decodable object is present.
func DecodeObject(text string, v any) bool {
	obj := ExtractObject(text)
	if obj == "" {
		return false
	}
	return json.Unmarshal([]byte(obj), v) == nil
}
