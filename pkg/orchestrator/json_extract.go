package orchestrator

import "strings"

// ExtractBalancedJSON scans text for the outermost balanced `{…}` block and
// returns its contents, tolerating braces that appear inside string
// literals (so a value like `"note": "use {vlan} here"` does not confuse
// the scanner). It returns ok=false if no complete, balanced object is
// found — callers then treat the response as conversational prose rather
// than a final answer (§4.5, §9).
func ExtractBalancedJSON(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
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
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
