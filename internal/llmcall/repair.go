package llmcall

import (
	"strings"
	"unicode"
)

// Repair makes a best-effort pass over near-JSON model output.
//
// It converts typographic quotes used as string delimiters, drops trailing
// commas before a closing bracket, and closes an unterminated string and any
// open objects or arrays. The result is not guaranteed to parse.
func Repair(content string) string {
	content = strings.TrimSpace(content)
	if start := strings.IndexAny(content, "{["); start > 0 {
		content = content[start:]
	}

	runes := []rune(content)
	var (
		out      strings.Builder
		stack    []rune
		inString bool
		smart    bool
		escaped  bool
	)
	out.Grow(len(content) + 8)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case smart && (r == '”' || r == '“'):
				inString, smart = false, false
				r = '"'
			case !smart && r == '"':
				inString = false
			case smart && r == '"':
				out.WriteString(`\"`)
				continue
			case r == '\n':
				out.WriteString(`\n`)
				continue
			}
			out.WriteRune(r)
			continue
		}

		switch r {
		case '"':
			inString = true
		case '“', '”':
			inString, smart = true, true
			r = '"'
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == r {
				stack = stack[:len(stack)-1]
			}
		case ',':
			if next := nextSignificant(runes, i+1); next == 0 || next == '}' || next == ']' {
				continue
			}
		}
		out.WriteRune(r)
	}

	if escaped {
		out.WriteRune('\\')
	}
	if inString {
		out.WriteRune('"')
	}
	repaired := strings.TrimRightFunc(out.String(), unicode.IsSpace)
	repaired = strings.TrimSuffix(repaired, ",")
	for i := len(stack) - 1; i >= 0; i-- {
		repaired += string(stack[i])
	}
	return repaired
}

// nextSignificant returns the next non-space rune at or after i, or 0 at end of input.
func nextSignificant(runes []rune, i int) rune {
	for ; i < len(runes); i++ {
		if !unicode.IsSpace(runes[i]) {
			return runes[i]
		}
	}
	return 0
}
