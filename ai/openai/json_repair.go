package openai

import "strings"

// repairJSON fixes formatting slips common in small-model output:
// keys missing their opening quote (`, type":` becomes `, "type":`) and
// trailing commas before a closing brace or bracket.
func repairJSON(s string) string {
	return stripTrailingCommas(quoteBareKeys(s))
}

func quoteBareKeys(s string) string {
	in := []rune(s)
	out := make([]rune, 0, len(in)+16)

	for i := 0; i < len(in); {
		ch := in[i]
		out = append(out, ch)
		i++
		if ch != '{' && ch != ',' {
			continue
		}

		for i < len(in) && isSpace(in[i]) {
			out = append(out, in[i])
			i++
		}
		if i >= len(in) || !isLetter(in[i]) {
			continue
		}

		start := i
		for i < len(in) && (isLetter(in[i]) || in[i] == '_' || in[i] == ' ') {
			i++
		}
		if i+1 < len(in) && in[i] == '"' && in[i+1] == ':' {
			out = append(out, '"')
			out = append(out, []rune(strings.TrimSpace(string(in[start:i])))...)
			// The closing quote at in[i] is copied by the outer loop.
			continue
		}
		out = append(out, in[start:i]...)
	}

	return string(out)
}

func stripTrailingCommas(s string) string {
	in := []rune(s)
	out := make([]rune, 0, len(in))
	inString := false
	escaped := false

	for i, ch := range in {
		if inString {
			out = append(out, ch)
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
		if ch == '"' {
			inString = true
		}
		if ch == ',' {
			j := i + 1
			for j < len(in) && isSpace(in[j]) {
				j++
			}
			if j < len(in) && (in[j] == '}' || in[j] == ']') {
				continue
			}
		}
		out = append(out, ch)
	}
	return string(out)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
