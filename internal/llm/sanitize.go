package llm

import "strings"

// Sanitize turns raw model text into the bare payload: a fenced code block
// is reduced to its interior, surrounding whitespace is trimmed and one
// layer of matching backticks or quotes is removed. Sanitize is idempotent
// on text that carries none of those.
func Sanitize(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = stripFence(text)
	}
	return stripQuotes(text)
}

func stripFence(text string) string {
	if !strings.Contains(text, "\n") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		return strings.TrimSpace(text)
	}
	lines := strings.Split(text, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.HasPrefix(strings.TrimSpace(lines[n-1]), "```") {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func stripQuotes(text string) string {
	if len(text) < 2 {
		return text
	}
	first, last := text[0], text[len(text)-1]
	if first != last || (first != '`' && first != '"' && first != '\'') {
		return text
	}
	inner := text[1 : len(text)-1]
	// `a` == `b` and 'x' in ['y'] keep their quotes.
	if strings.IndexByte(inner, first) >= 0 {
		return text
	}
	return strings.TrimSpace(inner)
}
