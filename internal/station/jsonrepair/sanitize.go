package jsonrepair

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	trailingCommaRe  = regexp.MustCompile(`,(\s*[}\]])`)
	trailingEndRe    = regexp.MustCompile(`,(\s*)$`)
	doubledCommaRe   = regexp.MustCompile(`,,+`)
	adjacentObjRe    = regexp.MustCompile(`}\s*{`)
	adjacentArrRe    = regexp.MustCompile(`]\s*\[`)
	decimalCommaRe   = regexp.MustCompile(`(\d+),(\d+)`)
	splitDigitsRe    = regexp.MustCompile(`(\d+)\s+(\d+)`)
	boolNullVariants = []struct {
		re  *regexp.Regexp
		rep string
	}{
		{regexp.MustCompile(`\bTrue\b`), "true"},
		{regexp.MustCompile(`\bTRUE\b`), "true"},
		{regexp.MustCompile(`\bFalse\b`), "false"},
		{regexp.MustCompile(`\bFALSE\b`), "false"},
		{regexp.MustCompile(`\bNull\b`), "null"},
		{regexp.MustCompile(`\bNULL\b`), "null"},
		{regexp.MustCompile(`\bNone\b`), "null"},
		{regexp.MustCompile(`\bNONE\b`), "null"},
	}
)

// Sanitize applies the textual repairs that fix the common ways models break
// JSON: unclosed quotes, stray backslashes, trailing commas, Python-style
// literals, Brazilian decimal commas, missing separators. It is a pure
// function and idempotent; input that already parses is returned unchanged.
// Each step stands alone, so one misbehaving heuristic cannot block the rest.
func Sanitize(s string) string {
	if json.Valid([]byte(s)) {
		return s
	}

	s = closeUnterminatedStrings(s)
	s = escapeStrayBackslashes(s)
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = trailingEndRe.ReplaceAllString(s, "$1")
	for _, v := range boolNullVariants {
		s = v.re.ReplaceAllString(s, v.rep)
	}
	s = decimalCommaRe.ReplaceAllString(s, "$1.$2")
	s = splitDigitsRe.ReplaceAllString(s, "$1$2")
	s = adjacentObjRe.ReplaceAllString(s, "},{")
	s = adjacentArrRe.ReplaceAllString(s, "],[")
	s = doubledCommaRe.ReplaceAllString(s, ",")
	s = trailingCommaRe.ReplaceAllString(s, "$1")

	if json.Valid([]byte(s)) {
		return s
	}

	if cleaned := stripControlChars(s); json.Valid([]byte(cleaned)) {
		return cleaned
	}
	// Still broken: hand the best-effort string to the structural repairer.
	return s
}

// closeUnterminatedStrings walks the input tracking quote state and inserts a
// closing quote when a string literal runs into a bare newline or the end of
// input. Literal newlines inside a JSON string are themselves invalid, so the
// break point doubles as the repair point.
func closeUnterminatedStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString && escaped {
			escaped = false
			b.WriteByte(ch)
			continue
		}
		switch {
		case inString && ch == '\\':
			escaped = true
			b.WriteByte(ch)
		case ch == '"':
			inString = !inString
			b.WriteByte(ch)
		case inString && ch == '\n':
			b.WriteByte('"')
			inString = false
			b.WriteByte(ch)
		default:
			b.WriteByte(ch)
		}
	}
	if inString {
		b.WriteByte('"')
	}
	return b.String()
}

// escapeStrayBackslashes doubles any backslash that does not begin a valid
// JSON escape sequence. Done with a scan because RE2 has no lookahead.
func escapeStrayBackslashes(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '\\' {
			b.WriteByte(ch)
			continue
		}
		if i+1 < len(s) && isEscapeChar(s[i+1]) {
			b.WriteByte(ch)
			b.WriteByte(s[i+1])
			i++
			continue
		}
		b.WriteString(`\\`)
	}
	return b.String()
}

func isEscapeChar(ch byte) bool {
	switch ch {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
		return true
	}
	return false
}

// stripControlChars drops non-printable control characters, keeping tab,
// newline and carriage return.
func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 32 || r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		return -1
	}, s)
}
