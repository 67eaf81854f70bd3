// Package jsonrepair recovers well-formed JSON from malformed LLM output.
//
// Generation failures cluster into a small number of recurring shapes:
// truncation, comma and quote slips, accidental double nesting of score
// blocks. A layered heuristic chain resolves the large majority of them
// without spending a second model call.
package jsonrepair

import (
	"regexp"
	"strings"
)

var (
	fencedJSONRe    = regexp.MustCompile("(?i)```json\\s*(\\{[\\s\\S]*?\\}|\\[[\\s\\S]*?\\])\\s*```")
	fencedAnyRe     = regexp.MustCompile("```\\s*(\\{[\\s\\S]*?\\}|\\[[\\s\\S]*?\\])\\s*```")
	taggedJSONRe    = regexp.MustCompile(`(?i)<json>\s*(\{[\s\S]*?\}|\[[\s\S]*?\])\s*</json>`)
	objCandidateRe  = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
	arrCandidateRe  = regexp.MustCompile(`\[[^\[\]]*(?:\[[^\[\]]*\][^\[\]]*)*\]`)
	stationMarkerRe = []*regexp.Regexp{
		regexp.MustCompile(`\{[^{}]*"tituloEstacao"[^{}]*"numeroDaEstacao"[^{}]*\}`),
		regexp.MustCompile(`\{[^{}]*"idEstacao"[^{}]*"especialidade"[^{}]*\}`),
		regexp.MustCompile(`\{[^{}]*"instrucoesParticipante"[^{}]*"padraoEsperadoProcedimento"[^{}]*\}`),
	}
)

// Extract pulls the first JSON candidate (object or array) out of free-form
// model output. It never fails: when nothing JSON-like is found the trimmed
// input comes back unchanged and the caller deals with the parse error.
//
// The first structurally balanced candidate in document order wins, even when
// a later candidate is larger. Changing that policy risks behavior drift for
// outputs that narrate JSON-shaped examples before the payload.
func Extract(raw string) string {
	if raw == "" {
		return raw
	}

	if m := fencedJSONRe.FindStringSubmatch(raw); m != nil {
		if c := strings.TrimSpace(m[1]); isBalanced(c) {
			return c
		}
	}
	if m := fencedAnyRe.FindStringSubmatch(raw); m != nil {
		if c := strings.TrimSpace(m[1]); isBalanced(c) {
			return c
		}
	}
	if m := taggedJSONRe.FindStringSubmatch(raw); m != nil {
		if c := strings.TrimSpace(m[1]); isBalanced(c) {
			return c
		}
	}

	// Object candidates are scanned before array candidates, matching the
	// behavior callers depend on for mixed outputs.
	for _, re := range []*regexp.Regexp{objCandidateRe, arrCandidateRe} {
		for _, c := range re.FindAllString(raw, -1) {
			if isBalanced(c) {
				return c
			}
		}
	}

	// Station field markers: the regex above misses objects whose nested
	// braces exceed one level, so expand the fragment outward to the
	// enclosing zero-balance boundaries.
	for _, re := range stationMarkerRe {
		if loc := re.FindStringIndex(raw); loc != nil {
			if c := expandBoundaries(raw, loc[0], loc[1]); c != "" && isBalanced(c) {
				return c
			}
		}
	}

	// Absolute fallback: first opener to matching last closer.
	firstObj := strings.IndexByte(raw, '{')
	firstArr := strings.IndexByte(raw, '[')
	first := firstObj
	opener := byte('{')
	if first == -1 || (firstArr != -1 && firstArr < first) {
		first = firstArr
		opener = '['
	}
	if first == -1 {
		return strings.TrimSpace(raw)
	}
	closer := byte('}')
	if opener == '[' {
		closer = ']'
	}
	if last := strings.LastIndexByte(raw, closer); last > first {
		if c := strings.TrimSpace(raw[first : last+1]); isBalanced(c) {
			return c
		}
	}
	return strings.TrimSpace(raw)
}

// isBalanced reports whether text opens with a brace or bracket, closes with
// the matching one, and keeps its delimiters balanced outside string
// literals. The scan tracks quote state and backslash escapes; nesting going
// negative fails immediately.
func isBalanced(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	var openCh, closeCh byte
	switch {
	case text[0] == '{' && text[len(text)-1] == '}':
		openCh, closeCh = '{', '}'
	case text[0] == '[' && text[len(text)-1] == ']':
		openCh, closeCh = '[', ']'
	default:
		return false
	}

	count := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case openCh:
			count++
		case closeCh:
			count--
			if count < 0 {
				return false
			}
		}
	}
	return count == 0 && !inString
}

// expandBoundaries widens a fragment match outward until both directions hit
// a zero-balance point, recovering the full object around a partial regex
// match. Both scans are string-literal and escape aware.
func expandBoundaries(text string, start, end int) string {
	realStart := start
	braces, brackets := 0, 0
	inString, escaped := false, false
back:
	for i := start; i >= 0; i-- {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '}':
			braces++
		case '{':
			braces--
			if braces < 0 {
				realStart = i
				break back
			}
		case ']':
			brackets++
		case '[':
			brackets--
			if brackets < 0 {
				realStart = i
				break back
			}
		}
	}

	realEnd := end
	braces, brackets = 0, 0
	inString, escaped = false, false
	for i := end; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		done := false
		switch ch {
		case '{':
			braces++
		case '}':
			braces--
			if braces < 0 {
				realEnd = i + 1
				done = true
			}
		case '[':
			brackets++
		case ']':
			brackets--
			if brackets < 0 {
				realEnd = i + 1
				done = true
			}
		}
		if done {
			break
		}
	}

	if realStart < realEnd {
		return strings.TrimSpace(text[realStart:realEnd])
	}
	return strings.TrimSpace(text[start:end])
}
