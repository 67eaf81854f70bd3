// Package depth rewrites document subtrees so that no branch nests deeper
// than the document store allows. Over-deep branches are serialized to JSON
// strings in place, keeping every scalar recoverable and every sequence in
// its original order.
package depth

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// recursionCeiling bounds all recursive walks. Station documents are
// tree-shaped JSON so true cycles cannot occur, but malformed input must not
// recurse unbounded. Hard invariant, not an incidental detail.
const recursionCeiling = 20

// DefaultMaxDepth is the nesting ceiling the document store tolerates for
// risky subtrees such as impresso conteudo.
const DefaultMaxDepth = 2

// MaxDepth returns the maximum container-nesting depth anywhere under v.
// The root counts as depth 0; a scalar has depth 0.
func MaxDepth(v any) int {
	return maxDepth(v, 0)
}

func maxDepth(v any, current int) int {
	if current > recursionCeiling {
		return current
	}
	switch t := v.(type) {
	case map[string]any:
		deepest := current
		for _, val := range t {
			if d := maxDepth(val, current+1); d > deepest {
				deepest = d
			}
		}
		return deepest
	case []any:
		deepest := current
		for _, item := range t {
			if d := maxDepth(item, current+1); d > deepest {
				deepest = d
			}
		}
		return deepest
	default:
		return current
	}
}

// HasDeepNesting reports whether v, considered to sit at current, reaches
// maxAllowed or deeper. It is evaluated before descending into a branch to
// decide stringify-vs-recurse, and must agree with MaxDepth.
func HasDeepNesting(v any, current, maxAllowed int) bool {
	if current >= maxAllowed {
		return true
	}
	if current > recursionCeiling {
		return true
	}
	switch t := v.(type) {
	case map[string]any:
		for _, val := range t {
			if HasDeepNesting(val, current+1, maxAllowed) {
				return true
			}
		}
	case []any:
		for _, item := range t {
			if HasDeepNesting(item, current+1, maxAllowed) {
				return true
			}
		}
	}
	return false
}

// Sanitize returns a copy of v in which every branch that would exceed
// maxAllowed nesting levels has been serialized to a JSON string. Scalars
// pass through unchanged and sequences keep their element order; impresso
// sections are shown to proctors in authored order.
func Sanitize(v any, maxAllowed int) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = sanitizeBranch(val, maxAllowed)
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			out = append(out, sanitizeBranch(item, maxAllowed))
		}
		return out
	default:
		return v
	}
}

// sanitizeBranch handles one child of a container: stringify when the branch
// would breach the ceiling counted from its parent, recurse otherwise.
func sanitizeBranch(v any, maxAllowed int) any {
	switch v.(type) {
	case map[string]any, []any:
		if HasDeepNesting(v, 1, maxAllowed) {
			return Stringify(v)
		}
		return Sanitize(v, maxAllowed)
	default:
		return v
	}
}

// Stringify serializes v to a compact JSON string without HTML escaping,
// so the clinical text survives a later decode byte-for-byte.
func Stringify(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
