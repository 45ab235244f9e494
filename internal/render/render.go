// Package render implements the mini template language used for
// operator-editable bot messages.
//
// The language has exactly two constructs:
//
//	{{key}}                     scalar substitution
//	{{#each name}}...{{/each}}  loop over a list, {{this}} is the element
//
// Nesting is not supported. Placeholders whose key has no scalar entry in the
// data bag are left verbatim so a message still renders when the bag is only
// partially populated; callers must not tighten this into a hard failure.
// No escaping is performed for the transport's markup mode.
package render

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	eachOpen  = "{{#each "
	eachClose = "{{/each}}"
	eachThis  = "{{this}}"
)

// Render expands loops, substitutes scalars and trims the result.
func Render(tmpl string, data map[string]any) string {
	out := expandLoops(tmpl, data)
	out = substituteScalars(out, data)
	return strings.TrimSpace(out)
}

// expandLoops rewrites every {{#each NAME}}BODY{{/each}} region. List-valued
// targets repeat BODY once per element with {{this}} substituted; absent or
// non-list targets collapse the region to "". Unterminated blocks are left
// untouched rather than erroring.
func expandLoops(s string, data map[string]any) string {
	var b strings.Builder
	for {
		i := strings.Index(s, eachOpen)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		rest := s[i+len(eachOpen):]
		nameEnd := strings.Index(rest, "}}")
		if nameEnd < 0 {
			b.WriteString(s)
			return b.String()
		}
		name := strings.TrimSpace(rest[:nameEnd])

		body := rest[nameEnd+2:]
		closeAt := strings.Index(body, eachClose)
		if closeAt < 0 {
			b.WriteString(s)
			return b.String()
		}

		b.WriteString(s[:i])
		for _, item := range listItems(data[name]) {
			b.WriteString(strings.ReplaceAll(body[:closeAt], eachThis, item))
		}
		s = body[closeAt+len(eachClose):]
	}
}

// substituteScalars resolves {{KEY}} placeholders scanning left to right, so
// output never depends on map iteration order. Substituted text is not
// rescanned: a value that itself contains a placeholder stays literal.
func substituteScalars(s string, data map[string]any) string {
	var b strings.Builder
	for {
		i := strings.Index(s, "{{")
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		rest := s[i+2:]
		end := strings.Index(rest, "}}")
		if end < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		if sv, ok := scalarString(data[rest[:end]]); ok {
			b.WriteString(sv)
		} else {
			// No scalar entry for the key: placeholder stays verbatim.
			b.WriteString(s[i : i+2+end+2])
		}
		s = rest[end+2:]
	}
}

// listItems returns the element string forms when v is a list, nil otherwise.
func listItems(v any) []string {
	switch xs := v.(type) {
	case []string:
		return xs
	case []any:
		out := make([]string, 0, len(xs))
		for _, x := range xs {
			s, ok := scalarString(x)
			if !ok {
				s = fmt.Sprint(x)
			}
			out = append(out, s)
		}
		return out
	default:
		return nil
	}
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case float64:
		// JSON numbers decode to float64; keep integral values clean.
		return strconv.FormatFloat(x, 'f', -1, 64), true
	default:
		return "", false
	}
}
