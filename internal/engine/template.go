package engine

import (
	"regexp"
	"strings"
)

// Placeholder tokens look like {{a.b.c}}. This is deliberately not a template
// language: tokens resolve via dot-path lookup and nothing else.
var templateToken = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// ResolveTemplate substitutes every {{dotted.path}} token in s against the
// context. A token whose path does not resolve is left verbatim so misspelled
// paths stay visible in the CRM record instead of silently vanishing.
func ResolveTemplate(s string, context map[string]any) string {
	return templateToken.ReplaceAllStringFunc(s, func(token string) string {
		path := strings.TrimSpace(token[2 : len(token)-2])
		val, ok := ResolvePath(context, path)
		if !ok || val == nil {
			return token
		}
		return asString(val)
	})
}

// ResolveValue resolves a single field value. A string that is exactly one
// token resolves to the underlying value with its type intact; any other
// string goes through text substitution; non-strings pass through unchanged.
func ResolveValue(v any, context map[string]any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if m := templateToken.FindStringSubmatch(s); m != nil && m[0] == s {
		if val, found := ResolvePath(context, strings.TrimSpace(m[1])); found && val != nil {
			return val
		}
		return s
	}
	return ResolveTemplate(s, context)
}

// ResolveFields resolves every value of a workflow action's field map.
func ResolveFields(fields map[string]any, context map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = ResolveValue(v, context)
	}
	return out
}
