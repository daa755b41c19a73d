package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var tokenPattern = regexp.MustCompile(`{(.*?)}`)

// ResolveTemplate replaces {$.path} tokens in a string with values looked up
// in the context variables. Tokens without the $ prefix are left untouched.
func ResolveTemplate(template string, variables map[string]any) string {
	scope := map[string]any{"variables": variables}
	tokens := tokenPattern.FindAllString(template, -1)
	result := template
	for _, token := range tokens {
		path := strings.TrimSuffix(strings.TrimPrefix(token, "{"), "}")
		if !strings.HasPrefix(path, "$") {
			continue
		}
		value, err := jsonpath.JsonPathLookup(scope, path)
		if err != nil {
			continue
		}
		result = strings.ReplaceAll(result, token, fmt.Sprintf("%v", value))
	}
	return result
}

// ResolveTemplateMap walks a body template and resolves every string value,
// recursing into nested maps and lists.
func ResolveTemplateMap(template map[string]any, variables map[string]any) map[string]any {
	output := make(map[string]any, len(template))
	for k, v := range template {
		output[k] = resolveValue(v, variables)
	}
	return output
}

func resolveValue(v any, variables map[string]any) any {
	switch tv := v.(type) {
	case map[string]any:
		return ResolveTemplateMap(tv, variables)
	case []any:
		out := make([]any, 0, len(tv))
		for _, item := range tv {
			out = append(out, resolveValue(item, variables))
		}
		return out
	case string:
		return ResolveTemplate(tv, variables)
	default:
		return v
	}
}

// ResolveTemplateHeaders resolves header values against context variables.
func ResolveTemplateHeaders(headers map[string]string, variables map[string]any) map[string]string {
	output := make(map[string]string, len(headers))
	for k, v := range headers {
		output[k] = ResolveTemplate(v, variables)
	}
	return output
}
