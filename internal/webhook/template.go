package webhook

import (
	"fmt"
	"regexp"
)

var tplVarRegex = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// renderTemplate walks a JSON-like template structure and substitutes context
// values. Two forms are recognized:
//
//	{"$val": "context_key"}  - replaced by the raw context value, missing key
//	                           renders as null
//	{"$tpl": "hi {{name}}"}  - string interpolation, missing vars render as
//	                           the empty string
//
// Everything else passes through unchanged, with maps and lists rendered
// recursively.
func renderTemplate(template any, context map[string]any) any {
	switch tpl := template.(type) {
	case map[string]any:
		if len(tpl) == 1 {
			if key, ok := tpl["$val"]; ok {
				name, isString := key.(string)
				if !isString {
					return key
				}
				return context[name]
			}
			if text, ok := tpl["$tpl"]; ok {
				if s, isString := text.(string); isString {
					return interpolate(s, context)
				}
				return text
			}
		}
		rendered := make(map[string]any, len(tpl))
		for key, value := range tpl {
			rendered[key] = renderTemplate(value, context)
		}
		return rendered
	case []any:
		rendered := make([]any, len(tpl))
		for i, item := range tpl {
			rendered[i] = renderTemplate(item, context)
		}
		return rendered
	}
	return template
}

func interpolate(text string, context map[string]any) string {
	return tplVarRegex.ReplaceAllStringFunc(text, func(match string) string {
		name := tplVarRegex.FindStringSubmatch(match)[1]
		value, ok := context[name]
		if !ok || value == nil {
			return ""
		}
		return fmt.Sprintf("%v", value)
	})
}
