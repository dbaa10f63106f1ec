package builtins

import (
	"strings"
	"text/template"
)

// TemplateFuncMap returns the function map PromptTemplate compiles its
// templates with: small arithmetic and string helpers for prompt
// construction, adapted from the teacher's template_functions.go. Functions
// favor safe defaults (division by zero returns 0) over panicking, since
// they run inside operator execution.
func TemplateFuncMap() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
		"mul": func(a, b int) int { return a * b },
		"div": func(a, b int) int {
			if b == 0 {
				return 0
			}
			return a / b
		},
		"mod": func(a, b int) int {
			if b == 0 {
				return 0
			}
			return a % b
		},

		"contains":  strings.Contains,
		"hasPrefix": strings.HasPrefix,
		"hasSuffix": strings.HasSuffix,
		"lower":     strings.ToLower,
		"upper":     strings.ToUpper,
		"trim":      strings.TrimSpace,
		"replace":   strings.ReplaceAll,
		"join":      func(elems []string, sep string) string { return strings.Join(elems, sep) },
		"split":     strings.Split,

		"truncate": func(s string, length int) string {
			if length <= 0 {
				return ""
			}
			if len(s) <= length {
				return s
			}
			if length > 3 {
				return s[:length-3] + "..."
			}
			return s[:length]
		},
	}
}
