// Package util holds helpers shared by ragflow packages that are not part of
// the public API.
package util

import (
	"bytes"
	"strings"
	"sync"
	"text/template"
)

var roleFuncs = template.FuncMap{
	"default": func(fallback, val any) any {
		if val == nil || val == "" {
			return fallback
		}
		return val
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"trim":  strings.TrimSpace,
	// truncate keeps at most n runes of s, e.g. {{truncate 200 .Task}}.
	"truncate": func(n int, s string) string {
		r := []rune(s)
		if n < 0 || len(r) <= n {
			return s
		}
		return string(r[:n])
	},
}

// roles caches parsed role templates by source text. Roles are rendered once
// per step, so the same few templates are executed many times.
var roles sync.Map

// HasTemplate reports whether text contains template markers.
func HasTemplate(text string) bool { return strings.Contains(text, "{{") }

// ParseRole parses text as a role template without executing it.
func ParseRole(text string) (*template.Template, error) {
	if cached, ok := roles.Load(text); ok {
		return cached.(*template.Template), nil
	}

	tmpl, err := template.New("role").Option("missingkey=error").Funcs(roleFuncs).Parse(text)
	if err != nil {
		return nil, err
	}

	actual, _ := roles.LoadOrStore(text, tmpl)
	return actual.(*template.Template), nil
}

// RenderRole renders a role template against vars. Text without markers is
// returned unchanged. Prompts are plain text; nothing is HTML escaped.
// Referencing a key that vars does not hold is an error.
func RenderRole(text string, vars map[string]any) (string, error) {
	if !HasTemplate(text) {
		return text, nil
	}

	tmpl, err := ParseRole(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", err
	}

	return buf.String(), nil
}
