package util

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// TemplateFuncs are the helpers available to every prompt template.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"default": func(defaultVal any, val any) any {
			if val == nil || val == "" {
				return defaultVal
			}
			return val
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"trim":  strings.TrimSpace,
		"quote": func(s string) string {
			return `"` + strings.ReplaceAll(strings.TrimSpace(s), `"`, `'`) + `"`
		},
	}
}

// ParseTemplate parses text as a named template with TemplateFuncs. Missing
// keys are an error so a typo in a template surfaces at startup.
func ParseTemplate(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Funcs(TemplateFuncs()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return tmpl, nil
}

// RenderTemplate executes tmpl with data and returns the trimmed output.
func RenderTemplate(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
