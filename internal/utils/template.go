package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"
)

var templateFuncs = template.FuncMap{
	"json":     ToJSON,
	"truncate": Truncate,
	"trim":     strings.TrimSpace,
}

// LoadTemplate loads and parses a template file with custom functions
func LoadTemplate(path string) (*template.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file %s: %w", path, err)
	}

	return ParseTemplate(path, string(data))
}

func ParseTemplate(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(templateFuncs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	return tmpl, nil
}

// ExecuteTemplate renders tmpl with data into a string.
func ExecuteTemplate(tmpl *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", tmpl.Name(), err)
	}
	return b.String(), nil
}

// ToJSON converts a value to a JSON string
func ToJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}
