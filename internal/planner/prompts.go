package planner

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

type promptFile struct {
	Version int    `yaml:"version"`
	System  string `yaml:"system"`
}

type promptVars struct {
	Today    string
	Profile  string
	Platform string
	Timezone string
	MaxItems int
}

// systemPrompt is parsed once at package init; a broken embedded file is a build defect.
var systemPrompt = mustLoadPrompt(promptsYAML)

func mustLoadPrompt(data []byte) *template.Template {
	tmpl, err := loadPrompt(data)
	if err != nil {
		panic(err)
	}
	return tmpl
}

func loadPrompt(data []byte) (*template.Template, error) {
	var pf promptFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing prompts: %w", err)
	}
	if strings.TrimSpace(pf.System) == "" {
		return nil, fmt.Errorf("parsing prompts: system prompt is empty")
	}
	tmpl, err := template.New("system").Option("missingkey=error").Parse(pf.System)
	if err != nil {
		return nil, fmt.Errorf("parsing system prompt template: %w", err)
	}
	return tmpl, nil
}

func renderSystem(vars promptVars) (string, error) {
	var sb strings.Builder
	if err := systemPrompt.Execute(&sb, vars); err != nil {
		return "", fmt.Errorf("rendering system prompt: %w", err)
	}
	return sb.String(), nil
}
