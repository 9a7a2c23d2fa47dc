package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Answers pre-seeds wizard stages, keyed by stage name. A stage that finds
// its answer applies it and skips itself, so an answered-up flow runs
// through without interaction.
type Answers map[string]map[string]any

// LoadAnswers reads an answers yaml file. Unlike Load, a missing file is an
// error: the caller asked for it explicitly.
func LoadAnswers(path string) (Answers, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	var a Answers
	if err := yaml.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("parse answers %s: %w", path, err)
	}
	return a, nil
}

// For returns the answer map recorded for a stage, if any.
func (a Answers) For(stage string) (map[string]any, bool) {
	if a == nil {
		return nil, false
	}
	m, ok := a[stage]
	return m, ok
}

// String returns a string-typed answer field for a stage.
func (a Answers) String(stage, key string) (string, bool) {
	m, ok := a.For(stage)
	if !ok {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok
}
