// Package heuristic provides a rule-based Decomposer used when no external
// planning backend is configured. It splits a description into sequential
// steps on sentence and list boundaries.
package heuristic

import (
	"context"
	"strings"

	"github.com/taskgrid/taskgrid/internal/port/planner"
)

const maxNameLen = 64

// Decomposer implements planner.Decomposer with local text heuristics.
type Decomposer struct{}

// New creates a heuristic decomposer.
func New() *Decomposer { return &Decomposer{} }

// Decompose splits the description into steps. Bullet lines and numbered
// lines win over sentence splitting; each step depends on the previous one.
// A description that yields a single step produces exactly one subtask with
// no dependencies.
func (d *Decomposer) Decompose(_ context.Context, description string, _ map[string]any) ([]planner.SubtaskSpec, error) {
	steps := splitBullets(description)
	if len(steps) < 2 {
		steps = splitSentences(description)
	}
	if len(steps) == 0 {
		steps = []string{strings.TrimSpace(description)}
	}

	specs := make([]planner.SubtaskSpec, len(steps))
	for i, step := range steps {
		spec := planner.SubtaskSpec{
			Name:        stepName(step),
			Description: step,
		}
		if i > 0 {
			spec.Dependencies = []int{i - 1}
		}
		specs[i] = spec
	}
	return specs, nil
}

// splitBullets extracts "- item", "* item" and "1. item" lines.
func splitBullets(s string) []string {
	var steps []string
	for line := range strings.Lines(s) {
		line = strings.TrimSpace(line)
		if !isBullet(line) {
			continue
		}
		item := strings.TrimSpace(strings.TrimLeft(line, "-*0123456789.)"))
		if item != "" {
			steps = append(steps, item)
		}
	}
	return steps
}

func isBullet(line string) bool {
	if line == "" {
		return false
	}
	if line[0] == '-' || line[0] == '*' {
		return true
	}
	// numbered list: digits followed by '.' or ')'
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	return i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')')
}

// splitSentences breaks prose on terminal punctuation.
func splitSentences(s string) []string {
	var steps []string
	var b strings.Builder
	for _, r := range s {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == ';' {
			if step := strings.TrimSpace(strings.Trim(b.String(), ".!?;")); step != "" {
				steps = append(steps, step)
			}
			b.Reset()
		}
	}
	if step := strings.TrimSpace(b.String()); step != "" {
		steps = append(steps, step)
	}
	return steps
}

func stepName(step string) string {
	if len(step) <= maxNameLen {
		return step
	}
	cut := strings.LastIndex(step[:maxNameLen], " ")
	if cut <= 0 {
		cut = maxNameLen
	}
	return step[:cut]
}
