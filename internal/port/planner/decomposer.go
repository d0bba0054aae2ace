// Package planner defines the decomposition port used by the planner service.
package planner

import "context"

// SubtaskSpec describes one subtask produced by decomposition.
// Dependencies are 0-based indices into the same spec slice; the planner
// service resolves them to task ids after creation.
type SubtaskSpec struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Dependencies  []int    `json:"dependencies"`
	AssignedTools []string `json:"assigned_tools"`
}

// Decomposer breaks a natural-language task description into subtask specs.
// Implementations may call out to an LLM; the default is a local heuristic.
type Decomposer interface {
	Decompose(ctx context.Context, description string, context map[string]any) ([]SubtaskSpec, error)
}
