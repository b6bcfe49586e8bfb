package swarm

import (
	"fmt"

	"github.com/devswarm/swarm/internal/errors"
)

// RoleInfo describes one agent role as registered in the workflow.
type RoleInfo struct {
	// Description is the stage description copied onto the task.
	Description string

	// Disabled marks a stage that is deliberately not run. Disabled roles
	// are skipped by the graph builder without error; a role that is
	// missing from the registry entirely is a configuration error.
	Disabled bool
}

// RoleRegistry resolves a role to its registered configuration.
type RoleRegistry interface {
	Lookup(role Role) (RoleInfo, bool)
}

// BuildTasks expands an ordered list of stages into a flat chain of tasks.
// Each stage nominally groups roles that could run in parallel, but tasks
// are serialized: every emitted task depends on exactly the task emitted
// before it, so at most one task is ever eligible to run at a time.
//
// A role marked Disabled in the registry is skipped without a task. A role
// absent from the registry is rejected outright; lookup misses are not a
// stage-disabling mechanism.
func BuildTasks(stages [][]Role, registry RoleRegistry) ([]*Task, error) {
	var tasks []*Task

	for _, stage := range stages {
		for _, role := range stage {
			info, ok := registry.Lookup(role)
			if !ok {
				return nil, errors.NewValidationError("stage references a role with no registered agent").
					WithField("stages").
					WithValue(role).
					WithCause(errors.ErrUnknownRole)
			}
			if info.Disabled {
				continue
			}

			task := &Task{
				ID:          fmt.Sprintf("task_%d", len(tasks)),
				Agent:       role,
				Description: info.Description,
				Status:      TaskPending,
			}
			if len(tasks) > 0 {
				task.Dependencies = []string{tasks[len(tasks)-1].ID}
			}
			tasks = append(tasks, task)
		}
	}

	return tasks, nil
}
