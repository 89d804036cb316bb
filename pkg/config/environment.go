package config

import (
	"fmt"

	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

// WorkflowFor returns the workflow identifier executing the given dispatch
// method in this environment.
func (p EnvironmentParameters) WorkflowFor(method schemas.DispatchMethod) schemas.WorkflowIdentifier {
	switch method {
	case schemas.MethodRetagPromote:
		return schemas.WorkflowIdentifier(p.RetagWorkflow)
	default:
		return schemas.WorkflowIdentifier(p.DeployWorkflow)
	}
}

// WorkflowCandidates returns the ordered workflow identifiers to query for
// deployment history. When no explicit history workflows are configured, the
// dispatchable workflows serve as the candidates.
func (p EnvironmentParameters) WorkflowCandidates() []schemas.WorkflowIdentifier {
	names := p.HistoryWorkflows
	if len(names) == 0 {
		for _, n := range []string{p.DeployWorkflow, p.RetagWorkflow} {
			if n != "" {
				names = append(names, n)
			}
		}
	}

	out := make([]schemas.WorkflowIdentifier, 0, len(names))
	for _, n := range names {
		out = append(out, schemas.WorkflowIdentifier(n))
	}

	return out
}

// check asserts that the environment block can both dispatch and read
// history.
func (p EnvironmentParameters) check(env schemas.Environment) error {
	if p.DeployWorkflow == "" {
		return fmt.Errorf("environment '%s' has no deploy_workflow configured", env)
	}

	if p.RetagWorkflow == "" {
		return fmt.Errorf("environment '%s' has no retag_workflow configured", env)
	}

	if len(p.WorkflowCandidates()) == 0 {
		return fmt.Errorf("environment '%s' has no history workflows configured", env)
	}

	return nil
}
