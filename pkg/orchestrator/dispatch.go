package orchestrator

import (
	"context"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helvethink/gitlab-promoter/pkg/config"
	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

// Pipeline variable names handed to the executor. The deployed application
// re-exposes the commit and environment through its health endpoint.
const (
	varEnvironment = "DEPLOY_ENVIRONMENT"
	varCommit      = "DEPLOY_COMMIT"
	varMethod      = "DEPLOY_METHOD"
	varWorkflow    = "DEPLOY_WORKFLOW"
	varRunID       = "PROMOTION_RUN_ID"
)

// PipelineCreator dispatches one run to the external execution system.
// Implemented by the GitLab client.
type PipelineCreator interface {
	CreateDeploymentPipeline(
		ctx context.Context,
		project string,
		workflow schemas.WorkflowIdentifier,
		ref string,
		variables map[string]string,
	) (schemas.DispatchHandle, error)
}

// Dispatcher translates an approved promotion decision into a single call to
// the external executor. It never polls for completion and never retries:
// retrying a destructive dispatch is unsafe.
type Dispatcher struct {
	creator      PipelineCreator
	project      string
	defaultRef   string
	environments config.Environments
	runID        uuid.UUID
}

// NewDispatcher returns a Dispatcher for the given project. defaultRef is
// used when an environment does not pin its own deploy ref.
func NewDispatcher(creator PipelineCreator, project, defaultRef string, environments config.Environments, runID uuid.UUID) *Dispatcher {
	return &Dispatcher{
		creator:      creator,
		project:      project,
		defaultRef:   defaultRef,
		environments: environments,
		runID:        runID,
	}
}

// Dispatch selects the workflow for (environment, method), supplies the
// resolved full commit as its parameter and returns the executor's handle.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	environment schemas.Environment,
	commit schemas.ResolvedCommit,
	method schemas.DispatchMethod,
) (schemas.DispatchHandle, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "orchestrator:Dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("environment", environment.String()))
	span.SetAttributes(attribute.String("commit", commit.ID))
	span.SetAttributes(attribute.String("method", string(method)))

	params := d.environments.ForEnvironment(environment)
	workflow := params.WorkflowFor(method)

	ref := params.DeployRef
	if ref == "" {
		ref = d.defaultRef
	}

	log.WithFields(log.Fields{
		"environment": environment,
		"workflow":    workflow,
		"commit":      commit.Short(),
		"method":      method,
		"ref":         ref,
	}).Info("dispatching promotion")

	return d.creator.CreateDeploymentPipeline(ctx, d.project, workflow, ref, map[string]string{
		varEnvironment: environment.String(),
		varCommit:      commit.ID,
		varMethod:      string(method),
		varWorkflow:    string(workflow),
		varRunID:       d.runID.String(),
	})
}
