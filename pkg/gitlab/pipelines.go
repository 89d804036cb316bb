package gitlab

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	goGitlab "gitlab.com/gitlab-org/api/client-go"
	"go.openly.dev/pointy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

// ListWorkflowRuns retrieves up to limit successful runs of one named
// workflow, newest first as delivered by the API. On instances too old for
// server-side pipeline name filtering the runs are filtered client-side.
func (c *Client) ListWorkflowRuns(
	ctx context.Context,
	project string,
	workflow schemas.WorkflowIdentifier,
	environment schemas.Environment,
	limit int,
) ([]schemas.DeploymentRecord, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "gitlab:ListWorkflowRuns")
	defer span.End()
	span.SetAttributes(attribute.String("project_name", project))
	span.SetAttributes(attribute.String("workflow", string(workflow)))

	options := &goGitlab.ListProjectPipelinesOptions{
		ListOptions: goGitlab.ListOptions{
			Page:    1,
			PerPage: limit,
		},
		Status: goGitlab.Ptr(goGitlab.Success),
	}

	serverSideNameFilter := c.Version().PipelineNameFilteringSupported()
	if serverSideNameFilter {
		options.Name = pointy.String(string(workflow))
	}

	log.WithFields(log.Fields{
		"project-name":            project,
		"workflow":                workflow,
		"server-side-name-filter": serverSideNameFilter,
	}).Debug("listing workflow runs")

	c.rateLimit(ctx)

	pipelines, resp, err := c.Pipelines.ListProjectPipelines(project, options, goGitlab.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrapf(err, "listing runs of workflow '%s'", workflow)
	}

	c.requestsRemaining(resp)

	records := make([]schemas.DeploymentRecord, 0, len(pipelines))

	for _, pipeline := range pipelines {
		if !serverSideNameFilter && pipeline.Name != string(workflow) {
			continue
		}

		records = append(records, newDeploymentRecord(pipeline, environment))
	}

	return records, nil
}

// CreateDeploymentPipeline dispatches one promotion run to the executor and
// returns its handle. The executor owns completion tracking, the handle is
// only good for monitoring. API failures map onto ErrExecutorUnavailable.
func (c *Client) CreateDeploymentPipeline(
	ctx context.Context,
	project string,
	workflow schemas.WorkflowIdentifier,
	ref string,
	variables map[string]string,
) (schemas.DispatchHandle, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "gitlab:CreateDeploymentPipeline")
	defer span.End()
	span.SetAttributes(attribute.String("project_name", project))
	span.SetAttributes(attribute.String("workflow", string(workflow)))
	span.SetAttributes(attribute.String("ref", ref))

	pipelineVariables := make([]*goGitlab.PipelineVariableOptions, 0, len(variables))
	for k, v := range variables {
		pipelineVariables = append(pipelineVariables, &goGitlab.PipelineVariableOptions{
			Key:   pointy.String(k),
			Value: pointy.String(v),
		})
	}

	c.rateLimit(ctx)

	pipeline, resp, err := c.Pipelines.CreatePipeline(project, &goGitlab.CreatePipelineOptions{
		Ref:       pointy.String(ref),
		Variables: &pipelineVariables,
	}, goGitlab.WithContext(ctx))

	c.requestsRemaining(resp)

	if err != nil {
		return schemas.DispatchHandle{}, errors.Wrapf(schemas.ErrExecutorUnavailable, "creating pipeline on '%s': %s", ref, err)
	}

	return schemas.DispatchHandle{
		RunID:    pipeline.ID,
		Workflow: workflow,
		WebURL:   pipeline.WebURL,
	}, nil
}

// newDeploymentRecord converts a GitLab pipeline into a deployment record.
func newDeploymentRecord(pipeline *goGitlab.PipelineInfo, environment schemas.Environment) schemas.DeploymentRecord {
	var createdAt time.Time
	if pipeline.CreatedAt != nil {
		createdAt = *pipeline.CreatedAt
	}

	commit := pipeline.SHA
	if len(commit) > schemas.ShortCommitLength {
		commit = commit[:schemas.ShortCommitLength]
	}

	title := pipeline.Name
	if title == "" {
		title = fmt.Sprintf("pipeline #%d (%s)", pipeline.ID, pipeline.Ref)
	}

	return schemas.DeploymentRecord{
		RunID:       pipeline.ID,
		CreatedAt:   createdAt,
		Commit:      commit,
		Environment: environment,
		Outcome:     newDeploymentOutcome(pipeline.Status),
		Title:       title,
		WebURL:      pipeline.WebURL,
	}
}

// newDeploymentOutcome folds the pipeline status space into the three
// outcomes a promotion decision cares about.
func newDeploymentOutcome(status string) schemas.DeploymentOutcome {
	switch status {
	case "success":
		return schemas.DeploymentOutcomeSuccess
	case "failed", "canceled", "skipped":
		return schemas.DeploymentOutcomeFailure
	default:
		return schemas.DeploymentOutcomePending
	}
}
