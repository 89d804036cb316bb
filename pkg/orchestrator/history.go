package orchestrator

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

// RunLister reads past runs of one named workflow from the external
// execution system. Implemented by the GitLab client.
type RunLister interface {
	ListWorkflowRuns(
		ctx context.Context,
		project string,
		workflow schemas.WorkflowIdentifier,
		environment schemas.Environment,
		limit int,
	) ([]schemas.DeploymentRecord, error)
}

// HistoryReader reconciles deployment history across the workflows which
// have served an environment. Results are always queried fresh: staleness is
// unacceptable for a safety-critical decision.
type HistoryReader struct {
	runs    RunLister
	project string
}

// NewHistoryReader returns a HistoryReader for the given project.
func NewHistoryReader(runs RunLister, project string) *HistoryReader {
	return &HistoryReader{
		runs:    runs,
		project: project,
	}
}

// History queries each candidate workflow in order, accumulating successful
// records, and stops early once minCount records have been collected.
//
// Records stay in within-source order, which workflow history delivers
// newest first. They are deliberately not re-sorted by wall-clock time:
// cross-workflow timestamps are not strictly comparable.
//
// If, after exhausting all candidate workflows, fewer than minCount records
// exist, the call fails with ErrInsufficientHistory. A rollback cannot
// proceed without a known-good prior state, this is never approximated.
func (h *HistoryReader) History(
	ctx context.Context,
	environment schemas.Environment,
	workflows []schemas.WorkflowIdentifier,
	minCount int,
	perQueryLimit int,
) ([]schemas.DeploymentRecord, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "orchestrator:History")
	defer span.End()
	span.SetAttributes(attribute.String("environment", environment.String()))

	var records []schemas.DeploymentRecord

	for _, workflow := range workflows {
		runs, err := h.runs.ListWorkflowRuns(ctx, h.project, workflow, environment, perQueryLimit)
		if err != nil {
			return nil, err
		}

		for _, run := range runs {
			// The execution system is asked for successful runs only, but
			// success still gates participation here.
			if !run.Succeeded() {
				continue
			}

			records = append(records, run)
		}

		log.WithFields(log.Fields{
			"environment": environment,
			"workflow":    workflow,
			"records":     len(records),
		}).Debug("accumulated deployment history")

		if len(records) >= minCount {
			break
		}
	}

	if len(records) < minCount {
		return nil, errors.Wrapf(
			schemas.ErrInsufficientHistory,
			"found %d successful deployment(s) for '%s', need at least %d",
			len(records), environment, minCount,
		)
	}

	return records, nil
}
