package orchestrator

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

// fakeRunLister serves canned runs per workflow and records which workflows
// were queried.
type fakeRunLister struct {
	runs    map[schemas.WorkflowIdentifier][]schemas.DeploymentRecord
	err     error
	queried []schemas.WorkflowIdentifier
}

func (f *fakeRunLister) ListWorkflowRuns(
	_ context.Context,
	_ string,
	workflow schemas.WorkflowIdentifier,
	_ schemas.Environment,
	_ int,
) ([]schemas.DeploymentRecord, error) {
	f.queried = append(f.queried, workflow)

	if f.err != nil {
		return nil, f.err
	}

	return f.runs[workflow], nil
}

func successRecord(id int, commit string) schemas.DeploymentRecord {
	return schemas.DeploymentRecord{
		RunID:   id,
		Commit:  commit,
		Outcome: schemas.DeploymentOutcomeSuccess,
	}
}

func TestHistoryAccumulatesAcrossWorkflows(t *testing.T) {
	lister := &fakeRunLister{
		runs: map[schemas.WorkflowIdentifier][]schemas.DeploymentRecord{
			"deploy": {successRecord(12, "abcd1234")},
			"legacy": {successRecord(7, "00112233"), successRecord(3, "44556677")},
		},
	}

	h := NewHistoryReader(lister, "acme/webapp")

	records, err := h.History(context.Background(), schemas.EnvironmentProd, []schemas.WorkflowIdentifier{"deploy", "legacy"}, 2, 20)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Within-source order is preserved, newest first per workflow, and the
	// workflow priority order decides across sources.
	assert.Equal(t, 12, records[0].RunID)
	assert.Equal(t, 7, records[1].RunID)
	assert.Equal(t, 3, records[2].RunID)
}

func TestHistoryStopsEarlyOnceSatisfied(t *testing.T) {
	lister := &fakeRunLister{
		runs: map[schemas.WorkflowIdentifier][]schemas.DeploymentRecord{
			"deploy": {successRecord(12, "abcd1234"), successRecord(11, "00112233")},
			"legacy": {successRecord(7, "44556677")},
		},
	}

	h := NewHistoryReader(lister, "acme/webapp")

	_, err := h.History(context.Background(), schemas.EnvironmentProd, []schemas.WorkflowIdentifier{"deploy", "legacy"}, 2, 20)
	require.NoError(t, err)

	assert.Equal(t, []schemas.WorkflowIdentifier{"deploy"}, lister.queried)
}

func TestHistorySkipsNonSuccessfulRuns(t *testing.T) {
	lister := &fakeRunLister{
		runs: map[schemas.WorkflowIdentifier][]schemas.DeploymentRecord{
			"deploy": {
				successRecord(12, "abcd1234"),
				{RunID: 11, Commit: "00112233", Outcome: schemas.DeploymentOutcomeFailure},
				{RunID: 10, Commit: "44556677", Outcome: schemas.DeploymentOutcomePending},
			},
		},
	}

	h := NewHistoryReader(lister, "acme/webapp")

	records, err := h.History(context.Background(), schemas.EnvironmentStaging, []schemas.WorkflowIdentifier{"deploy"}, 1, 20)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 12, records[0].RunID)
}

// A rollback needs the current deployment plus one predecessor. One record
// alone is not enough and is never approximated.
func TestHistoryInsufficient(t *testing.T) {
	lister := &fakeRunLister{
		runs: map[schemas.WorkflowIdentifier][]schemas.DeploymentRecord{
			"deploy": {successRecord(12, "abcd1234")},
		},
	}

	h := NewHistoryReader(lister, "acme/webapp")

	_, err := h.History(context.Background(), schemas.EnvironmentProd, []schemas.WorkflowIdentifier{"deploy"}, 2, 20)
	assert.ErrorIs(t, err, schemas.ErrInsufficientHistory)
}

func TestHistoryPropagatesListerErrors(t *testing.T) {
	lister := &fakeRunLister{err: errors.New("gitlab unavailable")}

	h := NewHistoryReader(lister, "acme/webapp")

	_, err := h.History(context.Background(), schemas.EnvironmentProd, []schemas.WorkflowIdentifier{"deploy"}, 1, 20)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, schemas.ErrInsufficientHistory)
}
