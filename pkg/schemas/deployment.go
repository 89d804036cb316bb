package schemas

import (
	"time"
)

// DeploymentOutcome is the terminal state of a past deployment run.
type DeploymentOutcome string

const (
	// DeploymentOutcomeSuccess indicates that the run deployed successfully.
	DeploymentOutcomeSuccess DeploymentOutcome = "success"

	// DeploymentOutcomeFailure indicates that the run failed.
	DeploymentOutcomeFailure DeploymentOutcome = "failure"

	// DeploymentOutcomePending indicates that the run has not finished yet.
	DeploymentOutcomePending DeploymentOutcome = "pending"
)

// DeploymentRecord describes one prior promotion run as reported by the
// external execution system. Records are immutable once fetched and are never
// cached across invocations.
type DeploymentRecord struct {
	RunID       int               // Identifier of the run within the execution system
	CreatedAt   time.Time         // When the run was created
	Commit      string            // Short form commit the run deployed
	Environment Environment       // Environment the run targeted
	Outcome     DeploymentOutcome // Terminal state of the run
	Title       string            // Human description of the run
	WebURL      string            // Monitoring URL of the run
}

// Succeeded reports whether the record may participate in rollback-candidate
// selection.
func (r DeploymentRecord) Succeeded() bool {
	return r.Outcome == DeploymentOutcomeSuccess
}

// WorkflowIdentifier names a workflow of the external execution system.
// Environments may be served by more than one named workflow historically.
type WorkflowIdentifier string

// ReleaseTag maps a published release tag to the commit it was cut from.
type ReleaseTag struct {
	Name     string // Tag name
	CommitID string // Full commit identifier the tag points at
}

// DispatchHandle is returned by the executor for a dispatched promotion.
// Completion tracking is owned by the executor, the handle is only good for
// pointing the operator at it.
type DispatchHandle struct {
	RunID    int                // Identifier of the created run
	Workflow WorkflowIdentifier // Workflow which will execute the promotion
	WebURL   string             // Monitoring URL of the created run
}
