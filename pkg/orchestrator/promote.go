package orchestrator

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helvethink/gitlab-promoter/pkg/gate"
	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

// Request describes one promotion or rollback the operator asked for.
type Request struct {
	Environment schemas.Environment
	Ref         string // Raw commit reference, empty means interactive selection
	Mode        schemas.Mode
	Rollback    bool
}

// Promote drives one full promotion run: resolve what to deploy, validate
// its artifact, walk the confirmation protocol and dispatch exactly once.
//
// The returned error discriminates operator refusal (ErrUserDeclined) from
// system failures, both leave the target environment untouched.
func (o *Orchestrator) Promote(ctx context.Context, req Request) (schemas.DispatchHandle, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "orchestrator:Promote")
	defer span.End()
	span.SetAttributes(attribute.String("environment", req.Environment.String()))
	span.SetAttributes(attribute.String("mode", string(req.Mode)))
	span.SetAttributes(attribute.Bool("rollback", req.Rollback))

	method := MethodFor(req.Mode, req.Rollback)
	tier := ApprovalTierFor(req.Environment, req.Mode)

	fields := log.Fields{
		"run-id":      o.UUID,
		"environment": req.Environment,
		"mode":        req.Mode,
		"method":      method,
		"approval":    tier,
	}

	current, previous, err := o.deploymentContext(ctx, req)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("reading deployment history")

		return schemas.DispatchHandle{}, err
	}

	commit, err := o.targetCommit(ctx, req, previous)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("selecting target commit")

		return schemas.DispatchHandle{}, err
	}

	fields["commit"] = commit.Short()

	image, err := o.validateImage(ctx, req.Environment, commit)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("validating registry artifact")

		return schemas.DispatchHandle{}, err
	}

	if err = o.Gate.Confirm(gate.Decision{
		Environment: req.Environment,
		Mode:        req.Mode,
		Method:      method,
		Tier:        tier,
		From:        current,
		To:          commit,
		Image:       image,
	}); err != nil {
		log.WithFields(fields).WithError(err).Warn("promotion not confirmed")

		return schemas.DispatchHandle{}, err
	}

	if err = o.executorPreflight(ctx); err != nil {
		log.WithFields(fields).WithError(err).Error("executor preflight failed")

		return schemas.DispatchHandle{}, err
	}

	handle, err := o.Dispatcher.Dispatch(ctx, req.Environment, commit, method)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("dispatching promotion")

		return schemas.DispatchHandle{}, err
	}

	log.WithFields(fields).WithFields(log.Fields{
		"dispatched-run-id": handle.RunID,
		"web-url":           handle.WebURL,
	}).Info("promotion dispatched")

	return handle, nil
}

// EnvironmentHistory returns the reconciled deployment history of one
// environment, newest first, for display purposes.
func (o *Orchestrator) EnvironmentHistory(ctx context.Context, environment schemas.Environment) ([]schemas.DeploymentRecord, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "orchestrator:EnvironmentHistory")
	defer span.End()
	span.SetAttributes(attribute.String("environment", environment.String()))

	params := o.Config.Environments.ForEnvironment(environment)

	return o.HistoryRdr.History(ctx, environment, params.WorkflowCandidates(), 1, params.HistoryPerQueryLimit)
}

// deploymentContext establishes what is currently running in the target
// environment and, for rollbacks, which deployment preceded it.
//
// A rollback strictly requires both: without a verified prior success there
// is nothing safe to return to. A forward promotion only uses the current
// record as display context, so missing history degrades to a warning.
func (o *Orchestrator) deploymentContext(ctx context.Context, req Request) (current, previous *schemas.DeploymentRecord, err error) {
	params := o.Config.Environments.ForEnvironment(req.Environment)

	minCount := 1
	if req.Rollback {
		minCount = 2
	}

	records, err := o.HistoryRdr.History(ctx, req.Environment, params.WorkflowCandidates(), minCount, params.HistoryPerQueryLimit)
	if err != nil {
		if req.Rollback {
			return nil, nil, err
		}

		log.WithFields(log.Fields{
			"environment": req.Environment,
		}).WithError(err).Warn("no deployment history available, promoting without a current-state reference")

		return nil, nil, nil
	}

	current = &records[0]
	if len(records) > 1 {
		previous = &records[1]
	}

	return current, previous, nil
}

// targetCommit settles which commit the run is about: the rollback target,
// an explicit operator reference, or an interactively picked candidate.
func (o *Orchestrator) targetCommit(ctx context.Context, req Request, previous *schemas.DeploymentRecord) (schemas.ResolvedCommit, error) {
	raw := req.Ref

	if req.Rollback && raw == "" {
		if previous == nil {
			return schemas.ResolvedCommit{}, errors.Wrap(schemas.ErrInsufficientHistory, "no prior deployment to roll back to")
		}

		raw = previous.Commit
	}

	if raw == "" {
		return o.pickCandidate(ctx, req.Environment)
	}

	ref, err := schemas.ParseCommitRef(raw)
	if err != nil {
		return schemas.ResolvedCommit{}, err
	}

	return o.Resolver.Resolve(ctx, ref)
}

// pickCandidate gathers candidate commits from all reference sources and
// hands the choice to the operator.
func (o *Orchestrator) pickCandidate(ctx context.Context, environment schemas.Environment) (schemas.ResolvedCommit, error) {
	candidates, err := o.Candidates.Candidates(ctx, o.Config.Candidates.Limit)
	if err != nil {
		return schemas.ResolvedCommit{}, err
	}

	return o.Pick(candidates.Entries(), "promote to "+environment.String())
}

// validateImage derives the registry coordinates for the commit and checks
// the artifact actually exists before any confirmation is requested.
//
// An unreachable registry blocks production outright. For lower
// environments the operator may explicitly accept the unverified state.
// A definitive "tag not found" always blocks: deploying a nonexistent
// artifact cannot be overridden.
func (o *Orchestrator) validateImage(ctx context.Context, environment schemas.Environment, commit schemas.ResolvedCommit) (schemas.ImageReference, error) {
	image := o.Images.Resolve(commit)

	exists, err := o.Images.Exists(ctx, image)
	if err != nil {
		// The registry may answer definitively: an unknown repository path is
		// an absence, not an outage, and absence always blocks.
		if errors.Is(err, schemas.ErrNotFound) {
			return image, err
		}

		if environment == schemas.EnvironmentProd {
			return image, errors.Wrap(err, "registry verification is mandatory for production")
		}

		if ackErr := o.Gate.AcknowledgeRisk("registry unreachable, artifact '" + image.String() + "' could not be verified"); ackErr != nil {
			return image, ackErr
		}

		log.WithFields(log.Fields{
			"image": image,
		}).Warn("proceeding with unverified registry artifact")

		return image, nil
	}

	if !exists {
		return image, errors.Wrapf(schemas.ErrNotFound, "image '%s' does not exist in the registry", image)
	}

	return image, nil
}

// executorPreflight probes the executor's readiness endpoint when health
// checking is enabled. It never replaces the gate, only fails fast before a
// doomed dispatch.
func (o *Orchestrator) executorPreflight(ctx context.Context) error {
	if !o.Config.Gitlab.EnableHealthCheck || o.Gitlab == nil {
		return nil
	}

	if err := o.Gitlab.ReadinessCheck(ctx)(); err != nil {
		return errors.Wrapf(schemas.ErrExecutorUnavailable, "readiness check: %s", err)
	}

	return nil
}
