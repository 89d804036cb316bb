package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helvethink/gitlab-promoter/pkg/config"
	"github.com/helvethink/gitlab-promoter/pkg/gate"
	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

var (
	commitHead = strings.Repeat("aa", 20)
	commitPrev = strings.Repeat("bb", 20)
)

type fakeResolver struct {
	commits map[string]schemas.ResolvedCommit
}

func (f *fakeResolver) Resolve(_ context.Context, ref schemas.CommitRef) (schemas.ResolvedCommit, error) {
	for id, resolved := range f.commits {
		if strings.HasPrefix(id, ref.Value) {
			return resolved, nil
		}
	}

	return schemas.ResolvedCommit{}, errors.Wrapf(schemas.ErrNotFound, "commit '%s'", ref.Value)
}

type fakeCandidates struct {
	entries []schemas.ResolvedCommit
	err     error
}

func (f *fakeCandidates) Candidates(_ context.Context, limit int) (*schemas.CandidateSet, error) {
	if f.err != nil {
		return nil, f.err
	}

	set := schemas.NewCandidateSet(limit)
	for _, c := range f.entries {
		set.Add(c)
	}

	return set, nil
}

type fakeImages struct {
	exists    bool
	existsErr error
	checked   []schemas.ImageReference
}

func (f *fakeImages) Resolve(commit schemas.ResolvedCommit) schemas.ImageReference {
	return schemas.NewImageReference("registry.gitlab.com", "acme/webapp", commit)
}

func (f *fakeImages) Exists(_ context.Context, ref schemas.ImageReference) (bool, error) {
	f.checked = append(f.checked, ref)

	return f.exists, f.existsErr
}

type fakeHistory struct {
	records []schemas.DeploymentRecord
	err     error
}

func (f *fakeHistory) History(
	_ context.Context,
	_ schemas.Environment,
	_ []schemas.WorkflowIdentifier,
	minCount int,
	_ int,
) ([]schemas.DeploymentRecord, error) {
	if f.err != nil {
		return nil, f.err
	}

	if len(f.records) < minCount {
		return nil, errors.Wrapf(schemas.ErrInsufficientHistory, "found %d", len(f.records))
	}

	return f.records, nil
}

type dispatchCall struct {
	environment schemas.Environment
	commit      schemas.ResolvedCommit
	method      schemas.DispatchMethod
}

type fakeDispatcher struct {
	calls []dispatchCall
	err   error
}

func (f *fakeDispatcher) Dispatch(
	_ context.Context,
	environment schemas.Environment,
	commit schemas.ResolvedCommit,
	method schemas.DispatchMethod,
) (schemas.DispatchHandle, error) {
	f.calls = append(f.calls, dispatchCall{environment, commit, method})

	if f.err != nil {
		return schemas.DispatchHandle{}, f.err
	}

	return schemas.DispatchHandle{RunID: 99, Workflow: "deploy", WebURL: "https://gitlab.com/acme/webapp/-/pipelines/99"}, nil
}

type fakeGate struct {
	decline      bool
	refuseRisk   bool
	decisions    []gate.Decision
	acknowledged []string
}

func (f *fakeGate) Confirm(d gate.Decision) error {
	f.decisions = append(f.decisions, d)

	if f.decline {
		return errors.Wrap(schemas.ErrUserDeclined, "expected 'y'")
	}

	return nil
}

func (f *fakeGate) AcknowledgeRisk(reason string) error {
	f.acknowledged = append(f.acknowledged, reason)

	if f.refuseRisk {
		return errors.Wrap(schemas.ErrUserDeclined, "expected 'yes'")
	}

	return nil
}

type testHarness struct {
	orchestrator *Orchestrator
	resolver     *fakeResolver
	candidates   *fakeCandidates
	images       *fakeImages
	history      *fakeHistory
	dispatcher   *fakeDispatcher
	gate         *fakeGate
	picked       []schemas.ResolvedCommit
}

func newTestHarness() *testHarness {
	h := &testHarness{
		resolver: &fakeResolver{
			commits: map[string]schemas.ResolvedCommit{
				commitHead: {ID: commitHead, Label: "feat: head"},
				commitPrev: {ID: commitPrev, Label: "fix: earlier"},
			},
		},
		candidates: &fakeCandidates{
			entries: []schemas.ResolvedCommit{
				{ID: commitHead, Label: "feat: head"},
				{ID: commitPrev, Label: "fix: earlier"},
			},
		},
		images: &fakeImages{exists: true},
		history: &fakeHistory{
			records: []schemas.DeploymentRecord{
				{RunID: 12, Commit: commitHead[:8], Outcome: schemas.DeploymentOutcomeSuccess},
				{RunID: 7, Commit: commitPrev[:8], Outcome: schemas.DeploymentOutcomeSuccess},
			},
		},
		dispatcher: &fakeDispatcher{},
		gate:       &fakeGate{},
	}

	cfg := config.New()
	cfg.Gitlab.EnableHealthCheck = false
	cfg.Environments = config.Environments{
		Dev:     config.EnvironmentParameters{DeployWorkflow: "deploy", RetagWorkflow: "retag", HistoryPerQueryLimit: 20},
		Staging: config.EnvironmentParameters{DeployWorkflow: "deploy", RetagWorkflow: "retag", HistoryPerQueryLimit: 20},
		Prod:    config.EnvironmentParameters{DeployWorkflow: "deploy-prod", RetagWorkflow: "retag-prod", HistoryPerQueryLimit: 20},
	}

	h.orchestrator = &Orchestrator{
		Config:     cfg,
		Resolver:   h.resolver,
		Candidates: h.candidates,
		Images:     h.images,
		HistoryRdr: h.history,
		Dispatcher: h.dispatcher,
		Gate:       h.gate,
		Pick: func(candidates []schemas.ResolvedCommit, _ string) (schemas.ResolvedCommit, error) {
			h.picked = candidates

			return candidates[0], nil
		},
		UUID: uuid.New(),
	}

	return h
}

func TestPromoteStagingExplicitCommit(t *testing.T) {
	h := newTestHarness()

	handle, err := h.orchestrator.Promote(context.Background(), Request{
		Environment: schemas.EnvironmentStaging,
		Ref:         commitHead,
	})
	require.NoError(t, err)
	assert.Equal(t, 99, handle.RunID)

	require.Len(t, h.dispatcher.calls, 1)
	assert.Equal(t, schemas.EnvironmentStaging, h.dispatcher.calls[0].environment)
	assert.Equal(t, commitHead, h.dispatcher.calls[0].commit.ID)
	assert.Equal(t, schemas.MethodFullPipeline, h.dispatcher.calls[0].method)

	// The decision shown to the operator carries the full context.
	require.Len(t, h.gate.decisions, 1)
	d := h.gate.decisions[0]
	assert.Equal(t, schemas.ApprovalInteractive, d.Tier)
	require.NotNil(t, d.From)
	assert.Equal(t, 12, d.From.RunID)
	assert.Equal(t, "sha-"+commitHead[:8], d.Image.Tag)
}

func TestPromoteInteractiveSelection(t *testing.T) {
	h := newTestHarness()

	_, err := h.orchestrator.Promote(context.Background(), Request{
		Environment: schemas.EnvironmentDev,
	})
	require.NoError(t, err)

	// The picker received the aggregated candidates and its choice was
	// dispatched.
	require.Len(t, h.picked, 2)
	require.Len(t, h.dispatcher.calls, 1)
	assert.Equal(t, commitHead, h.dispatcher.calls[0].commit.ID)
}

func TestPromoteUnknownCommitNeverDispatches(t *testing.T) {
	h := newTestHarness()

	_, err := h.orchestrator.Promote(context.Background(), Request{
		Environment: schemas.EnvironmentStaging,
		Ref:         strings.Repeat("dd", 20),
	})
	assert.ErrorIs(t, err, schemas.ErrNotFound)
	assert.Empty(t, h.dispatcher.calls)
	assert.Empty(t, h.gate.decisions)
}

func TestPromoteMissingImageNeverDispatches(t *testing.T) {
	h := newTestHarness()
	h.images.exists = false

	_, err := h.orchestrator.Promote(context.Background(), Request{
		Environment: schemas.EnvironmentStaging,
		Ref:         commitHead,
	})
	assert.ErrorIs(t, err, schemas.ErrNotFound)
	assert.Empty(t, h.dispatcher.calls)

	// A missing artifact is definitive: no override is ever offered.
	assert.Empty(t, h.gate.acknowledged)
}

func TestPromoteRegistryUnreachableBlocksProd(t *testing.T) {
	h := newTestHarness()
	h.images.existsErr = errors.Wrap(schemas.ErrRegistryUnreachable, "dial tcp: timeout")

	_, err := h.orchestrator.Promote(context.Background(), Request{
		Environment: schemas.EnvironmentProd,
		Ref:         commitHead,
	})
	assert.ErrorIs(t, err, schemas.ErrRegistryUnreachable)
	assert.Empty(t, h.dispatcher.calls)
	assert.Empty(t, h.gate.acknowledged)
}

// An unknown registry repository is a definitive absence, not an outage: no
// environment may acknowledge its way past it.
func TestPromoteUnknownRegistryRepositoryNeverDispatches(t *testing.T) {
	h := newTestHarness()
	h.images.existsErr = errors.Wrapf(schemas.ErrNotFound, "registry repository 'acme/webapp'")

	for _, environment := range []schemas.Environment{schemas.EnvironmentDev, schemas.EnvironmentStaging, schemas.EnvironmentProd} {
		_, err := h.orchestrator.Promote(context.Background(), Request{
			Environment: environment,
			Ref:         commitHead,
		})
		assert.ErrorIs(t, err, schemas.ErrNotFound, "environment %s", environment)
	}

	assert.Empty(t, h.dispatcher.calls)
	assert.Empty(t, h.gate.acknowledged)
}

func TestPromoteRegistryUnreachableStagingAcknowledged(t *testing.T) {
	h := newTestHarness()
	h.images.existsErr = errors.Wrap(schemas.ErrRegistryUnreachable, "dial tcp: timeout")

	_, err := h.orchestrator.Promote(context.Background(), Request{
		Environment: schemas.EnvironmentStaging,
		Ref:         commitHead,
	})
	require.NoError(t, err)

	require.Len(t, h.gate.acknowledged, 1)
	assert.Len(t, h.dispatcher.calls, 1)
}

func TestPromoteRegistryUnreachableStagingRefused(t *testing.T) {
	h := newTestHarness()
	h.images.existsErr = errors.Wrap(schemas.ErrRegistryUnreachable, "dial tcp: timeout")
	h.gate.refuseRisk = true

	_, err := h.orchestrator.Promote(context.Background(), Request{
		Environment: schemas.EnvironmentStaging,
		Ref:         commitHead,
	})
	assert.ErrorIs(t, err, schemas.ErrUserDeclined)
	assert.Empty(t, h.dispatcher.calls)
}

func TestPromoteDeclinedNeverDispatches(t *testing.T) {
	h := newTestHarness()
	h.gate.decline = true

	_, err := h.orchestrator.Promote(context.Background(), Request{
		Environment: schemas.EnvironmentStaging,
		Ref:         commitHead,
	})
	assert.ErrorIs(t, err, schemas.ErrUserDeclined)
	assert.Empty(t, h.dispatcher.calls)
}

func TestPromoteDispatchFailure(t *testing.T) {
	h := newTestHarness()
	h.dispatcher.err = errors.Wrap(schemas.ErrExecutorUnavailable, "503")

	_, err := h.orchestrator.Promote(context.Background(), Request{
		Environment: schemas.EnvironmentStaging,
		Ref:         commitHead,
	})
	assert.ErrorIs(t, err, schemas.ErrExecutorUnavailable)
}

func TestRollbackTargetsPreviousDeployment(t *testing.T) {
	h := newTestHarness()

	_, err := h.orchestrator.Promote(context.Background(), Request{
		Environment: schemas.EnvironmentStaging,
		Rollback:    true,
	})
	require.NoError(t, err)

	require.Len(t, h.dispatcher.calls, 1)
	assert.Equal(t, commitPrev, h.dispatcher.calls[0].commit.ID)
	assert.Equal(t, schemas.MethodRetagPromote, h.dispatcher.calls[0].method)
}

func TestRollbackWithSingleDeploymentFails(t *testing.T) {
	h := newTestHarness()
	h.history.records = h.history.records[:1]

	_, err := h.orchestrator.Promote(context.Background(), Request{
		Environment: schemas.EnvironmentStaging,
		Rollback:    true,
	})
	assert.ErrorIs(t, err, schemas.ErrInsufficientHistory)
	assert.Empty(t, h.dispatcher.calls)
}

func TestPromoteWithoutHistoryStillWorks(t *testing.T) {
	h := newTestHarness()
	h.history.records = nil

	_, err := h.orchestrator.Promote(context.Background(), Request{
		Environment: schemas.EnvironmentStaging,
		Ref:         commitHead,
	})
	require.NoError(t, err)

	require.Len(t, h.gate.decisions, 1)
	assert.Nil(t, h.gate.decisions[0].From)
}

func TestEmergencyPromotionUsesRetag(t *testing.T) {
	h := newTestHarness()

	_, err := h.orchestrator.Promote(context.Background(), Request{
		Environment: schemas.EnvironmentProd,
		Ref:         commitHead,
		Mode:        schemas.ModeEmergency,
	})
	require.NoError(t, err)

	require.Len(t, h.dispatcher.calls, 1)
	assert.Equal(t, schemas.MethodRetagPromote, h.dispatcher.calls[0].method)

	// Emergency mode never weakens the production tier.
	require.Len(t, h.gate.decisions, 1)
	assert.True(t, h.gate.decisions[0].Tier.Includes(schemas.ApprovalRemoteGate))
}
