package resolver

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

// Aggregator gathers candidate commits from multiple reference sources and
// merges them into one deduplicated, bounded set for interactive selection.
type Aggregator struct {
	local    LocalHistory
	remote   RemoteHistory
	releases ReleaseReader
	project  string
	trunk    string
}

// NewAggregator returns an Aggregator reading from the given backends.
func NewAggregator(local LocalHistory, remote RemoteHistory, releases ReleaseReader, project, trunk string) *Aggregator {
	return &Aggregator{
		local:    local,
		remote:   remote,
		releases: releases,
		project:  project,
		trunk:    trunk,
	}
}

// sourceResult carries the outcome of one independent source query.
type sourceResult struct {
	name    string
	commits []schemas.ResolvedCommit
	err     error
}

// Candidates queries, in priority order, the local history of the current
// branch, the remote history of the trunk branch and the release-tag
// mapping. The queries are independent and read-only, so they are issued
// concurrently; merging still happens in fixed source-priority order.
//
// A failing source is logged and skipped, never fatal: interactive selection
// must remain usable with partial data. Only when every source comes back
// empty does the call fail with ErrEmptyCandidates, telling the caller to
// fall back to manual entry.
func (a *Aggregator) Candidates(ctx context.Context, limit int) (*schemas.CandidateSet, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "resolver:Candidates")
	defer span.End()

	results := make([]sourceResult, 3)

	var wg sync.WaitGroup

	wg.Add(3)

	go func() {
		defer wg.Done()

		results[0] = a.queryLocalBranch(ctx, limit)
	}()

	go func() {
		defer wg.Done()

		commits, err := a.remote.ListBranchCommits(ctx, a.project, a.trunk, limit)
		results[1] = sourceResult{name: "trunk-history", commits: commits, err: err}
	}()

	go func() {
		defer wg.Done()

		results[2] = a.queryReleases(ctx, limit)
	}()

	wg.Wait()

	set := schemas.NewCandidateSet(limit)

	for _, res := range results {
		if res.err != nil {
			// Source failure is isolated: warn and keep going with the rest.
			log.WithError(res.err).
				WithField("source", res.name).
				Warn("reference source unavailable, skipping")

			continue
		}

		for _, c := range res.commits {
			set.Add(c)
		}
	}

	if set.Empty() {
		return nil, schemas.ErrEmptyCandidates
	}

	return set, nil
}

// queryLocalBranch reads the local history of the currently checked out
// branch.
func (a *Aggregator) queryLocalBranch(ctx context.Context, limit int) sourceResult {
	res := sourceResult{name: "local-branch-history"}

	branch, err := a.local.CurrentBranch(ctx)
	if err != nil {
		res.err = err

		return res
	}

	commits, err := a.local.Log(ctx, branch, limit)
	if err != nil {
		res.err = err

		return res
	}

	for _, c := range commits {
		res.commits = append(res.commits, schemas.ResolvedCommit{ID: c.ID, Label: c.Subject})
	}

	return res
}

// queryReleases reads the release-tag mapping.
func (a *Aggregator) queryReleases(ctx context.Context, limit int) sourceResult {
	res := sourceResult{name: "release-tags"}

	tags, err := a.releases.ListReleaseTags(ctx, a.project, limit)
	if err != nil {
		res.err = err

		return res
	}

	for _, t := range tags {
		res.commits = append(res.commits, schemas.ResolvedCommit{
			ID:    t.CommitID,
			Label: "Release: " + t.Name,
		})
	}

	return res
}
