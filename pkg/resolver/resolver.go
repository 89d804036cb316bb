package resolver

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/helvethink/gitlab-promoter/pkg/git"
	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

const tracerName = "gitlab-promoter"

// LocalHistory is the read-only view of the operator's checkout the resolver
// needs. Implemented by git.Repository.
type LocalHistory interface {
	HeadRevision(ctx context.Context) (git.Commit, error)
	CurrentBranch(ctx context.Context) (string, error)
	Log(ctx context.Context, branch string, limit int) ([]git.Commit, error)
	VerifyCommit(ctx context.Context, id string) (bool, error)
	Disambiguate(ctx context.Context, prefix string) ([]string, error)
	Subject(ctx context.Context, id string) (string, error)
}

// RemoteHistory is the remote branch history backend. Implemented by the
// GitLab client.
type RemoteHistory interface {
	ListBranchCommits(ctx context.Context, project, branch string, limit int) ([]schemas.ResolvedCommit, error)
	GetCommit(ctx context.Context, project, id string) (schemas.ResolvedCommit, error)
}

// ReleaseReader is the release/tag-to-commit mapping backend. Implemented by
// the GitLab client.
type ReleaseReader interface {
	ListReleaseTags(ctx context.Context, project string, limit int) ([]schemas.ReleaseTag, error)
	GetTagCommit(ctx context.Context, project, tag string) (string, error)
}

// Resolver normalizes any commit reference into its canonical form. It never
// mutates repository state and is safe to call repeatedly within one run.
type Resolver struct {
	local    LocalHistory
	remote   RemoteHistory
	releases ReleaseReader
	project  string
}

// New returns a Resolver reading from the given backends.
func New(local LocalHistory, remote RemoteHistory, releases ReleaseReader, project string) *Resolver {
	return &Resolver{
		local:    local,
		remote:   remote,
		releases: releases,
		project:  project,
	}
}

// Resolve expands a commit reference into exactly one resolved commit.
// Resolution is idempotent: resolving the same reference twice yields the
// same result.
func (r *Resolver) Resolve(ctx context.Context, ref schemas.CommitRef) (schemas.ResolvedCommit, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "resolver:Resolve")
	defer span.End()

	switch ref.Kind {
	case schemas.CommitRefKindCurrent:
		return r.resolveCurrent(ctx)
	case schemas.CommitRefKindFull:
		return r.resolveFull(ctx, ref.Value)
	case schemas.CommitRefKindShort:
		return r.resolvePrefix(ctx, ref.Value)
	default:
		return r.resolveTag(ctx, ref.Value)
	}
}

// resolveCurrent resolves the sentinel "current" to the checkout's head.
// Failure is fatal to the run: the caller must have an identifiable source
// tree.
func (r *Resolver) resolveCurrent(ctx context.Context) (schemas.ResolvedCommit, error) {
	head, err := r.local.HeadRevision(ctx)
	if err != nil {
		return schemas.ResolvedCommit{}, errors.Wrap(err, "no identifiable source tree")
	}

	return schemas.ResolvedCommit{ID: head.ID, Label: head.Subject}, nil
}

// resolveFull validates a full identifier against the local history, falling
// back to the remote history for commits the checkout does not know yet.
// A promotion must never proceed against an unverifiable commit.
func (r *Resolver) resolveFull(ctx context.Context, id string) (schemas.ResolvedCommit, error) {
	known, err := r.local.VerifyCommit(ctx, id)
	if err != nil {
		return schemas.ResolvedCommit{}, err
	}

	if known {
		subject, err := r.local.Subject(ctx, id)
		if err != nil {
			return schemas.ResolvedCommit{}, err
		}

		return schemas.ResolvedCommit{ID: id, Label: subject}, nil
	}

	log.WithFields(log.Fields{
		"commit": id,
	}).Debug("commit unknown locally, trying remote history")

	resolved, err := r.remote.GetCommit(ctx, r.project, id)
	if err != nil {
		return schemas.ResolvedCommit{}, err
	}

	return resolved, nil
}

// resolvePrefix expands an abbreviated identifier via local prefix lookup.
// More than one match always fails as ambiguous, there is no silent
// first-match.
func (r *Resolver) resolvePrefix(ctx context.Context, prefix string) (schemas.ResolvedCommit, error) {
	if len(prefix) < schemas.RecommendedPrefixLength {
		log.WithFields(log.Fields{
			"prefix": prefix,
		}).Warnf("commit prefixes shorter than %d characters are prone to collisions", schemas.RecommendedPrefixLength)
	}

	matches, err := r.local.Disambiguate(ctx, prefix)
	if err != nil {
		return schemas.ResolvedCommit{}, err
	}

	switch len(matches) {
	case 0:
		// The checkout may simply not have fetched the commit yet, the
		// remote history gets the last word before declaring it unknown.
		resolved, remoteErr := r.remote.GetCommit(ctx, r.project, prefix)
		if remoteErr != nil {
			return schemas.ResolvedCommit{}, errors.Wrapf(schemas.ErrNotFound, "commit prefix '%s'", prefix)
		}

		return resolved, nil
	case 1:
		subject, err := r.local.Subject(ctx, matches[0])
		if err != nil {
			return schemas.ResolvedCommit{}, err
		}

		return schemas.ResolvedCommit{ID: matches[0], Label: subject}, nil
	default:
		return schemas.ResolvedCommit{}, errors.Wrapf(schemas.ErrAmbiguousRef, "prefix '%s' matches %d commits", prefix, len(matches))
	}
}

// resolveTag resolves a symbolic release tag through the release mapping.
func (r *Resolver) resolveTag(ctx context.Context, tag string) (schemas.ResolvedCommit, error) {
	id, err := r.releases.GetTagCommit(ctx, r.project, tag)
	if err != nil {
		return schemas.ResolvedCommit{}, err
	}

	return schemas.ResolvedCommit{ID: id, Label: "Release: " + tag}, nil
}
