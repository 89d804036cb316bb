package gitlab

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	goGitlab "gitlab.com/gitlab-org/api/client-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

// ListBranchCommits retrieves up to limit commits of the given branch,
// newest first, converted into resolved commits.
func (c *Client) ListBranchCommits(ctx context.Context, project, branch string, limit int) ([]schemas.ResolvedCommit, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "gitlab:ListBranchCommits")
	defer span.End()
	span.SetAttributes(attribute.String("project_name", project))
	span.SetAttributes(attribute.String("branch_name", branch))

	log.WithFields(log.Fields{
		"project-name": project,
		"branch":       branch,
	}).Debug("listing branch commits")

	c.rateLimit(ctx)

	commits, resp, err := c.Commits.ListCommits(project, &goGitlab.ListCommitsOptions{
		RefName: &branch,
		ListOptions: goGitlab.ListOptions{
			Page:    1,
			PerPage: limit,
		},
	}, goGitlab.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrapf(err, "listing commits of branch '%s'", branch)
	}

	c.requestsRemaining(resp)

	resolved := make([]schemas.ResolvedCommit, 0, len(commits))
	for _, commit := range commits {
		resolved = append(resolved, schemas.ResolvedCommit{
			ID:    commit.ID,
			Label: commit.Title,
		})
	}

	return resolved, nil
}

// GetCommit looks a single commit up by its full identifier. A 404 from the
// API maps onto schemas.ErrNotFound so that callers can discriminate an
// unknown commit from an unreachable API.
func (c *Client) GetCommit(ctx context.Context, project, id string) (schemas.ResolvedCommit, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "gitlab:GetCommit")
	defer span.End()
	span.SetAttributes(attribute.String("project_name", project))
	span.SetAttributes(attribute.String("commit_id", id))

	c.rateLimit(ctx)

	commit, resp, err := c.Commits.GetCommit(project, id, nil, goGitlab.WithContext(ctx))
	c.requestsRemaining(resp)

	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return schemas.ResolvedCommit{}, errors.Wrapf(schemas.ErrNotFound, "commit '%s'", id)
		}

		return schemas.ResolvedCommit{}, errors.Wrapf(err, "reading commit '%s'", id)
	}

	return schemas.ResolvedCommit{
		ID:    commit.ID,
		Label: commit.Title,
	}, nil
}
