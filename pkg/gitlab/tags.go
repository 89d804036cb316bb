package gitlab

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	goGitlab "gitlab.com/gitlab-org/api/client-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

// ListReleaseTags retrieves up to limit release tags of the project, newest
// first, mapped onto the commits they were cut from.
func (c *Client) ListReleaseTags(ctx context.Context, project string, limit int) ([]schemas.ReleaseTag, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "gitlab:ListReleaseTags")
	defer span.End()
	span.SetAttributes(attribute.String("project_name", project))

	c.rateLimit(ctx)

	tags, resp, err := c.Tags.ListTags(project, &goGitlab.ListTagsOptions{
		ListOptions: goGitlab.ListOptions{
			Page:    1,
			PerPage: limit,
		},
	}, goGitlab.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "listing release tags")
	}

	c.requestsRemaining(resp)

	releases := make([]schemas.ReleaseTag, 0, len(tags))
	for _, tag := range tags {
		if tag.Commit == nil {
			continue
		}

		releases = append(releases, schemas.ReleaseTag{
			Name:     tag.Name,
			CommitID: tag.Commit.ID,
		})
	}

	return releases, nil
}

// GetTagCommit resolves a single release tag to the full identifier of the
// commit it points at.
func (c *Client) GetTagCommit(ctx context.Context, project, tag string) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "gitlab:GetTagCommit")
	defer span.End()
	span.SetAttributes(attribute.String("project_name", project))
	span.SetAttributes(attribute.String("tag_name", tag))

	c.rateLimit(ctx)

	t, resp, err := c.Tags.GetTag(project, tag, goGitlab.WithContext(ctx))
	c.requestsRemaining(resp)

	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", errors.Wrapf(schemas.ErrNotFound, "tag '%s'", tag)
		}

		return "", errors.Wrapf(err, "reading tag '%s'", tag)
	}

	if t.Commit == nil {
		return "", errors.Wrapf(schemas.ErrNotFound, "tag '%s' has no commit", tag)
	}

	return t.Commit.ID, nil
}
