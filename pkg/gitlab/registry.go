package gitlab

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	goGitlab "gitlab.com/gitlab-org/api/client-go"
	"go.openly.dev/pointy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

// RegistryTagExists checks whether the given tag exists in the project's
// container registry repository. Existence is a boolean fact fetched fresh on
// every call, never cached, never assumed. When the registry API itself
// cannot be reached the error wraps ErrRegistryUnreachable so that callers
// can apply their environment-specific policy.
func (c *Client) RegistryTagExists(ctx context.Context, project, repository, tag string) (bool, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "gitlab:RegistryTagExists")
	defer span.End()
	span.SetAttributes(attribute.String("project_name", project))
	span.SetAttributes(attribute.String("repository", repository))
	span.SetAttributes(attribute.String("tag", tag))

	repoID, err := c.registryRepositoryID(ctx, project, repository)
	if err != nil {
		return false, err
	}

	c.rateLimit(ctx)

	_, resp, err := c.ContainerRegistry.GetRegistryRepositoryTagDetail(project, repoID, tag, goGitlab.WithContext(ctx))
	c.requestsRemaining(resp)

	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, nil
		}

		return false, errors.Wrapf(schemas.ErrRegistryUnreachable, "checking tag '%s': %s", tag, err)
	}

	return true, nil
}

// registryRepositoryID finds the registry repository matching the configured
// repository path. An unknown path is a NotFound, an unreachable API a
// RegistryUnreachable.
func (c *Client) registryRepositoryID(ctx context.Context, project, repository string) (int, error) {
	c.rateLimit(ctx)

	repos, resp, err := c.ContainerRegistry.ListProjectRegistryRepositories(project, &goGitlab.ListRegistryRepositoriesOptions{
		ListOptions: goGitlab.ListOptions{
			Page:    1,
			PerPage: 100,
		},
		Tags: pointy.Bool(false),
	}, goGitlab.WithContext(ctx))

	c.requestsRemaining(resp)

	if err != nil {
		return 0, errors.Wrapf(schemas.ErrRegistryUnreachable, "listing registry repositories: %s", err)
	}

	for _, repo := range repos {
		if repo.Path == repository {
			return repo.ID, nil
		}
	}

	log.WithFields(log.Fields{
		"project-name": project,
		"repository":   repository,
	}).Warn("registry repository not found")

	return 0, errors.Wrapf(schemas.ErrNotFound, "registry repository '%s'", repository)
}
