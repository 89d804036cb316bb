package gitlab

import (
	"context"
	"strings"

	goGitlab "gitlab.com/gitlab-org/api/client-go"
	"go.opentelemetry.io/otel"
	"golang.org/x/mod/semver"
)

// GitLabVersion represents a GitLab version with additional methods for version comparison.
type GitLabVersion struct {
	Version string // The version string of GitLab
}

// NewGitLabVersion creates a new GitLabVersion instance.
// It ensures the version string is prefixed with "v".
func NewGitLabVersion(version string) GitLabVersion {
	ver := ""
	if strings.HasPrefix(version, "v") {
		ver = version
	} else if version != "" {
		ver = "v" + version
	}

	return GitLabVersion{Version: ver}
}

// PipelineNameFilteringSupported checks if the GitLab instance supports
// server-side filtering of pipelines by name, which is available in version
// 15.11 or later. Older instances fall back to client-side filtering.
func (v GitLabVersion) PipelineNameFilteringSupported() bool {
	if v.Version == "" {
		return false
	}

	return semver.Compare(v.Version, "v15.11.0") >= 0
}

// RefreshVersion fetches the version of the GitLab instance and stores it on
// the client for version-aware behavior. Failure is not fatal: the client
// then behaves as if talking to an old instance.
func (c *Client) RefreshVersion(ctx context.Context) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "gitlab:RefreshVersion")
	defer span.End()

	c.rateLimit(ctx)

	v, resp, err := c.Client.Version.GetVersion(goGitlab.WithContext(ctx))
	if err != nil {
		return err
	}

	c.requestsRemaining(resp)
	c.UpdateVersion(NewGitLabVersion(v.Version))

	return nil
}
