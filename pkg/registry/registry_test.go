package registry

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

type fakeTagChecker struct {
	tags map[string]bool
	err  error

	lastProject    string
	lastRepository string
}

func (f *fakeTagChecker) RegistryTagExists(_ context.Context, project, repository, tag string) (bool, error) {
	f.lastProject = project
	f.lastRepository = repository

	if f.err != nil {
		return false, f.err
	}

	return f.tags[tag], nil
}

func TestResolveDerivesCanonicalTag(t *testing.T) {
	r := New(&fakeTagChecker{}, "acme/webapp", "registry.gitlab.com", "acme/webapp")

	commit := schemas.ResolvedCommit{ID: strings.Repeat("ab", 20)}
	ref := r.Resolve(commit)

	assert.Equal(t, "sha-abababab", ref.Tag)
	assert.Equal(t, "registry.gitlab.com/acme/webapp:sha-abababab", ref.String())

	// Same commit, same coordinate, on every call.
	assert.Equal(t, ref, r.Resolve(commit))
}

func TestExists(t *testing.T) {
	checker := &fakeTagChecker{tags: map[string]bool{"sha-abababab": true}}
	r := New(checker, "acme/webapp", "registry.gitlab.com", "acme/webapp")

	exists, err := r.Exists(context.Background(), schemas.ImageReference{Tag: "sha-abababab"})
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "acme/webapp", checker.lastProject)

	exists, err = r.Exists(context.Background(), schemas.ImageReference{Tag: "sha-00000000"})
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExistsPropagatesUnreachable(t *testing.T) {
	checker := &fakeTagChecker{err: errors.Wrap(schemas.ErrRegistryUnreachable, "dial tcp: timeout")}
	r := New(checker, "acme/webapp", "registry.gitlab.com", "acme/webapp")

	_, err := r.Exists(context.Background(), schemas.ImageReference{Tag: "sha-abababab"})
	assert.ErrorIs(t, err, schemas.ErrRegistryUnreachable)
}
