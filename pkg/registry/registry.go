package registry

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

const tracerName = "gitlab-promoter"

// TagChecker answers whether a tag exists in a registry repository.
// Implemented by the GitLab client.
type TagChecker interface {
	RegistryTagExists(ctx context.Context, project, repository, tag string) (bool, error)
}

// Resolver derives canonical registry coordinates for resolved commits and
// validates their existence.
type Resolver struct {
	checker    TagChecker
	project    string
	host       string
	repository string
}

// New returns a Resolver for the configured registry coordinate.
func New(checker TagChecker, project, host, repository string) *Resolver {
	return &Resolver{
		checker:    checker,
		project:    project,
		host:       host,
		repository: repository,
	}
}

// Resolve derives the registry coordinate for a resolved commit. Pure
// derivation, no I/O: the same commit always yields the identical tag, for a
// rollback and a fresh deploy alike.
func (r *Resolver) Resolve(commit schemas.ResolvedCommit) schemas.ImageReference {
	return schemas.NewImageReference(r.host, r.repository, commit)
}

// Exists checks whether the image behind the reference actually exists in
// the registry. The fact is fetched fresh on every call.
func (r *Resolver) Exists(ctx context.Context, ref schemas.ImageReference) (bool, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "registry:Exists")
	defer span.End()

	log.WithFields(log.Fields{
		"image": ref.String(),
	}).Debug("checking image existence")

	return r.checker.RegistryTagExists(ctx, r.project, r.repository, ref.Tag)
}
