package schemas

import (
	"fmt"
)

// ImageTagPrefix prefixes every commit derived registry tag.
const ImageTagPrefix = "sha-"

// ImageReference is the canonical registry coordinate of a built artifact.
type ImageReference struct {
	Host       string // Registry host, e.g. registry.gitlab.com
	Repository string // Repository path within the registry
	Tag        string // Commit derived tag
}

// NewImageReference derives the registry coordinate for a resolved commit.
// The derivation is a pure function: the same commit always yields the same
// tag, which is what makes the no-rebuild re-tag promotion strategy correct.
func NewImageReference(host, repository string, commit ResolvedCommit) ImageReference {
	return ImageReference{
		Host:       host,
		Repository: repository,
		Tag:        ImageTagPrefix + commit.Short(),
	}
}

// String returns the fully qualified image reference.
func (r ImageReference) String() string {
	return fmt.Sprintf("%s/%s:%s", r.Host, r.Repository, r.Tag)
}
