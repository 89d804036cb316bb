package schemas

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewImageReference(t *testing.T) {
	commit := ResolvedCommit{ID: strings.Repeat("ab12", 10)}

	ref := NewImageReference("registry.gitlab.com", "acme/webapp", commit)
	assert.Equal(t, "sha-ab12ab12", ref.Tag)
	assert.Equal(t, "registry.gitlab.com/acme/webapp:sha-ab12ab12", ref.String())

	// Derivation is pure: the same commit always yields the identical tag.
	assert.Equal(t, ref, NewImageReference("registry.gitlab.com", "acme/webapp", commit))
}
