package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRepository initializes a throwaway repository with two commits and
// returns it together with the created commit identifiers, oldest first.
func newTestRepository(t *testing.T) (*Repository, []string) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	dir := t.TempDir()

	runGit := func(args ...string) string {
		t.Helper()

		cmd := exec.Command("git", append([]string{
			"-c", "user.name=test",
			"-c", "user.email=test@example.com",
		}, args...)...)
		cmd.Dir = dir

		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)

		return string(out)
	}

	runGit("init", "--initial-branch", "main")

	for _, subject := range []string{"feat: first", "fix: second"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "file"), []byte(subject), 0o600))
		runGit("add", "file")
		runGit("commit", "-m", subject)
	}

	repo := NewRepository(dir)

	commits, err := repo.Log(context.Background(), "main", 10)
	require.NoError(t, err)
	require.Len(t, commits, 2)

	return repo, []string{commits[1].ID, commits[0].ID}
}

func TestHeadRevision(t *testing.T) {
	repo, ids := newTestRepository(t)

	head, err := repo.HeadRevision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ids[1], head.ID)
	assert.Equal(t, "fix: second", head.Subject)
}

func TestCurrentBranch(t *testing.T) {
	repo, _ := newTestRepository(t)

	branch, err := repo.CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestLogOrderAndSubjects(t *testing.T) {
	repo, ids := newTestRepository(t)

	commits, err := repo.Log(context.Background(), "main", 10)
	require.NoError(t, err)
	require.Len(t, commits, 2)

	// Newest first.
	assert.Equal(t, ids[1], commits[0].ID)
	assert.Equal(t, "fix: second", commits[0].Subject)
	assert.Equal(t, ids[0], commits[1].ID)

	limited, err := repo.Log(context.Background(), "main", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestVerifyCommit(t *testing.T) {
	repo, ids := newTestRepository(t)

	known, err := repo.VerifyCommit(context.Background(), ids[0])
	require.NoError(t, err)
	assert.True(t, known)

	unknown, err := repo.VerifyCommit(context.Background(), "0123456789012345678901234567890123456789")
	require.NoError(t, err)
	assert.False(t, unknown)
}

func TestDisambiguate(t *testing.T) {
	repo, ids := newTestRepository(t)

	matches, err := repo.Disambiguate(context.Background(), ids[0][:12])
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0]}, matches)
}

func TestSubject(t *testing.T) {
	repo, ids := newTestRepository(t)

	subject, err := repo.Subject(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, "feat: first", subject)
}

func TestExecGitOutsideRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	repo := NewRepository(t.TempDir())

	_, err := repo.HeadRevision(context.Background())
	assert.Error(t, err)
}
