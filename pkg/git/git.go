package git

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Env vars that are allowed to be inherited from the os.
var allowedEnvVars = []string{"HOME", "PATH", "http_proxy", "https_proxy", "no_proxy"}

// Commit is one entry of the local history.
type Commit struct {
	ID      string // Full commit identifier
	Subject string // First line of the commit message
}

// Repository gives read-only access to the history of a local checkout by
// shelling out to the git binary. It never mutates repository state and is
// safe to call repeatedly within one run.
type Repository struct {
	dir string
}

// NewRepository returns a Repository rooted at dir.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// HeadRevision resolves the checkout's head commit.
func (r *Repository) HeadRevision(ctx context.Context) (Commit, error) {
	id, err := r.execGit(ctx, "rev-parse", "HEAD")
	if err != nil {
		return Commit{}, errors.Wrap(err, "resolving HEAD")
	}

	subject, err := r.Subject(ctx, id)
	if err != nil {
		return Commit{}, err
	}

	return Commit{ID: id, Subject: subject}, nil
}

// CurrentBranch returns the name of the checked out branch, or "HEAD" when
// detached.
func (r *Repository) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.execGit(ctx, "rev-parse", "--abbrev-ref", "HEAD")

	return out, errors.Wrap(err, "resolving current branch")
}

// Log returns up to limit commits of the given branch, newest first.
func (r *Repository) Log(ctx context.Context, branch string, limit int) ([]Commit, error) {
	out, err := r.execGit(ctx, "log", "--format=%H%x09%s", "-n", strconv.Itoa(limit), branch, "--")
	if err != nil {
		return nil, errors.Wrapf(err, "reading log of '%s'", branch)
	}

	var commits []Commit

	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}

		id, subject, _ := strings.Cut(line, "\t")
		commits = append(commits, Commit{ID: id, Subject: subject})
	}

	return commits, nil
}

// VerifyCommit reports whether the full identifier names a commit known to
// the local history.
func (r *Repository) VerifyCommit(ctx context.Context, id string) (bool, error) {
	_, err := r.execGit(ctx, "rev-parse", "--quiet", "--verify", id+"^{commit}")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// rev-parse --verify exits non-zero for unknown objects.
			return false, nil
		}

		return false, errors.Wrapf(err, "verifying commit '%s'", id)
	}

	return true, nil
}

// Disambiguate expands an abbreviated identifier into every matching full
// commit identifier. More than one result means the prefix is ambiguous,
// zero results mean it is unknown; the caller decides what either means.
func (r *Repository) Disambiguate(ctx context.Context, prefix string) ([]string, error) {
	out, err := r.execGit(ctx, "rev-parse", "--disambiguate="+prefix)
	if err != nil {
		return nil, errors.Wrapf(err, "expanding prefix '%s'", prefix)
	}

	var matches []string

	for _, id := range strings.Split(out, "\n") {
		if id == "" {
			continue
		}

		// The prefix may also match tree or blob objects, only commits count.
		isCommit, err := r.VerifyCommit(ctx, id)
		if err != nil {
			return nil, err
		}

		if isCommit {
			matches = append(matches, id)
		}
	}

	return matches, nil
}

// Subject returns the first line of the commit message of id.
func (r *Repository) Subject(ctx context.Context, id string) (string, error) {
	out, err := r.execGit(ctx, "log", "-1", "--format=%s", id, "--")

	return out, errors.Wrapf(err, "reading subject of '%s'", id)
}

// execGit runs a git command in the repository directory and returns its
// trimmed stdout. Stderr is folded into the returned error.
func (r *Repository) execGit(ctx context.Context, args ...string) (string, error) {
	log.WithFields(log.Fields{
		"dir":  r.dir,
		"args": strings.Join(args, " "),
	}).Trace("exec git")

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir
	cmd.Env = env()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", errors.Wrap(err, msg)
		}

		return "", err
	}

	return strings.TrimSpace(stdout.String()), nil
}

func env() []string {
	var env []string

	for _, k := range allowedEnvVars {
		if v, ok := os.LookupEnv(k); ok {
			env = append(env, k+"="+v)
		}
	}

	return env
}
