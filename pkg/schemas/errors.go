package schemas

import (
	"errors"
)

// Terminal outcome kinds of an orchestration run. Callers are expected to
// discriminate them with errors.Is so that wrapped context is preserved.
var (
	// ErrAmbiguousRef is returned when a commit prefix matches more than one
	// known commit. There is no silent first-match.
	ErrAmbiguousRef = errors.New("ambiguous commit reference")

	// ErrNotFound is returned when a commit or image cannot be verified to
	// exist. A promotion never proceeds against an unverifiable artifact.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientHistory is returned when fewer success records exist
	// than a rollback decision requires. This is never approximated.
	ErrInsufficientHistory = errors.New("insufficient deployment history")

	// ErrRegistryUnreachable is returned when the registry existence check
	// itself cannot be performed.
	ErrRegistryUnreachable = errors.New("registry unreachable")

	// ErrExecutorUnavailable is returned when the external execution system
	// rejects or cannot accept a dispatch.
	ErrExecutorUnavailable = errors.New("executor unavailable")

	// ErrEmptyCandidates is returned by the aggregator when every source
	// came back empty; the caller must fall back to manual entry.
	ErrEmptyCandidates = errors.New("no candidate commits available")

	// ErrUserDeclined is a normal terminal outcome, not a failure: the
	// operator did not confirm the decision.
	ErrUserDeclined = errors.New("declined by operator")
)
