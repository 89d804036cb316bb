package schemas

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// FullCommitLength is the length of a canonical commit identifier.
	FullCommitLength = 40

	// ShortCommitLength is the canonical abbreviated form used consistently
	// across the whole system, notably for registry tag derivation.
	ShortCommitLength = 8

	// MinimumPrefixLength is the shortest accepted commit prefix.
	MinimumPrefixLength = 4

	// RecommendedPrefixLength is the shortest prefix which is considered
	// reasonably collision free.
	RecommendedPrefixLength = 7

	// CurrentCheckoutRef is the sentinel token resolving to the head commit
	// of the operator's checkout.
	CurrentCheckoutRef = "current"
)

var hexRegexp = regexp.MustCompile(`^[0-9a-f]+$`)

// CommitRefKind discriminates the accepted forms of a user supplied commit
// token.
type CommitRefKind string

const (
	// CommitRefKindCurrent refers to the current checkout head.
	CommitRefKindCurrent CommitRefKind = "current"

	// CommitRefKindFull is a full 40 character identifier.
	CommitRefKindFull CommitRefKind = "full"

	// CommitRefKindShort is an abbreviated identifier.
	CommitRefKindShort CommitRefKind = "short"

	// CommitRefKindTag is a symbolic release tag.
	CommitRefKindTag CommitRefKind = "tag"
)

// CommitRef is a user supplied commit token, immutable once parsed.
type CommitRef struct {
	Kind  CommitRefKind
	Value string
}

// ParseCommitRef classifies a raw token into a CommitRef.
func ParseCommitRef(raw string) (CommitRef, error) {
	token := strings.TrimSpace(raw)
	if token == "" {
		return CommitRef{}, fmt.Errorf("empty commit reference")
	}

	if token == CurrentCheckoutRef {
		return CommitRef{Kind: CommitRefKindCurrent, Value: token}, nil
	}

	lowered := strings.ToLower(token)
	if hexRegexp.MatchString(lowered) {
		switch {
		case len(lowered) == FullCommitLength:
			return CommitRef{Kind: CommitRefKindFull, Value: lowered}, nil
		case len(lowered) >= MinimumPrefixLength:
			return CommitRef{Kind: CommitRefKindShort, Value: lowered}, nil
		}
	}

	// Anything which is not hex-ish is treated as a symbolic tag.
	return CommitRef{Kind: CommitRefKindTag, Value: token}, nil
}

// String implements fmt.Stringer.
func (r CommitRef) String() string {
	return r.Value
}

// ResolvedCommit is the canonical form of a commit reference: a full length
// identifier plus an optional human label.
type ResolvedCommit struct {
	ID    string // Full 40 character hex identifier
	Label string // Commit subject or "Release: <tag>"
}

// Valid reports whether the identifier has the canonical full length form.
func (c ResolvedCommit) Valid() bool {
	return len(c.ID) == FullCommitLength && hexRegexp.MatchString(c.ID)
}

// Short returns the canonical abbreviated identifier.
func (c ResolvedCommit) Short() string {
	if len(c.ID) < ShortCommitLength {
		return c.ID
	}

	return c.ID[:ShortCommitLength]
}

// String implements fmt.Stringer.
func (c ResolvedCommit) String() string {
	if c.Label == "" {
		return c.Short()
	}

	return fmt.Sprintf("%s (%s)", c.Short(), c.Label)
}

// CandidateSet is an ordered, deduplicated, bounded collection of resolved
// commits gathered from one or more reference sources.
type CandidateSet struct {
	limit   int
	entries []ResolvedCommit
	seen    map[string]struct{}
}

// NewCandidateSet returns an empty set which will hold at most limit entries.
func NewCandidateSet(limit int) *CandidateSet {
	return &CandidateSet{
		limit: limit,
		seen:  map[string]struct{}{},
	}
}

// Add inserts a commit unless its identifier is already present or the set is
// full. The first seen label always wins. It reports whether the entry was
// retained.
func (cs *CandidateSet) Add(c ResolvedCommit) bool {
	if !c.Valid() {
		return false
	}

	if _, found := cs.seen[c.ID]; found {
		return false
	}

	if cs.limit > 0 && len(cs.entries) >= cs.limit {
		return false
	}

	cs.seen[c.ID] = struct{}{}
	cs.entries = append(cs.entries, c)

	return true
}

// Entries returns the candidates in insertion order.
func (cs *CandidateSet) Entries() []ResolvedCommit {
	return cs.entries
}

// Len returns the number of retained candidates.
func (cs *CandidateSet) Len() int {
	return len(cs.entries)
}

// Empty reports whether no source contributed any candidate.
func (cs *CandidateSet) Empty() bool {
	return len(cs.entries) == 0
}
