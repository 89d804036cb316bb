package schemas

import (
	"fmt"
)

// Environment identifies one of the isolated deployment targets.
type Environment string

const (
	// EnvironmentDev is the development environment.
	EnvironmentDev Environment = "dev"

	// EnvironmentStaging is the staging environment.
	EnvironmentStaging Environment = "staging"

	// EnvironmentProd is the production environment.
	EnvironmentProd Environment = "prod"
)

// Environments lists every known environment ordered by promotion rank.
var Environments = [...]Environment{
	EnvironmentDev,
	EnvironmentStaging,
	EnvironmentProd,
}

// ParseEnvironment validates a user supplied environment name.
func ParseEnvironment(name string) (Environment, error) {
	switch Environment(name) {
	case EnvironmentDev, EnvironmentStaging, EnvironmentProd:
		return Environment(name), nil
	}

	return "", fmt.Errorf("unknown environment '%s', expected one of dev, staging or prod", name)
}

// Rank returns the position of the environment within the promotion order.
// dev < staging < prod. The rank is informational: the state machine does not
// enforce linear promotion, only approval-tier escalation.
func (e Environment) Rank() int {
	switch e {
	case EnvironmentDev:
		return 0
	case EnvironmentStaging:
		return 1
	case EnvironmentProd:
		return 2
	}

	return -1
}

// String implements fmt.Stringer.
func (e Environment) String() string {
	return string(e)
}

// Mode qualifies how a promotion request entered the system.
type Mode string

const (
	// ModeNormal is the standard promotion path.
	ModeNormal Mode = "normal"

	// ModeEmergency is the emergency rollback path. It only changes which
	// workflow executes the re-tag, never the production approval gate.
	ModeEmergency Mode = "emergency"
)

// DispatchMethod selects how the external executor realizes a promotion.
type DispatchMethod string

const (
	// MethodFullPipeline runs the complete build and deploy pipeline.
	MethodFullPipeline DispatchMethod = "full-pipeline"

	// MethodRetagPromote re-tags an already existing image and deploys it
	// without rebuilding anything.
	MethodRetagPromote DispatchMethod = "re-tag-promote"
)

// ApprovalTier is the set of operator confirmations required before a
// dispatch may proceed. Tiers compose as a bitmask so that callers can ask
// whether a specific gate participates in a decision.
type ApprovalTier uint8

const (
	// ApprovalNone requires no confirmation at all.
	ApprovalNone ApprovalTier = 0

	// ApprovalInteractive requires an interactive confirmation.
	ApprovalInteractive ApprovalTier = 1 << iota

	// ApprovalTypedPhrase requires a literal, case-sensitive phrase typed by
	// the operator.
	ApprovalTypedPhrase

	// ApprovalRemoteGate requires a human approving the dispatched run
	// out-of-band before the executor proceeds.
	ApprovalRemoteGate
)

// Includes reports whether the tier contains the given gate.
func (t ApprovalTier) Includes(gate ApprovalTier) bool {
	return t&gate != 0
}

// String implements fmt.Stringer.
func (t ApprovalTier) String() string {
	if t == ApprovalNone {
		return "none"
	}

	out := ""
	for _, g := range []struct {
		tier ApprovalTier
		name string
	}{
		{ApprovalInteractive, "interactive-confirm"},
		{ApprovalTypedPhrase, "typed-phrase"},
		{ApprovalRemoteGate, "remote-approval-gate"},
	} {
		if t.Includes(g.tier) {
			if out != "" {
				out += "+"
			}
			out += g.name
		}
	}

	return out
}
