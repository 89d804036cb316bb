package orchestrator

import (
	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

// ApprovalTierFor returns the confirmations required before a promotion to
// the given environment may dispatch.
//
// The asymmetry here is the central safety invariant of the whole system:
// dev and staging may skip the remote approval gate, production never can.
// "Emergency" only changes which workflow executes the re-tag and which
// phrase the operator types, it never removes a production gate. No code
// path may weaken this table.
func ApprovalTierFor(environment schemas.Environment, mode schemas.Mode) schemas.ApprovalTier {
	switch environment {
	case schemas.EnvironmentDev:
		return schemas.ApprovalNone
	case schemas.EnvironmentStaging:
		// The emergency staging path is reduced to the single interactive
		// token, which the gate selects based on the mode.
		return schemas.ApprovalInteractive
	case schemas.EnvironmentProd:
		return schemas.ApprovalInteractive | schemas.ApprovalTypedPhrase | schemas.ApprovalRemoteGate
	default:
		// Unknown environments get the strictest tier rather than a guess.
		return schemas.ApprovalInteractive | schemas.ApprovalTypedPhrase | schemas.ApprovalRemoteGate
	}
}

// MethodFor selects how the executor realizes the promotion. Rollbacks and
// emergency promotions re-tag the already existing image, everything else
// runs the full pipeline.
func MethodFor(mode schemas.Mode, rollback bool) schemas.DispatchMethod {
	if rollback || mode == schemas.ModeEmergency {
		return schemas.MethodRetagPromote
	}

	return schemas.MethodFullPipeline
}
