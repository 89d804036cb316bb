package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

func TestApprovalTierFor(t *testing.T) {
	assert.Equal(t, schemas.ApprovalNone, ApprovalTierFor(schemas.EnvironmentDev, schemas.ModeNormal))
	assert.Equal(t, schemas.ApprovalNone, ApprovalTierFor(schemas.EnvironmentDev, schemas.ModeEmergency))

	assert.Equal(t, schemas.ApprovalInteractive, ApprovalTierFor(schemas.EnvironmentStaging, schemas.ModeNormal))
	assert.Equal(t, schemas.ApprovalInteractive, ApprovalTierFor(schemas.EnvironmentStaging, schemas.ModeEmergency))
}

// Production always keeps every gate, emergency mode included. Nothing in
// the system may ever weaken this.
func TestApprovalTierForProdAlwaysIncludesRemoteGate(t *testing.T) {
	for _, mode := range []schemas.Mode{schemas.ModeNormal, schemas.ModeEmergency} {
		tier := ApprovalTierFor(schemas.EnvironmentProd, mode)

		assert.True(t, tier.Includes(schemas.ApprovalInteractive), "mode %s", mode)
		assert.True(t, tier.Includes(schemas.ApprovalTypedPhrase), "mode %s", mode)
		assert.True(t, tier.Includes(schemas.ApprovalRemoteGate), "mode %s", mode)
	}
}

func TestApprovalTierForUnknownEnvironmentIsStrict(t *testing.T) {
	tier := ApprovalTierFor(schemas.Environment("qa"), schemas.ModeNormal)
	assert.True(t, tier.Includes(schemas.ApprovalRemoteGate))
}

func TestMethodFor(t *testing.T) {
	assert.Equal(t, schemas.MethodFullPipeline, MethodFor(schemas.ModeNormal, false))
	assert.Equal(t, schemas.MethodRetagPromote, MethodFor(schemas.ModeNormal, true))
	assert.Equal(t, schemas.MethodRetagPromote, MethodFor(schemas.ModeEmergency, false))
	assert.Equal(t, schemas.MethodRetagPromote, MethodFor(schemas.ModeEmergency, true))
}
