package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

func validConfigYAML() []byte {
	return []byte(`
gitlab:
  token: glpat-secret
  project: acme/webapp

registry:
  repository: acme/webapp

environment_defaults:
  deploy_workflow: deploy
  retag_workflow: retag

environments:
  dev: {}
  staging:
    deploy_ref: staging
  prod:
    history_workflows: [deploy-prod, legacy-deploy]
    deploy_workflow: deploy-prod
    retag_workflow: retag-prod
    history_per_query_limit: 50
`)
}

func TestParseValidConfig(t *testing.T) {
	cfg, err := Parse(FormatYAML, validConfigYAML())
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	// Static defaults.
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "https://gitlab.com", cfg.Gitlab.URL)
	assert.Equal(t, "main", cfg.Git.TrunkBranch)
	assert.Equal(t, "registry.gitlab.com", cfg.Registry.Host)
	assert.Equal(t, 20, cfg.Candidates.Limit)
	assert.Equal(t, 3, cfg.Gate.MaximumAttempts)
	assert.True(t, cfg.Gitlab.EnableHealthCheck)
	assert.True(t, cfg.Gitlab.EnableTLSVerify)

	// Environment blocks inherit from environment_defaults.
	assert.Equal(t, "deploy", cfg.Environments.Dev.DeployWorkflow)
	assert.Equal(t, "retag", cfg.Environments.Staging.RetagWorkflow)
	assert.Equal(t, "staging", cfg.Environments.Staging.DeployRef)
	assert.Equal(t, 20, cfg.Environments.Dev.HistoryPerQueryLimit)

	// Explicit per-environment values win over the shared block.
	assert.Equal(t, "deploy-prod", cfg.Environments.Prod.DeployWorkflow)
	assert.Equal(t, 50, cfg.Environments.Prod.HistoryPerQueryLimit)
}

func TestParseInvalidConfigs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			"missing token",
			`
gitlab:
  project: acme/webapp
registry:
  repository: acme/webapp
environment_defaults:
  deploy_workflow: deploy
  retag_workflow: retag
`,
		},
		{
			"missing registry repository",
			`
gitlab:
  token: secret
  project: acme/webapp
environment_defaults:
  deploy_workflow: deploy
  retag_workflow: retag
`,
		},
		{
			"environment without deploy workflow",
			`
gitlab:
  token: secret
  project: acme/webapp
registry:
  repository: acme/webapp
environments:
  dev:
    retag_workflow: retag
`,
		},
		{
			"invalid log level",
			`
log:
  level: shout
gitlab:
  token: secret
  project: acme/webapp
registry:
  repository: acme/webapp
environment_defaults:
  deploy_workflow: deploy
  retag_workflow: retag
`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Parse(FormatYAML, []byte(tc.yaml))
			require.NoError(t, err)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseSelfHostedHealthURL(t *testing.T) {
	cfg, err := Parse(FormatYAML, []byte(`
gitlab:
  url: https://gitlab.example.com
  token: secret
  project: acme/webapp
registry:
  repository: acme/webapp
environment_defaults:
  deploy_workflow: deploy
  retag_workflow: retag
`))
	require.NoError(t, err)
	assert.Equal(t, "https://gitlab.example.com/-/health", cfg.Gitlab.HealthURL)
}

func TestToYAMLMasksToken(t *testing.T) {
	cfg, err := Parse(FormatYAML, validConfigYAML())
	require.NoError(t, err)

	rendered := cfg.ToYAML()
	assert.NotContains(t, rendered, "glpat-secret")
	assert.Contains(t, rendered, "*******")
}

func TestWorkflowCandidatesFallback(t *testing.T) {
	p := EnvironmentParameters{
		DeployWorkflow: "deploy",
		RetagWorkflow:  "retag",
	}

	assert.Equal(
		t,
		[]schemas.WorkflowIdentifier{"deploy", "retag"},
		p.WorkflowCandidates(),
	)

	p.HistoryWorkflows = []string{"legacy"}
	assert.Equal(t, []schemas.WorkflowIdentifier{"legacy"}, p.WorkflowCandidates())
}

func TestWorkflowFor(t *testing.T) {
	p := EnvironmentParameters{
		DeployWorkflow: "deploy",
		RetagWorkflow:  "retag",
	}

	assert.Equal(t, schemas.WorkflowIdentifier("deploy"), p.WorkflowFor(schemas.MethodFullPipeline))
	assert.Equal(t, schemas.WorkflowIdentifier("retag"), p.WorkflowFor(schemas.MethodRetagPromote))
}

func TestGetTypeFromFileExtension(t *testing.T) {
	for _, name := range []string{"config.yml", "config.yaml"} {
		f, err := GetTypeFromFileExtension(name)
		require.NoError(t, err)
		assert.Equal(t, FormatYAML, f)
	}

	_, err := GetTypeFromFileExtension("config.json")
	assert.Error(t, err)
}
