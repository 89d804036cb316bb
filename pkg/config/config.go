package config

import (
	"dario.cat/mergo"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

// validate is a global validator instance used to validate struct fields based on tags.
var validate *validator.Validate

// Config holds all the configuration parameters necessary for properly configuring the orchestrator.
type Config struct {
	Log           Log           `yaml:"log"`           // Log holds configuration related to logging.
	OpenTelemetry OpenTelemetry `yaml:"opentelemetry"` // OpenTelemetry contains configuration settings for tracing.
	Gitlab        Gitlab        `yaml:"gitlab"`        // Gitlab contains GitLab-specific configuration settings.
	Git           Git           `yaml:"git"`           // Git holds configuration for the local checkout.
	Registry      Registry      `yaml:"registry"`      // Registry identifies where built images live.
	Candidates    Candidates    `yaml:"candidates"`    // Candidates bounds interactive commit selection.
	Gate          Gate          `yaml:"gate"`          // Gate configures the confirmation protocol.

	// EnvironmentDefaults defines parameters inherited by every environment
	// unless overridden in its own block.
	EnvironmentDefaults EnvironmentParameters `yaml:"environment_defaults"`

	// Environments holds the per-environment promotion parameters. All three
	// environments must be configured, there is no implicit one.
	Environments Environments `yaml:"environments"`
}

// Log holds configuration settings related to runtime logging.
type Log struct {
	// Level sets the logging verbosity level.
	// Valid values: trace, debug, info, warning, error, fatal, panic.
	// Defaults to "info".
	Level string `default:"info" validate:"required,oneof=trace debug info warning error fatal panic"`

	// Format sets the output format of the logs.
	// Valid values: "text" or "json".
	// Defaults to "text".
	Format string `default:"text" validate:"oneof=text json"`
}

// OpenTelemetry holds configuration related to OpenTelemetry integration.
type OpenTelemetry struct {
	// GRPCEndpoint is the gRPC address of the OpenTelemetry collector to send traces to.
	GRPCEndpoint string `yaml:"grpc_endpoint"`
}

// Gitlab holds the configuration needed to connect to a GitLab instance.
type Gitlab struct {
	// URL of the GitLab server or API endpoint.
	// Defaults to https://gitlab.com (the public GitLab instance).
	URL string `default:"https://gitlab.com" validate:"required,url" yaml:"url"`

	// HealthURL is the URL used to check if the GitLab server is reachable
	// before any destructive dispatch fires.
	HealthURL string `default:"https://gitlab.com/explore" validate:"required,url" yaml:"health_url"`

	Token             string `validate:"required" yaml:"token"`          // Token is the authentication token used to access the GitLab API.
	Project           string `validate:"required" yaml:"project"`        // Project is the path (with namespace) of the deployed service.
	EnableHealthCheck bool   `default:"true" yaml:"enable_health_check"` // EnableHealthCheck toggles the executor reachability preflight.
	EnableTLSVerify   bool   `default:"true" yaml:"enable_tls_verify"`   // EnableTLSVerify toggles TLS certificate verification.

	MaximumRequestsPerSecond   int `default:"5" validate:"gte=1" yaml:"maximum_requests_per_second"`   // MaximumRequestsPerSecond limits the GitLab API request rate.
	BurstableRequestsPerSecond int `default:"5" validate:"gte=1" yaml:"burstable_requests_per_second"` // BurstableRequestsPerSecond allows short bursts above the normal rate.
}

// Git holds configuration for the operator's local checkout.
type Git struct {
	// WorkDir is where git commands run. Defaults to the current directory.
	WorkDir string `default:"." yaml:"work_dir"`

	// TrunkBranch is the canonical integration branch.
	TrunkBranch string `default:"main" validate:"required" yaml:"trunk_branch"`
}

// Registry identifies the container registry coordinate of the service image.
type Registry struct {
	// Host of the registry.
	Host string `default:"registry.gitlab.com" validate:"required" yaml:"host"`

	// Repository path of the service image within the registry.
	Repository string `validate:"required" yaml:"repository"`
}

// Candidates bounds the interactive commit selection set.
type Candidates struct {
	// Limit caps how many candidate commits are offered for selection.
	Limit int `default:"20" validate:"gte=1,lte=100" yaml:"limit"`
}

// Gate configures the confirmation protocol.
type Gate struct {
	// MaximumAttempts bounds how often a confirmation step may be retried
	// before the run terminates as declined.
	MaximumAttempts int `default:"3" validate:"gte=1,lte=10" yaml:"maximum_attempts"`
}

// EnvironmentParameters holds the promotion parameters of one environment.
type EnvironmentParameters struct {
	// HistoryWorkflows lists, in query order, the workflow names which have
	// historically deployed this environment.
	HistoryWorkflows []string `yaml:"history_workflows"`

	// DeployWorkflow names the workflow executing a full-pipeline promotion.
	DeployWorkflow string `yaml:"deploy_workflow"`

	// RetagWorkflow names the workflow executing a re-tag promotion.
	RetagWorkflow string `yaml:"retag_workflow"`

	// DeployRef is the ref the dispatched pipeline runs on.
	DeployRef string `yaml:"deploy_ref"`

	// HistoryPerQueryLimit caps how many runs are fetched per workflow query.
	HistoryPerQueryLimit int `default:"20" validate:"gte=1" yaml:"history_per_query_limit"`
}

// Environments holds one parameter block per environment. Explicit fields
// instead of a map keep environment lookup exhaustive.
type Environments struct {
	Dev     EnvironmentParameters `yaml:"dev"`
	Staging EnvironmentParameters `yaml:"staging"`
	Prod    EnvironmentParameters `yaml:"prod"`
}

// ForEnvironment returns the parameter block of the given environment.
func (e Environments) ForEnvironment(env schemas.Environment) EnvironmentParameters {
	switch env {
	case schemas.EnvironmentStaging:
		return e.Staging
	case schemas.EnvironmentProd:
		return e.Prod
	default:
		return e.Dev
	}
}

// UnmarshalYAML implements custom YAML unmarshaling logic for the Config struct.
// Environment blocks first receive the static defaults, then their own YAML
// values, then the environment_defaults block for any field still left empty.
func (c *Config) UnmarshalYAML(v *yaml.Node) (err error) {
	// Define a local struct that mirrors Config but treats environment blocks
	// as raw YAML nodes so we can decode them individually with custom logic.
	type localConfig struct {
		Log                 Log                   `yaml:"log"`
		OpenTelemetry       OpenTelemetry         `yaml:"opentelemetry"`
		Gitlab              Gitlab                `yaml:"gitlab"`
		Git                 Git                   `yaml:"git"`
		Registry            Registry              `yaml:"registry"`
		Candidates          Candidates            `yaml:"candidates"`
		Gate                Gate                  `yaml:"gate"`
		EnvironmentDefaults EnvironmentParameters `yaml:"environment_defaults"`

		Environments struct {
			Dev     yaml.Node `yaml:"dev"`
			Staging yaml.Node `yaml:"staging"`
			Prod    yaml.Node `yaml:"prod"`
		} `yaml:"environments"`
	}

	// Initialize the local config with default values
	_cfg := localConfig{}
	defaults.MustSet(&_cfg)

	// Decode the input YAML into the local config struct
	if err = v.Decode(&_cfg); err != nil {
		return
	}

	c.Log = _cfg.Log
	c.OpenTelemetry = _cfg.OpenTelemetry
	c.Gitlab = _cfg.Gitlab
	c.Git = _cfg.Git
	c.Registry = _cfg.Registry
	c.Candidates = _cfg.Candidates
	c.Gate = _cfg.Gate
	c.EnvironmentDefaults = _cfg.EnvironmentDefaults

	for _, e := range []struct {
		node yaml.Node
		into *EnvironmentParameters
	}{
		{_cfg.Environments.Dev, &c.Environments.Dev},
		{_cfg.Environments.Staging, &c.Environments.Staging},
		{_cfg.Environments.Prod, &c.Environments.Prod},
	} {
		p := EnvironmentParameters{}
		defaults.MustSet(&p)

		if e.node.Kind != 0 {
			if err = e.node.Decode(&p); err != nil {
				return
			}
		}

		// Fill any field still left empty from the shared defaults block.
		if err = mergo.Merge(&p, c.EnvironmentDefaults); err != nil {
			return
		}

		*e.into = p
	}

	return
}

// ToYAML serializes the Config object into a YAML formatted string.
// Before serialization, it masks sensitive data to avoid leaking secrets.
func (c Config) ToYAML() string {
	c.Gitlab.Token = "*******"

	b, err := yaml.Marshal(c)
	if err != nil {
		panic(err)
	}

	return string(b)
}

// Validate checks if the Config struct's fields are valid according to
// the validation rules defined via struct tags plus the per-environment
// dispatchability rules which cannot be expressed as tags.
func (c Config) Validate() error {
	if validate == nil {
		validate = validator.New()
	}

	if err := validate.Struct(c); err != nil {
		return err
	}

	for _, env := range schemas.Environments {
		if err := c.Environments.ForEnvironment(env).check(env); err != nil {
			return err
		}
	}

	return nil
}

// New returns a new Config instance with default parameters set.
func New() (c Config) {
	defaults.MustSet(&c)
	return
}
