package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otellogrus"
	"github.com/urfave/cli/v2"

	logger "github.com/helvethink/gitlab-promoter/internal/logging"
	"github.com/helvethink/gitlab-promoter/pkg/config"
	"github.com/helvethink/gitlab-promoter/pkg/orchestrator"
	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

// Exit codes of the promoter. Operator refusal is a normal terminal outcome
// and gets its own code so that wrapping scripts can tell it apart from
// failures.
const (
	exitCodeOK       = 0
	exitCodeError    = 1
	exitCodeUsage    = 2
	exitCodeDeclined = 3
)

var start time.Time

// configure loads and validates configuration from CLI context and sets up
// logging. It returns a populated config object or an error.
func configure(ctx *cli.Context) (cfg config.Config, err error) {
	// Retrieve and store application start time from CLI metadata
	start = ctx.App.Metadata["startTime"].(time.Time)

	// Ensure "config" CLI flag is defined
	assertStringVariableDefined(ctx, "config")

	// Parse the configuration file from the given path
	cfg, err = config.ParseFile(ctx.String("config"))
	if err != nil {
		return
	}

	// Override config parameters with any CLI-provided values
	configCliOverrides(ctx, &cfg)

	// Validate the final configuration structure
	if err = cfg.Validate(); err != nil {
		return
	}

	// Initialize logger with the config-defined level and format
	if err = logger.Configure(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	}); err != nil {
		return
	}

	// Add OpenTelemetry logging hook to integrate tracing into logs
	log.AddHook(otellogrus.NewHook(otellogrus.WithLevels(
		log.PanicLevel,
		log.FatalLevel,
		log.ErrorLevel,
		log.WarnLevel,
	)))

	log.WithFields(
		log.Fields{
			"gitlab-endpoint":   cfg.Gitlab.URL,
			"gitlab-project":    cfg.Gitlab.Project,
			"gitlab-rate-limit": fmt.Sprintf("%drps", cfg.Gitlab.MaximumRequestsPerSecond),
		},
	).Info("configured")

	return
}

// logAPIUsage reports the GitLab API request telemetry accumulated over the
// command, so that operators can see how much of the rate-limit quota a run
// consumed.
func logAPIUsage(o *orchestrator.Orchestrator) {
	if o.Gitlab == nil {
		return
	}

	log.WithFields(o.Gitlab.APIUsage()).Debug("gitlab api usage")
}

// exit logs the execution time and error (if any), then returns a CLI exit code.
func exit(exitCode int, err error) cli.ExitCoder {
	defer log.WithFields(
		log.Fields{
			"execution-time": time.Since(start), // nolint: govet
		},
	).Debug("exited..")

	if err != nil {
		if errors.Is(err, schemas.ErrUserDeclined) {
			log.WithError(err).Warn()
		} else {
			log.WithError(err).Error()
		}
	}

	return cli.Exit("", exitCode)
}

// exitCodeFor maps a terminal error onto the promoter's exit code space.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitCodeOK
	case errors.Is(err, schemas.ErrUserDeclined):
		return exitCodeDeclined
	default:
		return exitCodeError
	}
}

// ExecWrapper gracefully logs and exits our `run` functions.
// It wraps a function returning (int, error) into a `cli.ActionFunc` compatible with urfave/cli.
func ExecWrapper(f func(ctx *cli.Context) (int, error)) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		return exit(f(ctx))
	}
}

// configCliOverrides overrides configuration fields with command-line flags if present.
func configCliOverrides(ctx *cli.Context, cfg *config.Config) {
	// Override GitLab token if provided via CLI
	if ctx.String("gitlab-token") != "" {
		cfg.Gitlab.Token = ctx.String("gitlab-token")
	}

	// Override health URL and enable the executor preflight if provided
	if healthURL := ctx.String("gitlab-health-url"); healthURL != "" {
		cfg.Gitlab.HealthURL = healthURL
		cfg.Gitlab.EnableHealthCheck = true
	}

	if logLevel := ctx.String("log-level"); logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if logFormat := ctx.String("log-format"); logFormat != "" {
		cfg.Log.Format = logFormat
	}
}

// assertStringVariableDefined ensures a required string flag is set.
// If not, it prints help and exits the program.
func assertStringVariableDefined(ctx *cli.Context, k string) {
	if len(ctx.String(k)) == 0 {
		_ = cli.ShowAppHelp(ctx)

		log.Errorf("'--%s' must be set!", k)
		os.Exit(exitCodeUsage)
	}
}
