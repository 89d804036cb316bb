package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/helvethink/gitlab-promoter/internal/cmd"
)

// Run handles the instantiation of the CLI application.
func Run(version string, args []string) {
	err := NewApp(version, time.Now()).Run(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewApp configures the CLI application.
func NewApp(version string, start time.Time) (app *cli.App) {
	app = cli.NewApp()
	app.Name = "gitlab-promoter"
	app.Version = version
	app.Usage = "Promote and roll back releases across environments through GitLab CI"
	app.EnableBashCompletion = true

	app.Flags = cli.FlagsByName{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			EnvVars: []string{"GPR_CONFIG"},
			Usage:   "config `file`",
			Value:   "./gitlab-promoter.yml",
		},
		&cli.StringFlag{
			Name:    "gitlab-token",
			EnvVars: []string{"GPR_GITLAB_TOKEN"},
			Usage:   "GitLab API access `token`",
		},
		&cli.StringFlag{
			Name:    "gitlab-health-url",
			EnvVars: []string{"GPR_GITLAB_HEALTH_URL"},
			Usage:   "GitLab health check `url`, implies enabling the executor preflight",
		},
		&cli.StringFlag{
			Name:    "log-level",
			EnvVars: []string{"GPR_LOG_LEVEL"},
			Usage:   "log `level` (debug,info,warn,fatal,panic)",
		},
		&cli.StringFlag{
			Name:    "log-format",
			EnvVars: []string{"GPR_LOG_FORMAT"},
			Usage:   "log `format` (json,text)",
		},
	}

	promotionFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "environment",
			Aliases: []string{"e"},
			EnvVars: []string{"GPR_ENVIRONMENT"},
			Usage:   "target `environment` (dev,staging,prod)",
			Value:   "dev",
		},
		&cli.StringFlag{
			Name:    "commit",
			EnvVars: []string{"GPR_COMMIT"},
			Usage:   "commit `reference`: full or abbreviated identifier, release tag, or 'current'",
		},
		&cli.BoolFlag{
			Name:    "emergency",
			EnvVars: []string{"GPR_EMERGENCY"},
			Usage:   "emergency mode: re-tag an existing artifact instead of running the full pipeline",
		},
	}

	app.Commands = cli.CommandsByName{
		{
			Name:   "promote",
			Usage:  "promote a commit's artifact to an environment",
			Flags:  promotionFlags,
			Action: cmd.ExecWrapper(cmd.Promote),
		},
		{
			Name:   "rollback",
			Usage:  "return an environment to its previously deployed release",
			Flags:  promotionFlags,
			Action: cmd.ExecWrapper(cmd.Rollback),
		},
		{
			Name:   "history",
			Usage:  "display the deployment history of an environment",
			Flags:  promotionFlags,
			Action: cmd.ExecWrapper(cmd.History),
		},
		{
			Name:   "validate",
			Usage:  "validate the configuration file",
			Action: cmd.ExecWrapper(cmd.Validate),
		},
	}

	app.Metadata = map[string]interface{}{
		"startTime": start,
	}

	return
}
