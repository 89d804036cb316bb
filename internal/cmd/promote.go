package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/helvethink/gitlab-promoter/pkg/orchestrator"
	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

// Promote runs one forward promotion.
func Promote(cliCtx *cli.Context) (int, error) {
	return runPromotion(cliCtx, false)
}

// Rollback returns an environment to its previously deployed release.
func Rollback(cliCtx *cli.Context) (int, error) {
	return runPromotion(cliCtx, true)
}

// runPromotion is the shared driver behind the promote and rollback
// commands: both walk the same decision flow, only the target selection and
// dispatch method differ.
func runPromotion(cliCtx *cli.Context, rollback bool) (int, error) {
	cfg, err := configure(cliCtx)
	if err != nil {
		return exitCodeError, err
	}

	environment, err := schemas.ParseEnvironment(cliCtx.String("environment"))
	if err != nil {
		return exitCodeUsage, err
	}

	mode := schemas.ModeNormal
	if cliCtx.Bool("emergency") {
		mode = schemas.ModeEmergency
	}

	// Interrupting a run before dispatch must leave the environment
	// untouched, after dispatch the executor owns the outcome either way.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	o, err := orchestrator.New(ctx, cfg, cliCtx.App.Version)
	if err != nil {
		return exitCodeError, err
	}

	defer logAPIUsage(&o)

	handle, err := o.Promote(ctx, orchestrator.Request{
		Environment: environment,
		Ref:         cliCtx.String("commit"),
		Mode:        mode,
		Rollback:    rollback,
	})
	if err != nil {
		return exitCodeFor(err), err
	}

	// The URL goes to stdout so wrapping scripts can capture it.
	fmt.Fprintln(os.Stdout, handle.WebURL)

	return exitCodeOK, nil
}
