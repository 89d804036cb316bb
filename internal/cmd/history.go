package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"
	"github.com/xeonx/timeago"

	"github.com/helvethink/gitlab-promoter/pkg/orchestrator"
	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

// Styling of the history table.
var (
	historyTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FFFDF5")).
				Background(lipgloss.Color("#003d80")).
				Padding(0, 1)

	historyCellStyle = lipgloss.NewStyle().
				PaddingRight(2)

	historyFailureStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#cc3300"))
)

// History displays the deployment history of an environment, newest first.
func History(cliCtx *cli.Context) (int, error) {
	cfg, err := configure(cliCtx)
	if err != nil {
		return exitCodeError, err
	}

	environment, err := schemas.ParseEnvironment(cliCtx.String("environment"))
	if err != nil {
		return exitCodeUsage, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	o, err := orchestrator.New(ctx, cfg, cliCtx.App.Version)
	if err != nil {
		return exitCodeError, err
	}

	defer logAPIUsage(&o)

	records, err := o.EnvironmentHistory(ctx, environment)
	if err != nil {
		return exitCodeFor(err), err
	}

	renderHistory(os.Stdout, environment, records)

	return exitCodeOK, nil
}

// renderHistory writes the records as a plain table. Timestamps are relative
// since operators mostly care about "how long ago".
func renderHistory(out *os.File, environment schemas.Environment, records []schemas.DeploymentRecord) {
	fmt.Fprintln(out, historyTitleStyle.Render(fmt.Sprintf("deployment history: %s", environment)))

	for _, record := range records {
		age := "unknown age"
		if !record.CreatedAt.IsZero() {
			age = timeago.English.Format(record.CreatedAt)
		}

		outcome := string(record.Outcome)
		if !record.Succeeded() {
			outcome = historyFailureStyle.Render(outcome)
		}

		fmt.Fprintln(out, lipgloss.JoinHorizontal(
			lipgloss.Top,
			historyCellStyle.Render(fmt.Sprintf("#%d", record.RunID)),
			historyCellStyle.Render(record.Commit),
			historyCellStyle.Render(outcome),
			historyCellStyle.Render(age),
			record.Title,
		))
		fmt.Fprintf(out, "  %s\n", record.WebURL)
	}
}
