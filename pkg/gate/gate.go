package gate

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

// Literal confirmation tokens. Matching is case-sensitive, there is no fuzzy
// matching and no default-on-empty.
const (
	// TokenEmergency confirms any emergency rollback flow.
	TokenEmergency = "ROLLBACK"

	// TokenProdManual confirms a manual production flow.
	TokenProdManual = "approved"

	// PhraseProdEmergency is the distinct second phrase for emergency
	// production flows.
	PhraseProdEmergency = "PROD-EMERGENCY"

	// PhraseProdDeploy is the distinct second phrase for standard production
	// flows.
	PhraseProdDeploy = "PROD-DEPLOY"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#003d80")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Width(14).
			Foreground(lipgloss.AdaptiveColor{Light: "#343433", Dark: "#C1C6B2"})

	valueStyle = lipgloss.NewStyle().Bold(true)

	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#cc3300"))
)

// Decision is the summary displayed to the operator before any confirmation
// is requested.
type Decision struct {
	Environment schemas.Environment
	Mode        schemas.Mode
	Method      schemas.DispatchMethod
	Tier        schemas.ApprovalTier
	From        *schemas.DeploymentRecord // Currently deployed run, when known
	To          schemas.ResolvedCommit
	Image       schemas.ImageReference
}

// Gate walks the strict sequential confirmation protocol guarding
// destructive transitions.
type Gate struct {
	in          *bufio.Reader
	out         io.Writer
	maxAttempts int
}

// New returns a Gate reading operator input from in and writing prompts to
// out.
func New(in io.Reader, out io.Writer, maxAttempts int) *Gate {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Gate{
		in:          bufio.NewReader(in),
		out:         out,
		maxAttempts: maxAttempts,
	}
}

// Confirm displays the decision summary and walks the confirmation steps the
// approval tier requires. Any non-matching input terminates the protocol
// with ErrUserDeclined, which the caller must treat as a normal outcome, not
// a system error.
func (g *Gate) Confirm(d Decision) error {
	g.printSummary(d)

	if d.Tier == schemas.ApprovalNone {
		return nil
	}

	if d.Tier.Includes(schemas.ApprovalInteractive) {
		if err := g.interactiveStep(d); err != nil {
			return err
		}
	}

	if d.Tier.Includes(schemas.ApprovalTypedPhrase) {
		phrase := PhraseProdDeploy
		if d.Mode == schemas.ModeEmergency {
			phrase = PhraseProdEmergency
		}

		if err := g.requireLiteral(fmt.Sprintf("type '%s' to proceed", phrase), phrase); err != nil {
			return err
		}
	}

	if d.Tier.Includes(schemas.ApprovalRemoteGate) {
		// The remote gate cannot be satisfied here: a human approves the
		// dispatched run out-of-band before the executor proceeds.
		fmt.Fprintln(g.out, warnStyle.Render("note:"), "the dispatched run will additionally wait for out-of-band production approval")
	}

	return nil
}

// AcknowledgeRisk asks the operator to explicitly accept a degraded
// situation before the run continues. Only a literal "yes" proceeds.
func (g *Gate) AcknowledgeRisk(reason string) error {
	fmt.Fprintln(g.out, warnStyle.Render("warning:"), reason)

	return g.requireLiteral("type 'yes' to proceed at your own risk", "yes")
}

// interactiveStep is the first confirmation: a literal token for emergency
// and manual production flows, a plain confirmation otherwise.
func (g *Gate) interactiveStep(d Decision) error {
	switch {
	case d.Mode == schemas.ModeEmergency:
		return g.requireLiteral(fmt.Sprintf("type '%s' to confirm the emergency rollback", TokenEmergency), TokenEmergency)
	case d.Environment == schemas.EnvironmentProd:
		return g.requireLiteral(fmt.Sprintf("type '%s' to confirm the production promotion", TokenProdManual), TokenProdManual)
	default:
		return g.requireLiteral(fmt.Sprintf("promote to %s? type 'y' to confirm", d.Environment), "y")
	}
}

// requireLiteral prompts for one exact, case-sensitive token. Empty input
// re-prompts up to the attempt bound; any other mismatch is terminal.
func (g *Gate) requireLiteral(prompt, want string) error {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		fmt.Fprintf(g.out, "%s: ", prompt)

		line, err := g.in.ReadString('\n')
		if err != nil && line == "" {
			return errors.Wrap(schemas.ErrUserDeclined, "input closed")
		}

		switch strings.TrimRight(line, "\r\n") {
		case want:
			return nil
		case "":
			// No default-on-empty, but an accidental return is not a refusal.
			continue
		default:
			return errors.Wrapf(schemas.ErrUserDeclined, "expected '%s'", want)
		}
	}

	return errors.Wrap(schemas.ErrUserDeclined, "no confirmation received")
}

// printSummary renders the decision context so the operator always sees what
// action the confirmations apply to.
func (g *Gate) printSummary(d Decision) {
	from := "unknown"
	if d.From != nil {
		from = fmt.Sprintf("%s (run #%d)", d.From.Commit, d.From.RunID)
	}

	rows := []struct {
		label string
		value string
	}{
		{"environment", d.Environment.String()},
		{"mode", string(d.Mode)},
		{"method", string(d.Method)},
		{"approval", d.Tier.String()},
		{"from", from},
		{"to", d.To.String()},
		{"image", d.Image.String()},
	}

	fmt.Fprintln(g.out, titleStyle.Render("promotion decision"))

	for _, row := range rows {
		fmt.Fprintln(g.out, labelStyle.Render(row.label), valueStyle.Render(row.value))
	}
}
