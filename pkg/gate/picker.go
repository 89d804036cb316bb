package gate

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

var docStyle = lipgloss.NewStyle().Margin(1, 2)

// item adapts a resolved commit to the list component.
type item struct {
	commit schemas.ResolvedCommit
}

func (i item) Title() string {
	return i.commit.Short()
}

func (i item) Description() string {
	if i.commit.Label == "" {
		return i.commit.ID
	}

	return i.commit.Label
}

func (i item) FilterValue() string {
	return i.commit.ID + " " + i.commit.Label
}

// pickerModel is the interactive candidate selection UI.
type pickerModel struct {
	list   list.Model
	choice *schemas.ResolvedCommit
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if i, ok := m.list.SelectedItem().(item); ok {
				c := i.commit
				m.choice = &c
			}

			return m, tea.Quit
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	return m, cmd
}

func (m pickerModel) View() string {
	return docStyle.Render(m.list.View())
}

// Pick offers the candidate set for interactive selection and returns the
// chosen commit. Quitting without a choice is a decline, not an error.
func Pick(candidates []schemas.ResolvedCommit, title string) (schemas.ResolvedCommit, error) {
	items := make([]list.Item, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, item{commit: c})
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title

	m := pickerModel{list: l}

	out, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return schemas.ResolvedCommit{}, fmt.Errorf("running candidate picker: %w", err)
	}

	final, ok := out.(pickerModel)
	if !ok || final.choice == nil {
		return schemas.ResolvedCommit{}, errors.Wrap(schemas.ErrUserDeclined, "no commit selected")
	}

	return *final.choice, nil
}
