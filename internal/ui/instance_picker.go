package ui

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lobot-sh/lobot/internal/cloud"
	"github.com/lobot-sh/lobot/internal/errors"
)

// instanceItem implements list.Item for the Bubbles list component.
type instanceItem struct {
	inst cloud.Instance
}

func (i instanceItem) Title() string {
	if i.inst.Name != "" {
		return i.inst.Name
	}
	return i.inst.ID
}

func (i instanceItem) Description() string {
	parts := []string{i.inst.ID, i.inst.Type, i.inst.State.String()}
	if i.inst.PublicAddress != "" {
		parts = append(parts, i.inst.PublicAddress)
	}
	return strings.Join(parts, " | ")
}

func (i instanceItem) FilterValue() string {
	return strings.Join([]string{i.inst.Name, i.inst.ID, i.inst.Type, i.inst.State.String()}, " ")
}

// InstancePickerModel is a Bubble Tea model for selecting an instance.
type InstancePickerModel struct {
	list      list.Model
	instances []cloud.Instance
	selected  *cloud.Instance
	quitting  bool
}

type instancePickerKeyMap struct {
	Enter key.Binding
	Quit  key.Binding
}

var instancePickerKeys = instancePickerKeyMap{
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q/esc", "cancel"),
	),
}

// NewInstancePickerModel creates a new instance picker model.
func NewInstancePickerModel(instances []cloud.Instance) InstancePickerModel {
	items := make([]list.Item, len(instances))
	for i, inst := range instances {
		items[i] = instanceItem{inst: inst}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color(string(ColorPrimary))).
		BorderForeground(lipgloss.Color(string(ColorSecondary)))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color(string(ColorMuted)))

	l := list.New(items, delegate, 0, 0)
	l.Title = "Select an instance"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color(string(ColorPrimary))).
		Bold(true).
		Padding(0, 0, 1, 0)
	l.Styles.HelpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(string(ColorMuted)))

	return InstancePickerModel{
		list:      l,
		instances: instances,
	}
}

// Init implements tea.Model.
func (m InstancePickerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InstancePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, instancePickerKeys.Enter):
			if item, ok := m.list.SelectedItem().(instanceItem); ok {
				inst := item.inst
				m.selected = &inst
			}
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, instancePickerKeys.Quit):
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-2)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m InstancePickerModel) View() string {
	if m.quitting {
		return ""
	}
	return m.list.View()
}

// Selected returns the selected instance, or nil if cancelled.
func (m InstancePickerModel) Selected() *cloud.Instance {
	return m.selected
}

// PickInstance displays an interactive picker and returns the chosen
// instance, or nil if the user cancels.
func PickInstance(instances []cloud.Instance) (*cloud.Instance, error) {
	return PickInstanceWithOutput(instances, os.Stdout, os.Stdin)
}

// PickInstanceWithOutput displays the picker using custom I/O.
func PickInstanceWithOutput(instances []cloud.Instance, output io.Writer, input io.Reader) (*cloud.Instance, error) {
	if len(instances) == 0 {
		return nil, errors.New(errors.ErrNotFound,
			"no instances in this region",
			"Check the region with 'lobot regions' or switch with --region")
	}

	if len(instances) == 1 {
		return &instances[0], nil
	}

	model := NewInstancePickerModel(instances)

	p := tea.NewProgram(
		model,
		tea.WithOutput(output),
		tea.WithInput(input),
	)

	finalModel, err := p.Run()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"instance picker failed",
			"Pass the instance id directly instead")
	}

	if m, ok := finalModel.(InstancePickerModel); ok {
		return m.Selected(), nil
	}

	return nil, nil
}

// IsTerminal returns true if the file descriptor is a terminal.
func IsTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
