package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lobot-sh/lobot/internal/cloud"
)

func sampleInstances() []cloud.Instance {
	return []cloud.Instance{
		{
			ID:            "i-0abc",
			Name:          "web",
			Type:          "t3.medium",
			State:         cloud.StateRunning,
			PublicAddress: "203.0.113.7",
			KeyName:       "web-key",
			LaunchTime:    time.Now().Add(-90 * time.Minute),
		},
		{
			ID:      "i-0def",
			Name:    "batch",
			Type:    "m5.large",
			State:   cloud.StateStopped,
			KeyName: "batch-key",
		},
	}
}

func TestRenderInstanceTable(t *testing.T) {
	out := RenderInstanceTable(sampleInstances(), nil)

	assert.Contains(t, out, "web")
	assert.Contains(t, out, "i-0abc")
	assert.Contains(t, out, "203.0.113.7")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "stopped")
	assert.NotContains(t, out, "PRICE/HR")
}

func TestRenderInstanceTableWithPrices(t *testing.T) {
	prices := map[string]float64{"t3.medium": 0.0416}
	out := RenderInstanceTable(sampleInstances(), prices)

	assert.Contains(t, out, "PRICE/HR")
	assert.Contains(t, out, "$0.0416")
}

func TestRenderInstanceTableEmpty(t *testing.T) {
	out := RenderInstanceTable(nil, nil)
	assert.Contains(t, out, "No instances")
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Minute, "45m"},
		{3*time.Hour + 12*time.Minute, "3h12m"},
		{52 * time.Hour, "2d4h"},
		{0, "-"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatUptime(tt.d))
	}
}

func TestStateColor(t *testing.T) {
	assert.Equal(t, ColorSuccess, StateColor("running"))
	assert.Equal(t, ColorWarning, StateColor("pending"))
	assert.Equal(t, ColorError, StateColor("terminated"))
	assert.Equal(t, ColorMuted, StateColor("stopped"))
}

func TestInstancePickerSelection(t *testing.T) {
	model := NewInstancePickerModel(sampleInstances())

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	picker, ok := updated.(InstancePickerModel)
	require.True(t, ok)

	selected := picker.Selected()
	require.NotNil(t, selected)
	assert.Equal(t, "i-0abc", selected.ID)
}

func TestInstancePickerCancel(t *testing.T) {
	model := NewInstancePickerModel(sampleInstances())

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	picker := updated.(InstancePickerModel)
	assert.Nil(t, picker.Selected())
	assert.Empty(t, picker.View())
}

func TestSpinnerLifecycle(t *testing.T) {
	var mu strings.Builder
	s := NewSpinner("starting web")
	s.SetOutput(func(out string) { mu.WriteString(out) })

	s.Start()
	s.SetLabel("starting web (pending)")
	s.Success()

	assert.Equal(t, SpinnerSuccess, s.State())
	assert.Contains(t, mu.String(), SymbolComplete)
	assert.Contains(t, mu.String(), "starting web (pending)")
}

func TestRenderSimpleTableEmpty(t *testing.T) {
	assert.Empty(t, RenderSimpleTable([]TableColumn{{Title: "A", Width: 5}}, nil))
}
