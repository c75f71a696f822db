package ui_test

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/archsetup/pkg/tasks"
	"github.com/arthur-debert/archsetup/pkg/ui"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected ui.Format
		wantErr  bool
	}{
		{input: "", expected: ui.FormatAuto},
		{input: "auto", expected: ui.FormatAuto},
		{input: "TERM", expected: ui.FormatTerminal},
		{input: "plain", expected: ui.FormatText},
		{input: "Json", expected: ui.FormatJSON},
		{input: "yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			format, err := ui.ParseFormat(tt.input)
			if tt.wantErr {
				assert.ErrorContains(t, err, "unknown format")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, format)
		})
	}

	assert.Equal(t, "term", ui.FormatTerminal.String())
	assert.Equal(t, "unknown", ui.Format(99).String())
}

func TestDetectFormat_PipeIsText(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	assert.Equal(t, ui.FormatText, ui.DetectFormat(w))
	assert.Equal(t, ui.FormatText, ui.FormatAuto.Resolve(w))
	assert.Equal(t, ui.FormatJSON, ui.FormatJSON.Resolve(w))
	assert.False(t, ui.IsInteractive(r))
	assert.False(t, ui.IsInteractive(nil))
}

func TestDetectFormat_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, ui.FormatText, ui.DetectFormat(os.Stdout))
}

func samplePlan() []tasks.PhasePlan {
	return []tasks.PhasePlan{
		{Phase: tasks.Preparation, Tasks: []tasks.Task{
			{ID: "mirrors", Phase: tasks.Preparation, Policy: tasks.Recoverable, Description: "Rank pacman mirrors"},
		}},
		{Phase: tasks.Hardware},
	}
}

func TestRenderPlan_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ui.RenderPlan(&buf, samplePlan(), ui.FormatText))

	out := buf.String()
	assert.Contains(t, out, "1. preparation\n")
	assert.Contains(t, out, "mirrors")
	assert.Contains(t, out, "recoverable")
	assert.Contains(t, out, "2. hardware\n   (nothing to do)\n")
	assert.Contains(t, out, "\n1 tasks\n")
	assert.NotContains(t, out, "\x1b[")
}

func TestRenderPlan_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ui.RenderPlan(&buf, samplePlan(), ui.FormatJSON))

	var decoded []struct {
		Phase string `json:"phase"`
		Tasks []struct {
			ID     string `json:"id"`
			Policy string `json:"policy"`
			Gate   string `json:"gate"`
		} `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "mirrors", decoded[0].Tasks[0].ID)
	assert.Equal(t, "always", decoded[0].Tasks[0].Gate)
	assert.Empty(t, decoded[1].Tasks)
}

func TestMarkdownRenderer_FallsBackOnBadStyle(t *testing.T) {
	r := &ui.MarkdownRenderer{Style: "/nonexistent/style.json"}
	assert.Equal(t, "# title\n", r.Render("# title\n"))
}
